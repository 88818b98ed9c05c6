// Package quality assesses rendered page legibility from pixel statistics.
//
// Verdicts are a pure function of pixel data: encoded size, compression ratio,
// and byte length are never consulted, since none of them correlate with
// visual legibility.
package quality

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
)

// ErrImageDecode indicates page bytes that could not be decoded as an image.
// This is a per-page condition; callers drop the page and continue.
var ErrImageDecode = errors.New("failed to decode page image")

// Thresholds are the calibration values for tier classification. They are
// tunables, not derived constants; defaults come from calibration against a
// synthetic fax corpus.
type Thresholds struct {
	// Blank/black page detection: a near-solid page has almost no luminance
	// variance. The brightness bounds separate solid-black scans and solid-
	// white blanks from legitimate low-contrast content.
	BlankContrastMax   float64 `mapstructure:"blank_contrast_max" yaml:"blank_contrast_max"`
	BlackBrightnessMax float64 `mapstructure:"black_brightness_max" yaml:"black_brightness_max"`
	BlankBrightnessMin float64 `mapstructure:"blank_brightness_min" yaml:"blank_brightness_min"`

	// Tier cutoffs on luminance standard deviation.
	GoodContrastMin float64 `mapstructure:"good_contrast_min" yaml:"good_contrast_min"`
	FairContrastMin float64 `mapstructure:"fair_contrast_min" yaml:"fair_contrast_min"`

	// Non-clipped exposure band required for the good tier.
	ExposureMin float64 `mapstructure:"exposure_min" yaml:"exposure_min"`
	ExposureMax float64 `mapstructure:"exposure_max" yaml:"exposure_max"`
}

// DefaultThresholds returns the calibrated default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BlankContrastMax:   10.0,
		BlackBrightnessMax: 15.0,
		BlankBrightnessMin: 240.0,
		GoodContrastMin:    50.0,
		FairContrastMin:    25.0,
		ExposureMin:        60.0,
		ExposureMax:        200.0,
	}
}

// Tier is a page or document quality verdict level.
type Tier string

const (
	TierGood Tier = "good"
	TierFair Tier = "fair"
	TierPoor Tier = "poor"
)

// Valid reports whether t is a member of the tier set.
func (t Tier) Valid() bool {
	return t == TierGood || t == TierFair || t == TierPoor
}

// Worse reports whether t is a lower-quality tier than other.
func (t Tier) Worse(other Tier) bool {
	return tierRank(t) > tierRank(other)
}

func tierRank(t Tier) int {
	switch t {
	case TierGood:
		return 0
	case TierFair:
		return 1
	default:
		return 2
	}
}

// PageQuality is the verdict for one rendered page. Immutable once computed.
type PageQuality struct {
	Tier Tier `json:"tier"`

	// Blank is true for near-solid pages (solid-black scans and blank white
	// pages both qualify). Consumers that need "black specifically" check
	// MeanBrightness as well.
	Blank bool `json:"blank"`

	// MeanBrightness is the mean luminance on a 0-255 scale.
	MeanBrightness float64 `json:"mean_brightness"`

	// Contrast is the standard deviation of luminance.
	Contrast float64 `json:"contrast"`
}

// Analyzer computes PageQuality verdicts from encoded image bytes.
type Analyzer struct {
	thresholds Thresholds
}

// NewAnalyzer creates an analyzer with the given thresholds.
func NewAnalyzer(t Thresholds) *Analyzer {
	return &Analyzer{thresholds: t}
}

// Analyze decodes the image and classifies it. Tie-breaks are deterministic
// and evaluated in order: blank/black, good, fair, poor.
func (a *Analyzer) Analyze(data []byte) (PageQuality, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return PageQuality{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	mean, stddev := luminanceStats(img)

	q := PageQuality{
		MeanBrightness: mean,
		Contrast:       stddev,
	}

	t := a.thresholds
	switch {
	case stddev < t.BlankContrastMax && (mean <= t.BlackBrightnessMax || mean >= t.BlankBrightnessMin):
		q.Blank = true
		q.Tier = TierPoor
	case stddev > t.GoodContrastMin && mean >= t.ExposureMin && mean <= t.ExposureMax:
		q.Tier = TierGood
	case stddev > t.FairContrastMin:
		q.Tier = TierFair
	default:
		q.Tier = TierPoor
	}

	return q, nil
}

// luminanceStats converts to grayscale and computes the mean and standard
// deviation of luminance across all pixels.
func luminanceStats(img image.Image) (mean, stddev float64) {
	gray := imaging.Grayscale(img)

	// Grayscale output has R == G == B; read the red channel directly.
	var sum, sumSq float64
	n := 0
	for i := 0; i < len(gray.Pix); i += 4 {
		v := float64(gray.Pix[i])
		sum += v
		sumSq += v * v
		n++
	}
	if n == 0 {
		return 0, 0
	}

	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
