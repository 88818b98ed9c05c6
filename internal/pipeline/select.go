package pipeline

import (
	"github.com/notyorkbot/fax-capacitor-vesper/internal/quality"
	"github.com/notyorkbot/fax-capacitor-vesper/internal/render"
)

// SelectionPolicy is the multi-page inclusion policy. Short documents are
// submitted whole; beyond that only the leading pages go to the classifier,
// since marginal classification value per page drops sharply while cost
// scales linearly.
type SelectionPolicy struct {
	// PageCap is the maximum number of pages submitted for long documents.
	PageCap int `mapstructure:"page_cap" yaml:"page_cap"`

	// ShortDocThreshold is the page count at or below which every page is
	// submitted.
	ShortDocThreshold int `mapstructure:"short_doc_threshold" yaml:"short_doc_threshold"`
}

// DefaultSelectionPolicy returns the standard policy: documents of up to 5
// pages are sent whole, longer ones contribute their first 3 pages.
func DefaultSelectionPolicy() SelectionPolicy {
	return SelectionPolicy{
		PageCap:           3,
		ShortDocThreshold: 5,
	}
}

func (p SelectionPolicy) normalize() SelectionPolicy {
	def := DefaultSelectionPolicy()
	if p.PageCap <= 0 {
		p.PageCap = def.PageCap
	}
	if p.ShortDocThreshold <= 0 {
		p.ShortDocThreshold = def.ShortDocThreshold
	}
	return p
}

// RenderLimit returns how many leading pages are worth rasterizing at all
// under this policy.
func (p SelectionPolicy) RenderLimit() int {
	p = p.normalize()
	if p.ShortDocThreshold > p.PageCap {
		return p.ShortDocThreshold
	}
	return p.PageCap
}

// Selection is the ordered set of pages chosen for submission plus the
// document-level aggregate quality.
type Selection struct {
	Pages      []render.PageImage
	Qualities  []quality.PageQuality // aligned with Pages
	TotalPages int

	// Tier is the worst tier among selected pages; a single poor page is not
	// hidden by otherwise-good pages.
	Tier quality.Tier

	// AllBlank is true when every selected page is a blank/black page.
	AllBlank bool
}

// Select applies the inclusion policy. pages and verdicts must be aligned and
// ordered by page index; totalPages is the full original document length.
// Selection always proceeds even if every page is blank; downstream flags
// surface that condition.
func (p SelectionPolicy) Select(pages []render.PageImage, verdicts []quality.PageQuality, totalPages int) Selection {
	p = p.normalize()

	n := len(pages)
	if totalPages > p.ShortDocThreshold && n > p.PageCap {
		n = p.PageCap
	}

	sel := Selection{
		Pages:      pages[:n],
		Qualities:  verdicts[:n],
		TotalPages: totalPages,
		Tier:       quality.TierGood,
		AllBlank:   n > 0,
	}

	for _, v := range sel.Qualities {
		if v.Tier.Worse(sel.Tier) {
			sel.Tier = v.Tier
		}
		if !v.Blank {
			sel.AllBlank = false
		}
	}
	if n == 0 {
		sel.Tier = quality.TierPoor
	}

	return sel
}
