package classify

import (
	"strings"
	"testing"
)

func TestPrompt(t *testing.T) {
	p := Practice{
		Name:     "Whispering Pines Family Medicine",
		Provider: "Dr. Evelyn Sato, DO",
		Fax:      "555-867-5309",
	}

	prompt := Prompt(p, 0.65)

	for _, want := range []string{
		p.Name,
		p.Provider,
		p.Fax,
		"0.65",
		"lab_result",
		"marketing_junk",
		"possibly_misdirected",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Every taxonomy member must be offered to the model.
	for _, dt := range DocumentTypes {
		if !strings.Contains(prompt, string(dt)) {
			t.Errorf("prompt missing document type %q", dt)
		}
	}
}
