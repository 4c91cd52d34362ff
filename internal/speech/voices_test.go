package speech

import (
	"errors"
	"testing"
)

func TestCatalogResolve(t *testing.T) {
	c := NewCatalog(DefaultVoices()...)

	tests := []struct {
		query string
		spec  string
	}{
		{"", "edge|en-US-ChristopherNeural"},
		{"Jenny (Edge Free)", "edge|en-US-JennyNeural"},
		{"jenny (edge free)", "edge|en-US-JennyNeural"},
		{"openai|alloy", "openai|alloy"},
		{"edge|fr-FR-DeniseNeural", "edge|fr-FR-DeniseNeural"},
		{"ostap", "edge|uk-UA-OstapNeural"},
		{"Konrad", "genaipro|NlRO8ABjJNJNYaRaLiPJ"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			v, err := c.Resolve(tt.query)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.query, err)
			}
			if v.Spec() != tt.spec {
				t.Errorf("Resolve(%q) = %s, want %s", tt.query, v.Spec(), tt.spec)
			}
		})
	}
}

func TestCatalogResolveUnknown(t *testing.T) {
	c := NewCatalog(DefaultVoices()...)
	if _, err := c.Resolve("zzzzqqq"); !errors.Is(err, ErrUnknownVoice) {
		t.Errorf("error = %v", err)
	}
	if _, err := c.Resolve("edge|"); !errors.Is(err, ErrUnknownVoice) {
		t.Errorf("error = %v", err)
	}
}

func TestCatalogAddReplacesByLabel(t *testing.T) {
	c := NewCatalog(Voice{Label: "A", Provider: "edge", ID: "1"})
	c.Add(Voice{Label: "a", Provider: "openai", ID: "2"})
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
	if v := c.List()[0]; v.Provider != "openai" {
		t.Errorf("voice = %+v", v)
	}
}
