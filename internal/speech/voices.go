package speech

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// ErrUnknownVoice is returned when a voice query matches nothing.
var ErrUnknownVoice = errors.New("unknown voice")

// Voice is a selectable voice: a display label bound to a provider voice.
type Voice struct {
	Label    string `json:"label"`
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

// Spec returns the "provider|voiceID" form.
func (v Voice) Spec() string { return v.Provider + "|" + v.ID }

// ParseSpec parses a "provider|voiceID" string.
func ParseSpec(spec string) (Voice, error) {
	provider, id, ok := strings.Cut(strings.TrimSpace(spec), "|")
	provider, id = strings.ToLower(strings.TrimSpace(provider)), strings.TrimSpace(id)
	if !ok || provider == "" || id == "" {
		return Voice{}, fmt.Errorf("%w: %q is not provider|voiceID", ErrUnknownVoice, spec)
	}
	return Voice{Label: spec, Provider: provider, ID: id}, nil
}

// DefaultVoiceLabel is selected when nothing else is configured.
const DefaultVoiceLabel = "Christopher (Edge Free)"

// DefaultVoices returns the built-in voice list.
func DefaultVoices() []Voice {
	return []Voice{
		{Label: "Christopher (Edge Free)", Provider: "edge", ID: "en-US-ChristopherNeural"},
		{Label: "Jenny (Edge Free)", Provider: "edge", ID: "en-US-JennyNeural"},
		{Label: "Ostap (Edge Free)", Provider: "edge", ID: "uk-UA-OstapNeural"},
		{Label: "Conrad (Edge Free)", Provider: "edge", ID: "de-DE-ConradNeural"},
		{Label: "Konrad (Germany)", Provider: "genaipro", ID: "NlRO8ABjJNJNYaRaLiPJ"},
		{Label: "Alloy (OpenAI)", Provider: "openai", ID: "alloy"},
		{Label: "Killian (Edge Free)", Provider: "edge", ID: "de-DE-KillianNeural"},
	}
}

// Catalog is an ordered, concurrency-safe set of voices keyed by label.
type Catalog struct {
	mu     sync.RWMutex
	voices []Voice
	byKey  map[string]int
}

// NewCatalog creates a catalog holding voices.
func NewCatalog(voices ...Voice) *Catalog {
	c := &Catalog{byKey: make(map[string]int)}
	c.Add(voices...)
	return c
}

// Add inserts voices, replacing any with the same label.
func (c *Catalog) Add(voices ...Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range voices {
		key := strings.ToLower(v.Label)
		if i, ok := c.byKey[key]; ok {
			c.voices[i] = v
			continue
		}
		c.byKey[key] = len(c.voices)
		c.voices = append(c.voices, v)
	}
}

// AddGenAIPro merges voices fetched from GenAIPro and returns how many
// were added or updated.
func (c *Catalog) AddGenAIPro(voices []GenAIProVoice) int {
	n := 0
	for _, gv := range voices {
		if gv.VoiceID == "" {
			continue
		}
		name := gv.Name
		if name == "" {
			name = gv.VoiceID
		}
		c.Add(Voice{Label: name + " (GenAI)", Provider: "genaipro", ID: gv.VoiceID})
		n++
	}
	return n
}

// List returns the voices in insertion order.
func (c *Catalog) List() []Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Voice(nil), c.voices...)
}

// Labels returns the labels in insertion order.
func (c *Catalog) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.voices))
	for i, v := range c.voices {
		out[i] = v.Label
	}
	return out
}

// Len returns the number of voices.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.voices)
}

// Resolve finds a voice by exact label (case-insensitive), by a
// "provider|voiceID" spec, or by the best fuzzy match on labels, in that
// order. An empty query resolves to the default voice.
func (c *Catalog) Resolve(query string) (Voice, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		q = DefaultVoiceLabel
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if i, ok := c.byKey[strings.ToLower(q)]; ok {
		return c.voices[i], nil
	}
	if strings.Contains(q, "|") {
		v, err := ParseSpec(q)
		if err != nil {
			return Voice{}, err
		}
		for _, known := range c.voices {
			if known.Provider == v.Provider && known.ID == v.ID {
				return known, nil
			}
		}
		return v, nil
	}

	labels := make([]string, len(c.voices))
	for i, v := range c.voices {
		labels[i] = v.Label
	}
	if matches := fuzzy.Find(q, labels); len(matches) > 0 {
		return c.voices[matches[0].Index], nil
	}
	return Voice{}, fmt.Errorf("%w: %q", ErrUnknownVoice, query)
}
