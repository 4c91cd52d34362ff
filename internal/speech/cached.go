package speech

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/aistudio/internal/cache"
)

// Cached serves repeated requests for the same provider, voice and text
// from a cache instead of the provider.
type Cached struct {
	Next   Synthesizer
	Cache  cache.Cache
	Logger *log.Logger
}

// Name returns the wrapped provider's name.
func (c *Cached) Name() string { return c.Next.Name() }

// Synthesize returns a cached clip or synthesizes and stores one.
func (c *Cached) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	key := cache.GenerateKey(c.Next.Name(), voiceID, text)
	if data, ok := c.Cache.Get(key); ok {
		c.logger().Debug("Cache hit", "provider", c.Next.Name(), "voice", voiceID, "bytes", len(data))
		return mp3(data), nil
	}

	audio, err := c.Next.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}
	if audio.Extension == "mp3" {
		if err := c.Cache.Put(key, audio.Data); err != nil {
			c.logger().Warn("Could not cache audio", "error", err)
		}
	}
	return audio, nil
}

func (c *Cached) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}
