package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	te "github.com/muesli/termenv"
)

// resolveStyle turns "auto" into a concrete dark or light style.
func resolveStyle(style string) string {
	if style == "" || style == styles.AutoStyle {
		if te.HasDarkBackground() {
			return styles.DarkStyle
		}
		return styles.LightStyle
	}
	return style
}

func glamourRender(cfg Config, markdown string, viewportWidth int) (string, error) {
	if !cfg.GlamourEnabled {
		return markdown, nil
	}

	width := viewportWidth
	if cfg.GlamourMaxWidth > 0 {
		width = max(0, min(int(cfg.GlamourMaxWidth), viewportWidth)) //nolint:gosec
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(cfg.GlamourStyle),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}

	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}
