package ui

import (
	"strings"

	"github.com/dgnsrekt/aistudio/internal/job"
)

// field identifies a focusable form element.
type field int

const (
	fieldName field = iota
	fieldInstruction
	fieldModel
	fieldVoice
	fieldText
	fieldCount
)

var fieldLabels = map[field]string{
	fieldName:        "Name",
	fieldInstruction: "Instruction",
	fieldModel:       "Model",
	fieldVoice:       "Voice",
	fieldText:        "Text",
}

// nextField moves focus forward (or backward), skipping the instruction in
// story mode where it is not used.
func nextField(f field, mode job.Mode, backward bool) field {
	step := field(1)
	if backward {
		step = fieldCount - 1
	}
	for {
		f = (f + step) % fieldCount
		if f == fieldInstruction && mode == job.ModeStoryLoop {
			continue
		}
		return f
	}
}

// chooser cycles through a fixed list of options.
type chooser struct {
	options []string
	index   int
}

func newChooser(options []string, selected string) chooser {
	c := chooser{options: options}
	for i, o := range options {
		if strings.EqualFold(o, selected) {
			c.index = i
			return c
		}
	}
	// Keep a remembered value that is no longer offered selectable.
	if selected != "" {
		c.options = append([]string{selected}, options...)
	}
	return c
}

func (c *chooser) next() {
	if len(c.options) > 0 {
		c.index = (c.index + 1) % len(c.options)
	}
}

func (c *chooser) prev() {
	if len(c.options) > 0 {
		c.index = (c.index + len(c.options) - 1) % len(c.options)
	}
}

func (c chooser) value() string {
	if len(c.options) == 0 {
		return ""
	}
	return c.options[c.index]
}

// set selects option v if it is offered.
func (c *chooser) set(v string) {
	for i, o := range c.options {
		if strings.EqualFold(o, v) {
			c.index = i
			return
		}
	}
}
