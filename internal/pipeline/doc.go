// Package pipeline runs one job end to end: it produces the text to speak
// (rewritten, written as a story, or the source itself when no model is
// available), writes it to disk, synthesizes it, and saves the audio.
package pipeline
