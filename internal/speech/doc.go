// Package speech converts text to audio through one of several providers.
//
// Providers are addressed by name ("edge", "openai", "genaipro") and voices
// by a "provider|voiceID" spec. A Registry wraps every provider with a
// cache and a bounded retry so callers only deal with Synthesize.
package speech
