// Package llm provides minimal REST clients for the text generation
// services used to rewrite source text and to write stories part by part.
//
// Two wire formats are supported: Google's generateContent API (Gemini) and
// the chat-completions API shared by OpenAI and xAI (Grok). A Router picks
// the client for a model name and reports a missing credential with
// ErrMissingCredential so callers can fall back to the unmodified text.
package llm
