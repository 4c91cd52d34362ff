// Package story turns source text into the text that gets spoken: either a
// single rewrite of the source, or a story written part by part in a chat
// session until the model signals the end.
package story
