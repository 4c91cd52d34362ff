package server

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/dgnsrekt/aistudio/internal/llm"
	"github.com/dgnsrekt/aistudio/internal/speech"
)

//go:embed static/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Voices []speech.Voice
	Models []string
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := indexData{Models: llm.ModelLabels()}
	if s.voices != nil {
		data.Voices = s.voices.List()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Error("Could not render index", "error", err)
	}
}
