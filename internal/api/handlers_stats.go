package api

import (
	"net/http"

	"github.com/dgallion1/narrator/internal/lang"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model": s.cfg.Model,
		"stats": s.stats.Snapshot(),
	})
}

type languageInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// handleLanguages lists the languages both OCR and speech support.
func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	var out []languageInfo
	for _, code := range lang.Valid() {
		l, err := lang.Resolve(code)
		if err != nil {
			continue
		}
		out = append(out, languageInfo{Code: code, Name: lang.Name(l)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"languages": out,
		"default":   s.cfg.Language,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  s.models(),
		"default": s.cfg.Model,
	})
}
