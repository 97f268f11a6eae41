package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dgallion1/narrator/internal/config"
	"github.com/dgallion1/narrator/internal/fault"
	"github.com/dgallion1/narrator/internal/lang"
	"github.com/dgallion1/narrator/internal/parser"
	"github.com/dgallion1/narrator/internal/pipeline"
)

// narrateForm holds the optional overrides of a narration request.
type narrateForm struct {
	Language         string `validate:"omitempty,max=16"`
	Speaker          string `validate:"omitempty,max=128"`
	Model            string `validate:"omitempty,max=128"`
	MaxCharactersLLM int    `validate:"omitempty,min=1"`
	MaxCharactersTTS int    `validate:"omitempty,min=1"`
}

func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	form, err := s.parseNarrateForm(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	model := form.Model
	if model == "" {
		model = s.cfg.Model
	}
	if !s.modelAllowed(model) {
		jsonError(w, fmt.Sprintf("model %q is not offered (choose one of: %s)", model, strings.Join(s.models(), ", ")), http.StatusBadRequest)
		return
	}
	if err := s.cfg.RequireCredentialsFor(model); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	path, err := s.orchestrator.Storage().SaveUpload(r.Context(), filename, bytes.NewReader(data))
	if err != nil {
		s.log.Error("saving upload failed", "filename", filename, "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	job := pipeline.NewJob(uuid.NewString(), filename, path)
	job.Language = form.Language
	job.Speaker = form.Speaker
	job.Model = model
	job.LLMBudget = form.MaxCharactersLLM
	job.TTSBudget = form.MaxCharactersTTS
	job.ContentHash = pipeline.ContentHashHex(data)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       job.ID,
		"content_hash": job.ContentHash,
		"status":       pipeline.StatusQueued,
		"poll_url":     fmt.Sprintf("/api/narrate/%s/status", job.ID),
		"audio_url":    fmt.Sprintf("/api/narrate/%s/audio", job.ID),
	})
}

func (s *Server) parseNarrateForm(r *http.Request) (narrateForm, error) {
	form := narrateForm{
		Language: strings.ToLower(strings.TrimSpace(r.FormValue("language"))),
		Speaker:  strings.TrimSpace(r.FormValue("speaker")),
		Model:    strings.TrimSpace(r.FormValue("model")),
	}
	for field, dst := range map[string]*int{
		"max_characters_llm": &form.MaxCharactersLLM,
		"max_characters_tts": &form.MaxCharactersTTS,
	} {
		v := r.FormValue(field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return form, fmt.Errorf("%s must be a positive integer", field)
		}
		*dst = n
	}

	if err := s.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return form, fmt.Errorf("invalid %s", strings.ToLower(verrs[0].Field()))
		}
		return form, err
	}
	if form.Language != "" && !lang.IsValid(form.Language) {
		return form, fmt.Errorf("unsupported language %q (supported: %s)", form.Language, strings.Join(lang.Valid(), ", "))
	}
	return form, nil
}

// models returns the offered models, the configured default first.
func (s *Server) models() []string {
	out := []string{s.cfg.Model}
	for _, m := range s.cfg.Models {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

func (s *Server) modelAllowed(model string) bool {
	return slices.Contains(s.models(), model)
}

func (s *Server) handleNarrateStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	resp := narrateStatus{JobSnapshot: job.Snapshot()}
	if resp.Status == pipeline.StatusFailed {
		resp.ErrorStatus = statusFor(job.Err())
	}
	writeJSON(w, http.StatusOK, resp)
}

// narrateStatus is a job snapshot plus, for failed jobs, the HTTP status
// class of the failure.
type narrateStatus struct {
	pipeline.JobSnapshot
	ErrorStatus int `json:"error_status,omitempty"`
}

func (s *Server) handleNarrateAudio(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if snap.Status == pipeline.StatusFailed {
		jsonError(w, fmt.Sprintf("job failed during %s: %v", snap.FailedStage, job.Err()), statusFor(job.Err()))
		return
	}
	if snap.Status != pipeline.StatusSucceeded {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}

	path, url := job.Audio()
	if url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	f, err := s.orchestrator.Storage().Open(r.Context(), path)
	if err != nil {
		s.log.Error("opening narration failed", "job_id", job.ID, "error", err)
		jsonError(w, "audio no longer available", http.StatusGone)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.ID+".wav"))
	if _, err := io.Copy(w, f); err != nil {
		s.log.Warn("streaming narration failed", "job_id", job.ID, "error", err)
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, config.ErrMissingCredential):
		return http.StatusServiceUnavailable
	case errors.Is(err, fault.ErrNoAudioProduced):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fault.ErrBackend), errors.Is(err, fault.ErrMalformedResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
