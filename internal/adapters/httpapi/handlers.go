package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mikey/llm-phish-guard/internal/core"
	"go.uber.org/zap"
)

// maxRequestBodySize bounds request bodies; email sources can be large
const maxRequestBodySize = 4 << 20

// errBadRequest marks malformed request bodies
var errBadRequest = errors.New("bad request")

type analyzeRequest struct {
	Kind    core.AnalysisKind `json:"kind"`
	Content string            `json:"content"`
	Options core.Options      `json:"options"`
}

type inputResponse struct {
	Scheduled bool `json:"scheduled"`
}

type stateResponse struct {
	Loading bool                 `json:"loading"`
	Result  *core.AnalysisResult `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type chatRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps handler errors to status codes
func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		status := http.StatusInternalServerError
		var failed *core.AnalysisFailedError
		switch {
		case errors.Is(err, errBadRequest),
			errors.Is(err, core.ErrEmptyContent),
			errors.Is(err, core.ErrInvalidOptions),
			errors.Is(err, core.ErrUnknownKind),
			errors.Is(err, core.ErrEmptyMessage):
			status = http.StatusBadRequest
		case errors.Is(err, core.ErrHistoryEntryNotFound):
			status = http.StatusNotFound
		case errors.Is(err, core.ErrSuperseded), errors.Is(err, core.ErrChatBusy):
			status = http.StatusConflict
		case errors.As(err, &failed):
			status = http.StatusBadGateway
		}

		if status == http.StatusInternalServerError {
			s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		} else {
			s.logger.Debug("Request rejected",
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Error(err))
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// POST /v1/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) error {
	var req analyzeRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}

	result, err := s.service.Submit(r.Context(), req.Kind, req.Content, req.Options)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

// POST /v1/input feeds typed input to the debouncer
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) error {
	var req analyzeRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}

	scheduled := s.service.InputChanged(core.Input{Kind: req.Kind, Content: req.Content, Options: req.Options})
	return writeJSON(w, http.StatusAccepted, inputResponse{Scheduled: scheduled})
}

// GET /v1/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) error {
	state := s.service.State()
	return writeJSON(w, http.StatusOK, stateResponse{
		Loading: state.Loading,
		Result:  state.Result,
		Error:   state.Error,
	})
}

// GET /v1/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, s.service.History())
}

// GET /v1/history/{id} selects a past analysis as the current result
func (s *Server) handleSelectHistory(w http.ResponseWriter, r *http.Request) error {
	entry, err := s.service.SelectHistoryEntry(chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, entry)
}

// DELETE /v1/history
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) error {
	s.service.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/chat
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, s.service.Transcript())
}

// POST /v1/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) error {
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}

	start := time.Now()
	reply, err := s.service.SendChat(r.Context(), req.Text)
	if err != nil {
		return err
	}
	s.logger.Debug("Chat answered", zap.Duration("duration", time.Since(start)))
	return writeJSON(w, http.StatusOK, reply)
}
