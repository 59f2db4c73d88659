package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"agentdesk/internal/agent"
	"agentdesk/internal/history"
	"agentdesk/internal/persona"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var spec persona.Spec
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &spec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	s.create(w, spec)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := importBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	defer body.Close()

	var spec persona.Spec
	if err := decodeJSON(body, &spec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON document"})
		return
	}
	s.create(w, spec)
}

// importBody returns the uploaded document: the "file" part of a multipart
// form, or the raw request body otherwise.
func importBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("reading upload: missing file")
	}
	return f, nil
}

func (s *Server) create(w http.ResponseWriter, spec persona.Spec) {
	p, err := s.personas.Create(spec)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.SetPersonas(s.personas.Len())
	slog.Info("persona created", "persona_id", p.ID, "name", p.Name, "tools", p.Tools)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.personas.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "agent-"+p.ID+".json"))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	reply, err := s.chat.Handle(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	turns := []history.Turn{}
	if s.turns != nil {
		var err error
		turns, err = s.turns.TurnsByPersona(r.Context(), p.ID, limit)
		if err != nil {
			slog.Error("listing turns", "persona_id", p.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "listing turns failed"})
			return
		}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (persona.Persona, bool) {
	id := r.PathValue("id")
	p, ok := s.personas.Get(id)
	if !ok {
		writeError(w, &agent.NotFoundError{ID: id})
	}
	return p, ok
}

// writeError maps domain errors to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	var (
		verr *persona.ValidationError
		nerr *agent.NotFoundError
		cerr *agent.CompletionError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Missing: verr.Missing})
	case errors.As(err, &nerr):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "agent not found"})
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: cerr.Error()})
	default:
		slog.Error("unhandled gateway error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
