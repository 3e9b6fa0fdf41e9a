package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/models"
)

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, f, err := s.sessions.Create()
	if err != nil {
		slog.Error("Server.createSessionHandler: create failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}
	slog.Info("Server.createSessionHandler: session created", "sessionID", id)
	writeJSONResponse(w, http.StatusCreated, models.Success(f.View()))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(f.View()))
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
}

func (s *Server) continueHandler(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, "continue", func(f *flow.Flow) error { return f.TapContinue() })
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.apply(w, r, "select", func(f *flow.Flow) error { return f.Select(req.StepID, req.Value) })
}

func (s *Server) textHandler(w http.ResponseWriter, r *http.Request) {
	var req models.TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.apply(w, r, "text", func(f *flow.Flow) error { return f.SubmitText(req.Text) })
}

func (s *Server) contactHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.apply(w, r, "contact", func(f *flow.Flow) error { return f.SubmitContact(req.Name, req.Phone) })
}

func (s *Server) draftHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.apply(w, r, "draft", func(f *flow.Flow) error {
		return f.UpdateDraft(func(d *flow.Draft) {
			if req.Text != nil {
				d.Text = *req.Text
			}
			if req.Name != nil {
				d.Name = *req.Name
			}
			if req.Phone != nil {
				d.Phone = *req.Phone
			}
		})
	})
}

func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	s.apply(w, r, "restart", func(f *flow.Flow) error { return f.Restart() })
}

func (s *Server) getSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sub, err := s.st.GetSubmission(id)
	if errors.Is(err, models.ErrSubmissionNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
		return
	}
	if err != nil {
		slog.Error("Server.getSubmissionHandler: lookup failed", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load submission"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sub))
}

func (s *Server) listSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	subs, err := s.st.ListSubmissions(limit)
	if err != nil {
		slog.Error("Server.listSubmissionsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list submissions"))
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(subs))
}

// healthHandler reports liveness and the number of live sessions.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_sessions": s.sessions.Len(),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*flow.Flow, bool) {
	id := chi.URLParam(r, "id")
	f, err := s.sessions.Get(id)
	if err != nil {
		slog.Warn("Server.lookup: unknown session", "sessionID", id)
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
		return nil, false
	}
	return f, true
}

// apply runs one renderer event. An event the flow absorbs without
// progressing is answered with 200 and status "rejected" plus the current
// view. A request repeating an Idempotency-Key is not applied again.
func (s *Server) apply(w http.ResponseWriter, r *http.Request, name string, event func(*flow.Flow) error) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" {
		key = f.ID() + ":" + key
		first, err := s.st.RecordInbound(key, f.ID())
		if err != nil {
			slog.Error("Server.apply: idempotency check failed", "sessionID", f.ID(), "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record request"))
			return
		}
		if !first {
			slog.Debug("Server.apply: duplicate request", "sessionID", f.ID(), "event", name)
			writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Duplicate request ignored", f.View()))
			return
		}
	}

	err := event(f)
	if key != "" {
		settled := err == nil || errors.Is(err, flow.ErrInvalidAdvance) || errors.Is(err, flow.ErrOutOfRange)
		if settled {
			if markErr := s.st.MarkProcessed(key); markErr != nil {
				slog.Warn("Server.apply: mark processed failed", "key", key, "error", markErr)
			}
		} else if relErr := s.st.ReleaseInbound(key); relErr != nil {
			slog.Warn("Server.apply: release key failed", "key", key, "error", relErr)
		}
	}

	switch {
	case err == nil:
		writeJSONResponse(w, http.StatusOK, models.Success(f.View()))
	case errors.Is(err, flow.ErrInvalidAdvance), errors.Is(err, flow.ErrOutOfRange):
		writeJSONResponse(w, http.StatusOK, models.Rejected(err.Error(), f.View()))
	case errors.Is(err, flow.ErrClosed):
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
	default:
		slog.Error("Server.apply: event failed", "sessionID", f.ID(), "event", name, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to apply event"))
	}
}
