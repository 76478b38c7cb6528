package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/kanufit/internal/catalog"
	"github.com/claude/kanufit/internal/models"
	"github.com/claude/kanufit/internal/navigation"
	"github.com/claude/kanufit/internal/session"
	"github.com/claude/kanufit/internal/tracker"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.tr.ListTemplates(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.tr.Catalog().Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// sessionView is the active-session screen: the draft plus the "last time"
// hint for each of its exercises.
type sessionView struct {
	Active bool                              `json:"active"`
	Draft  *session.Draft                    `json:"draft,omitempty"`
	Hints  map[string]models.ExerciseHistory `json:"hints,omitempty"`
}

func (s *Server) sessionView(d *session.Draft) sessionView {
	if d == nil {
		return sessionView{}
	}
	v := sessionView{Active: true, Draft: d, Hints: make(map[string]models.ExerciseHistory)}
	for id := range d.Performance {
		if h, ok := s.tr.LastPerformance(id); ok {
			v.Hints[id] = h
		}
	}
	return v
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	d, _ := s.tr.ActiveSession()
	writeJSON(w, http.StatusOK, s.sessionView(d))
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"templateId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	d, err := s.tr.StartSession(req.TemplateID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.sessionView(d))
}

func (s *Server) handleRecordSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExerciseID string `json:"exerciseId"`
		SetIndex   int    `json:"setIndex"`
		Field      string `json:"field"`
		Value      string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	d, err := s.tr.RecordSet(req.ExerciseID, req.SetIndex, req.Field, req.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(d))
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.tr.FinishSession(r.Context())
	if err != nil {
		if res != nil && errors.Is(err, tracker.ErrPersistence) {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "result": res})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.tr.CancelSession()})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	logs, err := s.tr.QueryLogs(r.Context(), start, end, r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(logs))
}

func (s *Server) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	if err := s.tr.DeleteLog(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListWeights(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	weights, err := s.tr.QueryWeights(r.Context(), start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(weights))
}

func (s *Server) handleLogWeight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weight float64 `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	e, err := s.tr.LogWeight(r.Context(), req.Weight)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteWeight(w http.ResponseWriter, r *http.Request) {
	if err := s.tr.DeleteWeight(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.tr.GetExerciseHistory(r.Context(), "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.tr.GetExerciseHistory(r.Context(), chi.URLParam(r, "exerciseId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h[0])
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	window, err := intParam(r, "window_days", s.windowDays)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	months, err := intParam(r, "months", s.months)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rep, err := s.tr.GetInsights(r.Context(), window, months)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.tr.GetDashboard(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tr.View())
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Screen string `json:"screen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	st, err := s.tr.Navigate(req.Screen)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrTemplateNotFound),
		errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, navigation.ErrNoActiveSession):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidTemplate),
		errors.Is(err, session.ErrIndexOutOfRange),
		errors.Is(err, session.ErrUnknownExercise),
		errors.Is(err, session.ErrUnknownField),
		errors.Is(err, tracker.ErrInvalidWeight),
		errors.Is(err, tracker.ErrInvalidArgument),
		errors.Is(err, navigation.ErrUnknownScreen):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrPersistence):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return n, nil
}

// parseTimeRange reads optional start/end query parameters. A missing bound
// is returned as the zero time, meaning open.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			start, err = time.Parse("2006-01-02", v)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
		}
	}

	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			end, err = time.Parse("2006-01-02", v)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}
