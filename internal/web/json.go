package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/action"
	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/report"
	"github.com/sweeney/sleepcheck/internal/status"
	"github.com/sweeney/sleepcheck/internal/store"
)

// Staff identity headers on action requests.
const (
	HeaderStaffInitials = "X-Staff-Initials"
	HeaderStaffID       = "X-Staff-Id"
)

const maxBodyBytes = 64 << 10

// ErrorJSON is the body of every failed API call.
type ErrorJSON struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// EventJSON wraps a recorded event.
type EventJSON struct {
	Event logic.Event `json:"event"`
}

// ChildResponse is the body of GET /api/children/{id}.
type ChildResponse struct {
	Child status.ChildJSON `json:"child"`
}

// PermissionJSON carries the notification permission state.
type PermissionJSON struct {
	Permission string `json:"permission"`
}

// PermissionRequest is the body of POST /api/notifications/permission.
type PermissionRequest struct {
	Grant bool `json:"grant"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, ErrorJSON{Error: errCode, Message: message})
}

// httpStatus maps an action error to a response code.
func httpStatus(err error) int {
	switch action.Code(err) {
	case "session_already_open", "no_open_session":
		return http.StatusConflict
	case "not_identified", "missing_mood", "invalid_position", "invalid_breathing",
		"invalid_mood", "notes_too_long", "invalid_kind":
		return http.StatusUnprocessableEntity
	case "unknown_child":
		return http.StatusNotFound
	case "store_unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) handleChild(w http.ResponseWriter, r *http.Request) {
	if s.cards == nil {
		writeError(w, http.StatusNotFound, "unknown_child", "No children are configured.")
		return
	}
	c, ok := s.cards.Card(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_child", "Unknown child.")
		return
	}
	child := status.BuildChild(status.ChildFromCard(c.Snapshot()))
	writeJSON(w, http.StatusOK, ChildResponse{Child: child})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if s.actions == nil {
		writeError(w, http.StatusServiceUnavailable, "internal", "Actions are not available.")
		return
	}
	childID := r.PathValue("id")

	var obs action.Observation
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&obs); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "Request body is not valid JSON.")
		return
	}

	ctx := r.Context()
	initials := strings.TrimSpace(r.Header.Get(HeaderStaffInitials))
	staffID := strings.TrimSpace(r.Header.Get(HeaderStaffID))
	if initials != "" || staffID != "" {
		ctx = action.WithStaff(ctx, logic.Staff{Initials: initials, ID: staffID})
	}

	var (
		event logic.Event
		err   error
	)
	switch r.PathValue("action") {
	case "start":
		event, err = s.actions.RecordStart(ctx, childID, obs)
	case "check":
		event, err = s.actions.RecordCheck(ctx, childID, obs)
	case "stop":
		event, err = s.actions.RecordStop(ctx, childID, obs)
	default:
		writeError(w, http.StatusNotFound, "unknown_action", "Unknown action.")
		return
	}
	if err != nil {
		writeError(w, httpStatus(err), action.Code(err), action.Message(err))
		return
	}
	writeJSON(w, http.StatusCreated, EventJSON{Event: event})
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	childID := r.PathValue("id")
	if s.cards != nil {
		if _, ok := s.cards.Card(childID); !ok {
			writeError(w, http.StatusNotFound, "unknown_child", "Unknown child.")
			return
		}
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "No event log is configured.")
		return
	}
	day, err := store.ParseDay(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_date", "Date must be YYYY-MM-DD.")
		return
	}
	sum, err := report.Day(r.Context(), s.store, childID, day, s.now(), s.loc)
	if err != nil {
		s.logger.Error("day report failed",
			zap.String("child_id", childID),
			zap.String("day", string(day)),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "The sleep log could not be loaded.")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	if s.permission == nil {
		writeJSON(w, http.StatusOK, PermissionJSON{Permission: "denied"})
		return
	}
	writeJSON(w, http.StatusOK, PermissionJSON{Permission: string(s.permission.Permission())})
}

func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	if s.permission == nil {
		writeError(w, http.StatusNotFound, "unsupported", "Notifications are not available.")
		return
	}
	var req PermissionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Request body is not valid JSON.")
		return
	}
	p := s.permission.Request(req.Grant)
	s.tracker.SetPermission(string(p))
	s.logger.Info("notification permission", zap.String("permission", string(p)))
	writeJSON(w, http.StatusOK, PermissionJSON{Permission: string(p)})
}

func (s *Server) handleResetPermission(w http.ResponseWriter, r *http.Request) {
	if s.permission == nil {
		writeError(w, http.StatusNotFound, "unsupported", "Notifications are not available.")
		return
	}
	s.permission.Reset()
	s.tracker.SetPermission(string(s.permission.Permission()))
	writeJSON(w, http.StatusOK, PermissionJSON{Permission: string(s.permission.Permission())})
}
