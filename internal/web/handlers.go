package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/joshdurbin/runtracker/internal/dashboard"
	"github.com/joshdurbin/runtracker/internal/logging"
	"github.com/joshdurbin/runtracker/internal/window"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	state := s.dash.Snapshot()
	view := newPageView(state, s.now())
	if !state.Authenticated() {
		s.render(w, "connect.html", view)
		return
	}
	s.render(w, "dashboard.html", view)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	state := s.dash.Snapshot()
	if !state.Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	view := newPageView(state, s.now())
	for _, a := range state.Activities {
		view.Activities = append(view.Activities, newActivityView(a))
	}
	s.render(w, "activities.html", view)
}

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newAPIState(s.dash.Snapshot(), s.now()))
}

type selectionRequest struct {
	Period string `json:"period"`
	Offset int    `json:"offset"`
}

// handleSelection accepts a JSON body or a form post. Forms are redirected
// back to the dashboard; JSON callers get the request id.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSON(r)

	var req selectionRequest
	if asJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form data", http.StatusBadRequest)
			return
		}
		req.Period = r.FormValue("period")
		if v := r.FormValue("offset"); v != "" {
			offset, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "Invalid offset", http.StatusBadRequest)
				return
			}
			req.Offset = offset
		}
	}

	period := s.dash.Snapshot().Selection.Period
	if req.Period != "" {
		p, err := window.ParsePeriod(req.Period)
		if err != nil {
			s.selectionError(w, asJSON, err)
			return
		}
		period = p
	}

	id, err := s.dash.Select(period, req.Offset)
	if err != nil {
		s.selectionError(w, asJSON, err)
		return
	}
	s.accepted(w, r, asJSON, id)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	asJSON := isJSON(r)
	id, err := s.dash.Retry()
	if err != nil {
		s.selectionError(w, asJSON, err)
		return
	}
	s.accepted(w, r, asJSON, id)
}

func (s *Server) accepted(w http.ResponseWriter, r *http.Request, asJSON bool, id uint64) {
	if asJSON {
		writeJSON(w, http.StatusAccepted, map[string]uint64{"request_id": id})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) selectionError(w http.ResponseWriter, asJSON bool, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, window.ErrUnknownPeriod),
		errors.Is(err, window.ErrNegativeOffset),
		errors.Is(err, window.ErrOffsetTooLarge):
		status = http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, dashboard.ErrStopped):
		status = http.StatusServiceUnavailable
	default:
		logging.Logger.Error().Err(err).Msg("starting load")
	}

	if asJSON {
		writeJSONError(w, status, err.Error())
		return
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"dashboard": s.dash.Snapshot().Status.String(),
	})
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
