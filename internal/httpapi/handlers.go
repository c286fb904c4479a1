package httpapi

import (
	"net/http"
	"strconv"

	"github.com/HendryAvila/routine-quest/internal/auth"
	"github.com/HendryAvila/routine-quest/internal/routine"
	"github.com/HendryAvila/routine-quest/internal/store"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) error {
	status, code := "healthy", http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status, "version": s.opts.Version})
	return nil
}

// ─── Routines ────────────────────────────────────────────────────────────────

func (s *Server) listRoutines(w http.ResponseWriter, r *http.Request) error {
	id, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}

	q := r.URL.Query()
	opts := store.ListOptions{Limit: 100}
	if opts.Skip, err = queryInt(q.Get("skip"), 0); err != nil {
		return err
	}
	if opts.Limit, err = queryInt(q.Get("limit"), 100); err != nil {
		return err
	}
	if raw := q.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest("is_active must be a boolean, got %q", raw)
		}
		opts.Active = &active
	}

	routines, err := s.store.ListRoutines(r.Context(), id.UserID, opts)
	if err != nil {
		return err
	}
	if routines == nil {
		routines = []routine.Routine{}
	}
	writeJSON(w, http.StatusOK, routines)
	return nil
}

func (s *Server) createRoutine(w http.ResponseWriter, r *http.Request) error {
	id, err := auth.FromContext(r.Context())
	if err != nil {
		return err
	}
	var p routine.NewRoutineParams
	if err := decodeJSON(r, &p); err != nil {
		return err
	}

	created, err := s.store.CreateRoutine(r.Context(), id.UserID, p)
	if err != nil {
		return err
	}
	s.logger.Info("routine created", "user_id", id.UserID, "routine_id", created.ID, "steps", len(created.Steps))
	setETag(w, created.Version)
	writeJSON(w, http.StatusCreated, created)
	return nil
}

func (s *Server) getRoutine(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	rt, err := s.store.GetRoutine(r.Context(), id.UserID, routineID)
	if err != nil {
		return err
	}
	setETag(w, rt.Version)
	writeJSON(w, http.StatusOK, rt)
	return nil
}

func (s *Server) updateRoutine(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	var p routine.UpdateRoutineParams
	if err := decodeJSON(r, &p); err != nil {
		return err
	}

	rt, err := s.store.UpdateRoutine(r.Context(), id.UserID, routineID, p)
	if err != nil {
		return err
	}
	setETag(w, rt.Version)
	writeJSON(w, http.StatusOK, rt)
	return nil
}

func (s *Server) deleteRoutine(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRoutine(r.Context(), id.UserID, routineID); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Routine deleted"})
	return nil
}

func (s *Server) toggleRoutine(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	active, err := s.store.ToggleActive(r.Context(), id.UserID, routineID)
	if err != nil {
		return err
	}

	msg := "Routine deactivated"
	if active {
		msg = "Routine activated"
	}
	writeJSON(w, http.StatusOK, struct {
		Message  string `json:"message"`
		IsActive bool   `json:"is_active"`
	}{msg, active})
	return nil
}

func (s *Server) toggleTodayDisplay(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	shown, err := s.store.ToggleTodayDisplay(r.Context(), id.UserID, routineID)
	if err != nil {
		return err
	}

	msg := "Routine hidden from today"
	if shown {
		msg = "Routine shown on today"
	}
	writeJSON(w, http.StatusOK, struct {
		Message      string `json:"message"`
		TodayDisplay bool   `json:"today_display"`
	}{msg, shown})
	return nil
}

func (s *Server) routineStats(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	stats, err := s.store.RoutineStats(r.Context(), id.UserID, routineID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stats)
	return nil
}

// ─── Steps ───────────────────────────────────────────────────────────────────

func (s *Server) addStep(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	var p routine.NewStepParams
	if err := decodeJSON(r, &p); err != nil {
		return err
	}

	st, err := s.store.AddStep(r.Context(), id.UserID, routineID, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, st)
	return nil
}

func (s *Server) updateStep(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	stepID, err := pathID(r, "step_id")
	if err != nil {
		return err
	}
	var p routine.UpdateStepParams
	if err := decodeJSON(r, &p); err != nil {
		return err
	}

	st, err := s.store.UpdateStep(r.Context(), id.UserID, routineID, stepID, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, st)
	return nil
}

func (s *Server) deleteStep(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	stepID, err := pathID(r, "step_id")
	if err != nil {
		return err
	}
	if err := s.store.DeleteStep(r.Context(), id.UserID, routineID, stepID); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Step deleted"})
	return nil
}

type reorderResponse struct {
	Message string `json:"message"`
	*store.ReorderResult
}

func (s *Server) reorderStep(w http.ResponseWriter, r *http.Request) error {
	id, routineID, err := identityAndRoutine(r)
	if err != nil {
		return err
	}
	stepID, err := pathID(r, "step_id")
	if err != nil {
		return err
	}

	raw := r.URL.Query().Get("new_order")
	if raw == "" {
		return badRequest("new_order is required")
	}
	newOrder, err := strconv.Atoi(raw)
	if err != nil {
		return badRequest("new_order must be an integer, got %q", raw)
	}
	expected, err := ifMatchVersion(r)
	if err != nil {
		return err
	}

	res, err := s.store.ReorderStep(r.Context(), id.UserID, routineID, stepID, newOrder, expected)
	if err != nil {
		return err
	}
	s.logger.Info("step reordered",
		"request_id", requestIDFrom(r.Context()),
		"routine_id", routineID,
		"step_id", stepID,
		"from", res.OldPosition,
		"to", res.NewPosition,
		"shifted", res.Shifted,
	)
	setETag(w, res.Version)
	writeJSON(w, http.StatusOK, reorderResponse{Message: "Step reordered", ReorderResult: res})
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func identityAndRoutine(r *http.Request) (auth.Identity, int64, error) {
	id, err := auth.FromContext(r.Context())
	if err != nil {
		return auth.Identity{}, 0, err
	}
	routineID, err := pathID(r, "id")
	if err != nil {
		return auth.Identity{}, 0, err
	}
	return id, routineID, nil
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("expected a non-negative integer, got %q", raw)
	}
	return v, nil
}
