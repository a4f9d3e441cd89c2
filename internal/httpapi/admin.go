package httpapi

import (
	"net/http"
	"strconv"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

// ── Doors ────────────────────────────────────────────────────────────────────

func (s *Server) handleListDoors(w http.ResponseWriter, r *http.Request) {
	doors, err := s.doors.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doors)
}

func (s *Server) handleCreateDoor(w http.ResponseWriter, r *http.Request) {
	var in types.DoorInput
	if !decodeJSON(w, r, &in) {
		return
	}
	door, err := s.doors.Create(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, door)
}

func (s *Server) handleGetDoor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "doorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_door_id", "door id must be a positive integer")
		return
	}
	door, err := s.doors.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, door)
}

func (s *Server) handleUpdateDoor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "doorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_door_id", "door id must be a positive integer")
		return
	}
	var in types.DoorInput
	if !decodeJSON(w, r, &in) {
		return
	}
	door, err := s.doors.Update(r.Context(), actorFrom(r.Context()), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, door)
}

// ── Lock users ───────────────────────────────────────────────────────────────

func (s *Server) handleListLockUsers(w http.ResponseWriter, r *http.Request) {
	var q types.LockUserQuery

	doorID, ok := queryInt64(r, "door_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_query", "door_id must be a positive integer")
		return
	}
	q.DoorID = doorID

	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "active must be true or false")
			return
		}
		q.Active = &active
	}

	users, err := s.users.List(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateLockUser(w http.ResponseWriter, r *http.Request) {
	var in types.LockUserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := s.users.Create(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetLockUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "lock user id must be a positive integer")
		return
	}
	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleSaveLockUser updates the profile and door set and, in the same
// request, applies the keycard actions carried by the body.
func (s *Server) handleSaveLockUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "lock user id must be a positive integer")
		return
	}
	var in types.LockUserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := s.users.Save(r.Context(), actorFrom(r.Context()), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ── Scans ────────────────────────────────────────────────────────────────────

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "lock user id must be a positive integer")
		return
	}
	sc, err := s.scans.Start(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// handleScanStatus is polled by the admin page until the scan leaves
// waiting.
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "scanID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_scan_id", "scan id must be a positive integer")
		return
	}
	sc, err := s.scans.Status(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// ── Access log ───────────────────────────────────────────────────────────────

func (s *Server) handleListAccess(w http.ResponseWriter, r *http.Request) {
	var q types.AccessQuery
	var ok bool
	if q.LockUserID, ok = queryInt64(r, "lock_user_id"); !ok {
		writeError(w, http.StatusBadRequest, "invalid_query", "lock_user_id must be a positive integer")
		return
	}
	if q.DoorID, ok = queryInt64(r, "door_id"); !ok {
		writeError(w, http.StatusBadRequest, "invalid_query", "door_id must be a positive integer")
		return
	}
	limit, ok := queryInt64(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_query", "limit must be a positive integer")
		return
	}
	q.Limit = int(limit)

	list, err := s.access.List(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleVisitChart(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt64(r, "days")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_query", "days must be a positive integer")
		return
	}
	chart, err := s.access.VisitChart(r.Context(), int(days))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

// ── Staff ────────────────────────────────────────────────────────────────────

func (s *Server) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var in types.StaffInput
	if !decodeJSON(w, r, &in) {
		return
	}
	st, err := s.staff.Create(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}
