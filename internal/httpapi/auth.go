package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := s.staff.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	token, exp, err := s.issueToken(st)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.WithField("staff_id", st.ID).Info("staff logged in")

	writeJSON(w, http.StatusOK, types.LoginResponse{
		Token:     token,
		ExpiresAt: exp.Format(time.RFC3339),
		Staff:     s.staff.Describe(st),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.staff.Describe(actorFrom(r.Context())))
}

// issueToken signs an HS256 token whose subject is the staff id.
func (s *Server) issueToken(st store.StaffRecord) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.tokenTTL).Truncate(time.Second)

	_, token, err := s.tokenAuth.Encode(map[string]interface{}{
		"sub": strconv.FormatInt(st.ID, 10),
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}
