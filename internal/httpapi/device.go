package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/service"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

// ── Check ────────────────────────────────────────────────────────────────────

func (s *Server) handleCheckPath(w http.ResponseWriter, r *http.Request) {
	doorID, ok := pathID(r, "doorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_door_id", service.ErrInvalidDoorID.Error())
		return
	}
	s.check(w, r, types.CheckRequest{DoorID: doorID, RFID: chi.URLParam(r, "rfid")})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req types.CheckRequest
	if isProtobuf(r) {
		body, err := readBody(r)
		if err == nil {
			req, err = decodeCheckRequest(body)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
	} else {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}
	s.check(w, r, req)
}

func (s *Server) check(w http.ResponseWriter, r *http.Request, req types.CheckRequest) {
	resp, err := s.access.Check(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if wantsProtobuf(r) {
		writeProto(w, http.StatusOK, encodeCheckResponse(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Allowed list ─────────────────────────────────────────────────────────────

func (s *Server) handleAllowed(w http.ResponseWriter, r *http.Request) {
	doorID, ok := pathID(r, "doorID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_door_id", service.ErrInvalidDoorID.Error())
		return
	}
	resp, err := s.doors.AllowedRFIDs(r.Context(), doorID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if wantsProtobuf(r) {
		writeProto(w, http.StatusOK, encodeAllowedResponse(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Legacy plain-text paths ──────────────────────────────────────────────────

// handleLegacyCheck answers "1" to open and "0" otherwise.
func (s *Server) handleLegacyCheck(w http.ResponseWriter, r *http.Request) {
	doorID, ok := pathID(r, "doorID")
	if !ok {
		writePlain(w, http.StatusBadRequest, "0")
		return
	}
	resp, err := s.access.Check(r.Context(), types.CheckRequest{DoorID: doorID, RFID: chi.URLParam(r, "rfid")})
	if err != nil {
		status, _ := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.WithError(err).Error("legacy check failed")
		}
		writePlain(w, status, "0")
		return
	}
	if resp.Granted {
		writePlain(w, http.StatusOK, "1")
		return
	}
	writePlain(w, http.StatusOK, "0")
}

// handleLegacyAllowed answers the allowed RFIDs joined by commas.
func (s *Server) handleLegacyAllowed(w http.ResponseWriter, r *http.Request) {
	doorID, ok := pathID(r, "doorID")
	if !ok {
		writePlain(w, http.StatusBadRequest, "")
		return
	}
	resp, err := s.doors.AllowedRFIDs(r.Context(), doorID)
	if err != nil {
		status, _ := errorStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.WithError(err).Error("legacy allowed failed")
		}
		writePlain(w, status, "")
		return
	}
	writePlain(w, http.StatusOK, strings.Join(resp.RFIDs, ","))
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
