package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"iplog/internal/api/dto"
	"iplog/internal/jobs/sweep"
)

const maxSettingsBody = 1 << 20

func (s *Server) getTimeout(w http.ResponseWriter, r *http.Request) {
	timeout, err := s.settings.Timeout(r.Context())
	if err != nil {
		log.Error("Could not read timeout", "error", err)
		writeJSON(w, statusFor(err), dto.TimeoutInfo{Message: "failed to read timeout"})
		return
	}
	writeJSON(w, http.StatusOK, dto.TimeoutInfo{Timeout: timeout})
}

func (s *Server) setTimeout(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("timeout"))
	if raw == "" {
		writeError(w, "timeout parameter is missing", http.StatusBadRequest)
		return
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, "timeout must be a number", http.StatusBadRequest)
		return
	}

	if err := s.settings.SetTimeout(r.Context(), seconds); err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			writeError(w, "timeout must be a positive integer of at most ten years", status)
			return
		}
		log.Error("Could not update timeout", "error", err)
		writeError(w, "failed to update timeout", status)
		return
	}

	writeJSON(w, http.StatusOK, dto.TimeoutUpdate{Success: true, Message: "timeout updated", Timeout: seconds})
}

func (s *Server) getAutoCleanup(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.AutoCleanup(r.Context())
	if err != nil {
		log.Error("Could not read auto cleanup settings", "error", err)
		writeError(w, "failed to read auto cleanup settings", statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) setAutoCleanup(w http.ResponseWriter, r *http.Request) {
	var body dto.AutoCleanupUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	if err := dec.Decode(&body); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field == "enabled":
			writeError(w, "enabled must be a boolean", http.StatusBadRequest)
		case errors.As(err, &typeErr) && typeErr.Field == "interval":
			writeError(w, "interval must be a number", http.StatusBadRequest)
		default:
			writeError(w, "invalid request body", http.StatusBadRequest)
		}
		return
	}

	if body.Enabled == nil {
		writeError(w, "enabled must be a boolean", http.StatusBadRequest)
		return
	}
	if body.Interval == nil {
		writeError(w, "interval must be a number", http.StatusBadRequest)
		return
	}

	interval := *body.Interval
	if interval != math.Trunc(interval) || interval > math.MaxInt32 || interval < math.MinInt32 {
		writeError(w, "cleanup interval must be an integer of at least 30 seconds", http.StatusBadRequest)
		return
	}

	if err := s.settings.SetAutoCleanup(r.Context(), *body.Enabled, int(interval)); err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			writeError(w, "cleanup interval must be an integer of at least 30 seconds", status)
			return
		}
		log.Error("Could not update auto cleanup settings", "error", err)
		writeError(w, "failed to update auto cleanup settings", status)
		return
	}

	s.scheduler.Restart(r.Context())

	writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "auto cleanup settings updated"})
}

func (s *Server) nextCleanup(w http.ResponseWriter, r *http.Request) {
	next := s.scheduler.NextSweepTimestamp()

	var nextMs int64
	if !next.IsZero() {
		nextMs = next.UnixMilli()
	}

	writeJSON(w, http.StatusOK, dto.NextSweepInfo{
		Success:          true,
		NextCleanupTime:  nextMs,
		RemainingSeconds: sweep.RemainingSeconds(next, s.now()),
	})
}
