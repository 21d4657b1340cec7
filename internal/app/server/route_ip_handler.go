package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"iplog/internal/api/dto"
)

func (s *Server) addIP(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		writeError(w, "ip parameter is missing or invalid", http.StatusBadRequest)
		return
	}

	record, existed, err := s.ips.AddIP(r.Context(), ip)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			writeError(w, "invalid IP address format", status)
			return
		}
		log.Error("Could not add IP", "ip", ip, "error", err)
		writeError(w, "failed to add IP", status)
		return
	}

	message := "IP added"
	if existed {
		message = "IP already exists"
	}
	writeJSON(w, http.StatusOK, dto.AddIPResult{Success: true, Message: message, Data: record})
}

func (s *Server) checkIP(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		writeJSON(w, http.StatusBadRequest, dto.CheckIPResult{Exists: false, Message: "ip parameter is missing or invalid"})
		return
	}

	record, err := s.ips.CheckIP(r.Context(), ip)
	if err != nil {
		log.Error("Could not check IP", "ip", ip, "error", err)
		writeJSON(w, statusFor(err), dto.CheckIPResult{Exists: false, Message: "internal server error"})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusOK, dto.CheckIPResult{Exists: false})
		return
	}
	writeJSON(w, http.StatusOK, dto.CheckIPResult{Exists: true, Data: record})
}

func (s *Server) listIPs(w http.ResponseWriter, r *http.Request) {
	records, err := s.ips.ListIPs(r.Context())
	if err != nil {
		log.Error("Could not list IPs", "error", err)
		writeJSON(w, statusFor(err), dto.IPList{Data: []dto.IPRecordWithExpiry{}, Message: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, dto.IPList{Data: records})
}

func (s *Server) deleteIP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, "invalid id parameter", http.StatusBadRequest)
		return
	}

	deleted, err := s.ips.DeleteIP(r.Context(), id)
	if err != nil {
		log.Error("Could not delete IP", "id", id, "error", err)
		writeError(w, "failed to delete IP", statusFor(err))
		return
	}
	if !deleted {
		writeError(w, "IP record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "IP record deleted"})
}

func (s *Server) clearIPs(w http.ResponseWriter, r *http.Request) {
	count, err := s.ips.ClearAll(r.Context())
	if err != nil {
		log.Error("Could not clear IPs", "error", err)
		writeError(w, "failed to clear IP records", statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, dto.ClearResult{
		Success:      true,
		Message:      fmt.Sprintf("cleared %d IP records", count),
		DeletedCount: count,
	})
}
