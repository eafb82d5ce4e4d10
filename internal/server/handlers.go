package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Rickardjd/Easy-IP/internal/logging"
	"github.com/Rickardjd/Easy-IP/internal/registry"
	"github.com/Rickardjd/Easy-IP/internal/tracker"
)

// deviceView is a record plus its derived status, the shape every API
// response uses for devices.
type deviceView struct {
	*registry.DeviceRecord
	Status registry.Status `json:"status"`
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/devices", s.handleListDevices)
	mux.HandleFunc("GET /api/devices/{mac}", s.handleGetDevice)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("POST /api/auto-scan", s.handleAutoScan)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	sortKey := registry.SortKey(r.URL.Query().Get("sort"))
	reg := s.tracker.Registry()
	now := time.Now()

	records := reg.List(sortKey)
	views := make([]deviceView, 0, len(records))
	for _, rec := range records {
		views = append(views, deviceView{DeviceRecord: rec, Status: reg.StatusOf(rec, now)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	reg := s.tracker.Registry()
	rec, err := reg.Get(r.PathValue("mac"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, deviceView{DeviceRecord: rec, Status: reg.StatusOf(rec, time.Now())})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Registry().Stats(time.Now()))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	report, err := s.tracker.Scan(r.Context())
	if err != nil {
		if errors.Is(err, tracker.ErrScanInProgress) {
			writeError(w, http.StatusConflict, "a scan is already in progress")
			return
		}
		logging.Error("Manual scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	s.hub.broadcastScan(report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAutoScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.setAutoScan(body.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="devices.json"`)
	writeJSON(w, http.StatusOK, s.tracker.Registry().Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
