package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"neviweb-go-home/internal/automation"
	"neviweb-go-home/internal/coordinator"
)

// statusFor maps coordinator and automation errors to HTTP status codes.
// Anything unrecognised came from Neviweb.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrUnknownDevice),
		errors.Is(err, coordinator.ErrUnknownService),
		errors.Is(err, automation.ErrScriptNotFound):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrInvalidArgument),
		errors.Is(err, automation.ErrInvalidScript):
		return http.StatusBadRequest
	case errors.Is(err, coordinator.ErrNotSupported):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// device resolves the {id} path value, which may be an id, name or slug.
func (s *Server) device(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := s.coord.Resolve(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "device not found"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.Devices())
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.device(w, r)
	if !ok {
		return
	}
	snap, err := s.coord.Device(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

type renameDeviceRequest struct {
	FriendlyName string `json:"friendly_name"`
}

func (s *Server) handleAPIRenameDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.device(w, r)
	if !ok {
		return
	}

	var req renameDeviceRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := s.coord.Rename(id, req.FriendlyName); err != nil {
		s.logger.Error("rename device", "err", err, "id", id)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	snap, _ := s.coord.Device(id)
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAPIPollDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.device(w, r)
	if !ok {
		return
	}
	if err := s.coord.Poll(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	snap, _ := s.coord.Device(id)
	s.writeJSON(w, http.StatusOK, snap)
}

// handleAPICallService runs a service with the JSON body as arguments. An
// empty body means no arguments.
func (s *Server) handleAPICallService(w http.ResponseWriter, r *http.Request) {
	id, ok := s.device(w, r)
	if !ok {
		return
	}

	args := coordinator.Args{}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	service := r.PathValue("service")
	if err := s.coord.Call(r.Context(), id, service, args); err != nil {
		s.logger.Warn("service call failed", "service", service, "id", id, "err", err)
		s.writeError(w, err)
		return
	}
	snap, _ := s.coord.Device(id)
	s.writeJSON(w, http.StatusOK, snap)
}

// handleAPIListServices lists every service, or with ?device= only those the
// device supports.
func (s *Server) handleAPIListServices(w http.ResponseWriter, r *http.Request) {
	services := coordinator.Services()
	ref := r.URL.Query().Get("device")
	if ref == "" {
		s.writeJSON(w, http.StatusOK, services)
		return
	}

	id, err := s.coord.Resolve(ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	th, err := s.coord.Thermostat(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	supported := make([]coordinator.Service, 0, len(services))
	for _, svc := range services {
		if svc.Supports(th.Caps()) {
			supported = append(supported, svc)
		}
	}
	s.writeJSON(w, http.StatusOK, supported)
}

func (s *Server) handleAPINetworkInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.NetworkInfo())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
