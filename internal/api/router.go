package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/temper-core/internal/temper"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	if s.reqLogging {
		r.Use(s.loggingMiddleware)
	}
	r.Use(s.recoveryMiddleware)

	r.Get("/", s.handleReadAll)
	r.Head("/", s.handleReadAllHead)

	r.Get("/devices", s.handleListDevices)
	r.Head("/devices", s.handleListDevicesHead)

	r.Get("/ws", s.handleWebSocket)

	r.Get("/{vendorid:[0-9]+}/{productid:[0-9]+}", s.handleGetDevice)
	r.Head("/{vendorid:[0-9]+}/{productid:[0-9]+}", s.handleGetDeviceHead)

	// Everything else is an unrecognised path.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "unrecognized path")
	})

	return r
}

// handleReadAll serves GET /: acquire a reading from every recognised
// device and return the filtered list.
func (s *Server) handleReadAll(w http.ResponseWriter, _ *http.Request) {
	results := s.temper.ReadAll()
	writeJSON(w, http.StatusOK, temper.FilterAll(results, s.baseURL))
}

// handleReadAllHead serves HEAD /: routing decision only, no device I/O.
func (s *Server) handleReadAllHead(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

// handleListDevices serves GET /devices: identity objects for all
// recognised devices, without performing a reading.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.temper.KnownDevices()
	filtered := make([]temper.Filtered, 0, len(devices))
	for _, d := range devices {
		filtered = append(filtered, temper.Result{Device: d}.Filtered(s.baseURL))
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (s *Server) handleListDevicesHead(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

// handleGetDevice serves GET /{vendorid}/{productid} with decimal ids:
// a single-device reading, or 404 when no matching known device exists.
// "Id unknown", "id known but off the bus" and "read failed during the
// rescan window" all coalesce into the same 404.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	vendor, product, ok := devicePathIDs(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no such device")
		return
	}

	result, ok := s.temper.ReadDevice(vendor, product)
	if !ok {
		writeError(w, http.StatusNotFound, "no such device")
		return
	}
	writeJSON(w, http.StatusOK, result.Filtered(s.baseURL))
}

// handleGetDeviceHead answers the existence question without device I/O.
func (s *Server) handleGetDeviceHead(w http.ResponseWriter, r *http.Request) {
	vendor, product, ok := devicePathIDs(r)
	if !ok || !s.temper.HasDevice(vendor, product) {
		writeError(w, http.StatusNotFound, "no such device")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

// devicePathIDs parses the decimal vendor/product path parameters. Values
// beyond 16 bits can never match a device.
func devicePathIDs(r *http.Request) (vendor, product uint16, ok bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, "vendorid"), 10, 16)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(chi.URLParam(r, "productid"), 10, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v), uint16(p), true
}
