package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/thingy-gateway/internal/device"
)

// SensorsRequest is the body of POST /things/{id}/sensors.
type SensorsRequest struct {
	Timestamp string             `json:"timestamp"`
	Sensors   map[string]float64 `json:"sensors"`
}

// ButtonRequest is the body of PUT /things/{id}/sensors/button.
type ButtonRequest struct {
	Pressed *bool `json:"pressed"`
}

// SensorsResponse is the last known state of a device's inputs.
type SensorsResponse struct {
	Samples map[device.Channel]device.SensorSample `json:"samples"`
	Button  device.ButtonEvent                     `json:"button"`
}

// thingID extracts and validates the {id} URL parameter. It writes a 400
// response and returns false when the identity is malformed.
func thingID(w http.ResponseWriter, r *http.Request) (device.Identity, bool) {
	id, err := device.ParseIdentity(chi.URLParam(r, "id"))
	if err != nil {
		writeValidationError(w, err.Error())
		return "", false
	}
	return id, true
}

// handleListThings returns the identities of every device seen so far.
func (s *Server) handleListThings(w http.ResponseWriter, _ *http.Request) {
	ids := s.registry.Identities()
	writeJSON(w, http.StatusOK, map[string]any{
		"things": ids,
		"count":  len(ids),
	})
}

// handleGetThing returns a snapshot of everything known about one device.
func (s *Server) handleGetThing(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Resolve(id).Snapshot())
}

func (s *Server) handleGetSetup(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.setups.GetSetup(id))
}

func (s *Server) handlePutSetup(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}

	var cfg device.SetupConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := s.setups.SetSetup(r.Context(), id, cfg); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetSensors(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SensorsResponse{
		Samples: s.ingest.LastSamples(id),
		Button:  s.ingest.Button(id),
	})
}

func (s *Server) handlePostSensors(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}

	var req SensorsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ingest.Submit(id, req.Timestamp, req.Sensors); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"accepted": len(req.Sensors),
	})
}

func (s *Server) handlePutButton(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}

	var req ButtonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Pressed == nil {
		writeValidationError(w, "pressed is required and must be a boolean")
		return
	}
	writeJSON(w, http.StatusOK, s.ingest.SubmitButton(id, *req.Pressed))
}
