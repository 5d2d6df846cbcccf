package dispatch

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// deliveryStateBody is the payload for terraform state callbacks.
type deliveryStateBody struct {
	RequestIdentifier string            `json:"request_identifier"`
	State             string            `json:"state"`
	ResourceIDs       map[string]string `json:"resource_ids"`
}

// Handler exposes the callback service over HTTP. Both endpoints require the
// static bearer token.
func (s *CallbackService) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/callbacks/delivery", s.handleDeliveryCallback)
	mux.HandleFunc("POST /api/v1/callbacks/state", s.handleStateCallback)
	return mux
}

func (s *CallbackService) handleDeliveryCallback(w http.ResponseWriter, r *http.Request) {
	if err := s.Authenticate(r.Header.Get("Authorization")); err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var update DeliveryStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if update.RequestIdentifier == "" || update.Status == "" {
		writeJSONError(w, http.StatusBadRequest, "request_identifier and status are required")
		return
	}

	if err := s.ApplyDeliveryStatus(r.Context(), update); err != nil {
		slog.Error("callback_apply_failed", "request_identifier", update.RequestIdentifier, "error", err)
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *CallbackService) handleStateCallback(w http.ResponseWriter, r *http.Request) {
	if err := s.Authenticate(r.Header.Get("Authorization")); err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body deliveryStateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if body.RequestIdentifier == "" {
		writeJSONError(w, http.StatusBadRequest, "request_identifier is required")
		return
	}

	if err := s.StoreDeliveryState(r.Context(), body.RequestIdentifier, body.State, body.ResourceIDs); err != nil {
		slog.Error("state_callback_failed", "request_identifier", body.RequestIdentifier, "error", err)
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
