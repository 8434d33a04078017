package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Server handles incoming HTTP requests for interacting with the
// provisioned BLE module
type Server struct {
	Logger  *slog.Logger
	Gateway *Gateway
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /characteristics/{name}", s.handleRead)
	mux.HandleFunc("PUT /characteristics/{name}", s.handleWrite)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// handleStatus reports the module's connection state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		Connected bool `json:"connected"`
	}

	status := s.Gateway.Status()
	if status < 0 {
		s.sendError(w, "module not responding", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{Connected: status == 1})
}

// handleRead returns the current value of a characteristic from the
// module's GATT table
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	value, err := s.Gateway.ReadCharacteristic(name)
	if err != nil {
		s.Logger.Error("Failed to read characteristic", "error", err, "characteristic", name)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	type ReadResponse struct {
		Characteristic string `json:"characteristic"`
		Value          string `json:"value"`
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ReadResponse{Characteristic: name, Value: value})
}

// handleWrite writes a value into a characteristic in the module's GATT
// table
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	type WriteRequest struct {
		Value string `json:"value"`
	}
	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		s.sendError(w, "the 'value' field is required", http.StatusBadRequest)
		return
	}

	if err := s.Gateway.WriteCharacteristic(name, req.Value); err != nil {
		s.Logger.Error("Failed to write characteristic", "error", err, "characteristic", name)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Characteristic written", "characteristic", name, "value_length", len(req.Value))
	w.WriteHeader(http.StatusOK)
}

// statusFor maps a gateway error to an HTTP status: unknown names are the
// client's mistake, everything else is a module failure.
func statusFor(err error) int {
	if strings.Contains(err.Error(), "unknown characteristic") {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
