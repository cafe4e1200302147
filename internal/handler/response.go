// Package handler contains the HTTP API handlers.
//
// All endpoints speak JSON with a discriminated envelope: successful
// responses are {"success": true, "data": ...} and failures are
// {"success": false, "error": ..., "code": ...}. Callers branch on the
// success field rather than relying on exceptions.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// envelope is the success wrapper for all API responses.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// JSON writes a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// decodeJSON reads a JSON request body into dst, capping the body size.
func decodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// queryInt parses an integer query parameter, returning def when absent or
// malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
