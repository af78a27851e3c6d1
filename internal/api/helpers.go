package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

// WriteJSONResponse encodes v and writes it with a JSON content type.
// Encoding happens into a buffer first so a marshal failure never produces a
// partial body. Returns false when nothing useful was written.
func WriteJSONResponse(w http.ResponseWriter, v interface{}) bool {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.Printf("API: Failed to encode JSON response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("API: Failed to write JSON response: %v", err)
		return false
	}
	return true
}

// DecodeJSONBody decodes the request body into v, writing a 400 on failure.
// Returns false when the caller should stop handling the request.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// QueryInt parses an integer query parameter, falling back to defaultValue
// when the parameter is missing or malformed.
func QueryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// RequireQuery fetches a required query parameter, writing a 400 when it is
// absent. Returns ("", false) in that case.
func RequireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		http.Error(w, name+" is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}
