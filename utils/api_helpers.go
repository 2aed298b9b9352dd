package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON sends a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// RespondError sends {"error": message} with the given status code.
func RespondError(w http.ResponseWriter, message string, status int) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// MaxJSONBodySize caps request bodies read by DecodeJSON
const MaxJSONBodySize = 1 << 20

// DecodeJSON decodes the request body into v, failing once the body passes MaxJSONBodySize
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}
