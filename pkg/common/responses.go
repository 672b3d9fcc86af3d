package common

import (
	"encoding/json"
	"net/http"

	pkgerrors "bfdb/pkg/errors"
)

// MaxBodyBytes bounds JSON request bodies
const MaxBodyBytes = 1 << 20

// RespondJSON sends data as a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ParseJSONBody decodes a JSON request body with a size limit, rejecting
// unknown fields
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return pkgerrors.NewValidationError("invalid request body: " + err.Error()).
			WithCode(pkgerrors.CodeInvalidRequest)
	}
	return nil
}
