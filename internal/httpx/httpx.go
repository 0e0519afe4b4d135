// internal/httpx/httpx.go
package httpx

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"prestalib/internal/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RespondJSON writes payload as JSON with the given status code.
func RespondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// RespondError writes the {"ok":false,"error":...} envelope the existing
// consumers expect.
func RespondError(w http.ResponseWriter, code int, message string) {
	RespondJSON(w, code, map[string]interface{}{"ok": false, "error": message})
}

// RespondServiceError maps an engine error to its HTTP status and writes it.
func RespondServiceError(w http.ResponseWriter, err error) {
	RespondError(w, errs.HTTPStatus(err), err.Error())
}

// Decode reads the request body as JSON into dst.
func Decode(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
