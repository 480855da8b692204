package server

import (
	"encoding/json"
	"net/http"

	"diskuto/internal/apperr"
)

// writeError maps an apperr.Kind to its HTTP status, the one place spec.md
// §7's error taxonomy turns into status codes instead of handlers each
// picking their own.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.As(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindInvalidInput, apperr.KindHashMismatch:
		status = http.StatusBadRequest
	case apperr.KindSignatureInvalid:
		status = http.StatusUnauthorized
	case apperr.KindUnauthorized:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindDuplicate:
		status = http.StatusOK
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindStorage, apperr.KindIntegrity:
		status = http.StatusInternalServerError
	}

	log.WithField("kind", kind.String()).WithField("status", status).Warn(err.Error())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": kind.String()})
}
