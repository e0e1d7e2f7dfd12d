package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/iho/pointledger/internal/adapter/http/dto"
)

// writeJSONError writes resp in the same envelope the handlers use.
func writeJSONError(w http.ResponseWriter, status int, resp dto.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
