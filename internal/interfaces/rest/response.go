package rest

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// RespondWithJSON wraps data in the response envelope. For non-2xx statuses
// data is expected to be an *ErrorDetail.
func RespondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else if detail, ok := data.(*ErrorDetail); ok {
		response.Error = detail
	}

	_ = json.NewEncoder(w).Encode(response)
}
