package httpapi

import "net/http"

type HealthHandler struct{}

func (h HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Server is running!",
		"status":  "OK",
	})
}
