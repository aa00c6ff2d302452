package handler

import "net/http"

// HandleWelcome is a liveness probe.
//
// HTTP: GET /welcome
// Response: {"status": "success", "message": "Welcome!"}
func HandleWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Welcome!",
	})
}
