package server

import (
	"encoding/json"
	"net/http"

	"github.com/venicegeo/pz-idam/internal/gateway"
	"github.com/venicegeo/pz-idam/internal/logging"
)

const healthMessage = "Hello, Health Check here."

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(healthMessage))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleStats handles GET /admin/stats
func HandleStats(svc gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			logging.Errorf("Failed to collect stats: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to collect stats.")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
