package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates an HTTP server serving /metrics (Prometheus), /healthz,
// and /readyz. The ready callback returns named readiness gates; /readyz
// responds 503 with the gates as JSON unless all of them hold.
func NewServer(addr string, ready func() map[string]bool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		gates := ready()
		ok := true
		for _, pass := range gates {
			ok = ok && pass
		}
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(gates)
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
