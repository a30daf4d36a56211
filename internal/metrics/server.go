package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firestige.xyz/ipstack/internal/log"
)

// Serve exposes the metrics endpoint in a background goroutine.
func Serve(listen, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(listen, mux); err != nil {
			log.GetLogger().WithError(err).Error("metrics server stopped")
		}
	}()
}
