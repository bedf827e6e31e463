// Package exporters exposes the pipeline metrics to scrapers.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus handler for every promauto metric of
// the viewer.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
