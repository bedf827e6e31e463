package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/ffview/internal/metrics"
)

func TestHTTPHandler(t *testing.T) {
	metrics.SetDisplayFPS(12)
	metrics.IncMirrorErrors("read")

	w := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, name := range []string{"ffview_display_fps 12", `ffview_mirror_errors_total{op="read"}`, "ffview_ffmpeg_fps"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}
