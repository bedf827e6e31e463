package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Grid holds the mirrored grid parameters. The colour is 0xRRGGBB and the
// enabled flag 0 or 1.
type Grid struct {
	GX   int64 `json:"gx"`
	GY   int64 `json:"gy"`
	GCol int64 `json:"gcol"`
	Grid int64 `json:"grid"`
	GS   int64 `json:"gs"`
}

// Value returns the value of a mirrored field by name.
func (g Grid) Value(field string) (int64, bool) {
	switch field {
	case FieldGX:
		return g.GX, true
	case FieldGY:
		return g.GY, true
	case FieldGCol:
		return g.GCol, true
	case FieldGrid:
		return g.Grid, true
	case FieldGS:
		return g.GS, true
	}
	return 0, false
}

// Remote is where the grid parameters live.
type Remote interface {
	// Get reads all mirrored values.
	Get(ctx context.Context) (Grid, error)
	// Put writes one field.
	Put(ctx context.Context, field string, value int64) error
}

// HTTPRemote reads and writes the grid of another ffview instance, or any
// server speaking the same JSON, at {base}/api/view/grid.
type HTTPRemote struct {
	url        string
	httpClient *http.Client
}

// NewHTTPRemote creates a remote for base, e.g. "http://viewer:8090". A
// base without a scheme gets http://.
func NewHTTPRemote(base string) *HTTPRemote {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &HTTPRemote{
		url:        strings.TrimRight(base, "/") + "/api/view/grid",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// URL returns the grid endpoint.
func (r *HTTPRemote) URL() string {
	return r.url
}

// Get fetches the grid values.
func (r *HTTPRemote) Get(ctx context.Context) (Grid, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return Grid{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Grid{}, fmt.Errorf("failed to get grid: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Grid{}, fmt.Errorf("failed to get grid, status: %d", resp.StatusCode)
	}

	var g Grid
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return Grid{}, fmt.Errorf("failed to decode grid: %w", err)
	}
	return g, nil
}

// Put sends a partial update with a single field.
func (r *HTTPRemote) Put(ctx context.Context, field string, value int64) error {
	data, err := json.Marshal(map[string]int64{field: value})
	if err != nil {
		return fmt.Errorf("failed to marshal grid update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", field, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("failed to put %s, status: %d", field, resp.StatusCode)
	}
	return nil
}
