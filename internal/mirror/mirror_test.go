package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/ffview/internal/events"
	"github.com/smazurov/ffview/internal/viewport"
)

type put struct {
	field string
	value int64
}

type fakeRemote struct {
	mu   sync.Mutex
	grid Grid
	err  error
	puts []put
}

func (r *fakeRemote) Get(context.Context) (Grid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grid, r.err
}

func (r *fakeRemote) Put(_ context.Context, field string, value int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts = append(r.puts, put{field, value})
	switch field {
	case FieldGX:
		r.grid.GX = value
	case FieldGY:
		r.grid.GY = value
	case FieldGCol:
		r.grid.GCol = value
	case FieldGrid:
		r.grid.Grid = value
	case FieldGS:
		r.grid.GS = value
	}
	return nil
}

func (r *fakeRemote) set(fn func(g *Grid)) {
	r.mu.Lock()
	fn(&r.grid)
	r.mu.Unlock()
}

func (r *fakeRemote) putsFor(field string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, p := range r.puts {
		if p.field == field {
			out = append(out, p.value)
		}
	}
	return out
}

func newView(opts ...viewport.Option) *viewport.Controller {
	v := viewport.New(opts...)
	v.SetImageSize(640, 480)
	return v
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPollAppliesOneFieldPerTick(t *testing.T) {
	remote := &fakeRemote{grid: Grid{GX: 50, GY: 60, GCol: 0xff0000, Grid: 1, GS: 20}}
	view := newView()
	m := New(remote, view)
	ctx := context.Background()

	m.poll(ctx)
	s := view.Snapshot()
	if s.GridX != 50 {
		t.Errorf("GridX after first poll = %d, want 50", s.GridX)
	}
	if s.GridY != 1 {
		t.Errorf("GridY after first poll = %d, want 1 (unchanged)", s.GridY)
	}

	for range 4 {
		m.poll(ctx)
	}
	s = view.Snapshot()
	if s.GridY != 60 {
		t.Errorf("GridY = %d, want 60", s.GridY)
	}
	if s.GridColor != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("GridColor = %v, want red", s.GridColor)
	}
	if !s.GridEnabled {
		t.Error("GridEnabled = false, want true")
	}
	if s.GridSpacing != 20 {
		t.Errorf("GridSpacing = %d, want 20", s.GridSpacing)
	}

	remote.set(func(g *Grid) { g.GS = 40; g.GY = 70 })
	m.poll(ctx)
	s = view.Snapshot()
	if s.GridY != 70 || s.GridSpacing != 20 {
		t.Errorf("after one poll GridY, GridSpacing = %d, %d, want 70, 20", s.GridY, s.GridSpacing)
	}
	m.poll(ctx)
	if got := view.Snapshot().GridSpacing; got != 40 {
		t.Errorf("GridSpacing = %d, want 40", got)
	}
}

func TestPollClampsRemoteValues(t *testing.T) {
	remote := &fakeRemote{grid: Grid{GX: 5000, GY: 1, GCol: 0xffffff, GS: 5}}
	view := newView()
	m := New(remote, view)

	for range len(Fields) {
		m.poll(context.Background())
	}
	s := view.Snapshot()
	if s.GridX != 639 {
		t.Errorf("GridX = %d, want 639", s.GridX)
	}
	if s.GridSpacing != viewport.MinGridSpacing {
		t.Errorf("GridSpacing = %d, want %d", s.GridSpacing, viewport.MinGridSpacing)
	}
}

func TestPollErrorKeepsView(t *testing.T) {
	remote := &fakeRemote{grid: Grid{GX: 50}, err: errors.New("connection refused")}
	view := newView()
	m := New(remote, view)

	m.poll(context.Background())
	if got := view.Snapshot().GridX; got != 1 {
		t.Errorf("GridX = %d, want 1", got)
	}
	if !m.failing {
		t.Error("failing = false after a failed read")
	}

	remote.mu.Lock()
	remote.err = nil
	remote.mu.Unlock()
	m.poll(context.Background())
	if got := view.Snapshot().GridX; got != 50 {
		t.Errorf("GridX after recovery = %d, want 50", got)
	}
	if m.failing {
		t.Error("failing = true after a successful read")
	}
}

func TestWriteBack(t *testing.T) {
	bus := events.New()
	view := newView(viewport.WithBus(bus))
	remote := &fakeRemote{grid: Grid{GX: 1, GY: 1, GCol: 0xffffff, GS: 10}}

	m := New(remote, view, WithBus(bus), WithInterval(10*time.Millisecond))
	m.Start()
	defer m.Stop()

	// Let the initial values settle.
	time.Sleep(100 * time.Millisecond)

	view.SetGx(200)
	waitFor(t, "gx write-back", func() bool {
		puts := remote.putsFor(FieldGX)
		return len(puts) > 0 && puts[len(puts)-1] == 200
	})

	view.SetGridEnabled(true)
	waitFor(t, "grid write-back", func() bool {
		puts := remote.putsFor(FieldGrid)
		return len(puts) > 0 && puts[len(puts)-1] == 1
	})

	remote.set(func(g *Grid) { g.GY = 77 })
	waitFor(t, "remote gy applied", func() bool { return view.Snapshot().GridY == 77 })
	time.Sleep(50 * time.Millisecond)
	if puts := remote.putsFor(FieldGY); len(puts) != 0 {
		t.Errorf("remote change was written back: %v", puts)
	}

	if got := view.Snapshot().GridX; got != 200 {
		t.Errorf("GridX = %d, want 200 after write-back", got)
	}
}

func TestHTTPRemote(t *testing.T) {
	var mu sync.Mutex
	var body map[string]int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/view/grid" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(Grid{GX: 10, GY: 20, GCol: 0x00ff00, Grid: 1, GS: 30})
		case http.MethodPut:
			mu.Lock()
			defer mu.Unlock()
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL + "/")
	g, err := remote.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := Grid{GX: 10, GY: 20, GCol: 0x00ff00, Grid: 1, GS: 30}
	if g != want {
		t.Errorf("Get() = %+v, want %+v", g, want)
	}

	if err := remote.Put(context.Background(), FieldGS, 42); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	mu.Lock()
	if len(body) != 1 || body["gs"] != 42 {
		t.Errorf("PUT body = %v, want {gs: 42}", body)
	}
	mu.Unlock()

	bad := NewHTTPRemote(srv.URL + "/nowhere")
	if _, err := bad.Get(context.Background()); err == nil {
		t.Error("Get() against a missing endpoint succeeded")
	}
}

func TestNewHTTPRemoteURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"viewer:8090", "http://viewer:8090/api/view/grid"},
		{"https://viewer/", "https://viewer/api/view/grid"},
	}
	for _, tt := range tests {
		if got := NewHTTPRemote(tt.base).URL(); got != tt.want {
			t.Errorf("NewHTTPRemote(%q).URL() = %q, want %q", tt.base, got, tt.want)
		}
	}
}
