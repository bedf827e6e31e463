package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/ffview/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time view changes, geometry changes, session state transitions and frame statistics",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"view-changed":          events.ViewChangedEvent{},
		"geometry-changed":      events.GeometryChangedEvent{},
		"session-state-changed": events.SessionStateChangedEvent{},
		"frame-stats":           events.FrameStatsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ViewChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.GeometryChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameStatsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// A new client starts from the current geometry
		if s.view != nil {
			snap := s.view.Snapshot()
			if err := send.Data(events.GeometryChangedEvent{
				ImageWidth:    snap.ImageWidth,
				ImageHeight:   snap.ImageHeight,
				VisibleWidth:  snap.VisibleWidth,
				VisibleHeight: snap.VisibleHeight,
				MaxX:          snap.MaxX,
				MaxY:          snap.MaxY,
				MaxGridX:      snap.MaxGridX(),
				MaxGridY:      snap.MaxGridY(),
				Scale:         snap.SFX,
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
