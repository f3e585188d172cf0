package api

import (
	"context"
	"net/http"
)

// The business handlers are thin: the interesting work (binding, claiming,
// permission, writeback) happens in the billing wrapper around them.

func (s *Server) handleAuthorize(ctx context.Context, req *Request) (any, error) {
	return map[string]any{"status": "ok"}, nil
}

// handleSyncIDs resolves a batch of app ids against the registry, first hit
// per id.
func (s *Server) handleSyncIDs(ctx context.Context, req *Request) (any, error) {
	var payload struct {
		IDs []string `json:"ids"`
	}
	if err := readJSONBody(req.HTTP, &payload); err != nil {
		return nil, err
	}
	apps, err := s.cache.AppsByID(ctx, payload.IDs)
	if err != nil {
		return nil, err
	}
	resolved := make(map[string]any, len(apps))
	for id, app := range apps {
		resolved[id] = map[string]any{
			"id":        app.ID,
			"publisher": app.Publisher,
		}
	}
	return map[string]any{"apps": resolved}, nil
}

func (s *Server) handleGetNext(ctx context.Context, req *Request) (any, error) {
	return map[string]any{"status": "ok"}, nil
}

func (s *Server) handleStoreAssignment(ctx context.Context, req *Request) (any, error) {
	return map[string]any{"status": "ok"}, nil
}

func (s *Server) handlePing(ctx context.Context, req *Request) (any, error) {
	return map[string]any{"status": "ok", "version": s.version}, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
