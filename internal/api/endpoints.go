package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ninjahq/ninja-backend/internal/billing"
	"github.com/ninjahq/ninja-backend/internal/logging"
)

// Request is the envelope handed to endpoint handlers.
type Request struct {
	Info    billing.RequestInfo
	Billing *billing.Record // nil when billing was skipped or failed open
	HTTP    *http.Request
}

// HandlerFunc is an endpoint's business handler. The returned body is JSON
// encoded after postprocessing.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Endpoint couples a route with its billing flags and handler. The flags
// replace the upstream decorator surface.
type Endpoint struct {
	Method  string
	Path    string
	Flags   billing.EndpointFlags
	Handler HandlerFunc
}

// handle wraps an endpoint with the full billing request lifecycle:
// preprocess, handler, postprocess, and a terminal writeback drain that runs
// on success and on failure alike.
func (s *Server) handle(ep Endpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != ep.Method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx, _ := logging.WithRequestID(r.Context(), r.Header.Get("X-Request-Id"))
		info := RequestInfoFrom(r)

		rec, err := s.pre.Run(ctx, ep.Flags, info, w.Header())
		defer func() {
			// The drain must finish even when the client goes away.
			s.engine.Drain(context.WithoutCancel(ctx), rec, ep.Flags, info)
		}()
		if err != nil {
			writeError(w, err)
			return
		}

		body, err := ep.Handler(ctx, &Request{Info: info, Billing: rec, HTTP: r})
		if err != nil {
			writeError(w, err)
			return
		}

		body = billing.Postprocess(rec, body, s.now(), w.Header(), s.private)
		writeJSON(w, http.StatusOK, body)
	})
}

func writeError(w http.ResponseWriter, err error) {
	var reqErr *billing.RequestError
	if errors.As(err, &reqErr) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(reqErr.Status)
		_, _ = w.Write([]byte(reqErr.Message))
		return
	}
	log.Error().Err(err).Msg("handler failed")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("response encode failed")
	}
}

// readJSONBody decodes a small JSON request body into dst.
func readJSONBody(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return billing.BadRequest("invalid JSON body")
	}
	return nil
}
