package billing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ninjahq/ninja-backend/internal/logging"
	"github.com/ninjahq/ninja-backend/internal/metrics"
	"github.com/ninjahq/ninja-backend/internal/models"
	"github.com/ninjahq/ninja-backend/internal/store"
)

// Preprocessor runs the billing pipeline before the endpoint handler.
//
// Error policy: a RequestError (policy failure) propagates unchanged, with
// the record so the terminal phase can still drain its intents. Anything
// else is an infrastructure failure: the request proceeds on the house with
// billing cleared, and the failure is appended best-effort to the unhandled
// errors blob. Fail open on infrastructure, fail closed on policy.
type Preprocessor struct {
	Pipeline *Pipeline
	Store    store.Store
	// Private disables preprocessing entirely.
	Private bool
}

// Run executes the stages selected by flags and returns the request's
// billing record. A nil record with nil error means billing is skipped.
func (p *Preprocessor) Run(ctx context.Context, flags EndpointFlags, info RequestInfo, hdr http.Header) (*Record, error) {
	if p.Private || !flags.BillingEnabled() {
		return nil, nil
	}

	if flags.Security {
		p.Pipeline.Cache.InvalidateAll()
	}
	if flags.LoggingEnabled() {
		log.Info().
			Str("endpoint", flags.Moniker).
			Str("appId", info.AppID).
			Str("requestId", logging.RequestID(ctx)).
			Msg("handling billed request")
	}

	rec := &Record{}
	if err := p.runStages(ctx, rec, flags, info, hdr); err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			return rec, reqErr
		}
		p.recordUnhandled(ctx, flags.Moniker, err)
		metrics.FailOpen.Inc()
		log.Error().Err(err).
			Str("endpoint", flags.Moniker).
			Msg("billing preprocessing failed, request proceeds without billing")
		return nil, nil
	}
	return rec, nil
}

func (p *Preprocessor) runStages(ctx context.Context, rec *Record, flags EndpointFlags, info RequestInfo, hdr http.Header) error {
	if err := p.Pipeline.Bind(ctx, rec, info); err != nil {
		return err
	}
	if err := p.Pipeline.Claim(ctx, rec, info); err != nil {
		return err
	}
	if err := p.Pipeline.Block(ctx, rec); err != nil {
		return err
	}
	p.Pipeline.Dun(rec, hdr)

	if flags.Security {
		if err := p.Pipeline.Permit(rec, info); err != nil {
			return err
		}
		if err := p.Pipeline.Enforce(rec); err != nil {
			return err
		}
	}

	p.Pipeline.LegacyHeader(rec, hdr)
	return nil
}

// recordUnhandled appends the swallowed failure to the unhandled errors
// blob. Best effort: storage is already suspect at this point.
func (p *Preprocessor) recordUnhandled(ctx context.Context, moniker string, cause error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	blob := store.NewBlob[[]models.UnhandledError](p.Store, store.PathUnhandledErrors)
	entry := models.UnhandledError{
		Timestamp: p.Pipeline.now().UnixMilli(),
		Moniker:   moniker,
		Error:     cause.Error(),
	}
	_, err := blob.OptimisticUpdate(writeCtx, func(current []models.UnhandledError) []models.UnhandledError {
		next := make([]models.UnhandledError, 0, len(current)+1)
		next = append(next, current...)
		return append(next, entry)
	}, nil)
	if err != nil {
		log.Debug().Err(err).Msg("unable to record unhandled billing error")
	}
}
