package billing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ninjahq/ninja-backend/internal/cache"
	"github.com/ninjahq/ninja-backend/internal/metering"
	"github.com/ninjahq/ninja-backend/internal/metrics"
	"github.com/ninjahq/ninja-backend/internal/models"
	"github.com/ninjahq/ninja-backend/internal/store"
)

// Engine drains a billing record's writeback intents in the request's
// terminal phase. Every operation is idempotent (add-to-set, never-overwrite
// first-seen, versioned append) and commutative with concurrent requests, so
// there is no cross-request ordering requirement. Writeback failures never
// fail the request; they are logged and counted.
type Engine struct {
	Store store.Store
	Cache *cache.Manager
	// Meter is nil when the Stripe secret is not configured; metering is
	// then skipped entirely.
	Meter   metering.Sender
	Private bool

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Drain persists all pending state changes for the request. Runs on success
// and on failure: a denial can still carry a deny-list writeback or an
// unknown-user attempt worth recording.
func (e *Engine) Drain(ctx context.Context, rec *Record, flags EndpointFlags, info RequestInfo) {
	if e.Private || rec == nil {
		return
	}
	now := e.now()
	email := models.Normalize(info.GitEmail)

	if rec.WriteBackNewOrphan && rec.App != nil {
		e.appendNewApp(ctx, *rec.App)
	}
	if rec.WriteBackClaimed && rec.App != nil {
		e.claimApp(ctx, *rec.App)
	}
	if rec.WriteBackForceOrphan && rec.App != nil {
		e.forceOrphan(ctx, *rec.App)
	}

	if rec.Organization != nil && email != "" {
		e.updateOrganizationUser(ctx, rec.Organization, email, rec.WriteBackNewUser, now)
	}

	if e.shouldLogActivity(rec, flags, email) {
		e.appendFeatureLog(ctx, rec.Organization.ID, models.FeatureLogEntry{
			Timestamp: now.UnixMilli(),
			AppID:     rec.App.ID,
			Email:     email,
			Feature:   flags.Moniker,
		})
	}

	if rec.LogUnknownUserAttempt && rec.Organization != nil && rec.App != nil && email != "" {
		e.appendUnknownLog(ctx, rec.Organization.ID, models.UnknownUserEntry{
			Timestamp: now.UnixMilli(),
			Email:     email,
			AppID:     rec.App.ID,
		})
	}

	if e.shouldMeter(rec, email) {
		e.updateBillingLog(ctx, rec.Organization, rec.App, email, now)
	}
}

func (e *Engine) shouldLogActivity(rec *Record, flags EndpointFlags, email string) bool {
	return flags.UsageLogging &&
		flags.Moniker != "" &&
		rec.Organization != nil &&
		rec.App != nil &&
		email != "" &&
		rec.PermissionAllowed() &&
		!rec.Organization.HasDeniedUser(email)
}

func (e *Engine) shouldMeter(rec *Record, email string) bool {
	return rec.Organization != nil &&
		rec.Organization.Plan == models.PlanPAYG &&
		rec.Organization.StripeCustomerID != "" &&
		rec.App != nil &&
		email != "" &&
		rec.PermissionAllowed()
}

// appendNewApp registers a synthesized orphan, unless a concurrent request
// registered it first.
func (e *Engine) appendNewApp(ctx context.Context, app models.App) {
	blob := store.NewBlob[[]models.App](e.Store, store.PathApps)
	_, err := blob.OptimisticUpdate(ctx, func(apps []models.App) []models.App {
		for i := range apps {
			if apps[i].Matches(app.ID, app.Publisher) {
				return apps
			}
		}
		next := make([]models.App, 0, len(apps)+1)
		next = append(next, apps...)
		return append(next, app)
	}, nil)
	if err != nil {
		e.fail("new_orphan", err)
		return
	}
	e.Cache.UpdateApp(app)
}

// claimApp persists the claimed ownership, preserving every other field of
// the stored app. Appends when the app is missing from the blob.
func (e *Engine) claimApp(ctx context.Context, app models.App) {
	blob := store.NewBlob[[]models.App](e.Store, store.PathApps)
	_, err := blob.OptimisticUpdate(ctx, func(apps []models.App) []models.App {
		next := make([]models.App, len(apps))
		copy(next, apps)
		for i := range next {
			if next[i].Matches(app.ID, app.Publisher) {
				next[i].OwnerType = app.OwnerType
				next[i].OwnerID = app.OwnerID
				return next
			}
		}
		return append(next, app)
	}, nil)
	if err != nil {
		e.fail("claimed", err)
		return
	}
	e.Cache.UpdateApp(app)
}

// forceOrphan is the inverse of claimApp. The primitive is kept although no
// pipeline stage currently produces the intent.
func (e *Engine) forceOrphan(ctx context.Context, app models.App) {
	app.OwnerType = ""
	app.OwnerID = ""
	blob := store.NewBlob[[]models.App](e.Store, store.PathApps)
	_, err := blob.OptimisticUpdate(ctx, func(apps []models.App) []models.App {
		next := make([]models.App, len(apps))
		copy(next, apps)
		for i := range next {
			if next[i].Matches(app.ID, app.Publisher) {
				next[i].OwnerType = ""
				next[i].OwnerID = ""
				return next
			}
		}
		return append(next, app)
	}, nil)
	if err != nil {
		e.fail("force_orphan", err)
		return
	}
	e.Cache.UpdateApp(app)
}

// updateOrganizationUser applies the pending allow/deny-list mutation and
// ensures the user's first-seen timestamp exists. First-seen is min-wins:
// an existing value is never overwritten.
func (e *Engine) updateOrganizationUser(ctx context.Context, org *models.Organization, email string, intent UserWriteback, now time.Time) {
	_, seen := org.UserFirstSeen[email]
	if intent == UserWritebackNone && seen {
		return
	}
	nowMS := now.UnixMilli()

	blob := store.NewBlob[[]models.Organization](e.Store, store.PathOrganizations)
	result, err := blob.OptimisticUpdate(ctx, func(orgs []models.Organization) []models.Organization {
		for i := range orgs {
			if models.Normalize(orgs[i].ID) != models.Normalize(org.ID) {
				continue
			}
			switch intent {
			case UserWritebackAllow:
				orgs[i].Users = addToSet(orgs[i].Users, email)
				orgs[i].DeniedUsers = removeFromSet(orgs[i].DeniedUsers, email)
			case UserWritebackDeny:
				orgs[i].DeniedUsers = addToSet(orgs[i].DeniedUsers, email)
			}
			if orgs[i].UserFirstSeen == nil {
				orgs[i].UserFirstSeen = make(map[string]int64)
			}
			if _, ok := orgs[i].UserFirstSeen[email]; !ok {
				orgs[i].UserFirstSeen[email] = nowMS
			}
			break
		}
		return orgs
	}, nil)
	if err != nil {
		e.fail("user_update", err)
		return
	}
	for i := range result {
		if models.Normalize(result[i].ID) == models.Normalize(org.ID) {
			e.Cache.UpdateOrganization(result[i])
			break
		}
	}
}

func (e *Engine) appendFeatureLog(ctx context.Context, orgID string, entry models.FeatureLogEntry) {
	blob := store.NewBlob[[]models.FeatureLogEntry](e.Store, store.FeatureLogPath(orgID))
	_, err := blob.OptimisticUpdate(ctx, func(entries []models.FeatureLogEntry) []models.FeatureLogEntry {
		next := make([]models.FeatureLogEntry, 0, len(entries)+1)
		next = append(next, entries...)
		return append(next, entry)
	}, nil)
	if err != nil {
		e.fail("feature_log", err)
	}
}

func (e *Engine) appendUnknownLog(ctx context.Context, orgID string, entry models.UnknownUserEntry) {
	blob := store.NewBlob[[]models.UnknownUserEntry](e.Store, store.UnknownLogPath(orgID))
	_, err := blob.OptimisticUpdate(ctx, func(entries []models.UnknownUserEntry) []models.UnknownUserEntry {
		next := make([]models.UnknownUserEntry, 0, len(entries)+1)
		next = append(next, entries...)
		return append(next, entry)
	}, nil)
	if err != nil {
		e.fail("unknown_log", err)
	}
}

func (e *Engine) fail(operation string, err error) {
	metrics.WritebackFailures.WithLabelValues(operation).Inc()
	log.Error().Err(err).Str("operation", operation).Msg("billing writeback failed")
}

func addToSet(list []string, email string) []string {
	for _, v := range list {
		if models.Normalize(v) == email {
			return list
		}
	}
	return append(list, email)
}

func removeFromSet(list []string, email string) []string {
	next := list[:0]
	for _, v := range list {
		if models.Normalize(v) != email {
			next = append(next, v)
		}
	}
	return next
}
