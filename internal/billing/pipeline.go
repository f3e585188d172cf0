package billing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ninjahq/ninja-backend/internal/cache"
	"github.com/ninjahq/ninja-backend/internal/metrics"
	"github.com/ninjahq/ninja-backend/internal/models"
)

// Pipeline runs the ordered billing stages against a request-local Record.
// Stages mutate only the Record; durable state changes are expressed as
// writeback intents and drained later by the Engine.
type Pipeline struct {
	Cache       *cache.Manager
	GracePeriod time.Duration
	// LegacyCutoff is the epoch-ms deadline of the legacy subscription
	// compatibility window.
	LegacyCutoff int64

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Bind resolves the app, user, and owning organization for the request.
// An unknown app id synthesizes a new orphan entering its grace period.
func (p *Pipeline) Bind(ctx context.Context, rec *Record, info RequestInfo) error {
	app, err := p.Cache.App(ctx, info.AppID, info.Publisher)
	if err != nil {
		return err
	}
	if app == nil && strings.TrimSpace(info.AppID) != "" {
		nowMS := p.now().UnixMilli()
		app = &models.App{
			ID:        strings.TrimSpace(info.AppID),
			Publisher: strings.TrimSpace(info.Publisher),
			Created:   nowMS,
			FreeUntil: nowMS + p.GracePeriod.Milliseconds(),
		}
		rec.WriteBackNewOrphan = true
	}
	rec.App = app

	user, err := p.Cache.UserByProfileOrEmail(ctx, info.ProfileID, info.GitEmail)
	if err != nil {
		return err
	}
	rec.User = user

	if app != nil && app.OwnerType == models.OwnerTypeOrganization && app.OwnerID != "" {
		org, err := p.Cache.Organization(ctx, app.OwnerID)
		if err != nil {
			return err
		}
		rec.Organization = org
		if org != nil {
			blocked, err := p.Cache.BlockedStatus(ctx, org.ID)
			if err != nil {
				return err
			}
			rec.Blocked = blocked
			rec.Dunning = p.Cache.DunningEntry(ctx, org.ID)
		}
	}
	return nil
}

// Claim attempts to move an orphan app under a single unambiguous
// organization. Requires a non-blank publisher; a publisher nobody owns is
// not an issue, zero or multiple matches are.
func (p *Pipeline) Claim(ctx context.Context, rec *Record, info RequestInfo) error {
	if rec.App == nil || !rec.App.Orphan() || strings.TrimSpace(info.Publisher) == "" {
		return nil
	}
	orgs, err := p.Cache.Organizations(ctx)
	if err != nil {
		return err
	}
	outcome := EvaluateClaimCandidates(info.Publisher, info.GitEmail, orgs)
	if !outcome.PublisherMatchFound {
		return nil
	}
	if len(outcome.Candidates) != 1 {
		rec.ClaimIssue = true
		return nil
	}

	org := outcome.Candidates[0].Org
	rec.App.OwnerType = models.OwnerTypeOrganization
	rec.App.OwnerID = org.ID
	rec.Organization = &org
	rec.WriteBackClaimed = true
	return nil
}

// Block attaches the blocked entry for the bound organization. It does not
// deny by itself; denial happens in the permission stage.
func (p *Pipeline) Block(ctx context.Context, rec *Record) error {
	if rec.Organization == nil || rec.Blocked != nil {
		return nil
	}
	blocked, err := p.Cache.BlockedStatus(ctx, rec.Organization.ID)
	if err != nil {
		return err
	}
	rec.Blocked = blocked
	return nil
}

// Dun signals dunning on the response. Dunning is warn-only.
func (p *Pipeline) Dun(rec *Record, hdr http.Header) {
	if rec.Dunning != nil {
		hdr.Set(HeaderDunningWarning, "true")
	}
}

// Permit computes and stores the permission result. A missing app id is a
// malformed request, not a policy denial.
func (p *Pipeline) Permit(rec *Record, info RequestInfo) error {
	if strings.TrimSpace(info.AppID) == "" {
		return BadRequest("Ninja-App-Id header is required")
	}
	result := EvaluatePermission(rec, info.GitEmail, p.now(), p.GracePeriod)
	rec.Permission = &result

	if result.Allowed {
		code := "none"
		if result.Warning != nil {
			code = string(result.Warning.Code)
		}
		metrics.PermissionDecisions.WithLabelValues("allowed", code).Inc()
	} else {
		metrics.PermissionDecisions.WithLabelValues("denied", string(result.Code)).Inc()
	}
	return nil
}

// Enforce raises the permission denial, if any.
func (p *Pipeline) Enforce(rec *Record) error {
	if rec.Permission != nil && !rec.Permission.Allowed {
		return Forbidden(rec.Permission.Code)
	}
	return nil
}

// LegacyHeader signals orphan apps whose grace period ends inside the fixed
// legacy compatibility window.
func (p *Pipeline) LegacyHeader(rec *Record, hdr http.Header) {
	if rec.App == nil || !rec.App.Orphan() {
		return
	}
	if rec.App.FreeUntil != 0 && rec.App.FreeUntil <= p.LegacyCutoff {
		hdr.Set(HeaderSubscriptionMissing, "true")
	}
}
