package billing

import (
	"time"

	"github.com/ninjahq/ninja-backend/internal/models"
)

// UserCategory classifies a user against an organization's allow/deny lists,
// verified domains, pending domains, and the denyUnknownDomains flag.
type UserCategory string

const (
	// UserAllowed: explicit allow-list member, or verified-domain match.
	UserAllowed UserCategory = "ALLOWED"
	// UserAllowedPending: pending-domain match; allowed but logged.
	UserAllowedPending UserCategory = "ALLOWED_PENDING"
	// UserDeny: unknown domain with denyUnknownDomains set.
	UserDeny UserCategory = "DENY"
	// UserDenied: explicit deny-list member.
	UserDenied UserCategory = "DENIED"
	// UserUnknown: no list or domain matched; grace rules apply.
	UserUnknown UserCategory = "UNKNOWN"
)

// CategorizeUser computes the UserCategory of email within org. Pure.
func CategorizeUser(org *models.Organization, email string) UserCategory {
	switch {
	case org.HasUser(email):
		return UserAllowed
	case org.HasDeniedUser(email):
		return UserDenied
	case org.HasDomain(email):
		return UserAllowed
	case org.HasPendingDomain(email):
		return UserAllowedPending
	case org.DenyUnknownDomains:
		return UserDeny
	default:
		return UserUnknown
	}
}

// EvaluatePermission decides whether the bound request may proceed. It is
// total: every input yields exactly one Result. As side effects it records
// writeback intents (allow/deny-list mutations, first-seen bookkeeping) and
// the unknown-user log flag on the record; re-invocation is idempotent.
func EvaluatePermission(rec *Record, gitEmail string, now time.Time, gracePeriod time.Duration) Result {
	app := rec.App
	if app == nil {
		return Allow()
	}
	if app.Sponsored {
		return Allow()
	}
	if rec.Blocked != nil {
		return Deny(blockedErrorCode(rec.Blocked.Reason))
	}

	email := models.Normalize(gitEmail)

	switch {
	case app.OwnerType == models.OwnerTypeUser && app.OwnerID != "":
		return evaluatePersonal(rec, email)
	case app.OwnerType == models.OwnerTypeOrganization && app.OwnerID != "":
		return evaluateOrganization(rec, email, now, gracePeriod)
	default:
		return evaluateOrphan(app, now)
	}
}

func evaluatePersonal(rec *Record, email string) Result {
	if email == "" {
		return Deny(ErrGitEmailRequired)
	}
	if email == models.Normalize(rec.App.GitEmail) {
		return Allow()
	}
	if user := rec.User; user != nil {
		if email == models.Normalize(user.Email) || email == models.Normalize(user.GitEmail) {
			return Allow()
		}
	}
	return Deny(ErrUserNotAuthorized)
}

func evaluateOrganization(rec *Record, email string, now time.Time, gracePeriod time.Duration) Result {
	org := rec.Organization
	if org == nil {
		// Owner points at an organization the system blob no longer has.
		// Storage inconsistency is not the user's fault; fail open.
		return Allow()
	}
	if org.Plan == models.PlanUnlimited {
		return Allow()
	}
	if email == "" {
		return Deny(ErrGitEmailRequired)
	}

	switch CategorizeUser(org, email) {
	case UserAllowed:
		if !org.HasUser(email) {
			// Granted via verified domain: promote to the allow list.
			rec.WriteBackNewUser = UserWritebackAllow
		}
		return Allow()

	case UserDenied:
		return Deny(ErrUserNotAuthorized)

	case UserAllowedPending:
		rec.WriteBackNewUser = UserWritebackUnknown
		rec.LogUnknownUserAttempt = true
		return Allow()

	case UserDeny:
		rec.WriteBackNewUser = UserWritebackDeny
		return Deny(ErrUserNotAuthorized)

	default: // UserUnknown
		rec.LogUnknownUserAttempt = true
		nowMS := now.UnixMilli()
		graceMS := gracePeriod.Milliseconds()
		firstSeen, seen := org.UserFirstSeen[email]
		if !seen || nowMS-firstSeen < graceMS {
			// First-seen is persisted on writeback and never overwritten.
			rec.WriteBackNewUser = UserWritebackUnknown
			remaining := graceMS
			if seen {
				remaining = graceMS - (nowMS - firstSeen)
			}
			return AllowWithWarning(Warning{
				Code:          WarningOrgGracePeriod,
				TimeRemaining: remaining,
				GitEmail:      email,
			})
		}
		return Deny(ErrOrgGraceExpired)
	}
}

func evaluateOrphan(app *models.App, now time.Time) Result {
	nowMS := now.UnixMilli()
	if nowMS < app.FreeUntil {
		return AllowWithWarning(Warning{
			Code:          WarningAppGracePeriod,
			TimeRemaining: app.FreeUntil - nowMS,
		})
	}
	return Deny(ErrGraceExpired)
}
