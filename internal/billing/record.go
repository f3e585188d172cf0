package billing

import "github.com/ninjahq/ninja-backend/internal/models"

// UserWriteback is the pending allow/deny-list mutation computed by the
// permission evaluator.
type UserWriteback string

const (
	UserWritebackNone    UserWriteback = ""
	UserWritebackAllow   UserWriteback = "ALLOW"
	UserWritebackDeny    UserWriteback = "DENY"
	UserWritebackUnknown UserWriteback = "UNKNOWN"
)

// Record is the per-request billing state. It is created during binding,
// mutated only by the pipeline stages and the permission evaluator, read by
// the postprocessor, and drained by the writeback engine in the request's
// terminal phase. A Record is never shared across requests.
type Record struct {
	App          *models.App
	Organization *models.Organization
	User         *models.UserProfile
	Blocked      *models.BlockedEntry
	Dunning      *models.DunningEntry
	Permission   *Result

	ClaimIssue            bool
	LogUnknownUserAttempt bool

	WriteBackNewOrphan   bool
	WriteBackClaimed     bool
	WriteBackForceOrphan bool
	WriteBackNewUser     UserWriteback
}

// PermissionAllowed reports whether the request was not explicitly denied.
// A missing permission result (stages 5/6 did not run) counts as allowed.
func (r *Record) PermissionAllowed() bool {
	return r.Permission == nil || r.Permission.Allowed
}
