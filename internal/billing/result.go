package billing

import "github.com/ninjahq/ninja-backend/internal/models"

// WarningCode labels non-fatal conditions attached to allowed requests.
type WarningCode string

const (
	WarningAppGracePeriod WarningCode = "APP_GRACE_PERIOD"
	WarningOrgGracePeriod WarningCode = "ORG_GRACE_PERIOD"
)

// ErrorCode labels permission denials.
type ErrorCode string

const (
	ErrGitEmailRequired      ErrorCode = "GIT_EMAIL_REQUIRED"
	ErrUserNotAuthorized     ErrorCode = "USER_NOT_AUTHORIZED"
	ErrOrgFlagged            ErrorCode = "ORG_FLAGGED"
	ErrSubscriptionCancelled ErrorCode = "SUBSCRIPTION_CANCELLED"
	ErrPaymentFailed         ErrorCode = "PAYMENT_FAILED"
	ErrNoSubscription        ErrorCode = "NO_SUBSCRIPTION"
	ErrGraceExpired          ErrorCode = "GRACE_EXPIRED"
	ErrOrgGraceExpired       ErrorCode = "ORG_GRACE_EXPIRED"
)

// Warning is merged into successful response bodies.
type Warning struct {
	Code          WarningCode `json:"code"`
	TimeRemaining int64       `json:"timeRemaining,omitempty"` // ms
	GitEmail      string      `json:"gitEmail,omitempty"`
}

// Result is the tagged outcome of a permission evaluation: either allowed
// (with an optional warning) or denied with an error code.
type Result struct {
	Allowed bool      `json:"allowed"`
	Warning *Warning  `json:"warning,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
}

// Allow returns an allowed result.
func Allow() Result {
	return Result{Allowed: true}
}

// AllowWithWarning returns an allowed result carrying a warning.
func AllowWithWarning(w Warning) Result {
	return Result{Allowed: true, Warning: &w}
}

// Deny returns a denied result with the given code.
func Deny(code ErrorCode) Result {
	return Result{Allowed: false, Code: code}
}

// blockedErrorCode maps a blocked-organization reason to the denial code.
// Unknown reasons fail closed as flagged.
func blockedErrorCode(reason models.BlockedReason) ErrorCode {
	switch reason {
	case models.BlockedReasonFlagged:
		return ErrOrgFlagged
	case models.BlockedReasonSubscriptionCancelled:
		return ErrSubscriptionCancelled
	case models.BlockedReasonPaymentFailed:
		return ErrPaymentFailed
	case models.BlockedReasonNoSubscription:
		return ErrNoSubscription
	default:
		return ErrOrgFlagged
	}
}
