package models

import "strings"

type OwnerType string

const (
	OwnerTypeUser         OwnerType = "user"
	OwnerTypeOrganization OwnerType = "organization"
)

// App represents a registered developer tool application. Apps without an
// owner are "orphans" and run on a time-limited grace period.
type App struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Publisher string    `json:"publisher,omitempty"`
	Created   int64     `json:"created"`   // epoch ms
	FreeUntil int64     `json:"freeUntil"` // epoch ms
	OwnerType OwnerType `json:"ownerType,omitempty"`
	OwnerID   string    `json:"ownerId,omitempty"`
	GitEmail  string    `json:"gitEmail,omitempty"`
	Sponsored bool      `json:"sponsored,omitempty"`
}

// Orphan reports whether the app has no owner.
func (a *App) Orphan() bool {
	return a.OwnerID == ""
}

// Matches reports whether the app matches the given id and publisher after
// normalization. A missing publisher matches apps whose publisher is also
// empty.
func (a *App) Matches(id, publisher string) bool {
	return Normalize(a.ID) == Normalize(id) && Normalize(a.Publisher) == Normalize(publisher)
}

// Key returns the composite billing-log key "<id>|<publisher>".
func (a *App) Key() string {
	return AppKey(a.ID, a.Publisher)
}

// AppKey builds the normalized composite key for an (id, publisher) pair.
func AppKey(id, publisher string) string {
	return Normalize(id) + "|" + Normalize(publisher)
}

type Plan string

const (
	PlanUnlimited Plan = "unlimited"
	PlanSmall     Plan = "small"
	PlanPAYG      Plan = "payg"
)

// Organization is the owning entity for claimed apps. Membership is tracked
// by explicit user lists, email domains, and a first-seen timestamp map for
// users admitted during the organization grace period.
type Organization struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name,omitempty"`
	Plan               Plan             `json:"plan,omitempty"`
	Publishers         []string         `json:"publishers,omitempty"`
	Users              []string         `json:"users,omitempty"`
	DeniedUsers        []string         `json:"deniedUsers,omitempty"`
	Domains            []string         `json:"domains,omitempty"`
	PendingDomains     []string         `json:"pendingDomains,omitempty"`
	DenyUnknownDomains bool             `json:"denyUnknownDomains,omitempty"`
	UserFirstSeen      map[string]int64 `json:"userFirstSeenTimestamp,omitempty"`
	Status             string           `json:"status,omitempty"`
	StripeCustomerID   string           `json:"stripeCustomerId,omitempty"`
}

// HasUser reports whether email is in the allow list.
func (o *Organization) HasUser(email string) bool {
	return containsNormalized(o.Users, email)
}

// HasDeniedUser reports whether email is in the deny list.
func (o *Organization) HasDeniedUser(email string) bool {
	return containsNormalized(o.DeniedUsers, email)
}

// HasPublisher reports whether publisher is registered for the organization.
func (o *Organization) HasPublisher(publisher string) bool {
	return containsNormalized(o.Publishers, publisher)
}

// HasDomain reports whether the email's domain is in the verified domain set.
func (o *Organization) HasDomain(email string) bool {
	return containsNormalized(o.Domains, EmailDomain(email))
}

// HasPendingDomain reports whether the email's domain is pending verification.
func (o *Organization) HasPendingDomain(email string) bool {
	return containsNormalized(o.PendingDomains, EmailDomain(email))
}

// UserProfile identifies a known end user of the tooling.
type UserProfile struct {
	ID         string `json:"id"`
	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"providerId,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	GitEmail   string `json:"gitEmail,omitempty"`
}

type BlockedReason string

const (
	BlockedReasonFlagged               BlockedReason = "flagged"
	BlockedReasonSubscriptionCancelled BlockedReason = "subscription_cancelled"
	BlockedReasonPaymentFailed         BlockedReason = "payment_failed"
	BlockedReasonNoSubscription        BlockedReason = "no_subscription"
)

// BlockedEntry marks an organization as hard-denied for a specific reason.
type BlockedEntry struct {
	Reason    BlockedReason `json:"reason"`
	BlockedAt int64         `json:"blockedAt"` // epoch ms
}

// BlockedOrganizations is the system blob keyed by organization id.
type BlockedOrganizations struct {
	UpdatedAt int64                   `json:"updatedAt"`
	Orgs      map[string]BlockedEntry `json:"orgs,omitempty"`
}

// DunningEntry tracks the pre-suspension escalation state of an organization
// with payment issues. Dunning is warn-only in the billing core.
type DunningEntry struct {
	OrganizationID     string `json:"organizationId"`
	DunningStage       int    `json:"dunningStage"` // 1..3
	StartedAt          int64  `json:"startedAt"`
	LastStageChangedAt int64  `json:"lastStageChangedAt"`
}

// Normalize lowercases and trims a string. All email, publisher, domain, and
// allow-list comparisons go through this.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EmailDomain returns the normalized domain part of an email address, or ""
// when the address has no domain.
func EmailDomain(email string) string {
	email = Normalize(email)
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

func containsNormalized(list []string, s string) bool {
	s = Normalize(s)
	if s == "" {
		return false
	}
	for _, v := range list {
		if Normalize(v) == s {
			return true
		}
	}
	return false
}
