package models

import "time"

// BillingLogApp tracks metered usage of one (app, publisher) pair within a
// billing month.
type BillingLogApp struct {
	ID        string `json:"id"`
	Publisher string `json:"publisher,omitempty"`
	FirstSeen int64  `json:"firstSeen"`
	Count     int64  `json:"count"`
}

// BillingLogUser tracks metered usage of one user email within a billing
// month.
type BillingLogUser struct {
	Email     string `json:"email"`
	FirstSeen int64  `json:"firstSeen"`
	Count     int64  `json:"count"`
}

// BillingMonth aggregates one UTC month of usage for an organization.
type BillingMonth struct {
	Apps  map[string]BillingLogApp  `json:"apps,omitempty"`  // keyed by AppKey
	Users map[string]BillingLogUser `json:"users,omitempty"` // keyed by lowercased email
}

// BillingLog is the per-organization billing blob, keyed by "YYYY-MM".
type BillingLog map[string]BillingMonth

// MonthKey returns the UTC billing month key for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// FeatureLogEntry is one row of an organization's activity log.
type FeatureLogEntry struct {
	Timestamp int64  `json:"timestamp"`
	AppID     string `json:"appId"`
	Email     string `json:"email"`
	Feature   string `json:"feature"`
}

// UnknownUserEntry records an app use attempt by a user the organization has
// not explicitly allowed or denied. Every qualifying occurrence is recorded.
type UnknownUserEntry struct {
	Timestamp int64  `json:"timestamp"`
	Email     string `json:"email"`
	AppID     string `json:"appId"`
}

// UnhandledError is a best-effort record of an infrastructure failure that
// was swallowed by the fail-open path.
type UnhandledError struct {
	Timestamp int64  `json:"timestamp"`
	Moniker   string `json:"moniker,omitempty"`
	Error     string `json:"error"`
}
