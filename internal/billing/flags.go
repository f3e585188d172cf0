// Package billing implements the billing preprocessing pipeline: request
// binding, orphan claiming, block/dunning checks, the permission decision,
// response augmentation, and deferred writeback of state changes.
package billing

// EndpointFlags declares the billing behavior of one endpoint. They replace
// the upstream per-handler decorators: each handler is registered in the
// routing table together with its flags.
type EndpointFlags struct {
	// Billing runs the binding stages without enforcement.
	Billing bool
	// Logging info-logs the invocation. Implies Billing.
	Logging bool
	// UsageLogging appends an activity log entry on success. Implies Billing.
	UsageLogging bool
	// Security invalidates caches and runs all stages including enforcement.
	// Implies Billing and Logging.
	Security bool

	// Moniker labels the endpoint; it becomes the feature field of activity
	// log entries.
	Moniker string
}

// BillingEnabled reports whether any preprocessing runs for the endpoint.
func (f EndpointFlags) BillingEnabled() bool {
	return f.Billing || f.Logging || f.UsageLogging || f.Security
}

// LoggingEnabled reports whether the invocation is info-logged.
func (f EndpointFlags) LoggingEnabled() bool {
	return f.Logging || f.Security
}

// RequestInfo carries the identity claims extracted from the request
// headers. Authentication of these claims happens upstream.
type RequestInfo struct {
	AppID     string
	Publisher string
	GitName   string
	GitEmail  string
	AuthKey   string
	Version   string
	ProfileID string
}

// Outbound response headers set by the billing core.
const (
	HeaderDunningWarning      = "X-Ninja-Dunning-Warning"
	HeaderClaimIssue          = "X-Ninja-Claim-Issue"
	HeaderSubscriptionMissing = "X-Ninja-Subscription-Missing"
)
