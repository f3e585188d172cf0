// Package store provides named-blob storage with optimistic concurrency.
// Durable system state (apps, organizations, logs) lives in versioned blobs;
// all multi-writer mutation goes through compare-and-swap retry loops.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotExist is returned by Read for a path that has never been written.
	ErrNotExist = errors.New("blob does not exist")

	// ErrConflict is returned by CompareAndSwap when the stored version does
	// not match the expected version.
	ErrConflict = errors.New("blob version conflict")
)

// Store is the durable object-store contract. Version 0 means "not yet
// created": CompareAndSwap with expected 0 creates the blob and fails with
// ErrConflict if it already exists.
type Store interface {
	Read(ctx context.Context, path string) (data []byte, version int64, err error)
	CompareAndSwap(ctx context.Context, path string, expected int64, data []byte) (version int64, err error)
	Close() error
}

// System blob paths. The system:// blobs are read-mostly and cached; the
// logs:// blobs are append-only per organization.
const (
	PathApps            = "system://apps.json"
	PathUsers           = "system://users.json"
	PathOrganizations   = "system://organizations.json"
	PathBlocked         = "system://blocked.json"
	PathDunning         = "system://dunning.json"
	PathUnhandledErrors = "system://unhandledErrors.json"
)

// FeatureLogPath returns the activity log blob path for an organization.
func FeatureLogPath(orgID string) string {
	return "logs://" + orgID + "_featureLog.json"
}

// UnknownLogPath returns the unknown-user log blob path for an organization.
func UnknownLogPath(orgID string) string {
	return "logs://" + orgID + "_unknown.json"
}

// BillingLogPath returns the metered billing blob path for an organization.
func BillingLogPath(orgID string) string {
	return "logs://" + orgID + "_billingLog.json"
}
