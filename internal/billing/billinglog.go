package billing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ninjahq/ninja-backend/internal/metering"
	"github.com/ninjahq/ninja-backend/internal/metrics"
	"github.com/ninjahq/ninja-backend/internal/models"
	"github.com/ninjahq/ninja-backend/internal/store"
)

// updateBillingLog records one use of (app, user) in the organization's
// current UTC billing month. The first occurrence of an app or user in a
// month emits a meter event; increments emit nothing. Meter identifiers are
// deterministic, so a retried emission is idempotent on the vendor side.
func (e *Engine) updateBillingLog(ctx context.Context, org *models.Organization, app *models.App, email string, now time.Time) {
	month := models.MonthKey(now)
	appKey := app.Key()
	nowMS := now.UnixMilli()

	blob := store.NewBlob[models.BillingLog](e.Store, store.BillingLogPath(org.ID))
	result, err := blob.OptimisticUpdate(ctx, func(billingLog models.BillingLog) models.BillingLog {
		if billingLog == nil {
			billingLog = models.BillingLog{}
		}
		monthEntry := billingLog[month]
		if monthEntry.Apps == nil {
			monthEntry.Apps = make(map[string]models.BillingLogApp)
		}
		if monthEntry.Users == nil {
			monthEntry.Users = make(map[string]models.BillingLogUser)
		}

		appEntry, ok := monthEntry.Apps[appKey]
		if !ok {
			appEntry = models.BillingLogApp{ID: app.ID, Publisher: app.Publisher, FirstSeen: nowMS}
		}
		appEntry.Count++
		monthEntry.Apps[appKey] = appEntry

		userEntry, ok := monthEntry.Users[email]
		if !ok {
			userEntry = models.BillingLogUser{Email: email, FirstSeen: nowMS}
		}
		userEntry.Count++
		monthEntry.Users[email] = userEntry

		billingLog[month] = monthEntry
		return billingLog
	}, nil)
	if err != nil {
		e.fail("billing_log", err)
		return
	}

	monthEntry := result[month]
	if monthEntry.Apps[appKey].Count == 1 {
		e.send(ctx, metering.Event{
			Name:       metering.EventPAYGApp,
			CustomerID: org.StripeCustomerID,
			ValueKey:   "value",
			Identifier: metering.AppIdentifier(org.ID, month, appKey),
			Timestamp:  now,
		})
	}
	if monthEntry.Users[email].Count == 1 {
		e.send(ctx, metering.Event{
			Name:       metering.EventPAYGUser,
			CustomerID: org.StripeCustomerID,
			ValueKey:   "users",
			Identifier: metering.UserIdentifier(org.ID, month, email),
			Timestamp:  now,
		})
	}
}

// send submits a meter event. Skipped when no sender is configured; errors
// are logged and counted, never propagated.
func (e *Engine) send(ctx context.Context, ev metering.Event) {
	if e.Meter == nil {
		return
	}
	if err := e.Meter.Send(ctx, ev); err != nil {
		metrics.MeterEvents.WithLabelValues(ev.Name, "error").Inc()
		log.Error().Err(err).Str("event", ev.Name).Str("identifier", ev.Identifier).Msg("meter event submission failed")
		return
	}
	metrics.MeterEvents.WithLabelValues(ev.Name, "ok").Inc()
}
