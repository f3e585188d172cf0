package billing

import (
	"net/http"
	"strconv"
	"time"
)

// Postprocess augments a successful handler response with the request's
// billing warning and issue headers. Pure: it never mutates the input body.
//
// Merge semantics: a nil body becomes {"warning": ...}; a JSON object body
// gets the warning shallow-merged in, overwriting any existing "warning"
// key; an array body becomes an index-keyed object with the warning merged
// in; strings, numbers, booleans, and null pass through unchanged.
func Postprocess(rec *Record, body any, now time.Time, hdr http.Header, private bool) any {
	if private || rec == nil {
		return body
	}

	if warning := extractWarning(rec, now); warning != nil {
		switch typed := body.(type) {
		case nil:
			body = map[string]any{"warning": warning}
		case map[string]any:
			merged := make(map[string]any, len(typed)+1)
			for k, v := range typed {
				merged[k] = v
			}
			merged["warning"] = warning
			body = merged
		case []any:
			// Arrays spread the same way objects do, keyed by index.
			merged := make(map[string]any, len(typed)+1)
			for i, v := range typed {
				merged[strconv.Itoa(i)] = v
			}
			merged["warning"] = warning
			body = merged
		}
	}

	if rec.ClaimIssue {
		hdr.Set(HeaderClaimIssue, "true")
	}
	return body
}

// extractWarning prefers the permission stage's warning; for endpoints that
// skipped that stage it synthesizes the orphan grace warning so the client
// still sees the countdown.
func extractWarning(rec *Record, now time.Time) *Warning {
	if rec.Permission != nil && rec.Permission.Warning != nil {
		return rec.Permission.Warning
	}
	app := rec.App
	if app != nil && app.Orphan() && !app.Sponsored {
		nowMS := now.UnixMilli()
		if nowMS < app.FreeUntil {
			return &Warning{
				Code:          WarningAppGracePeriod,
				TimeRemaining: app.FreeUntil - nowMS,
			}
		}
	}
	return nil
}
