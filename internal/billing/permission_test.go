package billing

import (
	"testing"
	"time"

	"github.com/ninjahq/ninja-backend/internal/models"
)

var (
	testNow   = time.UnixMilli(1_755_000_000_000)
	testGrace = 30 * 24 * time.Hour
)

func evaluate(t *testing.T, rec *Record, email string) Result {
	t.Helper()
	return EvaluatePermission(rec, email, testNow, testGrace)
}

func TestCategorizeUser(t *testing.T) {
	org := &models.Organization{
		Users:          []string{"allowed@x.com"},
		DeniedUsers:    []string{"denied@x.com"},
		Domains:        []string{"verified.com"},
		PendingDomains: []string{"pending.com"},
	}

	cases := []struct {
		email string
		want  UserCategory
	}{
		{"allowed@x.com", UserAllowed},
		{"denied@x.com", UserDenied},
		{"anyone@verified.com", UserAllowed},
		{"anyone@pending.com", UserAllowedPending},
		{"anyone@unknown.com", UserUnknown},
	}
	for _, tc := range cases {
		if got := CategorizeUser(org, tc.email); got != tc.want {
			t.Errorf("CategorizeUser(%q) = %s, want %s", tc.email, got, tc.want)
		}
	}

	// The allow list wins even for a denied-list member.
	both := &models.Organization{
		Users:       []string{"dual@x.com"},
		DeniedUsers: []string{"dual@x.com"},
	}
	if got := CategorizeUser(both, "dual@x.com"); got != UserAllowed {
		t.Errorf("allow list must take precedence, got %s", got)
	}

	strict := &models.Organization{DenyUnknownDomains: true}
	if got := CategorizeUser(strict, "anyone@unknown.com"); got != UserDeny {
		t.Errorf("denyUnknownDomains must yield DENY, got %s", got)
	}
}

func TestPermissionNoApp(t *testing.T) {
	res := evaluate(t, &Record{}, "alice@x.com")
	if !res.Allowed || res.Warning != nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestPermissionSponsored(t *testing.T) {
	rec := &Record{App: &models.App{ID: "a", Sponsored: true}}
	if res := evaluate(t, rec, ""); !res.Allowed {
		t.Fatalf("sponsored app must always be allowed: %+v", res)
	}
}

func TestPermissionBlockedOrganization(t *testing.T) {
	cases := map[models.BlockedReason]ErrorCode{
		models.BlockedReasonFlagged:               ErrOrgFlagged,
		models.BlockedReasonSubscriptionCancelled: ErrSubscriptionCancelled,
		models.BlockedReasonPaymentFailed:         ErrPaymentFailed,
		models.BlockedReasonNoSubscription:        ErrNoSubscription,
		models.BlockedReason("future-reason"):     ErrOrgFlagged,
	}
	for reason, want := range cases {
		rec := &Record{
			App:     &models.App{ID: "a", OwnerType: models.OwnerTypeOrganization, OwnerID: "org-1"},
			Blocked: &models.BlockedEntry{Reason: reason},
		}
		res := evaluate(t, rec, "alice@x.com")
		if res.Allowed || res.Code != want {
			t.Errorf("reason %q: result = %+v, want deny %s", reason, res, want)
		}
	}
}

func TestPermissionPersonalApp(t *testing.T) {
	app := &models.App{ID: "a", OwnerType: models.OwnerTypeUser, OwnerID: "user-1", GitEmail: "Owner@X.com"}

	res := evaluate(t, &Record{App: app}, "")
	if res.Allowed || res.Code != ErrGitEmailRequired {
		t.Fatalf("missing email: %+v", res)
	}

	if res := evaluate(t, &Record{App: app}, " owner@x.COM "); !res.Allowed {
		t.Fatalf("owner email must be allowed: %+v", res)
	}

	rec := &Record{
		App:  app,
		User: &models.UserProfile{ID: "user-1", Email: "profile@x.com", GitEmail: "git@x.com"},
	}
	if res := evaluate(t, rec, "git@x.com"); !res.Allowed {
		t.Fatalf("profile git email must be allowed: %+v", res)
	}

	res = evaluate(t, &Record{App: app}, "stranger@x.com")
	if res.Allowed || res.Code != ErrUserNotAuthorized {
		t.Fatalf("stranger: %+v", res)
	}
}

func TestPermissionOrgMissingFromBlob(t *testing.T) {
	rec := &Record{App: &models.App{ID: "a", OwnerType: models.OwnerTypeOrganization, OwnerID: "gone"}}
	if res := evaluate(t, rec, "alice@x.com"); !res.Allowed {
		t.Fatalf("missing organization must fail open: %+v", res)
	}
}

func TestPermissionUnlimitedPlan(t *testing.T) {
	rec := &Record{
		App:          &models.App{ID: "a", OwnerType: models.OwnerTypeOrganization, OwnerID: "org-1"},
		Organization: &models.Organization{ID: "org-1", Plan: models.PlanUnlimited},
	}
	// Unlimited skips the email requirement entirely.
	if res := evaluate(t, rec, ""); !res.Allowed {
		t.Fatalf("unlimited plan: %+v", res)
	}
}

func orgRecord(org models.Organization) *Record {
	return &Record{
		App:          &models.App{ID: "a", OwnerType: models.OwnerTypeOrganization, OwnerID: org.ID},
		Organization: &org,
	}
}

func TestPermissionOrgAllowedUser(t *testing.T) {
	rec := orgRecord(models.Organization{ID: "org-1", Plan: models.PlanSmall, Users: []string{"alice@x.com"}})
	res := evaluate(t, rec, "Alice@X.com")
	if !res.Allowed || res.Warning != nil {
		t.Fatalf("result = %+v", res)
	}
	if rec.WriteBackNewUser != UserWritebackNone {
		t.Errorf("listed user must not trigger a writeback, got %q", rec.WriteBackNewUser)
	}
}

func TestPermissionOrgDomainPromotion(t *testing.T) {
	rec := orgRecord(models.Organization{ID: "org-1", Plan: models.PlanSmall, Domains: []string{"x.com"}})
	res := evaluate(t, rec, "carol@x.com")
	if !res.Allowed {
		t.Fatalf("result = %+v", res)
	}
	if rec.WriteBackNewUser != UserWritebackAllow {
		t.Errorf("domain-granted user must be promoted to the allow list, got %q", rec.WriteBackNewUser)
	}
}

func TestPermissionOrgDeniedUser(t *testing.T) {
	rec := orgRecord(models.Organization{ID: "org-1", Plan: models.PlanSmall, DeniedUsers: []string{"bob@x.com"}})
	res := evaluate(t, rec, "bob@x.com")
	if res.Allowed || res.Code != ErrUserNotAuthorized {
		t.Fatalf("result = %+v", res)
	}
}

func TestPermissionOrgPendingDomain(t *testing.T) {
	rec := orgRecord(models.Organization{ID: "org-1", Plan: models.PlanSmall, PendingDomains: []string{"pending.com"}})
	res := evaluate(t, rec, "dave@pending.com")
	if !res.Allowed {
		t.Fatalf("result = %+v", res)
	}
	if rec.WriteBackNewUser != UserWritebackUnknown {
		t.Errorf("writeback = %q, want UNKNOWN", rec.WriteBackNewUser)
	}
	if !rec.LogUnknownUserAttempt {
		t.Error("pending-domain users must be logged")
	}
}

func TestPermissionOrgDenyUnknownDomains(t *testing.T) {
	rec := orgRecord(models.Organization{ID: "org-1", Plan: models.PlanSmall, DenyUnknownDomains: true})
	res := evaluate(t, rec, "eve@elsewhere.com")
	if res.Allowed || res.Code != ErrUserNotAuthorized {
		t.Fatalf("result = %+v", res)
	}
	if rec.WriteBackNewUser != UserWritebackDeny {
		t.Errorf("writeback = %q, want DENY", rec.WriteBackNewUser)
	}
}

func TestPermissionOrgUnknownUserFirstContact(t *testing.T) {
	rec := orgRecord(models.Organization{ID: "org-1", Plan: models.PlanSmall})
	res := evaluate(t, rec, "new@elsewhere.com")
	if !res.Allowed {
		t.Fatalf("result = %+v", res)
	}
	if res.Warning == nil || res.Warning.Code != WarningOrgGracePeriod {
		t.Fatalf("warning = %+v", res.Warning)
	}
	if res.Warning.TimeRemaining != testGrace.Milliseconds() {
		t.Errorf("TimeRemaining = %d, want full grace period", res.Warning.TimeRemaining)
	}
	if res.Warning.GitEmail != "new@elsewhere.com" {
		t.Errorf("GitEmail = %q", res.Warning.GitEmail)
	}
	if rec.WriteBackNewUser != UserWritebackUnknown || !rec.LogUnknownUserAttempt {
		t.Errorf("record = %+v", rec)
	}
}

func TestPermissionOrgUnknownUserInsideGrace(t *testing.T) {
	elapsed := 10 * 24 * time.Hour
	rec := orgRecord(models.Organization{
		ID:   "org-1",
		Plan: models.PlanSmall,
		UserFirstSeen: map[string]int64{
			"new@elsewhere.com": testNow.Add(-elapsed).UnixMilli(),
		},
	})
	res := evaluate(t, rec, "new@elsewhere.com")
	if !res.Allowed || res.Warning == nil {
		t.Fatalf("result = %+v", res)
	}
	want := (testGrace - elapsed).Milliseconds()
	if res.Warning.TimeRemaining != want {
		t.Errorf("TimeRemaining = %d, want %d", res.Warning.TimeRemaining, want)
	}
}

func TestPermissionOrgUnknownUserGraceExpired(t *testing.T) {
	rec := orgRecord(models.Organization{
		ID:   "org-1",
		Plan: models.PlanSmall,
		UserFirstSeen: map[string]int64{
			"old@elsewhere.com": testNow.Add(-testGrace).UnixMilli(),
		},
	})
	res := evaluate(t, rec, "old@elsewhere.com")
	if res.Allowed || res.Code != ErrOrgGraceExpired {
		t.Fatalf("result = %+v", res)
	}
	if !rec.LogUnknownUserAttempt {
		t.Error("expired unknown users are still logged")
	}
}

func TestPermissionOrgEmailRequired(t *testing.T) {
	rec := orgRecord(models.Organization{ID: "org-1", Plan: models.PlanSmall})
	res := evaluate(t, rec, "  ")
	if res.Allowed || res.Code != ErrGitEmailRequired {
		t.Fatalf("result = %+v", res)
	}
}

func TestPermissionOrphanGrace(t *testing.T) {
	app := &models.App{ID: "a", FreeUntil: testNow.Add(time.Hour).UnixMilli()}
	res := evaluate(t, &Record{App: app}, "")
	if !res.Allowed {
		t.Fatalf("result = %+v", res)
	}
	if res.Warning == nil || res.Warning.Code != WarningAppGracePeriod {
		t.Fatalf("warning = %+v", res.Warning)
	}
	if res.Warning.TimeRemaining != time.Hour.Milliseconds() {
		t.Errorf("TimeRemaining = %d", res.Warning.TimeRemaining)
	}
}

func TestPermissionOrphanExpired(t *testing.T) {
	app := &models.App{ID: "a", FreeUntil: testNow.UnixMilli()}
	res := evaluate(t, &Record{App: app}, "")
	if res.Allowed || res.Code != ErrGraceExpired {
		t.Fatalf("exactly at the deadline must deny: %+v", res)
	}
}

func TestPermissionIdempotentReinvocation(t *testing.T) {
	rec := orgRecord(models.Organization{ID: "org-1", Plan: models.PlanSmall, Domains: []string{"x.com"}})
	first := evaluate(t, rec, "carol@x.com")
	second := evaluate(t, rec, "carol@x.com")
	if first != second {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	if rec.WriteBackNewUser != UserWritebackAllow {
		t.Errorf("writeback = %q", rec.WriteBackNewUser)
	}
}
