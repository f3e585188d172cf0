package billing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/ninjahq/ninja-backend/internal/models"
	"github.com/ninjahq/ninja-backend/internal/store"
)

// faultStore fails reads of selected paths and delegates everything else.
type faultStore struct {
	store.Store
	failPaths map[string]error
}

func (f *faultStore) Read(ctx context.Context, path string) ([]byte, int64, error) {
	if err := f.failPaths[path]; err != nil {
		return nil, 0, err
	}
	return f.Store.Read(ctx, path)
}

func TestPreprocessorSkipsUnbilledAndPrivate(t *testing.T) {
	mem := store.NewMemory()
	pre := &Preprocessor{Pipeline: newTestPipeline(t, mem), Store: mem}

	rec, err := pre.Run(context.Background(), EndpointFlags{}, RequestInfo{AppID: "tool"}, http.Header{})
	if rec != nil || err != nil {
		t.Fatalf("unbilled endpoint: rec=%v err=%v", rec, err)
	}

	pre.Private = true
	rec, err = pre.Run(context.Background(), EndpointFlags{Security: true}, RequestInfo{AppID: "tool"}, http.Header{})
	if rec != nil || err != nil {
		t.Fatalf("private backend: rec=%v err=%v", rec, err)
	}
}

func TestPreprocessorPolicyErrorKeepsRecord(t *testing.T) {
	mem := store.NewMemory()
	pre := &Preprocessor{Pipeline: newTestPipeline(t, mem), Store: mem}

	// Expired orphan: enforcement denies, but the record survives so the
	// terminal phase can still drain it.
	seedBlob(t, mem, store.PathApps, []models.App{
		{ID: "tool", FreeUntil: testNow.UnixMilli() - 1},
	})
	rec, err := pre.Run(context.Background(), EndpointFlags{Security: true, Moniker: "authorize"},
		RequestInfo{AppID: "tool", GitEmail: "alice@x.com"}, http.Header{})

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusForbidden || reqErr.Message != string(ErrGraceExpired) {
		t.Errorf("error = %+v", reqErr)
	}
	if rec == nil || rec.App == nil {
		t.Fatal("record must accompany a policy error")
	}
}

func TestPreprocessorInfrastructureFailureFailsOpen(t *testing.T) {
	mem := store.NewMemory()
	fs := &faultStore{Store: mem, failPaths: map[string]error{
		store.PathApps: errors.New("storage down"),
	}}
	pre := &Preprocessor{Pipeline: newTestPipeline(t, fs), Store: mem}

	rec, err := pre.Run(context.Background(), EndpointFlags{Security: true, Moniker: "authorize"},
		RequestInfo{AppID: "tool"}, http.Header{})
	if rec != nil || err != nil {
		t.Fatalf("infrastructure failure must clear billing: rec=%v err=%v", rec, err)
	}

	// The swallowed failure lands in the unhandled errors blob.
	entries := readBlob[[]models.UnhandledError](t, mem, store.PathUnhandledErrors)
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0].Moniker != "authorize" || entries[0].Error == "" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestPreprocessorAllowedRequest(t *testing.T) {
	mem := store.NewMemory()
	pre := &Preprocessor{Pipeline: newTestPipeline(t, mem), Store: mem}
	hdr := http.Header{}

	rec, err := pre.Run(context.Background(), EndpointFlags{Security: true, Moniker: "authorize"},
		RequestInfo{AppID: "fresh-tool", GitEmail: "alice@x.com"}, hdr)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Permission == nil || !rec.Permission.Allowed {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Permission.Warning == nil || rec.Permission.Warning.Code != WarningAppGracePeriod {
		t.Fatalf("warning = %+v", rec.Permission.Warning)
	}
	if !rec.WriteBackNewOrphan {
		t.Error("fresh app must be registered")
	}
}
