package billing

import (
	"testing"

	"github.com/ninjahq/ninja-backend/internal/models"
)

func TestEvaluateClaimCandidatesNoPublisherMatch(t *testing.T) {
	orgs := []models.Organization{
		{ID: "org-1", Publishers: []string{"other"}},
	}
	out := EvaluateClaimCandidates("acme", "alice@x.com", orgs)
	if out.PublisherMatchFound {
		t.Error("no org owns the publisher, PublisherMatchFound must be false")
	}
	if len(out.Candidates) != 0 {
		t.Errorf("candidates = %v", out.Candidates)
	}
}

func TestEvaluateClaimCandidatesPublisherWithoutUser(t *testing.T) {
	orgs := []models.Organization{
		{ID: "org-1", Publishers: []string{"Acme"}, Users: []string{"bob@x.com"}},
	}
	out := EvaluateClaimCandidates(" acme ", "alice@y.com", orgs)
	if !out.PublisherMatchFound {
		t.Error("publisher is owned, PublisherMatchFound must be true")
	}
	if len(out.Candidates) != 0 {
		t.Errorf("user did not match, candidates = %v", out.Candidates)
	}
}

func TestEvaluateClaimCandidatesUserBeatsDomain(t *testing.T) {
	orgs := []models.Organization{
		{
			ID:         "org-1",
			Publishers: []string{"acme"},
			Users:      []string{"Alice@X.com"},
			Domains:    []string{"x.com"},
		},
	}
	out := EvaluateClaimCandidates("acme", "alice@x.com", orgs)
	if len(out.Candidates) != 1 {
		t.Fatalf("candidates = %v", out.Candidates)
	}
	if out.Candidates[0].MatchType != ClaimMatchUser {
		t.Errorf("match type = %s, want user", out.Candidates[0].MatchType)
	}
}

func TestEvaluateClaimCandidatesDomainMatch(t *testing.T) {
	orgs := []models.Organization{
		{ID: "org-1", Publishers: []string{"acme"}, Domains: []string{"X.COM"}},
	}
	out := EvaluateClaimCandidates("acme", "carol@x.com", orgs)
	if len(out.Candidates) != 1 || out.Candidates[0].MatchType != ClaimMatchDomain {
		t.Fatalf("candidates = %v", out.Candidates)
	}
}

func TestEvaluateClaimCandidatesMultipleOrgs(t *testing.T) {
	orgs := []models.Organization{
		{ID: "org-1", Publishers: []string{"acme"}, Users: []string{"alice@x.com"}},
		{ID: "org-2", Publishers: []string{"acme"}, Domains: []string{"x.com"}},
		{ID: "org-3", Publishers: []string{"unrelated"}},
	}
	out := EvaluateClaimCandidates("acme", "alice@x.com", orgs)
	if !out.PublisherMatchFound {
		t.Error("PublisherMatchFound must be true")
	}
	if len(out.Candidates) != 2 {
		t.Fatalf("candidates = %v", out.Candidates)
	}
}
