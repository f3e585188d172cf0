package billing

import "github.com/ninjahq/ninja-backend/internal/models"

// ClaimMatchType says how a candidate organization matched the requesting
// user. A user-list match takes precedence over a domain match within one
// organization.
type ClaimMatchType string

const (
	ClaimMatchUser   ClaimMatchType = "user"
	ClaimMatchDomain ClaimMatchType = "domain"
)

// ClaimCandidate is one organization eligible to claim the orphan app.
type ClaimCandidate struct {
	Org       models.Organization
	MatchType ClaimMatchType
}

// ClaimOutcome is the result of candidate evaluation. PublisherMatchFound
// distinguishes "no org knows this publisher" (do nothing) from "orgs know
// the publisher but none matched the user" (claim issue).
type ClaimOutcome struct {
	PublisherMatchFound bool
	Candidates          []ClaimCandidate
}

// EvaluateClaimCandidates computes which organizations may claim an orphan
// app published under publisher, on behalf of the user with gitEmail. Pure.
func EvaluateClaimCandidates(publisher, gitEmail string, orgs []models.Organization) ClaimOutcome {
	outcome := ClaimOutcome{}
	for i := range orgs {
		org := orgs[i]
		if !org.HasPublisher(publisher) {
			continue
		}
		outcome.PublisherMatchFound = true

		switch {
		case org.HasUser(gitEmail):
			outcome.Candidates = append(outcome.Candidates, ClaimCandidate{Org: org, MatchType: ClaimMatchUser})
		case org.HasDomain(gitEmail):
			outcome.Candidates = append(outcome.Candidates, ClaimCandidate{Org: org, MatchType: ClaimMatchDomain})
		}
	}
	return outcome
}
