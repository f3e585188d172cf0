package api

import (
	"net/http"
	"strings"

	"github.com/ninjahq/ninja-backend/internal/billing"
)

// Inbound identity headers set by the tooling client. The claims are
// authenticated upstream; the billing core consumes them as-is.
const (
	HeaderAppID        = "Ninja-App-Id"
	HeaderAppPublisher = "Ninja-App-Publisher"
	HeaderGitName      = "Ninja-Git-Name"
	HeaderGitEmail     = "Ninja-Git-Email"
	HeaderAuthKey      = "Ninja-Auth-Key"
	HeaderVersion      = "Ninja-Version"
	HeaderProfileID    = "Ninja-Profile-Id"
)

// RequestInfoFrom extracts the billing identity claims from the request
// headers.
func RequestInfoFrom(r *http.Request) billing.RequestInfo {
	return billing.RequestInfo{
		AppID:     strings.TrimSpace(r.Header.Get(HeaderAppID)),
		Publisher: strings.TrimSpace(r.Header.Get(HeaderAppPublisher)),
		GitName:   strings.TrimSpace(r.Header.Get(HeaderGitName)),
		GitEmail:  strings.TrimSpace(r.Header.Get(HeaderGitEmail)),
		AuthKey:   strings.TrimSpace(r.Header.Get(HeaderAuthKey)),
		Version:   strings.TrimSpace(r.Header.Get(HeaderVersion)),
		ProfileID: strings.TrimSpace(r.Header.Get(HeaderProfileID)),
	}
}
