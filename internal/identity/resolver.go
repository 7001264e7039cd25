package identity

import (
	"context"
	"log"
	"net/http"
	"strings"
)

// SessionCookieName is the cookie browser clients store their credential in.
const SessionCookieName = "sessionId"

// Resolver turns an incoming request into a user identity. The credential is
// taken from the Authorization header ("Bearer <credential>") first, then
// from the sessionId cookie. A request carrying no credential at all resolves
// to the anonymous user when that fallback is enabled, and to nobody
// otherwise.
type Resolver struct {
	verifier       Verifier
	allowAnonymous bool
	anonymousID    int64
}

func NewResolver(verifier Verifier, allowAnonymous bool, anonymousID int64) *Resolver {
	return &Resolver{
		verifier:       verifier,
		allowAnonymous: allowAnonymous,
		anonymousID:    anonymousID,
	}
}

// Resolve returns the user ID for the request, or nil when the request
// carries a credential that identifies nobody. Store failures are logged and
// treated as an unidentified session rather than propagated.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request) (*int64, error) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return res.verify(ctx, strings.TrimPrefix(auth, "Bearer ")), nil
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return res.verify(ctx, cookie.Value), nil
	}

	if res.allowAnonymous {
		id := res.anonymousID
		return &id, nil
	}
	return nil, nil
}

func (res *Resolver) verify(ctx context.Context, credential string) *int64 {
	id, err := res.verifier.Verify(ctx, credential)
	if err != nil {
		log.Printf("session verification failed: %v", err)
		return nil
	}
	return id
}
