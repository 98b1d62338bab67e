package domain

import (
	"context"
	"fmt"
	"strings"
)

const sessionURIPrefix = "story://sessions/"

// ResourceUpdateNotifier publishes a resources/updated notification for uri.
type ResourceUpdateNotifier func(ctx context.Context, uri string)

// NotifyResourceUpdates publishes each non-empty uri through notify.
func NotifyResourceUpdates(ctx context.Context, notify ResourceUpdateNotifier, uris ...string) {
	if notify == nil {
		return
	}
	for _, uri := range uris {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		notify(ctx, uri)
	}
}

// SessionResourceURI addresses a session's story state.
func SessionResourceURI(sessionID string) string {
	return sessionURIPrefix + sessionID
}

// DecisionResourceURI addresses a session's current decision.
func DecisionResourceURI(sessionID string) string {
	return sessionURIPrefix + sessionID + "/decision"
}

// parseSessionURI extracts the session id from story://sessions/{id} or,
// with suffix "/decision", from story://sessions/{id}/decision.
func parseSessionURI(uri, suffix string) (string, error) {
	if !strings.HasPrefix(uri, sessionURIPrefix) {
		return "", fmt.Errorf("invalid URI %q: expected %s{session_id}%s", uri, sessionURIPrefix, suffix)
	}
	rest := strings.TrimPrefix(uri, sessionURIPrefix)
	if suffix != "" {
		if !strings.HasSuffix(rest, suffix) {
			return "", fmt.Errorf("invalid URI %q: expected %s{session_id}%s", uri, sessionURIPrefix, suffix)
		}
		rest = strings.TrimSuffix(rest, suffix)
	}
	sessionID := strings.TrimSpace(rest)
	if sessionID == "" || strings.Contains(sessionID, "/") {
		return "", fmt.Errorf("invalid URI %q: session id is required", uri)
	}
	return sessionID, nil
}
