package domain

import (
	"net/url"
	"strings"
)

// ResolveDeepLink maps an app deep link to an in-app route.
// Only the sobre scheme is recognised.
func ResolveDeepLink(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "sobre" {
		return "", false
	}
	// sobre://daily-reset parses with the path segment in Host.
	target := strings.Trim(u.Host+u.Path, "/")
	switch target {
	case "daily-reset":
		return CheckInRoute, true
	default:
		return "", false
	}
}
