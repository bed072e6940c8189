package session

import (
	"fmt"
	"net/url"

	"github.com/ocpp-gateway/gateway/internal/gwerrors"
)

// ParsedURL is the result of applying spec §4.4's URL parsing contract.
type ParsedURL struct {
	Scheme string // "ws" or "wss"
	Host   string
	Port   int
	Path   string
}

// ParseURL validates scheme ∈ {ws, wss}, fills in the default port (443 for
// wss, 80 for ws) and default path ("/"), and reports non-wss URLs via the
// insecure return value so the caller can log them as not recommended
// (spec §4.4: "Non-wss URLs are accepted but logged as not recommended").
func ParseURL(raw string) (p ParsedURL, insecure bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ParsedURL{}, false, gwerrors.Newf(gwerrors.KindConfigValidation, "invalid CSMS url %q: %v", raw, err).WithField("url")
	}
	switch u.Scheme {
	case "ws":
		insecure = true
	case "wss":
		insecure = false
	default:
		return ParsedURL{}, false, gwerrors.Newf(gwerrors.KindConfigValidation, "CSMS url scheme must be ws or wss, got %q", u.Scheme).WithField("url")
	}
	if u.Hostname() == "" {
		return ParsedURL{}, false, gwerrors.Newf(gwerrors.KindConfigValidation, "CSMS url %q has no host", raw).WithField("url")
	}

	port := u.Port()
	resolvedPort := 443
	if insecure {
		resolvedPort = 80
	}
	if port != "" {
		if _, err := fmt.Sscanf(port, "%d", &resolvedPort); err != nil {
			return ParsedURL{}, false, gwerrors.Newf(gwerrors.KindConfigValidation, "invalid port in CSMS url %q", raw).WithField("url")
		}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return ParsedURL{Scheme: u.Scheme, Host: u.Hostname(), Port: resolvedPort, Path: path}, insecure, nil
}

// String reconstructs a dial-ready URL (host:port included explicitly,
// since gorilla/websocket's Dialer wants a full URL string).
func (p ParsedURL) String() string {
	return fmt.Sprintf("%s://%s:%d%s", p.Scheme, p.Host, p.Port, p.Path)
}
