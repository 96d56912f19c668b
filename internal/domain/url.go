package domain

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL validates raw as an absolute http(s) URL and returns its
// canonical form: lower-case scheme and host, default port dropped, and a
// lone "/" path removed.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewValidationError("url", "must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewValidationError("url", "not a well-formed URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", NewValidationError("url", "scheme must be http or https")
	}
	if u.Hostname() == "" {
		return "", NewValidationError("url", "host is required")
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		// IPv6 literal
		host = "[" + host + "]"
	}
	u.Scheme = scheme
	u.Host = host
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}
	u.Fragment = ""
	return u.String(), nil
}

// HostOf returns the host part of a URL, or raw itself when it has none.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
