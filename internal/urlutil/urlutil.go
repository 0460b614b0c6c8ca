// Package urlutil canonicalizes and classifies URLs so the rest of the
// pipeline can compare them as plain strings. All functions are pure.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize canonicalizes a raw URL: scheme defaulted to https when absent,
// host lower-cased with a leading "www." and default ports stripped, query,
// fragment, and credentials dropped, and the path reduced so "" and a
// trailing slash collapse to the same form. Only http and https are
// accepted. Normalize is idempotent.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("normalize: empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("normalize %q: unsupported scheme %q", raw, u.Scheme)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	switch scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	if host == "" {
		return "", fmt.Errorf("normalize %q: missing host", raw)
	}

	path := u.EscapedPath()
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}

	return scheme + "://" + host + path, nil
}

// Domain extracts the lower-cased host of a URL without a leading "www.".
// It returns "" when the URL cannot be parsed; it never fails.
func Domain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsInternal reports whether a URL belongs to the site identified by
// baseDomain. Relative URLs are internal; absolute ones match when their
// domain equals baseDomain or is a subdomain of it.
func IsInternal(raw, baseDomain string) bool {
	if raw == "" || baseDomain == "" {
		return false
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return true
	}
	domain := Domain(raw)
	return domain == baseDomain || strings.HasSuffix(domain, "."+baseDomain)
}
