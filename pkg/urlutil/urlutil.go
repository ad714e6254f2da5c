package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Canonicalize applies a deterministic normalization to an endpoint URL.
//   - Scheme and host are lowercased
//   - Default ports are omitted (:80 for http, :443 for https)
//   - Trailing slashes are removed from the path, except for root "/"
//   - The fragment is removed; the query is kept because provider endpoints may carry one
//
// Canonicalize(Canonicalize(u)) == Canonicalize(u).
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = strings.ToLower(canonical.Scheme)
	canonical.Host = strings.ToLower(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	for len(canonical.Path) > 1 && strings.HasSuffix(canonical.Path, "/") {
		canonical.Path = strings.TrimSuffix(canonical.Path, "/")
	}
	canonical.RawPath = ""

	canonical.Fragment = ""
	canonical.RawFragment = ""

	return canonical
}

// ParseHTTPURL parses raw and accepts it only when it is an absolute http(s) URL
// with a host. The returned URL is canonicalized.
func ParseHTTPURL(raw string) (url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return url.URL{}, err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return url.URL{}, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return url.URL{}, fmt.Errorf("missing host in %q", raw)
	}
	return Canonicalize(*parsed), nil
}
