package bookmark

import (
	"net/url"
	"strings"
)

// RootDomain reduces a page address to the last two labels of its
// hostname, so every subdomain of a site shares one bookmark. Input that is
// not an absolute URL with a host is returned unchanged.
func RootDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}
