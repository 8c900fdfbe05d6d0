// Package surt builds Sort-friendly URI Reordering Transform keys for capture indexes
//
//	http://www.Example.com:80/a/b?z=1&a=2#frag -> com,example)/a/b?a=2&z=1
package surt

import (
	"net"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// Key returns the SURT form of raw
// Non-http(s) URIs (dns:, filedesc:, ...) and unparsable input are returned lowercased.
func Key(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return strings.ToLower(raw)
	}

	host, port := u.Hostname(), u.Port()
	host = canonicalHost(host)
	if port == defaultPorts[u.Scheme] {
		port = ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	if ip := net.ParseIP(host); ip != nil {
		b.WriteString(host)
	} else {
		labels := strings.Split(host, ".")
		for i := len(labels) - 1; i >= 0; i-- {
			b.WriteString(labels[i])
			if i > 0 {
				b.WriteByte(',')
			}
		}
	}
	if port != "" {
		b.WriteByte(':')
		b.WriteString(port)
	}
	b.WriteByte(')')

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.WriteString(strings.ToLower(path))
	if q := sortedQuery(u.RawQuery); q != "" {
		b.WriteByte('?')
		b.WriteString(strings.ToLower(q))
	}
	return b.String()
}

func canonicalHost(h string) string {
	h = strings.TrimSuffix(strings.ToLower(h), ".")
	if a, err := idna.Lookup.ToASCII(h); err == nil {
		h = a
	}
	return stripWWW(h)
}

// stripWWW drops a leading www, www1, www2 ... label when something remains after it
func stripWWW(h string) string {
	first, rest, ok := strings.Cut(h, ".")
	if !ok || !strings.Contains(rest, ".") || !strings.HasPrefix(first, "www") {
		return h
	}
	for _, r := range first[3:] {
		if r < '0' || r > '9' {
			return h
		}
	}
	return rest
}

func sortedQuery(q string) string {
	if q == "" {
		return ""
	}
	parts := strings.Split(q, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, "&")
}
