// Package weburl implements the crawler's own permissive URL value.
//
// It is deliberately not built on net/url: the crawler wants a value that
// truncates at the first byte outside a fixed permissive character set,
// collapses trailing "/" and "#", and escapes ";" for safe use as a CSV
// field. net/url's parser rejects or reinterprets exactly the inputs this
// package is meant to tolerate.
package weburl

import (
	"errors"
	"hash/fnv"
	"strings"
)

// Errors returned by Parse.
var (
	ErrNoProtocol  = errors.New("weburl: missing \"://\"")
	ErrNotValidURL = errors.New("weburl: empty scheme")
)

// URL is an immutable, normalized absolute URL value.
type URL struct {
	raw string
}

// isPermissive reports whether b belongs to the crawler's permissive
// character set: [A-Za-z0-9./%?:=\-_&]
func isPermissive(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '.', '/', '%', '?', ':', '=', '-', '_', '&':
		return true
	}
	return false
}

// Parse normalizes s into a URL value.
//
// It fails with ErrNoProtocol if s lacks "://", and with ErrNotValidURL if
// the scheme preceding "://" is empty. Parsing first percent encodes ";" as
// "%3B" (so it survives and the result is safe to embed as a CSV field),
// then truncates at the first byte outside the permissive set and strips a
// trailing "/" or "#".
func Parse(s string) (URL, error) {
	if !strings.Contains(s, "://") {
		return URL{}, ErrNoProtocol
	}

	s = strings.ReplaceAll(s, ";", "%3B")

	for i := 0; i < len(s); i++ {
		if !isPermissive(s[i]) {
			s = s[:i]
			break
		}
	}

	s = strings.TrimRight(s, "/")
	s = strings.TrimRight(s, "#")

	scheme, _, ok := strings.Cut(s, "://")
	if !ok {
		return URL{}, ErrNotValidURL
	}
	if scheme == "" {
		return URL{}, ErrNotValidURL
	}

	return URL{raw: s}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// literal seed constants, never for untrusted input.
func MustParse(s string) URL {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the normalized URL string.
func (u URL) String() string { return u.raw }

// IsZero reports whether u is the zero value (never a valid parsed URL).
func (u URL) IsZero() bool { return u.raw == "" }

// Equal reports whether two URL values are identical strings.
func (u URL) Equal(o URL) bool { return u.raw == o.raw }

// Hash returns a stable 64-bit FNV-1a hash of the URL string, used by the
// frontier for cheap dedup.
func (u URL) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(u.raw))
	return h.Sum64()
}

// Scheme returns the portion of the URL before "://".
func (u URL) Scheme() string {
	scheme, _, _ := strings.Cut(u.raw, "://")
	return scheme
}

// Host returns the host portion of the URL (everything between "://" and
// the next "/").
func (u URL) Host() string {
	_, rest, ok := strings.Cut(u.raw, "://")
	if !ok {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	return host
}

// Root returns "scheme://host/".
func (u URL) Root() string {
	return u.Scheme() + "://" + u.Host() + "/"
}

// FileName returns the terminal path segment, used as a filename hint for
// content classification.
func (u URL) FileName() string {
	idx := strings.LastIndexByte(u.raw, '/')
	if idx < 0 {
		return u.raw
	}
	return u.raw[idx+1:]
}

var mediaExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true,
	"ico": true, "webp": true, "bmp": true, "tiff": true, "tif": true,
	"psd": true, "raw": true, "css": true, "js": true, "zip": true,
	"tar": true, "jar": true, "webm": true,
}

// IsMedia reports whether the URL's terminal extension names a media or
// static-asset type the crawler never wants to fetch as a page.
func (u URL) IsMedia() bool {
	name := u.raw
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return false
	}
	return mediaExtensions[strings.ToLower(name[idx+1:])]
}

// AllowedHosts gates crawl scope. An empty list allows every host.
type AllowedHosts []string

// Allows reports whether host is in scope for allowed.
func (allowed AllowedHosts) Allows(host string) bool {
	if len(allowed) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range allowed {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsAllowedHost reports whether the URL's host is within allowed.
func (u URL) IsAllowedHost(allowed AllowedHosts) bool {
	return allowed.Allows(u.Host())
}

// Blacklist is a set of URL prefixes the crawler must never fetch even when
// the host is otherwise in scope.
type Blacklist []string

// IsBlacklisted reports whether the URL starts with any blacklisted prefix.
func (u URL) IsBlacklisted(bl Blacklist) bool {
	for _, prefix := range bl {
		if strings.HasPrefix(u.raw, prefix) {
			return true
		}
	}
	return false
}

// IsCAS reports whether host matches the configured CAS host. A port after
// the host is ignored.
func (u URL) IsCAS(casHost string) bool {
	if casHost == "" {
		return false
	}
	host, _, _ := strings.Cut(u.Host(), "?")
	return host == casHost || strings.HasPrefix(host, casHost+":")
}
