package entity

import "strings"

// keySeparator joins the caller and resource parts of a LimitKey.
// The ASCII unit separator cannot appear in HTTP headers, IPs or URL paths,
// so distinct (caller, resource) pairs never produce the same redis key.
const keySeparator = "\x1f"

// LimitKey is a value object identifying a (caller, resource) pair being
// rate-limited. Identical pairs always produce identical keys.
type LimitKey struct {
	Caller   string // Who is making the request (API key, client IP, user ID)
	Resource string // What is being requested (endpoint, route, operation)
}

// NewLimitKey creates a LimitKey for a caller and resource pair
func NewLimitKey(caller, resource string) LimitKey {
	return LimitKey{Caller: caller, Resource: resource}
}

// String returns the string representation for use as redis key
func (k LimitKey) String() string {
	var b strings.Builder
	b.Grow(len("ratelimit:") + len(k.Caller) + len(keySeparator) + len(k.Resource))
	b.WriteString("ratelimit:")
	b.WriteString(k.Caller)
	b.WriteString(keySeparator)
	b.WriteString(k.Resource)
	return b.String()
}

// IsValid validates the value object
func (k LimitKey) IsValid() bool {
	return k.Caller != "" && k.Resource != ""
}
