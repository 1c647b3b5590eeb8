// Package policy implements the proxy target host allow-list.
package policy

import "net/url"

// Policy decides whether a target host may be fetched by the gateway.
// The zero value denies everything; use New to build one from configuration.
type Policy struct {
	allowAll bool
	hosts    map[string]struct{}
}

// New builds a Policy from an allow-all flag and a list of hostnames.
// An empty host list with allowAll unset resolves to allow-all; this
// fail-open default mirrors the configuration contract and is logged at
// startup so it is never an accident of empty-list handling.
func New(allowAll bool, hosts []string) *Policy {
	p := &Policy{
		allowAll: allowAll || len(hosts) == 0,
		hosts:    make(map[string]struct{}, len(hosts)),
	}
	for _, h := range hosts {
		if h != "" {
			p.hosts[h] = struct{}{}
		}
	}
	return p
}

// AllowAll reports whether the policy permits every host.
func (p *Policy) AllowAll() bool {
	return p.allowAll
}

// Allowed reports whether the target URL's host may be fetched. It fails
// closed for empty, relative or malformed input and is safe to call on
// untrusted strings. Hostname matching is literal: no wildcards, no suffix
// matching beyond what the URL parser itself normalizes.
func (p *Policy) Allowed(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok := p.hosts[u.Hostname()]
	return ok
}
