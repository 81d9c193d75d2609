// hostname.go: Canonical host identity resolution for Aegis
//
// Resolves a hostname to its canonical long form and derived short form.
// Canonical-name resolution is requested explicitly: generic hostname
// canonicalization and "the canonical name" are not the same thing, and
// only the latter is acceptable for audit records.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package aegis

import (
	"context"
	"net"
	"os"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// HostName is a long/short hostname pair. The short form is either an
// independently owned truncation of the long form at the first '.', or an
// alias of the long form when no domain part exists. The alias relation is
// kept explicit so the pair can never disagree.
type HostName struct {
	long    string
	short   string
	aliased bool
}

// NewHostName builds a HostName from a long-form name, deriving the short
// form. A name without a domain part yields an aliased pair.
func NewHostName(long string) HostName {
	if dot := strings.IndexByte(long, '.'); dot != -1 {
		return HostName{long: long, short: long[:dot]}
	}
	return HostName{long: long, short: long, aliased: true}
}

// Long returns the fully qualified form.
func (h HostName) Long() string { return h.long }

// Short returns the form truncated at the first domain separator. For an
// aliased pair this is identical to Long.
func (h HostName) Short() string {
	if h.aliased {
		return h.long
	}
	return h.short
}

// Aliased reports whether the short form aliases the long form.
func (h HostName) Aliased() bool { return h.aliased }

// IsZero reports whether the pair is unset.
func (h HostName) IsZero() bool { return h.long == "" }

// DefaultHostName returns the startup host identity: the system hostname,
// or the literal "localhost" when none is resolvable. Both forms are
// derived from the same name.
func DefaultHostName() HostName {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "localhost"
	}
	return NewHostName(name)
}

// HostResolver looks up the canonical name of a host. Implementations may
// block on network I/O; no timeout is imposed at this layer.
type HostResolver interface {
	// LookupCanonical returns the canonical (fully qualified) name for
	// host. On failure the returned error is translatable to text via
	// its Error method and no name is returned.
	LookupCanonical(ctx context.Context, host string) (string, error)
}

// CanonicalResolver resolves canonical names through the system resolver.
type CanonicalResolver struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewCanonicalResolver creates a resolver backed by net.DefaultResolver.
// A zero timeout means lookups block until the system resolver gives up.
func NewCanonicalResolver(timeout time.Duration) *CanonicalResolver {
	return &CanonicalResolver{resolver: net.DefaultResolver, timeout: timeout}
}

// LookupCanonical implements HostResolver. The CNAME chain is followed to
// its end; a host with no CNAME record canonicalizes to its own FQDN.
func (r *CanonicalResolver) LookupCanonical(ctx context.Context, host string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cname, err := r.resolver.LookupCNAME(ctx, host)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(cname, "."), nil
}

// resolveHost looks up the canonical long form of host and derives the
// short form. On failure nothing is returned and the caller's identities
// are untouched.
func resolveHost(ctx context.Context, r HostResolver, host string) (HostName, error) {
	long, err := r.LookupCanonical(ctx, host)
	if err != nil {
		return HostName{}, errors.Wrap(err, ErrCodeResolveFailed, "canonical name lookup failed").
			WithContext("host", host)
	}
	return NewHostName(long), nil
}
