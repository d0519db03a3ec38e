// Package identity implements peer authentication: extracting the verified
// client identity from an mTLS handshake, binding it into the request
// context, and the ensure_host checks admin handlers use to authorize a
// caller against its presented certificate.
package identity

import (
	"context"
	"crypto/x509"
	"net"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

type contextKey int

const securityInfoKey contextKey = iota

// SecurityInfo is bound to every inbound request's context. Enabled is
// false only in no_auth mode (TLS globally disabled); in that mode every
// check in this package passes unconditionally.
type SecurityInfo struct {
	Enabled  bool
	DNSNames []string
	IPAddrs  []net.IP
}

// NoAuth returns the permissive SecurityInfo used when TLS is globally
// disabled. Callers must only construct this when the process was started
// with the no-TLS flag; with TLS enabled every request goes through
// FromPeerCertificate instead.
func NoAuth() SecurityInfo {
	return SecurityInfo{Enabled: false}
}

// FromPeerCertificate extracts SAN DNS names and IP addresses from the
// verified leaf certificate presented by a peer.
func FromPeerCertificate(cert *x509.Certificate) SecurityInfo {
	return SecurityInfo{
		Enabled:  true,
		DNSNames: append([]string(nil), cert.DNSNames...),
		IPAddrs:  append([]net.IP(nil), cert.IPAddresses...),
	}
}

// WithContext binds info into ctx.
func WithContext(ctx context.Context, info SecurityInfo) context.Context {
	return context.WithValue(ctx, securityInfoKey, info)
}

// FromContext retrieves the SecurityInfo bound to ctx, if any.
func FromContext(ctx context.Context) (SecurityInfo, bool) {
	info, ok := ctx.Value(securityInfoKey).(SecurityInfo)
	return info, ok
}

// BindCheck compares the transport peer IP against info.IPAddrs. A mismatch
// is a PermissionDenied error; no_auth mode (Enabled=false) always passes.
func BindCheck(info SecurityInfo, peerIP net.IP) error {
	if !info.Enabled {
		return nil
	}
	for _, ip := range info.IPAddrs {
		if ip.Equal(peerIP) {
			return nil
		}
	}
	return givcerrors.New(givcerrors.PermissionDenied, "peer IP does not match certificate SAN IP addresses").
		WithContext("bind_check")
}

// EnsureHost requires hostname to appear among info.DNSNames; no_auth mode
// always passes.
func EnsureHost(info SecurityInfo, hostname string) error {
	if !info.Enabled {
		return nil
	}
	for _, name := range info.DNSNames {
		if name == hostname {
			return nil
		}
	}
	return givcerrors.New(givcerrors.PermissionDenied, "peer certificate does not authorize host "+hostname).
		WithContext("ensure_host")
}
