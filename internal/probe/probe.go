package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Checker performs a single check for a given target URL. Implementations
// never return an error: every failure ends up as a DOWN result with a
// short reason.
type Checker interface {
	Check(ctx context.Context, target string) domain.CheckResult
}

// Short, human-readable failure reasons.
const (
	ReasonTimeout     = "timeout"
	ReasonRefused     = "connection refused"
	ReasonReset       = "connection reset"
	ReasonDNS         = "dns failure"
	ReasonTLS         = "tls error"
	ReasonConnection  = "connection error"
	ReasonBadRequest  = "invalid request"
	ReasonProbePanic  = "probe panic"
	ReasonUnreachable = "network unreachable"
)

// Classify maps a transport error to one of the Reason constants.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ReasonTimeout
		}
		return ReasonDNS
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReasonRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ReasonReset
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return ReasonUnreachable
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidCert x509.CertificateInvalidError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) ||
		errors.As(err, &invalidCert) || errors.As(err, &recordErr) {
		return ReasonTLS
	}

	// some resets only surface as text
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return ReasonRefused
	case strings.Contains(msg, "connection reset"):
		return ReasonReset
	case strings.Contains(msg, "tls:"), strings.Contains(msg, "x509:"):
		return ReasonTLS
	}
	return ReasonConnection
}
