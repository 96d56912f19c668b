package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// DNS classes reported by DiagnoseDNS.
const (
	DNSResolves     = "RESOLVES"
	DNSNXDomain     = "NXDOMAIN"
	DNSNoAddress    = "NO_A_RECORD"
	DNSServFail     = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName  = "INVALID_NAME"
	defaultDNSLimit = 3 * time.Second
)

// Resolver is the subset of *net.Resolver used for diagnosis.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

type DNSStatus struct {
	Domain        string
	IPs           []string
	CNAME         string
	Nameservers   []string
	Class         string
	ResolverError string
}

// DiagnoseDNS looks up addresses, CNAME and NS records for host and sorts
// the outcome into one of the DNS classes.
func DiagnoseDNS(ctx context.Context, r Resolver, host string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(host)}
	if s.Domain == "" || strings.Contains(s.Domain, "://") {
		s.Class = DNSInvalidName
		return s
	}

	addrs, err := r.LookupIPAddr(ctx, s.Domain)
	switch {
	case err == nil && len(addrs) > 0:
		for _, a := range addrs {
			s.IPs = append(s.IPs, a.IP.String())
		}
		s.Class = DNSResolves
	case err != nil:
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = DNSNXDomain
			} else if de.IsTemporary || de.Timeout() {
				s.Class = DNSServFail
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}

	if ns, err := r.LookupNS(ctx, s.Domain); err == nil && len(ns) > 0 {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		// the zone exists, it just has no address for this name
		if s.Class == DNSNXDomain {
			s.Class = DNSNoAddress
		}
	}

	if s.Class == "" {
		switch {
		case len(s.Nameservers) > 0:
			s.Class = DNSNoAddress
		case s.ResolverError != "":
			s.Class = DNSServFail
		default:
			s.Class = DNSNXDomain
		}
	}
	return s
}

// DNSDiagnoser wraps a Checker. When Inner reports a DNS or connection
// failure it runs DiagnoseDNS and appends the class to the reason, e.g.
// "dns failure (NXDOMAIN)".
type DNSDiagnoser struct {
	Inner    Checker
	Resolver Resolver
	Timeout  time.Duration
	Logger   *zap.Logger
}

func NewDNSDiagnoser(inner Checker, logger *zap.Logger) *DNSDiagnoser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DNSDiagnoser{Inner: inner, Resolver: net.DefaultResolver, Timeout: defaultDNSLimit, Logger: logger}
}

func (d *DNSDiagnoser) Check(ctx context.Context, target string) domain.CheckResult {
	res := d.Inner.Check(ctx, target)
	if res.Up() || (res.Error != ReasonDNS && res.Error != ReasonConnection) {
		return res
	}

	limit := d.Timeout
	if limit <= 0 {
		limit = defaultDNSLimit
	}
	dctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	dns := DiagnoseDNS(dctx, d.Resolver, domain.HostOf(target))
	d.Logger.Info("dns_check",
		zap.String("domain", dns.Domain),
		zap.String("class", dns.Class),
		zap.Strings("ips", dns.IPs),
		zap.Strings("nameservers", dns.Nameservers),
		zap.String("cname", dns.CNAME),
		zap.String("resolver_error", dns.ResolverError),
	)
	if dns.Class != DNSResolves {
		res.Error = ReasonDNS + " (" + dns.Class + ")"
	}
	return res
}
