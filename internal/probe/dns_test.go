package probe

import (
	"context"
	"errors"
	"net"
	"testing"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

type fakeResolver struct {
	addrs  []net.IPAddr
	ipErr  error
	cname  string
	ns     []*net.NS
	called int
}

func (f *fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	f.called++
	return f.addrs, f.ipErr
}

func (f *fakeResolver) LookupCNAME(ctx context.Context, host string) (string, error) {
	if f.cname == "" {
		return "", errors.New("no cname")
	}
	return f.cname, nil
}

func (f *fakeResolver) LookupNS(ctx context.Context, name string) ([]*net.NS, error) {
	if len(f.ns) == 0 {
		return nil, errors.New("no ns")
	}
	return f.ns, nil
}

func TestDiagnoseDNS_Classes(t *testing.T) {
	notFound := &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}
	cases := []struct {
		name string
		r    *fakeResolver
		host string
		want string
	}{
		{"resolves", &fakeResolver{addrs: []net.IPAddr{{IP: net.ParseIP("192.0.2.1")}}}, "a.example", DNSResolves},
		{"nxdomain", &fakeResolver{ipErr: notFound}, "a.example", DNSNXDomain},
		{"zone without address", &fakeResolver{ipErr: notFound, ns: []*net.NS{{Host: "ns1.example."}}}, "a.example", DNSNoAddress},
		{"servfail", &fakeResolver{ipErr: &net.DNSError{Err: "server misbehaving", IsTemporary: true}}, "a.example", DNSServFail},
		{"opaque error", &fakeResolver{ipErr: errors.New("boom")}, "a.example", DNSServFail},
		{"invalid", &fakeResolver{}, "https://a.example", DNSInvalidName},
	}
	for _, c := range cases {
		got := DiagnoseDNS(context.Background(), c.r, c.host)
		if got.Class != c.want {
			t.Fatalf("%s: want %s got %+v", c.name, c.want, got)
		}
	}
}

func TestDiagnoseDNS_CNAMEAndNameservers(t *testing.T) {
	r := &fakeResolver{
		addrs: []net.IPAddr{{IP: net.ParseIP("192.0.2.1")}},
		cname: "edge.cdn.example.",
		ns:    []*net.NS{{Host: "ns1.example."}, {Host: "ns2.example."}},
	}
	got := DiagnoseDNS(context.Background(), r, "www.example")
	if got.CNAME != "edge.cdn.example" || len(got.Nameservers) != 2 || got.Nameservers[0] != "ns1.example" {
		t.Fatalf("unexpected status %+v", got)
	}
	if len(got.IPs) != 1 || got.IPs[0] != "192.0.2.1" {
		t.Fatalf("unexpected ips %v", got.IPs)
	}
}

type fixedChecker domain.CheckResult

func (f fixedChecker) Check(ctx context.Context, target string) domain.CheckResult {
	return domain.CheckResult(f)
}

func TestDNSDiagnoser_RefinesOnlyNameFailures(t *testing.T) {
	nx := &fakeResolver{ipErr: &net.DNSError{Err: "no such host", IsNotFound: true}}

	d := NewDNSDiagnoser(fixedChecker{Status: domain.StatusDown, Error: ReasonDNS}, zap.NewNop())
	d.Resolver = nx
	out := d.Check(context.Background(), "https://gone.example")
	if out.Error != "dns failure (NXDOMAIN)" {
		t.Fatalf("want refined reason, got %q", out.Error)
	}

	// a 503 says nothing about DNS
	r := &fakeResolver{}
	d = NewDNSDiagnoser(fixedChecker{Status: domain.StatusDown, Error: "HTTP 503"}, zap.NewNop())
	d.Resolver = r
	if out := d.Check(context.Background(), "https://a.example"); out.Error != "HTTP 503" || r.called != 0 {
		t.Fatalf("unexpected diagnosis for HTTP error: %+v (lookups=%d)", out, r.called)
	}

	// connection error on a name that resolves keeps its reason
	ok := &fakeResolver{addrs: []net.IPAddr{{IP: net.ParseIP("192.0.2.1")}}}
	d = NewDNSDiagnoser(fixedChecker{Status: domain.StatusDown, Error: ReasonConnection}, zap.NewNop())
	d.Resolver = ok
	if out := d.Check(context.Background(), "https://a.example"); out.Error != ReasonConnection {
		t.Fatalf("want original reason, got %q", out.Error)
	}

	// UP results skip diagnosis
	up := &fakeResolver{}
	d = NewDNSDiagnoser(fixedChecker{Status: domain.StatusUp}, zap.NewNop())
	d.Resolver = up
	if out := d.Check(context.Background(), "https://a.example"); !out.Up() || up.called != 0 {
		t.Fatalf("UP should pass through untouched")
	}
}
