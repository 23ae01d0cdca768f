package selfcheck

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"
)

// HostResolver maps a host name to one IPv4 address.
type HostResolver interface {
	LookupA(ctx context.Context, host string) (string, error)
}

// DNSResolver queries a single DNS server for A records. Concurrent
// queries for the same host share one exchange.
type DNSResolver struct {
	server  string
	timeout time.Duration
	client  *dns.Client
	group   singleflight.Group
}

const defaultDNSTimeout = 5 * time.Second

func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	return &DNSResolver{
		server:  server,
		timeout: timeout,
		client:  &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupA returns the first A record for host. IP literals are returned
// unchanged. The shared exchange is bounded by the resolver timeout only,
// so a caller giving up does not fail the others waiting on it.
func (r *DNSResolver) LookupA(ctx context.Context, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	ch := r.group.DoChan(host, func() (interface{}, error) {
		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.exchange(exCtx, host)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *DNSResolver) exchange(ctx context.Context, host string) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return "", fmt.Errorf("dns query for %s failed: %w", host, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("dns query for %s: %s", host, dns.RcodeToString[in.Rcode])
	}

	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("no A record for %s", host)
}
