package emailprovider

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// dnsLookup queries MX and TXT records against a rotating set of
// resolvers.
type dnsLookup struct {
	client    *dns.Client
	resolvers []string

	mu   sync.Mutex
	next int
}

// New builds the production resolver from Options. When no resolvers
// are configured the servers from /etc/resolv.conf are used.
func New(opts Options) (*Resolver, error) {
	timeout := 5 * time.Second
	if opts.QueryTimeout != "" {
		parsed, err := time.ParseDuration(opts.QueryTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse query timeout: %w", err)
		}
		timeout = parsed
	}

	resolvers := opts.Resolvers
	if len(resolvers) == 0 {
		sysConfig, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("load system resolvers: %w", err)
		}
		for _, server := range sysConfig.Servers {
			resolvers = append(resolvers, net.JoinHostPort(server, sysConfig.Port))
		}
	}
	if len(resolvers) == 0 {
		return nil, fmt.Errorf("no DNS resolvers available")
	}

	lookup := &dnsLookup{
		client:    &dns.Client{Timeout: timeout},
		resolvers: resolvers,
	}
	return NewWithLookup(lookup, opts.RatePerSecond), nil
}

func (l *dnsLookup) nextResolver() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	resolver := l.resolvers[l.next%len(l.resolvers)]
	l.next++
	return resolver
}

func (l *dnsLookup) query(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true

	reply, _, err := l.client.ExchangeContext(ctx, msg, l.nextResolver())
	if err != nil {
		return nil, err
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("query %s %s: rcode %s", domain, dns.TypeToString[qtype], dns.RcodeToString[reply.Rcode])
	}
	return reply, nil
}

func (l *dnsLookup) MX(ctx context.Context, domain string) ([]string, error) {
	reply, err := l.query(ctx, domain, dns.TypeMX)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, answer := range reply.Answer {
		if mx, ok := answer.(*dns.MX); ok {
			hosts = append(hosts, mx.Mx)
		}
	}
	return hosts, nil
}

func (l *dnsLookup) TXT(ctx context.Context, domain string) ([]string, error) {
	reply, err := l.query(ctx, domain, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var records []string
	for _, answer := range reply.Answer {
		if txt, ok := answer.(*dns.TXT); ok {
			// Long TXT values arrive split into 255-byte chunks.
			var joined string
			for _, part := range txt.Txt {
				joined += part
			}
			records = append(records, joined)
		}
	}
	return records, nil
}
