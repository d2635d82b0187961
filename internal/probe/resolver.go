package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver looks up the addresses of one family for a host. A host without
// records of that family yields (nil, nil); errors are reserved for lookups
// that could not complete.
type Resolver interface {
	LookupA(ctx context.Context, host string) ([]string, error)
	LookupAAAA(ctx context.Context, host string) ([]string, error)
}

// NewResolver builds the resolver backend named by kind.
func NewResolver(kind, server string, timeout time.Duration) (Resolver, error) {
	switch kind {
	case "", "native":
		return NewNativeResolver(), nil
	case "dns":
		return NewDNSClientResolver(server, timeout)
	case "process":
		return NewProcessResolver(), nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", kind)
	}
}

// ---- native ----

// NativeResolver uses the Go resolver (OS configuration).
type NativeResolver struct {
	R *net.Resolver
}

func NewNativeResolver() *NativeResolver {
	return &NativeResolver{R: &net.Resolver{}}
}

func (n *NativeResolver) LookupA(ctx context.Context, host string) ([]string, error) {
	return n.lookup(ctx, "ip4", host)
}

func (n *NativeResolver) LookupAAAA(ctx context.Context, host string) ([]string, error) {
	return n.lookup(ctx, "ip6", host)
}

func (n *NativeResolver) lookup(ctx context.Context, network, host string) ([]string, error) {
	ips, err := n.R.LookupIP(ctx, network, host)
	if err != nil {
		var de *net.DNSError
		if errors.As(err, &de) && de.IsNotFound {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out, nil
}

// ---- miekg/dns ----

// DNSClientResolver sends A/AAAA queries straight to one nameserver.
type DNSClientResolver struct {
	Server string
	UDP    *dns.Client
	TCP    *dns.Client
}

// NewDNSClientResolver queries server ("host" or "host:port"). An empty server
// means the first nameserver of /etc/resolv.conf.
func NewDNSClientResolver(server string, timeout time.Duration) (*DNSClientResolver, error) {
	if server == "" {
		cc, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("read resolv.conf: %w", err)
		}
		if len(cc.Servers) == 0 {
			return nil, errors.New("no nameservers in resolv.conf")
		}
		server = net.JoinHostPort(cc.Servers[0], cc.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(strings.Trim(server, "[]"), "53")
	}
	return &DNSClientResolver{
		Server: server,
		UDP:    &dns.Client{Net: "udp", Timeout: timeout},
		TCP:    &dns.Client{Net: "tcp", Timeout: timeout},
	}, nil
}

func (r *DNSClientResolver) LookupA(ctx context.Context, host string) ([]string, error) {
	return r.query(ctx, host, dns.TypeA)
}

func (r *DNSClientResolver) LookupAAAA(ctx context.Context, host string) ([]string, error) {
	return r.query(ctx, host, dns.TypeAAAA)
}

func (r *DNSClientResolver) query(ctx context.Context, host string, qtype uint16) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	in, _, err := r.UDP.ExchangeContext(ctx, m, r.Server)
	if err == nil && in.Truncated {
		in, _, err = r.TCP.ExchangeContext(ctx, m, r.Server)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", dns.TypeToString[qtype], host, err)
	}
	switch in.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
	default:
		return nil, fmt.Errorf("%s %s: %s", dns.TypeToString[qtype], host, dns.RcodeToString[in.Rcode])
	}
	return answers(in, qtype), nil
}

func answers(in *dns.Msg, qtype uint16) []string {
	var out []string
	for _, rr := range in.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				out = append(out, v.A.String())
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				out = append(out, v.AAAA.String())
			}
		}
	}
	return out
}

// ---- external process ----

// CommandRunner runs a program and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ProcessResolver delegates to `dig +short`. Each output line is kept only if
// it parses as an address of the requested family, so CNAME chains and
// comments are ignored without matching on human-readable text.
type ProcessResolver struct {
	Binary string
	Run    CommandRunner
}

func NewProcessResolver() *ProcessResolver {
	return &ProcessResolver{Binary: "dig", Run: execRunner}
}

func (p *ProcessResolver) LookupA(ctx context.Context, host string) ([]string, error) {
	return p.lookup(ctx, host, "A", false)
}

func (p *ProcessResolver) LookupAAAA(ctx context.Context, host string) ([]string, error) {
	return p.lookup(ctx, host, "AAAA", true)
}

func (p *ProcessResolver) lookup(ctx context.Context, host, qtype string, v6 bool) ([]string, error) {
	args := []string{"+short", "+tries=1"}
	if dl, ok := ctx.Deadline(); ok {
		secs := int(time.Until(dl).Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		args = append(args, fmt.Sprintf("+time=%d", secs))
	}
	args = append(args, "-t", qtype, host)

	out, err := p.Run(ctx, p.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.Binary, qtype, err)
	}

	var ips []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		ip := net.ParseIP(strings.TrimSpace(sc.Text()))
		if ip == nil {
			continue
		}
		if isV4 := ip.To4() != nil; isV4 == v6 {
			continue
		}
		ips = append(ips, ip.String())
	}
	return ips, nil
}
