/*-
 * Copyright (c) 2016-2021, F5 Networks, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package resolver looks up pool member host names through a DNS server
// and caches the answers for their TTL.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/miekg/dns"
)

const defaultResolvConf = "/etc/resolv.conf"

type entry struct {
	address string
	expires time.Time
}

// Resolver answers A and AAAA queries, preferring IPv4.
type Resolver struct {
	server string
	client *dns.Client

	mu    sync.Mutex
	cache map[string]entry
	now   func() time.Time
}

// New returns a resolver querying server, given as host or host:port. An
// empty server selects the first nameserver of /etc/resolv.conf.
func New(server string, timeout time.Duration) (*Resolver, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile(defaultResolvConf)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %v", defaultResolvConf, err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameserver in %s", defaultResolvConf)
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &Resolver{
		server: server,
		client: &dns.Client{Timeout: timeout},
		cache:  map[string]entry{},
		now:    time.Now,
	}, nil
}

// LookupHost returns one address of host. Answers are served from the cache
// until their TTL runs out.
func (r *Resolver) LookupHost(ctx context.Context, host string) (string, error) {
	key := strings.ToLower(dns.Fqdn(host))

	r.mu.Lock()
	if e, ok := r.cache[key]; ok && r.now().Before(e.expires) {
		r.mu.Unlock()
		return e.address, nil
	}
	r.mu.Unlock()

	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addr, ttl, err := r.query(ctx, key, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		if addr == "" {
			continue
		}
		r.mu.Lock()
		r.cache[key] = entry{address: addr, expires: r.now().Add(ttl)}
		r.mu.Unlock()
		return addr, nil
	}
	if lastErr != nil {
		log.Warningf("[CCCL] Error while resolving host %s using DNS server %s: %v",
			host, r.server, lastErr)
		return "", lastErr
	}
	return "", fmt.Errorf("no results for host %s using DNS server %s", host, r.server)
}

func (r *Resolver) query(ctx context.Context, name string, qtype uint16) (string, time.Duration, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(name, qtype)
	res, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", 0, err
	}
	if res.Rcode != dns.RcodeSuccess {
		return "", 0, fmt.Errorf("%s lookup of %s: %s", dns.TypeToString[qtype], name,
			dns.RcodeToString[res.Rcode])
	}
	for _, rr := range res.Answer {
		ttl := time.Duration(rr.Header().Ttl) * time.Second
		switch a := rr.(type) {
		case *dns.A:
			return a.A.String(), ttl, nil
		case *dns.AAAA:
			return a.AAAA.String(), ttl, nil
		}
	}
	return "", 0, nil
}

// Flush drops every cached answer.
func (r *Resolver) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]entry{}
}
