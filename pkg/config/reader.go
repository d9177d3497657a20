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

package config

import (
	"context"
	"net"
	"strings"

	"github.com/F5Networks/f5-cccl-go/pkg/resource"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
)

// UserAgentKey names the metadata entry identifying the controller.
const UserAgentKey = "user_agent"

// Resolver turns pool member host names into IP addresses.
type Resolver interface {
	LookupHost(ctx context.Context, host string) (string, error)
}

// LTMResources is the desired LTM state keyed by resource name.
type LTMResources struct {
	Virtuals           map[string]*resource.Resource
	VirtualAddresses   map[string]*resource.Resource
	Pools              map[string]*resource.Resource
	IRules             map[string]*resource.Resource
	Policies           map[string]*resource.Resource
	InternalDataGroups map[string]*resource.Resource
	IApps              map[string]*resource.Resource
	// keyed by monitor type, then name
	Monitors map[string]map[string]*resource.Resource
}

// NetResources is the desired network state keyed by resource name.
type NetResources struct {
	Arps           map[string]*resource.Resource
	FDBTunnels     map[string]*resource.Resource
	UserFDBTunnels map[string]*resource.Resource
	Routes         map[string]*resource.Resource
	CISIdentifier  string
}

// Reader builds the canonical resources of a validated declaration.
type Reader struct {
	partition string
	resolver  Resolver
}

// NewReader returns a reader for the managed partition. resolver may be nil,
// in which case pool members must be given by address.
func NewReader(partition string, resolver Resolver) *Reader {
	return &Reader{partition: partition, resolver: resolver}
}

func readError(kind, name string, err error) error {
	log.Errorf("[CCCL] Failed to create resource %s, %s from config: error(%v)", name, kind, err)
	return &ConfigurationReadError{Kind: kind, Name: name, Err: err}
}

func withUserAgent(md []resource.Metadata, userAgent string) []resource.Metadata {
	if userAgent == "" {
		return md
	}
	out := make([]resource.Metadata, 0, len(md)+1)
	for _, m := range md {
		if m.Name != UserAgentKey {
			out = append(out, m)
		}
	}
	return append(out, resource.Metadata{Name: UserAgentKey, Persist: "true", Value: userAgent})
}

// ReadLTMConfig reads the LTM declaration. Virtual servers, virtual
// addresses, pools and iRules are tagged with the user agent.
func (r *Reader) ReadLTMConfig(ctx context.Context, cfg *resource.LTMConfig,
	defaultRouteDomain int, userAgent string) (*LTMResources, error) {
	log.Debugf("[CCCL] Loading desired service configuration...")
	out := &LTMResources{
		Virtuals:           map[string]*resource.Resource{},
		VirtualAddresses:   map[string]*resource.Resource{},
		Pools:              map[string]*resource.Resource{},
		IRules:             map[string]*resource.Resource{},
		Policies:           map[string]*resource.Resource{},
		InternalDataGroups: map[string]*resource.Resource{},
		IApps:              map[string]*resource.Resource{},
		Monitors:           map[string]map[string]*resource.Resource{},
	}
	for _, t := range resource.MonitorTypes {
		out.Monitors[t] = map[string]*resource.Resource{}
	}

	for _, v := range cfg.Virtuals {
		v.Metadata = withUserAgent(v.Metadata, userAgent)
		res, err := resource.NewVirtual(v, r.partition)
		if err != nil {
			return nil, readError("VirtualServer", v.Name, err)
		}
		out.Virtuals[v.Name] = res
	}

	for _, va := range cfg.VirtualAddresses {
		va.Metadata = withUserAgent(va.Metadata, userAgent)
		res, err := resource.NewVirtualAddress(va, r.partition)
		if err != nil {
			return nil, readError("VirtualAddress", va.Name, err)
		}
		out.VirtualAddresses[va.Name] = res
	}

	for _, p := range cfg.Pools {
		p.Metadata = withUserAgent(p.Metadata, userAgent)
		members, err := r.resolveMembers(ctx, p.Members)
		if err != nil {
			return nil, readError("Pool", p.Name, err)
		}
		p.Members = members
		res, err := resource.NewPool(p, r.partition, defaultRouteDomain)
		if err != nil {
			return nil, readError("Pool", p.Name, err)
		}
		out.Pools[p.Name] = res
	}

	for _, ir := range cfg.IRules {
		ir.Metadata = withUserAgent(ir.Metadata, userAgent)
		res, err := resource.NewIRule(ir, r.partition)
		if err != nil {
			return nil, readError("IRule", ir.Name, err)
		}
		out.IRules[ir.Name] = res
	}

	for _, p := range cfg.Policies {
		res, err := resource.NewPolicy(p, r.partition)
		if err != nil {
			return nil, readError("Policy", p.Name, err)
		}
		out.Policies[p.Name] = res
	}

	for _, dg := range cfg.InternalDataGroups {
		res, err := resource.NewInternalDataGroup(dg, r.partition)
		if err != nil {
			return nil, readError("InternalDataGroup", dg.Name, err)
		}
		out.InternalDataGroups[dg.Name] = res
	}

	for _, m := range cfg.Monitors {
		res, err := resource.NewMonitor(m, r.partition)
		if err != nil {
			return nil, readError("Monitor", m.Name, err)
		}
		out.Monitors[strings.ToLower(m.Type)][m.Name] = res
	}

	for _, app := range cfg.IApps {
		res, err := resource.NewAppService(app, r.partition)
		if err != nil {
			return nil, readError("ApplicationService", app.Name, err)
		}
		out.IApps[app.Name] = res
	}
	return out, nil
}

// ReadNetConfig reads the network declaration. User FDB tunnels may name a
// tunnel of another partition by full path.
func (r *Reader) ReadNetConfig(cfg *resource.NetConfig, defaultRouteDomain int) (*NetResources, error) {
	out := &NetResources{
		Arps:           map[string]*resource.Resource{},
		FDBTunnels:     map[string]*resource.Resource{},
		UserFDBTunnels: map[string]*resource.Resource{},
		Routes:         map[string]*resource.Resource{},
		CISIdentifier:  cfg.CISIdentifier,
	}

	for _, a := range cfg.Arps {
		res, err := resource.NewArp(a, r.partition)
		if err != nil {
			return nil, readError("Arp", a.Name, err)
		}
		out.Arps[a.Name] = res
	}

	for _, t := range cfg.FDBTunnels {
		res, err := resource.NewFDBTunnel(t, r.partition, defaultRouteDomain)
		if err != nil {
			return nil, readError("FDBTunnel", t.Name, err)
		}
		out.FDBTunnels[t.Name] = res
	}

	for _, t := range cfg.UserFDBTunnels {
		partition := r.partition
		if p, name, ok := splitFullPath(t.Name); ok {
			partition = p
			t.Name = name
		}
		res, err := resource.NewFDBTunnel(t, partition, defaultRouteDomain)
		if err != nil {
			return nil, readError("FDBTunnel", t.Name, err)
		}
		out.UserFDBTunnels[res.FullPath()] = res
	}

	for _, rt := range cfg.Routes {
		res, err := resource.NewRoute(rt, r.partition)
		if err != nil {
			return nil, readError("Route", rt.Name, err)
		}
		out.Routes[rt.Name] = res
	}
	return out, nil
}

// resolveMembers replaces host names by the address they resolve to. A
// route domain suffix is kept.
func (r *Reader) resolveMembers(ctx context.Context, members []resource.Member) ([]resource.Member, error) {
	out := make([]resource.Member, 0, len(members))
	for _, m := range members {
		host, suffix := m.Address, ""
		if i := strings.LastIndex(host, "%"); i >= 0 {
			host, suffix = host[:i], host[i:]
		}
		if host != "" && net.ParseIP(host) == nil && r.resolver != nil {
			addr, err := r.resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			log.Debugf("[CCCL] Resolved pool member %s to %s", host, addr)
			m.Address = addr + suffix
		}
		out = append(out, m)
	}
	return out, nil
}

// splitFullPath splits /<partition>/<name>.
func splitFullPath(path string) (string, string, bool) {
	if !strings.HasPrefix(path, "/") {
		return "", "", false
	}
	parts := strings.SplitN(path[1:], "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
