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

// Package bigipproxy caches the state of one BIG-IP partition.
package bigipproxy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/F5Networks/f5-cccl-go/pkg/resource"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"golang.org/x/sync/errgroup"
)

// Device is the REST handle the proxy reads through.
type Device interface {
	resource.Device
	List(ctx context.Context, uri, partition string, expand bool) ([]map[string]interface{}, error)
	Get(ctx context.Context, path string) (map[string]interface{}, error)
}

// CacheRefreshError means the partition state could not be read.
type CacheRefreshError struct {
	Msg string
	Err error
}

func (e *CacheRefreshError) Error() string {
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *CacheRefreshError) Unwrap() error { return e.Err }

type resourceMap map[string]*resource.Resource

// BigIPProxy holds the last read state of the managed partition. Resources
// are manageable when their name starts with the prefix and they are not
// owned by an iApp.
type BigIPProxy struct {
	device    Device
	partition string
	prefix    string

	mu                 sync.RWMutex
	virtuals           resourceMap
	allVirtuals        resourceMap
	virtualAddresses   resourceMap
	pools              resourceMap
	allPools           resourceMap
	policies           resourceMap
	iapps              resourceMap
	nodes              resourceMap
	irules             resourceMap
	internalDataGroups resourceMap
	monitors           map[string]resourceMap

	arps          resourceMap
	fdbTunnels    resourceMap
	allFDBTunnels resourceMap
	routes        resourceMap
}

func NewBigIPProxy(device Device, partition, prefix string) *BigIPProxy {
	return &BigIPProxy{
		device:    device,
		partition: partition,
		prefix:    prefix,
		monitors:  map[string]resourceMap{},
	}
}

func (p *BigIPProxy) Partition() string { return p.partition }

// Device returns the REST handle resources are deployed through.
func (p *BigIPProxy) Device() Device { return p.device }

func (p *BigIPProxy) manageable(obj map[string]interface{}) bool {
	name, _ := obj["name"].(string)
	_, inApp := obj["appService"]
	return strings.HasPrefix(name, p.prefix) && !inApp
}

// DefaultRouteDomain reads the partition's default route domain.
func (p *BigIPProxy) DefaultRouteDomain(ctx context.Context) (int, error) {
	obj, err := p.device.Get(ctx, "auth/partition/"+p.partition)
	if err != nil {
		return 0, err
	}
	rd, _ := obj["defaultRouteDomain"].(float64)
	return int(rd), nil
}

type listing struct {
	uri    string
	expand bool
	items  []map[string]interface{}
}

// fetch reads the collections in parallel.
func (p *BigIPProxy) fetch(ctx context.Context, partition string, lists ...*listing) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range lists {
		l := l
		g.Go(func() error {
			log.Debugf("[BigIP] Retrieving %s from BIG-IP /%s...", l.uri, p.partition)
			items, err := p.device.List(gctx, l.uri, partition, l.expand)
			if err != nil {
				return err
			}
			l.items = items
			return nil
		})
	}
	return g.Wait()
}

type builder func(obj map[string]interface{}) (*resource.Resource, error)

// build turns device objects into resources. An object the constructor
// refuses is kept as a bare resource so it can still be deleted.
func build(kind *resource.Kind, items []map[string]interface{}, keep func(map[string]interface{}) bool,
	newFn builder) resourceMap {
	out := resourceMap{}
	for _, obj := range items {
		if keep != nil && !keep(obj) {
			continue
		}
		name, _ := obj["name"].(string)
		partition, _ := obj["partition"].(string)
		r, err := newFn(obj)
		if err != nil {
			log.Errorf("[BigIP] Failed to create iControl REST resource %s, %s: error(%v)",
				name, kind, err)
			if r, err = resource.NewBareResource(kind, name, partition); err != nil {
				continue
			}
		}
		out[name] = r
	}
	return out
}

// RefreshLTM reloads the LTM state of the partition.
func (p *BigIPProxy) RefreshLTM(ctx context.Context) error {
	log.Debugf("[BigIP] Refreshing the BIG-IP ltm cached state...")
	start := time.Now()
	if err := p.refreshLTM(ctx); err != nil {
		log.Errorf("[BigIP] %v", err)
		return &CacheRefreshError{Msg: "BigIPProxy: failed to refresh internal BIG-IP ltm state", Err: err}
	}
	log.Debugf("[BigIP] BIG-IP ltm refresh took %.5f seconds.", time.Since(start).Seconds())
	return nil
}

func (p *BigIPProxy) refreshLTM(ctx context.Context) error {
	rd, err := p.DefaultRouteDomain(ctx)
	if err != nil {
		return err
	}

	var (
		virtuals  = &listing{uri: resource.KindVirtual.URI, expand: true}
		pools     = &listing{uri: resource.KindPool.URI, expand: true}
		policies  = &listing{uri: resource.KindPolicy.URI, expand: true}
		vaddrs    = &listing{uri: resource.KindVirtualAddress.URI}
		nodes     = &listing{uri: resource.KindNode.URI}
		irules    = &listing{uri: resource.KindIRule.URI}
		dataGroup = &listing{uri: resource.KindInternalDataGroup.URI}
		iapps     = &listing{uri: resource.KindApplicationService.URI}
		monitors  = map[string]*listing{}
	)
	lists := []*listing{virtuals, pools, policies, vaddrs, nodes, irules, dataGroup, iapps}
	for _, t := range resource.MonitorTypes {
		monitors[t] = &listing{uri: resource.MonitorKinds[t].URI}
		lists = append(lists, monitors[t])
	}
	if err := p.fetch(ctx, p.partition, lists...); err != nil {
		return err
	}

	var managedPolicies []map[string]interface{}
	for _, obj := range policies.items {
		if !p.manageable(obj) {
			continue
		}
		ok, err := p.policyStatusCheck(ctx, obj, virtuals.items)
		if err != nil {
			return err
		}
		if ok {
			managedPolicies = append(managedPolicies, obj)
		}
	}

	withRD := func(fn func(map[string]interface{}, int) (*resource.Resource, error)) builder {
		return func(obj map[string]interface{}) (*resource.Resource, error) { return fn(obj, rd) }
	}
	prefixed := func(obj map[string]interface{}) bool {
		name, _ := obj["name"].(string)
		return strings.HasPrefix(name, p.prefix)
	}

	state := struct {
		virtuals, allVirtuals, vaddrs, pools, allPools resourceMap
		irules, dataGroups, policies, iapps, nodes     resourceMap
		monitors                                       map[string]resourceMap
	}{
		virtuals:    build(resource.KindVirtual, virtuals.items, p.manageable, resource.VirtualFromDevice),
		allVirtuals: build(resource.KindVirtual, virtuals.items, nil, resource.VirtualFromDevice),
		vaddrs:      build(resource.KindVirtualAddress, vaddrs.items, p.manageable, resource.VirtualAddressFromDevice),
		pools:       build(resource.KindPool, pools.items, p.manageable, resource.PoolFromDevice),
		allPools:    build(resource.KindPool, pools.items, nil, resource.PoolFromDevice),
		irules:      build(resource.KindIRule, irules.items, p.manageable, resource.IRuleFromDevice),
		dataGroups: build(resource.KindInternalDataGroup, dataGroup.items, p.manageable,
			resource.InternalDataGroupFromDevice),
		policies: build(resource.KindPolicy, managedPolicies, nil, resource.PolicyFromDevice),
		iapps:    build(resource.KindApplicationService, iapps.items, prefixed, resource.AppServiceFromDevice),
		nodes:    build(resource.KindNode, nodes.items, nil, withRD(resource.NodeFromDevice)),
		monitors: map[string]resourceMap{},
	}
	for _, t := range resource.MonitorTypes {
		t := t
		state.monitors[t] = build(resource.MonitorKinds[t], monitors[t].items, p.manageable,
			func(obj map[string]interface{}) (*resource.Resource, error) {
				return resource.MonitorFromDevice(t, obj)
			})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.virtuals = state.virtuals
	p.allVirtuals = state.allVirtuals
	p.virtualAddresses = state.vaddrs
	p.pools = state.pools
	p.allPools = state.allPools
	p.irules = state.irules
	p.internalDataGroups = state.dataGroups
	p.policies = state.policies
	p.iapps = state.iapps
	p.nodes = state.nodes
	p.monitors = state.monitors
	return nil
}

// policyStatusCheck deletes a non-legacy policy, which cannot be modified,
// after detaching it from the virtual servers using it. It reports whether
// the policy is kept.
func (p *BigIPProxy) policyStatusCheck(ctx context.Context, policy map[string]interface{},
	virtuals []map[string]interface{}) (bool, error) {
	status, ok := policy["status"].(string)
	if !ok || status == "legacy" {
		return true, nil
	}
	name, _ := policy["name"].(string)
	partition, _ := policy["partition"].(string)

	for _, v := range virtuals {
		ref, _ := v["policiesReference"].(map[string]interface{})
		items, _ := ref["items"].([]interface{})
		kept := []interface{}{}
		detach := false
		for _, item := range items {
			pol, _ := item.(map[string]interface{})
			if pol["name"] == name {
				detach = true
				continue
			}
			kept = append(kept, map[string]interface{}{"name": pol["name"], "partition": pol["partition"]})
		}
		if !detach {
			continue
		}
		vname, _ := v["name"].(string)
		vpartition, _ := v["partition"].(string)
		if err := p.device.Update(ctx, resource.KindVirtual.URI, vpartition, vname,
			map[string]interface{}{"policies": kept}); err != nil {
			return false, err
		}
		ref["items"] = kept
	}

	log.Warningf("[BigIP] Deleting policy /%s/%s due to invalid status: %s", partition, name, status)
	if err := p.device.Delete(ctx, resource.KindPolicy.URI, partition, name); err != nil &&
		!resource.IsNotFound(err) {
		return false, err
	}
	return false, nil
}

// RefreshNet reloads the network state of the partition.
func (p *BigIPProxy) RefreshNet(ctx context.Context) error {
	log.Debugf("[BigIP] Refreshing the BIG-IP net cached state...")
	start := time.Now()
	if err := p.refreshNet(ctx); err != nil {
		log.Errorf("[BigIP] %v", err)
		return &CacheRefreshError{Msg: "BigIPProxy: failed to refresh internal BIG-IP net state", Err: err}
	}
	log.Debugf("[BigIP] BIG-IP net refresh took %.5f seconds.", time.Since(start).Seconds())
	return nil
}

func (p *BigIPProxy) refreshNet(ctx context.Context) error {
	rd, err := p.DefaultRouteDomain(ctx)
	if err != nil {
		return err
	}

	arps := &listing{uri: resource.KindArp.URI}
	routes := &listing{uri: resource.KindRoute.URI}
	if err := p.fetch(ctx, p.partition, arps, routes); err != nil {
		return err
	}
	// tunnels of every partition; user tunnels may live outside the managed one
	tunnels := &listing{uri: resource.KindFDBTunnel.URI}
	if err := p.fetch(ctx, "", tunnels); err != nil {
		return err
	}
	if err := p.fetchRecords(ctx, tunnels.items); err != nil {
		return err
	}

	newTunnel := func(obj map[string]interface{}) (*resource.Resource, error) {
		return resource.FDBTunnelFromDevice(obj, rd)
	}
	inPartition := func(obj map[string]interface{}) bool {
		return obj["partition"] == p.partition && p.manageable(obj)
	}
	all := resourceMap{}
	for _, r := range build(resource.KindFDBTunnel, tunnels.items, nil, newTunnel) {
		all[r.FullPath()] = r
	}

	arpMap := build(resource.KindArp, arps.items, p.manageable, resource.ArpFromDevice)
	routeMap := build(resource.KindRoute, routes.items, p.manageable, resource.RouteFromDevice)
	tunnelMap := build(resource.KindFDBTunnel, tunnels.items, inPartition, newTunnel)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.arps = arpMap
	p.routes = routeMap
	p.fdbTunnels = tunnelMap
	p.allFDBTunnels = all
	return nil
}

// fetchRecords fills in the records of each tunnel.
func (p *BigIPProxy) fetchRecords(ctx context.Context, tunnels []map[string]interface{}) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tunnels {
		t := t
		name, _ := t["name"].(string)
		partition, _ := t["partition"].(string)
		uri := fmt.Sprintf("%s/~%s~%s/records", resource.KindFDBTunnel.URI, partition, name)
		g.Go(func() error {
			items, err := p.device.List(gctx, uri, "", false)
			if err != nil {
				return err
			}
			records := make([]interface{}, 0, len(items))
			for _, rec := range items {
				records = append(records, map[string]interface{}{
					"name":     rec["name"],
					"endpoint": rec["endpoint"],
				})
			}
			t["records"] = records
			return nil
		})
	}
	return g.Wait()
}

func (p *BigIPProxy) snapshot(get func() resourceMap) map[string]*resource.Resource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := get()
	out := make(map[string]*resource.Resource, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetVirtuals returns the managed virtual servers, or every virtual server
// of the partition when all is set.
func (p *BigIPProxy) GetVirtuals(all bool) map[string]*resource.Resource {
	if all {
		return p.snapshot(func() resourceMap { return p.allVirtuals })
	}
	return p.snapshot(func() resourceMap { return p.virtuals })
}

// GetPools returns the managed pools, or every pool of the partition when
// all is set.
func (p *BigIPProxy) GetPools(all bool) map[string]*resource.Resource {
	if all {
		return p.snapshot(func() resourceMap { return p.allPools })
	}
	return p.snapshot(func() resourceMap { return p.pools })
}

// GetMonitors returns the managed monitors of one type.
func (p *BigIPProxy) GetMonitors(monitorType string) map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.monitors[monitorType] })
}

func (p *BigIPProxy) GetPolicies() map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.policies })
}

func (p *BigIPProxy) GetIApps() map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.iapps })
}

// GetNodes returns every node of the partition.
func (p *BigIPProxy) GetNodes() map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.nodes })
}

func (p *BigIPProxy) GetVirtualAddresses() map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.virtualAddresses })
}

func (p *BigIPProxy) GetIRules() map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.irules })
}

func (p *BigIPProxy) GetInternalDataGroups() map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.internalDataGroups })
}

func (p *BigIPProxy) GetArps() map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.arps })
}

func (p *BigIPProxy) GetRoutes() map[string]*resource.Resource {
	return p.snapshot(func() resourceMap { return p.routes })
}

// GetFDBTunnels returns the managed tunnels by name, or every tunnel on the
// device by full path when all is set.
func (p *BigIPProxy) GetFDBTunnels(all bool) map[string]*resource.Resource {
	if all {
		return p.snapshot(func() resourceMap { return p.allFDBTunnels })
	}
	return p.snapshot(func() resourceMap { return p.fdbTunnels })
}

// VirtualAddressReferences splits the managed virtual addresses into those
// a virtual server of the partition points at and the rest.
func (p *BigIPProxy) VirtualAddressReferences() (referenced, unreferenced map[string]*resource.Resource) {
	unreferenced = p.GetVirtualAddresses()
	referenced = map[string]*resource.Resource{}
	for _, v := range p.GetVirtuals(true) {
		_, addr, _, ok := resource.VirtualDestination(v)
		if !ok {
			continue
		}
		if va, found := unreferenced[addr]; found {
			referenced[addr] = va
			delete(unreferenced, addr)
		}
	}
	return referenced, unreferenced
}
