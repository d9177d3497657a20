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

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/F5Networks/f5-cccl-go/pkg/bigipproxy"
	"github.com/F5Networks/f5-cccl-go/pkg/config"
	bigIPPrometheus "github.com/F5Networks/f5-cccl-go/pkg/prometheus"
	"github.com/F5Networks/f5-cccl-go/pkg/resource"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"k8s.io/apimachinery/pkg/util/sets"
)

type resources = map[string]*resource.Resource

// ResourceTasks are the operations needed to move one category of
// resources from the existing to the desired state.
type ResourceTasks struct {
	Create []*resource.Resource
	Update []*resource.Resource
	Delete []*resource.Resource
	// Whitelisted resources of the category, keyed like the input
	Unmanaged resources
}

// GetResourceTasks compares existing and desired resources of one category.
// Whitelisted resources are never deleted; the desired state is merged
// into them and they are updated when the merge changed them.
func GetResourceTasks(existing, desired resources) ResourceTasks {
	var tasks ResourceTasks
	tasks.Unmanaged = resources{}
	managed := resources{}
	for name, r := range existing {
		if r.Whitelisted() {
			tasks.Unmanaged[name] = r
		} else {
			managed[name] = r
		}
	}

	for _, name := range resource.SortedNames(desired) {
		want := desired[name]
		have, found := existing[name]
		if !found {
			tasks.Create = append(tasks.Create, want)
			continue
		}
		if _, ok := managed[name]; ok {
			if !want.Equal(have) || have.HasStaleWhitelistUpdates() {
				tasks.Update = append(tasks.Update, want)
			}
		}
	}

	for _, name := range resource.SortedNames(tasks.Unmanaged) {
		have := tasks.Unmanaged[name]
		var data map[string]interface{}
		if want, ok := desired[name]; ok {
			data = want.Data()
		}
		changed, err := have.Merge(data)
		if err != nil {
			log.Warningf("[CCCL] Failed to merge into whitelisted resource %s: %v",
				have.FullPath(), err)
			continue
		}
		if changed {
			tasks.Update = append(tasks.Update, have)
		}
	}

	for _, name := range resource.SortedNames(managed) {
		if _, ok := desired[name]; !ok {
			tasks.Delete = append(tasks.Delete, managed[name])
		}
	}
	return tasks
}

// ServiceConfigDeployer applies desired resources to the partition cached
// by a proxy.
type ServiceConfigDeployer struct {
	proxy *bigipproxy.BigIPProxy
}

func NewServiceConfigDeployer(proxy *bigipproxy.BigIPProxy) *ServiceConfigDeployer {
	return &ServiceConfigDeployer{proxy: proxy}
}

func taskResult(op, result string) {
	bigIPPrometheus.TaskResults.WithLabelValues(op, result).Inc()
}

// createResources returns the tasks that have to be retried.
func (d *ServiceConfigDeployer) createResources(ctx context.Context,
	create []*resource.Resource) []*resource.Resource {
	var retry []*resource.Resource
	log.Debug("[CCCL] Creating resources...")
	for _, r := range create {
		start := time.Now()
		err := r.Create(ctx, d.proxy.Device())
		switch {
		case err == nil:
			taskResult("create", "success")
		case resource.IsConflict(err):
			log.Warningf("[CCCL] Resource %s already exists, skipping task...", r.FullPath())
			taskResult("create", "skipped")
		default:
			retry = append(retry, r)
			taskResult("create", "retry")
		}
		log.Debugf("[CCCL] Create task for %s took %v", r.FullPath(), time.Since(start))
	}
	return retry
}

func (d *ServiceConfigDeployer) updateResources(ctx context.Context,
	update []*resource.Resource) []*resource.Resource {
	var retry []*resource.Resource
	log.Debug("[CCCL] Updating resources...")
	for _, r := range update {
		start := time.Now()
		err := r.Update(ctx, d.proxy.Device())
		switch {
		case err == nil:
			taskResult("update", "success")
		case resource.IsNotFound(err):
			log.Warningf("[CCCL] Resource %s does not exist, skipping task...", r.FullPath())
			taskResult("update", "skipped")
		default:
			retry = append(retry, r)
			taskResult("update", "retry")
		}
		log.Debugf("[CCCL] Update task for %s took %v", r.FullPath(), time.Since(start))
	}
	return retry
}

func (d *ServiceConfigDeployer) deleteResources(ctx context.Context,
	del []*resource.Resource) []*resource.Resource {
	var retry []*resource.Resource
	log.Debug("[CCCL] Deleting resources...")
	for _, r := range del {
		start := time.Now()
		err := r.Delete(ctx, d.proxy.Device())
		switch {
		case err == nil:
			taskResult("delete", "success")
		case resource.IsNotFound(err):
			log.Warningf("[CCCL] Resource %s does not exist, skipping task...", r.FullPath())
			taskResult("delete", "skipped")
		default:
			retry = append(retry, r)
			taskResult("delete", "retry")
		}
		log.Debugf("[CCCL] Delete task for %s took %v", r.FullPath(), time.Since(start))
	}
	return retry
}

// runTasks executes creates, updates and deletes in that order and retries
// the failed ones as long as each round resolves something. It returns the
// number of unresolved tasks.
func (d *ServiceConfigDeployer) runTasks(ctx context.Context,
	create, update, del []*resource.Resource) int {
	total := len(create) + len(update) + len(del)
	for {
		create = d.createResources(ctx, create)
		update = d.updateResources(ctx, update)
		del = d.deleteResources(ctx, del)

		remaining := len(create) + len(update) + len(del)
		if remaining >= total || remaining == 0 {
			return remaining
		}
		total = remaining
	}
}

func fullPaths(rs []*resource.Resource) sets.String {
	paths := sets.NewString()
	for _, r := range rs {
		paths.Insert(r.FullPath())
	}
	return paths
}

func prune(del []*resource.Resource, keep sets.String) []*resource.Resource {
	var out []*resource.Resource
	for _, r := range del {
		if keep.Has(r.FullPath()) {
			log.Debugf("[CCCL] Pruning %s resource %s from delete list", r.Kind(), r.FullPath())
			continue
		}
		out = append(out, r)
	}
	return out
}

func stringList(v interface{}) []string {
	var out []string
	list, _ := v.([]interface{})
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ignoreUnmanagedReferences keeps the resources that whitelisted virtual
// servers and pools still reference off the delete lists.
func ignoreUnmanagedReferences(unmanagedVirtuals, unmanagedPools resources,
	deletePolicies, deleteIRules, deletePools, deleteMonitors,
	deleteDataGroups *[]*resource.Resource) {
	ignoreIRules := sets.NewString()
	ignorePolicies := sets.NewString()
	for _, v := range unmanagedVirtuals {
		ignoreIRules.Insert(stringList(v.Get("rules"))...)
		policies, _ := v.Get("policies").([]interface{})
		for _, p := range policies {
			pm, _ := p.(map[string]interface{})
			ignorePolicies.Insert(fmt.Sprintf("/%v/%v", pm["partition"], pm["name"]))
		}
	}

	ignorePools := sets.NewString()
	for _, p := range *deletePolicies {
		if ignorePolicies.Has(p.FullPath()) {
			ignorePools.Insert(resource.PolicyActionPools(p)...)
		}
	}

	ignoreDataGroups := sets.NewString()
	for _, rule := range *deleteIRules {
		if !ignoreIRules.Has(rule.FullPath()) {
			continue
		}
		code := resource.IRuleCode(rule)
		for _, dg := range *deleteDataGroups {
			if strings.Contains(code, dg.Name()) {
				ignoreDataGroups.Insert(dg.FullPath())
			}
		}
	}

	ignoreMonitors := sets.NewString()
	for _, p := range unmanagedPools {
		ignoreMonitors.Insert(resource.PoolMonitors(p)...)
	}
	for _, p := range *deletePools {
		if ignorePools.Has(p.FullPath()) {
			ignoreMonitors.Insert(resource.PoolMonitors(p)...)
		}
	}

	*deletePolicies = prune(*deletePolicies, ignorePolicies)
	*deleteIRules = prune(*deleteIRules, ignoreIRules)
	*deletePools = prune(*deletePools, ignorePools)
	*deleteMonitors = prune(*deleteMonitors, ignoreMonitors)
	*deleteDataGroups = prune(*deleteDataGroups, ignoreDataGroups)
}

func logTasks(category string, t ResourceTasks) {
	log.Debugf("[CCCL] %s: %d to create, %d to update, %d to delete",
		category, len(t.Create), len(t.Update), len(t.Delete))
}

// DeployLTM reconciles the LTM resources of the partition and returns the
// number of tasks that could not be completed.
func (d *ServiceConfigDeployer) DeployLTM(ctx context.Context,
	desired *config.LTMResources, defaultRouteDomain int) (int, error) {
	if err := d.proxy.RefreshLTM(ctx); err != nil {
		return 0, err
	}

	log.Debug("[CCCL] Getting virtual address tasks...")
	vaddrs := GetResourceTasks(d.proxy.GetVirtualAddresses(), desired.VirtualAddresses)
	logTasks("Virtual addresses", vaddrs)

	log.Debug("[CCCL] Getting virtual server tasks...")
	virtuals := GetResourceTasks(d.proxy.GetVirtuals(false), desired.Virtuals)
	logTasks("Virtual servers", virtuals)

	log.Debug("[CCCL] Getting pool tasks...")
	pools := GetResourceTasks(d.proxy.GetPools(false), desired.Pools)
	logTasks("Pools", pools)

	log.Debug("[CCCL] Getting iRule tasks...")
	irules := GetResourceTasks(d.proxy.GetIRules(), desired.IRules)
	logTasks("iRules", irules)

	log.Debug("[CCCL] Getting internal data group tasks...")
	dataGroups := GetResourceTasks(d.proxy.GetInternalDataGroups(), desired.InternalDataGroups)
	logTasks("Internal data groups", dataGroups)

	log.Debug("[CCCL] Getting policy tasks...")
	policies := GetResourceTasks(d.proxy.GetPolicies(), desired.Policies)
	logTasks("Policies", policies)

	log.Debug("[CCCL] Getting iApp tasks...")
	iapps := GetResourceTasks(d.proxy.GetIApps(), desired.IApps)
	logTasks("iApps", iapps)

	log.Debug("[CCCL] Getting monitor tasks...")
	var monitors ResourceTasks
	for _, t := range resource.MonitorTypes {
		mt := GetResourceTasks(d.proxy.GetMonitors(t), desired.Monitors[t])
		monitors.Create = append(monitors.Create, mt.Create...)
		monitors.Update = append(monitors.Update, mt.Update...)
		monitors.Delete = append(monitors.Delete, mt.Delete...)
	}
	logTasks("Monitors", monitors)

	ignoreUnmanagedReferences(virtuals.Unmanaged, pools.Unmanaged,
		&policies.Delete, &irules.Delete, &pools.Delete, &monitors.Delete, &dataGroups.Delete)

	var create, update, del []*resource.Resource
	for _, t := range []ResourceTasks{vaddrs, monitors, pools, dataGroups, irules, policies, virtuals, iapps} {
		create = append(create, t.Create...)
		update = append(update, t.Update...)
	}
	for _, t := range []ResourceTasks{iapps, virtuals, policies, irules, dataGroups, pools, monitors} {
		del = append(del, t.Delete...)
	}

	remaining := d.runTasks(ctx, create, update, del)

	// Nodes and virtual addresses depend on what the tasks above left
	// behind.
	post, err := d.postDeploy(ctx, desired.VirtualAddresses, defaultRouteDomain)
	if err != nil {
		return remaining, err
	}
	return remaining + post, nil
}

// desiredNodes are the existing nodes some pool member of the partition
// still uses.
func (d *ServiceConfigDeployer) desiredNodes(existing resources, defaultRouteDomain int) resources {
	inUse := sets.NewString()
	for _, p := range d.proxy.GetPools(true) {
		for _, m := range resource.PoolMembers(p) {
			inUse.Insert(resource.EncodedNormalizeAddressWithRouteDomain(
				resource.MemberAddress(m.Name()), defaultRouteDomain, true, false))
		}
	}
	desired := resources{}
	for name, node := range existing {
		if !inUse.Has(resource.NodeAddress(node, defaultRouteDomain)) {
			continue
		}
		want, err := resource.NewDesiredNode(node, defaultRouteDomain)
		if err != nil {
			log.Warningf("[CCCL] Failed to build node %s: %v", node.FullPath(), err)
			continue
		}
		desired[name] = want
	}
	return desired
}

// postDeploy cleans up nodes no pool member uses and virtual addresses no
// virtual server points at.
func (d *ServiceConfigDeployer) postDeploy(ctx context.Context,
	desiredVirtualAddresses resources, defaultRouteDomain int) (int, error) {
	log.Debug("[CCCL] Perform post-deploy service tasks...")
	if err := d.proxy.RefreshLTM(ctx); err != nil {
		return 0, err
	}

	existingNodes := d.proxy.GetNodes()
	nodes := GetResourceTasks(existingNodes, d.desiredNodes(existingNodes, defaultRouteDomain))
	logTasks("Nodes", nodes)

	referenced, unreferenced := d.proxy.VirtualAddressReferences()
	unreferencedTasks := GetResourceTasks(unreferenced, desiredVirtualAddresses)

	var enable []*resource.Resource
	for _, va := range GetResourceTasks(referenced, desiredVirtualAddresses).Delete {
		if resource.VirtualAddressEnabled(va) == "no" {
			enable = append(enable, va.With("enabled", "yes"))
		}
	}

	update := append(append([]*resource.Resource(nil), nodes.Update...), enable...)
	del := append(append([]*resource.Resource(nil), nodes.Delete...), unreferencedTasks.Delete...)
	return d.runTasks(ctx, nil, update, del), nil
}

// DeployNet reconciles ARP entries, FDB tunnels and routes. User tunnels
// only ever receive updates.
func (d *ServiceConfigDeployer) DeployNet(ctx context.Context, desired *config.NetResources) (int, error) {
	if err := d.proxy.RefreshNet(ctx); err != nil {
		return 0, err
	}

	log.Debug("[CCCL] Getting route tasks...")
	routes := GetResourceTasks(d.proxy.GetRoutes(), desired.Routes)
	if strings.EqualFold(d.proxy.Partition(), "common") && len(routes.Delete) > 0 {
		var owned []*resource.Resource
		for _, r := range routes.Delete {
			if resource.RouteDescription(r) == desired.CISIdentifier {
				owned = append(owned, r)
			}
		}
		routes.Delete = owned
	}
	logTasks("Routes", routes)

	log.Debug("[CCCL] Getting ARP tasks...")
	arps := GetResourceTasks(d.proxy.GetArps(), desired.Arps)
	logTasks("ARPs", arps)

	log.Debug("[CCCL] Getting tunnel tasks...")
	tunnels := GetResourceTasks(d.proxy.GetFDBTunnels(false), desired.FDBTunnels)
	logTasks("FDB tunnels", tunnels)

	userTunnels := d.userTunnelTasks(desired.UserFDBTunnels)
	log.Debugf("[CCCL] User FDB tunnels: %d to update", len(userTunnels))

	var create, update, del []*resource.Resource
	for _, t := range []ResourceTasks{arps, tunnels, routes} {
		create = append(create, t.Create...)
		del = append(del, t.Delete...)
	}
	update = append(update, arps.Update...)
	update = append(update, tunnels.Update...)
	update = append(update, userTunnels...)
	update = append(update, routes.Update...)

	return d.runTasks(ctx, create, update, del), nil
}

func (d *ServiceConfigDeployer) userTunnelTasks(desired resources) []*resource.Resource {
	existing := d.proxy.GetFDBTunnels(true)
	var update []*resource.Resource
	for _, path := range resource.SortedNames(desired) {
		have, ok := existing[path]
		if !ok {
			log.Warningf("[CCCL] User FDB tunnel %s does not exist, skipping...", path)
			continue
		}
		if want := desired[path]; !want.Equal(have) {
			update = append(update, want)
		}
	}
	return update
}
