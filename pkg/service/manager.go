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

// Package service reconciles a BIG-IP partition with a desired
// configuration.
package service

import (
	"context"
	"time"

	"github.com/F5Networks/f5-cccl-go/pkg/bigipproxy"
	"github.com/F5Networks/f5-cccl-go/pkg/config"
	bigIPPrometheus "github.com/F5Networks/f5-cccl-go/pkg/prometheus"
	"github.com/F5Networks/f5-cccl-go/pkg/resource"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/google/uuid"
)

// Config selects the partition a ServiceManager owns.
type Config struct {
	Partition string
	// Only resources whose name starts with Prefix are managed
	Prefix    string
	UserAgent string
	// Schema the declarations are validated against, the built-in one if
	// empty
	SchemaPath string
}

// ServiceManager applies LTM and network declarations to one partition.
type ServiceManager struct {
	partition string
	userAgent string
	proxy     *bigipproxy.BigIPProxy
	validator *config.Validator
	reader    *config.Reader
	deployer  *ServiceConfigDeployer
}

// NewServiceManager returns a manager deploying through device. resolver may
// be nil when pool members are always given by address.
func NewServiceManager(device bigipproxy.Device, cfg Config, resolver config.Resolver) (*ServiceManager, error) {
	validator, err := config.NewValidator(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	proxy := bigipproxy.NewBigIPProxy(device, cfg.Partition, cfg.Prefix)
	return &ServiceManager{
		partition: cfg.Partition,
		userAgent: cfg.UserAgent,
		proxy:     proxy,
		validator: validator,
		reader:    config.NewReader(cfg.Partition, resolver),
		deployer:  NewServiceConfigDeployer(proxy),
	}, nil
}

func (sm *ServiceManager) GetPartition() string { return sm.partition }

// Proxy returns the cached partition state of the last pass.
func (sm *ServiceManager) Proxy() *bigipproxy.BigIPProxy { return sm.proxy }

// ApplyLTMConfig validates a JSON declaration and deploys its LTM part. It
// returns the number of tasks left unresolved. Errors are returned only
// for invalid declarations and unreadable device state; failed tasks are
// counted instead.
func (sm *ServiceManager) ApplyLTMConfig(ctx context.Context, raw []byte) (int, error) {
	passID := uuid.New().String()
	start := time.Now()
	log.Debugf("[CCCL] Pass %s: applying LTM config to partition %s", passID, sm.partition)

	if err := sm.validator.Validate(raw); err != nil {
		return 0, err
	}
	rd, err := sm.proxy.DefaultRouteDomain(ctx)
	if err != nil {
		return 0, &bigipproxy.CacheRefreshError{Msg: "failed to read the default route domain", Err: err}
	}
	cfg, err := config.ParseLTMConfig(raw)
	if err != nil {
		return 0, err
	}
	desired, err := sm.reader.ReadLTMConfig(ctx, cfg, rd, sm.userAgent)
	if err != nil {
		return 0, err
	}
	sm.recordDesired(map[string]int{
		"VirtualServer":      len(desired.Virtuals),
		"VirtualAddress":     len(desired.VirtualAddresses),
		"Pool":               len(desired.Pools),
		"IRule":              len(desired.IRules),
		"Policy":             len(desired.Policies),
		"InternalDataGroup":  len(desired.InternalDataGroups),
		"ApplicationService": len(desired.IApps),
		"Monitor":            countMonitors(desired.Monitors),
	})

	remaining, err := sm.deployer.DeployLTM(ctx, desired, rd)
	if err != nil {
		log.Errorf("[CCCL] Pass %s: failed to deploy LTM config: %v", passID, err)
		return remaining, err
	}
	sm.finishPass(passID, "ltm", start, remaining)
	return remaining, nil
}

// ApplyNetConfig validates a JSON declaration and deploys its network part.
func (sm *ServiceManager) ApplyNetConfig(ctx context.Context, raw []byte) (int, error) {
	passID := uuid.New().String()
	start := time.Now()
	log.Debugf("[CCCL] Pass %s: applying NET config to partition %s", passID, sm.partition)

	if err := sm.validator.Validate(raw); err != nil {
		return 0, err
	}
	rd, err := sm.proxy.DefaultRouteDomain(ctx)
	if err != nil {
		return 0, &bigipproxy.CacheRefreshError{Msg: "failed to read the default route domain", Err: err}
	}
	cfg, err := config.ParseNetConfig(raw)
	if err != nil {
		return 0, err
	}
	desired, err := sm.reader.ReadNetConfig(cfg, rd)
	if err != nil {
		return 0, err
	}
	sm.recordDesired(map[string]int{
		"Arp":       len(desired.Arps),
		"FDBTunnel": len(desired.FDBTunnels) + len(desired.UserFDBTunnels),
		"Route":     len(desired.Routes),
	})

	remaining, err := sm.deployer.DeployNet(ctx, desired)
	if err != nil {
		log.Errorf("[CCCL] Pass %s: failed to deploy NET config: %v", passID, err)
		return remaining, err
	}
	sm.finishPass(passID, "net", start, remaining)
	return remaining, nil
}

func countMonitors(byType map[string]map[string]*resource.Resource) int {
	n := 0
	for _, m := range byType {
		n += len(m)
	}
	return n
}

func (sm *ServiceManager) recordDesired(counts map[string]int) {
	for kind, n := range counts {
		bigIPPrometheus.ManagedResources.WithLabelValues(kind).Set(float64(n))
	}
}

func (sm *ServiceManager) finishPass(passID, cfg string, start time.Time, remaining int) {
	elapsed := time.Since(start)
	bigIPPrometheus.DeployDuration.WithLabelValues(cfg).Observe(elapsed.Seconds())
	bigIPPrometheus.UnresolvedTasks.WithLabelValues(cfg).Set(float64(remaining))
	log.Debugf("[CCCL] Pass %s: %s config applied in %v, %d unresolved tasks",
		passID, cfg, elapsed, remaining)
}
