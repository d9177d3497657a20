package prometheus

import (
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/prometheus/client_golang/prometheus"
)

var UnresolvedTasks = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "cccl_unresolved_tasks",
		Help: "Count of tasks left unresolved by the last deploy pass",
	},
	[]string{"config"},
)

var DeployDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "cccl_deploy_duration_seconds",
		Help:    "Time taken to apply a desired configuration to the BigIP",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	},
	[]string{"config"},
)

var TaskResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cccl_task_results_total",
		Help: "Count of create, update and delete tasks by result",
	},
	[]string{"op", "result"},
)

var ManagedResources = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "cccl_managed_resources",
		Help: "Count of desired resources by kind",
	},
	[]string{"kind"},
)

var RESTCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "cccl_bigip_rest_duration_seconds",
		Help:    "Latency of iControl REST calls",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method"},
)

var AuthRequestsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "cccl_bigip_auth_requests_in_flight",
		Help: "Token requests to the BigIP currently in flight",
	},
)

var AuthRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cccl_bigip_auth_requests_total",
		Help: "Count of token requests to the BigIP by status code",
	},
	[]string{"code", "method"},
)

var AuthRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "cccl_bigip_auth_request_duration_seconds",
		Help:    "Latency of token requests to the BigIP",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method"},
)

// RegisterMetrics adds the CCCL collectors to the default registry.
func RegisterMetrics() {
	log.Info("[CCCL] Registered CCCL Metrics")
	prometheus.MustRegister(UnresolvedTasks)
	prometheus.MustRegister(DeployDuration)
	prometheus.MustRegister(TaskResults)
	prometheus.MustRegister(ManagedResources)
	prometheus.MustRegister(RESTCallDuration)
	prometheus.MustRegister(AuthRequestsInFlight)
	prometheus.MustRegister(AuthRequests)
	prometheus.MustRegister(AuthRequestDuration)
}
