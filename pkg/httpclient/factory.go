package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"sync"
	"time"

	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultTimeout = 30 * time.Second

// ClientConfig describes a client for talking to the BIG-IP outside the
// iControl REST session, such as the token login endpoint.
type ClientConfig struct {
	TrustedCerts string
	SSLInsecure  bool
	Timeout      time.Duration
	// Optional instrumentation; nil leaves the transport bare
	Metrics *MetricsConfig
}

// MetricsConfig holds the collectors wrapped around the transport.
type MetricsConfig struct {
	InFlightGauge   prometheus.Gauge
	RequestsCounter *prometheus.CounterVec
	HistogramVec    prometheus.ObserverVec
}

// HTTPClientFactory shares clients between callers with the same
// configuration.
type HTTPClientFactory struct {
	mu      sync.RWMutex
	clients map[string]*http.Client
}

var (
	factory *HTTPClientFactory
	once    sync.Once
)

// GetFactory returns the process wide factory.
func GetFactory() *HTTPClientFactory {
	once.Do(func() {
		factory = NewFactory()
	})
	return factory
}

// NewFactory returns an empty factory.
func NewFactory() *HTTPClientFactory {
	return &HTTPClientFactory{clients: make(map[string]*http.Client)}
}

// GetClient returns the client for config, creating it on first use.
func (f *HTTPClientFactory) GetClient(config ClientConfig) *http.Client {
	key := clientKey(config)

	f.mu.RLock()
	if client, exists := f.clients[key]; exists {
		f.mu.RUnlock()
		return client
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if client, exists := f.clients[key]; exists {
		return client
	}
	client := newClient(config)
	f.clients[key] = client
	log.Debugf("[HTTP] Created new HTTP client for key: %s", key)
	return client
}

func newClient(config ClientConfig) *http.Client {
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}
	if config.TrustedCerts != "" {
		if ok := rootCAs.AppendCertsFromPEM([]byte(config.TrustedCerts)); !ok {
			log.Debugf("[HTTP] No certs appended, using only system certs")
		}
	}

	var rt http.RoundTripper = &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SSLInsecure,
			RootCAs:            rootCAs,
		},
	}
	if m := config.Metrics; m != nil {
		rt = promhttp.InstrumentRoundTripperInFlight(m.InFlightGauge,
			promhttp.InstrumentRoundTripperCounter(m.RequestsCounter,
				promhttp.InstrumentRoundTripperDuration(m.HistogramVec, rt),
			),
		)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

// clientKey identifies a configuration. Certificates are compared by
// content so two different bundles never share a client.
func clientKey(config ClientConfig) string {
	key := ""
	if config.TrustedCerts != "" {
		key += "certs:" + config.TrustedCerts + ":"
	}
	if config.SSLInsecure {
		key += "insecure:"
	}
	if config.Metrics != nil {
		key += "metrics:"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return key + timeout.String()
}
