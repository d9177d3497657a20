/*
 * Copyright (c) 2017-2021 F5 Networks, Inc.
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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/F5Networks/f5-cccl-go/pkg/bigiphandler"
	"github.com/F5Networks/f5-cccl-go/pkg/bigipproxy"
	"github.com/F5Networks/f5-cccl-go/pkg/config"
	"github.com/F5Networks/f5-cccl-go/pkg/health"
	"github.com/F5Networks/f5-cccl-go/pkg/httpclient"
	bigIPPrometheus "github.com/F5Networks/f5-cccl-go/pkg/prometheus"
	"github.com/F5Networks/f5-cccl-go/pkg/resolver"
	"github.com/F5Networks/f5-cccl-go/pkg/service"
	"github.com/F5Networks/f5-cccl-go/pkg/teem"
	"github.com/F5Networks/f5-cccl-go/pkg/tokenmanager"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/F5Networks/f5-cccl-go/pkg/vlogger/console"
	"github.com/F5Networks/f5-cccl-go/pkg/vlogger/jsonlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh/terminal"
	"gopkg.in/yaml.v2"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Optional settings file; values apply to flags not given on the command
// line.
type globalSection struct {
	LogLevel       string `yaml:"log-level,omitempty"`
	LogFormat      string `yaml:"log-format,omitempty"`
	VerifyInterval int    `yaml:"verify-interval,omitempty"`
	Declaration    string `yaml:"declaration,omitempty"`
	DisableLTM     bool   `yaml:"disable-ltm,omitempty"`
	DisableNet     bool   `yaml:"disable-net,omitempty"`
}

type bigIPSection struct {
	BigIPUsername  string `yaml:"username,omitempty"`
	BigIPPassword  string `yaml:"password,omitempty"`
	BigIPURL       string `yaml:"url,omitempty"`
	BigIPPartition string `yaml:"partition,omitempty"`
	Prefix         string `yaml:"prefix,omitempty"`
}

type settings struct {
	Global globalSection `yaml:"global"`
	BigIP  bigIPSection  `yaml:"bigip"`
}

const tokenSyncInterval = 10 * time.Minute

var (
	// To be set by build
	version   string
	buildInfo string

	// Flag sets and supported flags
	flags       *pflag.FlagSet
	globalFlags *pflag.FlagSet
	bigIPFlags  *pflag.FlagSet

	logLevel       *string
	logFormat      *string
	logFile        *string
	verifyInterval *int
	printVersion   *bool
	httpAddress    *string
	disableTeems   *bool
	settingsFile   *string
	declaration    *string
	schemaPath     *string
	dnsServer      *string
	disableLTM     *bool
	disableNet     *bool

	bigIPURL        *string
	bigIPUsername   *string
	bigIPPassword   *string
	bigIPPartition  *string
	prefix          *string
	credsDir        *string
	sslInsecure     *bool
	trustedCertFile *string
	useTokenAuth    *bool
)

func _init() {
	flags = pflag.NewFlagSet("main", pflag.PanicOnError)
	globalFlags = pflag.NewFlagSet("Global", pflag.PanicOnError)
	bigIPFlags = pflag.NewFlagSet("BigIP", pflag.PanicOnError)

	// Flag wrapping
	var err error
	var width int
	fd := int(os.Stdout.Fd())
	if terminal.IsTerminal(fd) {
		width, _, err = terminal.GetSize(fd)
		if nil != err {
			width = 0
		}
	}

	// Global flags
	logLevel = globalFlags.String("log-level", "INFO",
		"Optional, logging level")
	logFormat = globalFlags.String("log-format", "text",
		"Optional, log line format, text or json")
	logFile = globalFlags.String("log-file", "",
		"Optional, filepath to store the logs")
	verifyInterval = globalFlags.Int("verify-interval", 30,
		"Optional, interval (in seconds) at which to apply the declaration to the BIG-IP.")
	printVersion = globalFlags.Bool("version", false,
		"Optional, print version and exit.")
	httpAddress = globalFlags.String("http-listen-address", "0.0.0.0:8080",
		"Optional, address to serve http based informations (/metrics and /health).")
	disableTeems = globalFlags.Bool("disable-teems", false,
		"Optional, flag to disable sending telemetry data to TEEM")
	settingsFile = globalFlags.String("config-file", "",
		"Optional, YAML file with global and bigip settings")
	declaration = globalFlags.String("declaration", "",
		"Required, JSON or YAML file holding the desired partition configuration")
	schemaPath = globalFlags.String("schema", "",
		"Optional, API schema the declaration is validated against")
	dnsServer = globalFlags.String("dns-server", "",
		"Optional, DNS server resolving pool member host names, defaults to /etc/resolv.conf")
	disableLTM = globalFlags.Bool("disable-ltm", false,
		"Optional, do not apply the LTM part of the declaration")
	disableNet = globalFlags.Bool("disable-net", false,
		"Optional, do not apply the network part of the declaration")

	globalFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "  Global:\n%s\n", globalFlags.FlagUsagesWrapped(width))
	}

	// BigIP flags
	bigIPURL = bigIPFlags.String("bigip-url", "",
		"Required, URL for the Big-IP")
	bigIPUsername = bigIPFlags.String("bigip-username", "",
		"Required, user name for the Big-IP user account.")
	bigIPPassword = bigIPFlags.String("bigip-password", "",
		"Required, password for the Big-IP user account.")
	bigIPPartition = bigIPFlags.String("bigip-partition", "",
		"Required, partition to manage on the Big-IP.")
	prefix = bigIPFlags.String("prefix", "",
		"Optional, only resources whose name starts with the prefix are managed")
	credsDir = bigIPFlags.String("credentials-directory", "",
		"Optional, directory that contains the BIG-IP username, password, and/or "+
			"url files. To be used instead of username, password, and/or url arguments.")
	sslInsecure = bigIPFlags.Bool("insecure", false,
		"Optional, when set to true, enable insecure SSL communication to BIGIP.")
	trustedCertFile = bigIPFlags.String("trusted-certs-file", "",
		"Optional, PEM file with certificates trusted for the BIG-IP connection.")
	useTokenAuth = bigIPFlags.Bool("token-auth", false,
		"Optional, authenticate with BIG-IP tokens instead of basic auth.")

	bigIPFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "  BigIP:\n%s\n", bigIPFlags.FlagUsagesWrapped(width))
	}

	flags.AddFlagSet(globalFlags)
	flags.AddFlagSet(bigIPFlags)

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s\n", os.Args[0])
		globalFlags.Usage()
		bigIPFlags.Usage()
	}
}

// this is to allow for unit testing
func init() {
	_init()
}

func initLogger(logLevel, logFormat, logFile string) error {
	var w io.Writer = os.Stderr
	if len(logFile) > 0 {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("unable to open log file %s: %v", logFile, err)
		}
		w = f
	}

	var logger log.Logger
	switch strings.ToLower(logFormat) {
	case "json":
		logger = jsonlog.NewJSONLogger(w, map[string]string{"partition": *bigIPPartition})
	case "text", "":
		logger = console.NewConsoleLoggerExt(w, "", stdlog.LstdFlags)
	default:
		return fmt.Errorf("Unknown log format requested: %s\n"+
			"    Valid log formats are: text, json", logFormat)
	}
	log.RegisterLogger(log.LL_MIN_LEVEL, log.LL_MAX_LEVEL, logger)

	if ll := log.NewLogLevel(logLevel); nil != ll {
		log.SetLogLevel(*ll)
	} else {
		return fmt.Errorf("Unknown log level requested: %s\n"+
			"    Valid log levels are: DEBUG, INFO, WARNING, ERROR, CRITICAL", logLevel)
	}
	return nil
}

// loadSettings applies the settings file to every flag left at its default.
func loadSettings(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var s settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("invalid settings file %s: %v", path, err)
	}

	setString := func(name string, field *string, value string) {
		if value != "" && !flags.Changed(name) {
			*field = value
		}
	}
	setBool := func(name string, field *bool, value bool) {
		if value && !flags.Changed(name) {
			*field = value
		}
	}
	setString("log-level", logLevel, s.Global.LogLevel)
	setString("log-format", logFormat, s.Global.LogFormat)
	setString("declaration", declaration, s.Global.Declaration)
	if s.Global.VerifyInterval > 0 && !flags.Changed("verify-interval") {
		*verifyInterval = s.Global.VerifyInterval
	}
	setBool("disable-ltm", disableLTM, s.Global.DisableLTM)
	setBool("disable-net", disableNet, s.Global.DisableNet)
	setString("bigip-url", bigIPURL, s.BigIP.BigIPURL)
	setString("bigip-username", bigIPUsername, s.BigIP.BigIPUsername)
	setString("bigip-password", bigIPPassword, s.BigIP.BigIPPassword)
	setString("bigip-partition", bigIPPartition, s.BigIP.BigIPPartition)
	setString("prefix", prefix, s.BigIP.Prefix)
	return nil
}

func verifyArgs() error {
	if len(*settingsFile) > 0 {
		if err := loadSettings(*settingsFile); err != nil {
			return err
		}
	}

	*logLevel = strings.ToUpper(*logLevel)
	logErr := initLogger(*logLevel, *logFormat, *logFile)
	if nil != logErr {
		return logErr
	}

	if len(*bigIPPartition) == 0 {
		return fmt.Errorf("missing a BIG-IP partition")
	}
	if (len(*bigIPURL) == 0 || len(*bigIPUsername) == 0 ||
		len(*bigIPPassword) == 0) && len(*credsDir) == 0 {
		return fmt.Errorf("Missing BIG-IP credentials info")
	}
	if len(*declaration) == 0 {
		return fmt.Errorf("missing a declaration file")
	}
	if *verifyInterval <= 0 {
		return fmt.Errorf("verify-interval must be positive, got %d", *verifyInterval)
	}
	if *disableLTM && *disableNet {
		return fmt.Errorf("Cannot disable both ltm and net configuration")
	}
	return nil
}

func getCredentials() error {
	if len(*credsDir) > 0 {
		var usr, pass, bigipURL string
		var err error
		if strings.HasSuffix(*credsDir, "/") {
			usr = *credsDir + "username"
			pass = *credsDir + "password"
			bigipURL = *credsDir + "url"
		} else {
			usr = *credsDir + "/username"
			pass = *credsDir + "/password"
			bigipURL = *credsDir + "/url"
		}

		setField := func(field *string, filename, fieldType string) error {
			fileBytes, readErr := os.ReadFile(filename)
			if readErr != nil {
				log.Debug(fmt.Sprintf(
					"No %s in credentials directory, falling back to CLI argument", fieldType))
				if len(*field) == 0 {
					return fmt.Errorf("BIG-IP %s not specified", fieldType)
				}
			} else {
				*field = strings.TrimSpace(string(fileBytes))
			}
			return nil
		}

		err = setField(bigIPUsername, usr, "username")
		if err != nil {
			return err
		}
		err = setField(bigIPPassword, pass, "password")
		if err != nil {
			return err
		}
		err = setField(bigIPURL, bigipURL, "url")
		if err != nil {
			return err
		}
	}
	// Verify URL is valid
	if !strings.HasPrefix(*bigIPURL, "https://") {
		*bigIPURL = "https://" + *bigIPURL
	}
	u, err := url.Parse(*bigIPURL)
	if nil != err {
		return fmt.Errorf("Error parsing url: %s", err)
	}
	if len(u.Path) > 0 && u.Path != "/" {
		return fmt.Errorf("BIGIP-URL path must be empty or '/'; check URL formatting and/or remove %s from path",
			u.Path)
	}
	return nil
}

func getBIGIPTrustedCerts() string {
	if len(*trustedCertFile) == 0 {
		return ""
	}
	certs, err := os.ReadFile(*trustedCertFile)
	if err != nil {
		log.Errorf("[INIT] Unable to read trusted certificates %v: %v", *trustedCertFile, err)
		os.Exit(1)
	}
	return string(certs)
}

func getUserAgentInfo() string {
	return fmt.Sprintf("f5-cccl-go-%s-%s", version, buildInfo)
}

// newDevice opens the REST session. With token auth a token manager logs in
// first and keeps the token fresh until ctx is done.
func newDevice(ctx context.Context) (*bigiphandler.BigIPHandler, error) {
	trustedCerts := getBIGIPTrustedCerts()
	session := bigiphandler.CreateSession(*bigIPURL, *bigIPUsername, *bigIPPassword,
		getUserAgentInfo(), trustedCerts, *sslInsecure)
	if !*useTokenAuth {
		return &bigiphandler.BigIPHandler{Bigip: session}, nil
	}

	tm := tokenmanager.NewTokenManager(*bigIPURL, tokenmanager.Credentials{
		Username: *bigIPUsername,
		Password: *bigIPPassword,
	}, httpclient.GetFactory().GetClient(httpclient.ClientConfig{
		TrustedCerts: trustedCerts,
		SSLInsecure:  *sslInsecure,
		Metrics: &httpclient.MetricsConfig{
			InFlightGauge:   bigIPPrometheus.AuthRequestsInFlight,
			RequestsCounter: bigIPPrometheus.AuthRequests,
			HistogramVec:    bigIPPrometheus.AuthRequestDuration,
		},
	}))
	if err := tm.SyncToken(ctx); err != nil {
		return nil, fmt.Errorf("failed to log in to BIG-IP: %v", err)
	}
	go tm.Start(ctx, tokenSyncInterval)
	return &bigiphandler.BigIPHandler{Bigip: bigiphandler.NewTokenClient(session, tm)}, nil
}

// controller runs one deploy pass per interval.
type controller struct {
	manager *service.ServiceManager
	hc      *health.HealthChecker
	td      *teem.TeemsData
	// last telemetry report
	reported time.Time
}

func (c *controller) runPass(ctx context.Context) {
	raw, err := config.Load(*declaration)
	if err != nil {
		log.Errorf("[CCCL] Unable to read declaration %s: %v", *declaration, err)
		return
	}

	var passErr error
	if !*disableLTM {
		remaining, err := c.manager.ApplyLTMConfig(ctx, raw)
		if err != nil {
			log.Errorf("[CCCL] Failed to apply LTM config: %v", err)
			passErr = err
		} else if remaining > 0 {
			log.Warningf("[CCCL] %d LTM tasks left unresolved", remaining)
		}
	}
	if !*disableNet && passErr == nil {
		remaining, err := c.manager.ApplyNetConfig(ctx, raw)
		if err != nil {
			log.Errorf("[CCCL] Failed to apply NET config: %v", err)
			passErr = err
		} else if remaining > 0 {
			log.Warningf("[CCCL] %d NET tasks left unresolved", remaining)
		}
	}

	// health tracks device reachability only
	var refreshErr *bigipproxy.CacheRefreshError
	if errors.As(passErr, &refreshErr) {
		c.hc.RecordPass(passErr)
		return
	}
	c.hc.RecordPass(nil)
	if passErr == nil {
		c.report(raw)
	}
}

// report posts telemetry at most once a day.
func (c *controller) report(raw []byte) {
	if c.td == nil || time.Since(c.reported) < 24*time.Hour {
		return
	}
	if cfg, err := config.ParseLTMConfig(raw); err == nil {
		c.td.SetResourceCount("virtualServer", len(cfg.Virtuals))
		c.td.SetResourceCount("pool", len(cfg.Pools))
		c.td.SetResourceCount("l7Policy", len(cfg.Policies))
		c.td.SetResourceCount("iRule", len(cfg.IRules))
		c.td.SetResourceCount("iapp", len(cfg.IApps))
	}
	c.reported = time.Now()
	go c.td.PostTeemsData()
}

func main() {
	err := flags.Parse(os.Args)
	if nil != err {
		os.Exit(1)
	}

	if *printVersion {
		fmt.Printf("Version: %s\nBuild: %s\n", version, buildInfo)
		os.Exit(0)
	}

	err = verifyArgs()
	if nil != err {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flags.Usage()
		os.Exit(1)
	}
	err = getCredentials()
	if nil != err {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flags.Usage()
		os.Exit(1)
	}

	log.Infof("[INIT] Starting: F5 CCCL - Version: %s, BuildInfo: %s", version, buildInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	device, err := newDevice(ctx)
	if err != nil {
		log.Fatalf("[INIT] %v", err)
	}

	var dns config.Resolver
	if r, err := resolver.New(*dnsServer, 5*time.Second); err != nil {
		log.Warningf("[INIT] Pool member host names will not be resolved: %v", err)
	} else {
		dns = r
	}

	manager, err := service.NewServiceManager(device, service.Config{
		Partition:  *bigIPPartition,
		Prefix:     *prefix,
		UserAgent:  getUserAgentInfo(),
		SchemaPath: *schemaPath,
	}, dns)
	if err != nil {
		log.Fatalf("[INIT] Unable to create the service manager: %v", err)
	}

	interval := time.Duration(*verifyInterval) * time.Second
	c := &controller{
		manager: manager,
		hc:      health.NewHealthChecker(3 * interval),
	}
	if !*disableTeems {
		c.td = teem.NewTeemsData(version, "f5-cccl-go", "standalone")
		c.td.DateOfDeploy = time.Now().UTC().Format(time.RFC3339)
	}

	// Expose Prometheus metrics
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/health", c.hc.HealthCheckHandler())
	bigIPPrometheus.RegisterMetrics()
	go func() {
		log.Fatalf("%v", http.ListenAndServe(*httpAddress, nil).Error())
	}()

	stopCh := make(chan struct{})
	go wait.Until(func() { c.runPass(ctx) }, interval, stopCh)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	close(stopCh)
	cancel()
	log.Infof("[INIT] Exiting - signal %v\n", sig)
	log.Close()
}
