package teem

import (
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/f5devcentral/go-bigip/f5teem"
	"github.com/google/uuid"
)

// TeemsData structure contains supporting data to be posted to TEEM's server
type TeemsData struct {
	sync.Mutex
	CCCLVersion     string
	Agent           string
	DateOfDeploy    string
	PlatformInfo    string
	PartitionCount  int
	ResourceCount   map[string]int // desired resources by kind
	AccessEnabled   bool           // Will be set to false if network rules don't permit
	RegistrationKey string
}

const (
	staging    = "staging"
	production = "production"
)

// NewTeemsData returns telemetry data for one controller instance.
func NewTeemsData(version, agent, platform string) *TeemsData {
	return &TeemsData{
		CCCLVersion:   version,
		Agent:         agent,
		PlatformInfo:  platform,
		ResourceCount: map[string]int{},
		AccessEnabled: true,
	}
}

// SetResourceCount records the number of desired resources of a kind.
func (td *TeemsData) SetResourceCount(kind string, count int) {
	td.Lock()
	defer td.Unlock()
	if td.ResourceCount == nil {
		td.ResourceCount = map[string]int{}
	}
	td.ResourceCount[kind] = count
}

func (td *TeemsData) report() map[string]interface{} {
	td.Lock()
	defer td.Unlock()
	total := 0
	data := map[string]interface{}{
		"platformInfo":    td.PlatformInfo,
		"agent":           td.Agent,
		"dateOfDeploy":    td.DateOfDeploy,
		"registrationKey": td.RegistrationKey,
		"partitionCount":  td.PartitionCount,
	}
	for kind, count := range td.ResourceCount {
		data[fmt.Sprintf("%sCount", kind)] = count
		total += count
	}
	data["resourceCount"] = total
	return data
}

// apiKey selects the TEEM server from the environment. ok is false for an
// unusable combination.
func apiKey() (key string, ok bool) {
	apiEnv := os.Getenv("TEEM_API_ENVIRONMENT")
	if apiEnv == "" {
		return "", true
	}
	if apiEnv == staging {
		key = os.Getenv("TEEM_API_KEY")
		if len(key) == 0 {
			log.Error("API key missing to post to staging teem server")
			return "", false
		}
		return key, true
	}
	if apiEnv != production {
		log.Error("Invalid TEEM_API_ENVIRONMENT. Unset to use production server")
		return "", false
	}
	return "", true
}

// PostTeemsData posts data to TEEM server and returns a boolean response useful to decide if network rules permit to access server
func (td *TeemsData) PostTeemsData() bool {
	if !td.AccessEnabled {
		return false
	}
	key, ok := apiKey()
	if !ok {
		return false
	}
	assetInfo := f5teem.AssetInfo{
		Name:    "CCCL-Ecosystem",
		Version: fmt.Sprintf("CCCL/v%v", td.CCCLVersion),
		Id:      uuid.New().String(),
	}
	teemDevice := f5teem.AnonymousClient(assetInfo, key)
	err := teemDevice.Report(td.report(), "CCCL Telemetry Data", "1")
	if err != nil && !strings.Contains(err.Error(), "request-limit") {
		// teems send error code 429 with request-limit when 30 requests per
		// hour are exceeded and accept reports again after the wait.
		log.Debugf("Error reporting telemetry data :%v", err)
		td.AccessEnabled = false
	}
	return td.AccessEnabled
}
