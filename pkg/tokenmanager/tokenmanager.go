package tokenmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
)

const (
	// BIGIP login url
	BIGIPLoginURL = "/mgmt/shared/authn/login"
	BIGIPTokenURL = "/mgmt/shared/authz/tokens/"
	RetryInterval = 10 * time.Second
	MaxRetries    = 3
)

type TokenManagerInterface interface {
	GetToken() string
	RefreshToken(ctx context.Context) error
	SyncToken(ctx context.Context) error
	SyncTokenWithoutRetry(ctx context.Context) (error, bool)
	SetToken(token string, expirationMicros int64)
	Start(ctx context.Context, duration time.Duration)
}

// TokenManager keeps a BIG-IP authentication token fresh.
type TokenManager struct {
	mu              sync.Mutex
	Token           string
	tokenExpiry     time.Time
	tokenRefreshURL string
	ServerURL       string
	credentials     Credentials
	httpClient      *http.Client
	// wait between failed logins; RetryInterval when zero
	RetryInterval time.Duration
}

// Credentials represent the username and password used for authentication.
type Credentials struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	LoginProviderName string `json:"loginProviderName,omitempty"`
}

// TokenResponse represents the response received from the BIGIP.
type TokenResponse struct {
	Token struct {
		Token            string    `json:"token"`
		ExpirationMicros int64     `json:"expirationMicros"`
		LastUse          int64     `json:"lastUse"`
		Timeout          int       `json:"timeout"`
		UserReference    Reference `json:"userReference"`
	} `json:"token"`
}

// Reference represents a reference to a resource.
type Reference struct {
	Link string `json:"link"`
}

// NewTokenManager creates a new instance of TokenManager.
func NewTokenManager(serverURL string, credentials Credentials, httpClient *http.Client) *TokenManager {
	// Set default login provider if not specified
	if credentials.LoginProviderName == "" {
		credentials.LoginProviderName = "tmos"
	}
	return &TokenManager{
		ServerURL:   serverURL,
		credentials: credentials,
		httpClient:  httpClient,
	}
}

// GetToken returns the current token, refreshing it first when it is about
// to expire.
func (tm *TokenManager) GetToken() string {
	tm.mu.Lock()
	expired := time.Now().After(tm.tokenExpiry)
	tm.mu.Unlock()
	if expired {
		if err := tm.RefreshToken(context.Background()); err == nil {
			log.Debugf("[Token Manager] Successfully refreshed Token from BIGIP")
		} else {
			log.Errorf("[Token Manager] Failed to refresh Token from BIGIP: %v", err)
		}
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.Token
}

// SetToken safely sets the Token in the TokenManager.
func (tm *TokenManager) SetToken(token string, expirationMicros int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.Token = token
	expirationTime := time.Unix(0, expirationMicros*1000)
	// refresh slightly ahead of the real expiry
	tm.tokenExpiry = expirationTime.Add(-30 * time.Second)
	tm.tokenRefreshURL = BIGIPTokenURL + token
}

// RefreshToken extends the lifetime of the current Token, logging in again
// when the device refuses.
func (tm *TokenManager) RefreshToken(ctx context.Context) error {
	tm.mu.Lock()
	token, refreshURL := tm.Token, tm.tokenRefreshURL
	tm.mu.Unlock()
	if token == "" || refreshURL == "" {
		return tm.SyncToken(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, tm.ServerURL+refreshURL,
		bytes.NewBufferString(`{"timeout": 1200}`))
	if err != nil {
		return fmt.Errorf("error creating Token refresh request: %v", err)
	}
	req.Header.Add("X-F5-Auth-Token", token)
	req.Header.Add("Content-Type", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unable to establish connection with BIGIP: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tm.SyncToken(ctx)
	}

	var tokenResp struct {
		Token            string `json:"token"`
		ExpirationMicros int64  `json:"expirationMicros"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("error parsing Token response: %v", err)
	}
	if tokenResp.Token == "" {
		tokenResp.Token = token
	}
	tm.SetToken(tokenResp.Token, tokenResp.ExpirationMicros)
	return nil
}

// SyncTokenWithoutRetry logs in once. exit reports whether retrying is
// pointless.
func (tm *TokenManager) SyncTokenWithoutRetry(ctx context.Context) (err error, exit bool) {
	payload, err := json.Marshal(tm.credentials)
	if err != nil {
		return fmt.Errorf("marshaling failed for credentials: %v", err), true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.ServerURL+BIGIPLoginURL,
		bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("error creating login request: %v", err), true
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unable to establish connection with BIGIP: %v", err), false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response body: %v", err), false
	}

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("unauthorized to fetch Token from BIGIP. "+
				"Please check the credentials, status code: %d, response: %s", resp.StatusCode, body), true
		case http.StatusNotFound, http.StatusMovedPermanently:
			return fmt.Errorf("requested page/api not found, status code: %d, response: %s", resp.StatusCode, body), true
		default:
			return fmt.Errorf("failed to get Token, status code: %d, response: %s", resp.StatusCode, body), false
		}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("error parsing Token response: %v", err), false
	}

	tm.SetToken(tokenResp.Token.Token, tokenResp.Token.ExpirationMicros)
	log.Debugf("[Token Manager] Successfully fetched Token from BIGIP")
	return nil, false
}

// SyncToken logs in, retrying up to MaxRetries times on transient errors.
func (tm *TokenManager) SyncToken(ctx context.Context) error {
	interval := tm.RetryInterval
	if interval == 0 {
		interval = RetryInterval
	}
	var err error
	for attempt := 1; ; attempt++ {
		var exit bool
		if err, exit = tm.SyncTokenWithoutRetry(ctx); err == nil || exit || attempt >= MaxRetries {
			return err
		}
		log.Debugf("[Token Manager] Retrying to fetch Token in %v", interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Start logs in again every duration until ctx is done.
func (tm *TokenManager) Start(ctx context.Context, duration time.Duration) {
	ticker := time.NewTicker(duration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := tm.SyncToken(ctx); err != nil {
				log.Errorf("[Token Manager] %v", err)
			}
		case <-ctx.Done():
			log.Debug("[Token Manager] Stopping Token synchronization")
			return
		}
	}
}
