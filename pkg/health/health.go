package health

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HealthChecker reports healthy once a deploy pass finished without a
// device state refresh error, and as long as the last pass is not older
// than MaxAge.
type HealthChecker struct {
	// zero disables the age check
	MaxAge time.Duration

	mu       sync.Mutex
	lastPass time.Time
	lastErr  error
	now      func() time.Time
}

func NewHealthChecker(maxAge time.Duration) *HealthChecker {
	return &HealthChecker{MaxAge: maxAge, now: time.Now}
}

// RecordPass stores the outcome of a pass. err is nil for a pass that
// read the device, whatever its unresolved task count.
func (hc *HealthChecker) RecordPass(err error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.lastPass = hc.now()
	hc.lastErr = err
}

func (hc *HealthChecker) check() error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	switch {
	case hc.lastPass.IsZero():
		return fmt.Errorf("no deploy pass completed yet")
	case hc.lastErr != nil:
		return fmt.Errorf("last deploy pass failed: %v", hc.lastErr)
	case hc.MaxAge > 0 && hc.now().Sub(hc.lastPass) > hc.MaxAge:
		return fmt.Errorf("last deploy pass finished %v ago", hc.now().Sub(hc.lastPass).Round(time.Second))
	}
	return nil
}

func (hc *HealthChecker) HealthCheckHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hc.check(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ok"))
	})
}
