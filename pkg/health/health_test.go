package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HealthChecker", func() {
	var (
		hc  *HealthChecker
		now time.Time
	)

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		hc.HealthCheckHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec
	}

	BeforeEach(func() {
		now = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
		hc = NewHealthChecker(time.Minute)
		hc.now = func() time.Time { return now }
	})

	It("is unhealthy before the first pass", func() {
		Expect(get().Code).To(Equal(http.StatusInternalServerError))
	})

	It("is healthy after a successful pass", func() {
		hc.RecordPass(nil)
		rec := get()
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("Ok"))
	})

	It("is unhealthy after a failed pass", func() {
		hc.RecordPass(errors.New("connection refused"))
		rec := get()
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring("connection refused"))
	})

	It("is unhealthy when passes stop", func() {
		hc.RecordPass(nil)
		now = now.Add(2 * time.Minute)
		Expect(get().Code).To(Equal(http.StatusInternalServerError))
	})
})
