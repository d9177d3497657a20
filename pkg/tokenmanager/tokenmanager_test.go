package tokenmanager

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	mockhc "github.com/f5devcentral/mockhttpclient"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func tokenBody(token string, expiry time.Time) string {
	return fmt.Sprintf(`{"token": {"token": "%s", "expirationMicros": %d}}`,
		token, expiry.UnixNano()/1000)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

var _ = Describe("Token Manager Tests", func() {
	var (
		tokenManager *TokenManager
		ctx          context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("with a mock client", func() {
		newManager := func(responseMap mockhc.ResponseConfigMap) *TokenManager {
			client, err := mockhc.NewMockHTTPClient(responseMap)
			Expect(err).NotTo(HaveOccurred())
			tm := NewTokenManager("https://bigip.example.com", Credentials{
				Username: "admin",
				Password: "admin",
			}, client)
			tm.RetryInterval = time.Millisecond
			return tm
		}

		It("returns a valid token", func() {
			tokenManager = newManager(mockhc.ResponseConfigMap{
				http.MethodPost: &mockhc.ResponseConfig{
					Responses: []*http.Response{response(200, tokenBody("test.token", time.Now().Add(time.Hour)))},
				},
			})
			Expect(tokenManager.SyncToken(ctx)).To(Succeed())
			Expect(tokenManager.GetToken()).To(Equal("test.token"))
		})

		It("stops on bad credentials", func() {
			tokenManager = newManager(mockhc.ResponseConfigMap{
				http.MethodPost: &mockhc.ResponseConfig{
					Responses: []*http.Response{response(401, `{"code": 401}`)},
				},
			})
			err, exit := tokenManager.SyncTokenWithoutRetry(ctx)
			Expect(err).To(HaveOccurred())
			Expect(exit).To(BeTrue())
		})

		It("retries transient failures", func() {
			tokenManager = newManager(mockhc.ResponseConfigMap{
				http.MethodPost: &mockhc.ResponseConfig{
					Responses: []*http.Response{
						response(503, `{"code": 503}`),
						response(200, tokenBody("second.token", time.Now().Add(time.Hour))),
					},
				},
			})
			Expect(tokenManager.SyncToken(ctx)).To(Succeed())
			Expect(tokenManager.Token).To(Equal("second.token"))
		})

		It("gives up after the retry limit", func() {
			tokenManager = newManager(mockhc.ResponseConfigMap{
				http.MethodPost: &mockhc.ResponseConfig{
					Responses: []*http.Response{response(500, `{"code": 500}`)},
					MaxRun:    MaxRetries,
				},
			})
			Expect(tokenManager.SyncToken(ctx)).NotTo(Succeed())
			Expect(tokenManager.Token).To(BeEmpty())
		})
	})

	Describe("with a BIG-IP", func() {
		var server *ghttp.Server

		BeforeEach(func() {
			server = ghttp.NewServer()
			DeferCleanup(server.Close)
			tokenManager = NewTokenManager(server.URL(), Credentials{
				Username: "admin",
				Password: "admin",
			}, http.DefaultClient)
		})

		It("logs in with the tmos provider", func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", BIGIPLoginURL),
					ghttp.VerifyJSON(`{"username": "admin", "password": "admin", "loginProviderName": "tmos"}`),
					ghttp.RespondWith(http.StatusOK, tokenBody("abc", time.Now().Add(time.Hour))),
				))
			Expect(tokenManager.SyncToken(ctx)).To(Succeed())
			Expect(tokenManager.GetToken()).To(Equal("abc"))
		})

		It("extends an expired token", func() {
			tokenManager.SetToken("abc", time.Now().Add(10*time.Second).UnixNano()/1000)
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("PATCH", BIGIPTokenURL+"abc"),
					ghttp.VerifyHeaderKV("X-F5-Auth-Token", "abc"),
					ghttp.RespondWith(http.StatusOK, fmt.Sprintf(`{"token": "abc", "expirationMicros": %d}`,
						time.Now().Add(time.Hour).UnixNano()/1000)),
				))
			Expect(tokenManager.GetToken()).To(Equal("abc"))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
			Expect(tokenManager.GetToken()).To(Equal("abc"))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})
})
