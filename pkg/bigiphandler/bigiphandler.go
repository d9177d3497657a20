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

package bigiphandler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/F5Networks/f5-cccl-go/pkg/prometheus"
	"github.com/F5Networks/f5-cccl-go/pkg/resource"
	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
	"github.com/f5devcentral/go-bigip"
)

// BigIPClient is the part of bigip.BigIP the handler needs.
type BigIPClient interface {
	APICall(options *bigip.APIRequest) ([]byte, error)
}

// TokenSource supplies the current authentication token.
type TokenSource interface {
	GetToken() string
}

func CreateSession(host, username, password, userAgent, trustedCerts string, insecure bool) *bigip.BigIP {
	// Connect to the BIG-IP system.
	// Get the SystemCertPool, continue with an empty pool on error
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}
	certs := []byte(trustedCerts)

	// Append our certs to the system pool
	if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
		log.Debugf("[BIGIP] No certs appended, using only system certs")
	}

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: insecure,
			RootCAs:            rootCAs,
		},
	}

	return &bigip.BigIP{
		Host:     host,
		User:     username,
		Password: password,
		ConfigOptions: &bigip.ConfigOptions{
			APICallTimeout: 15 * time.Second,
		},
		Transport: tr,
		UserAgent: userAgent,
	}
}

// tokenClient sends every call with the token manager's current token
// instead of basic auth.
type tokenClient struct {
	session *bigip.BigIP
	tokens  TokenSource
}

// NewTokenClient wraps session so calls authenticate with tokens.
func NewTokenClient(session *bigip.BigIP, tokens TokenSource) BigIPClient {
	return &tokenClient{session: session, tokens: tokens}
}

func (tc *tokenClient) APICall(options *bigip.APIRequest) ([]byte, error) {
	s := *tc.session
	s.Token = tc.tokens.GetToken()
	return s.APICall(options)
}

// BigIPHandler implements resource.Device over iControl REST.
type BigIPHandler struct {
	Bigip BigIPClient
}

// collection holds a REST list response.
type collection struct {
	Items []map[string]interface{} `json:"items"`
}

var statusRE = regexp.MustCompile(`^HTTP (\d{3}) ::`)

func (handler *BigIPHandler) call(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, resource.NewDeviceError(0, err.Error())
	}
	req := &bigip.APIRequest{
		Method:      method,
		URL:         url,
		ContentType: "application/json",
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req.Body = string(payload)
	}

	start := time.Now()
	data, err := handler.Bigip.APICall(req)
	prometheus.RESTCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, deviceError(data, err)
	}
	return data, nil
}

// deviceError recovers the HTTP status of a failed call from the JSON
// error body or the error text.
func deviceError(data []byte, err error) error {
	var reqErr bigip.RequestError
	if len(data) > 0 && json.Unmarshal(data, &reqErr) == nil && reqErr.Code != 0 {
		msg := reqErr.Message
		if msg == "" {
			msg = err.Error()
		}
		return resource.NewDeviceError(reqErr.Code, msg)
	}
	if m := statusRE.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return resource.NewDeviceError(code, err.Error())
	}
	return resource.NewDeviceError(0, err.Error())
}

// ItemPath is the URL of one object: <uri>/~<partition>~<name>.
func ItemPath(uri, partition, name string) string {
	name = resource.QuoteName(strings.ReplaceAll(name, "/", "~"))
	if partition == "" {
		return uri + "/" + name
	}
	return fmt.Sprintf("%s/~%s~%s", uri, partition, name)
}

func decodeObject(data []byte) (map[string]interface{}, error) {
	obj := map[string]interface{}{}
	if len(data) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, resource.NewDeviceError(0, fmt.Sprintf("invalid response: %v", err))
	}
	return obj, nil
}

func (handler *BigIPHandler) Create(ctx context.Context, uri string,
	payload map[string]interface{}) (map[string]interface{}, error) {
	data, err := handler.call(ctx, "post", uri, payload)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

func (handler *BigIPHandler) Read(ctx context.Context, uri, partition, name string) (map[string]interface{}, error) {
	data, err := handler.call(ctx, "get", ItemPath(uri, partition, name)+"?expandSubcollections=true", nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}

func (handler *BigIPHandler) Update(ctx context.Context, uri, partition, name string,
	payload map[string]interface{}) error {
	_, err := handler.call(ctx, "patch", ItemPath(uri, partition, name), payload)
	return err
}

func (handler *BigIPHandler) Delete(ctx context.Context, uri, partition, name string) error {
	_, err := handler.call(ctx, "delete", ItemPath(uri, partition, name), nil)
	return err
}

// List returns the items of a collection, limited to partition when it is
// not empty. expand asks for subcollections inline (pool members, policy
// rules).
func (handler *BigIPHandler) List(ctx context.Context, uri, partition string,
	expand bool) ([]map[string]interface{}, error) {
	var params []string
	if partition != "" {
		params = append(params, "$filter=partition+eq+"+partition)
	}
	if expand {
		params = append(params, "expandSubcollections=true")
	}
	url := uri
	if len(params) > 0 {
		url += "?" + strings.Join(params, "&")
	}
	data, err := handler.call(ctx, "get", url, nil)
	if err != nil {
		return nil, err
	}
	var c collection
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, resource.NewDeviceError(0, fmt.Sprintf("invalid response: %v", err))
		}
	}
	return c.Items, nil
}

// Get reads any object by its path below /mgmt/tm.
func (handler *BigIPHandler) Get(ctx context.Context, path string) (map[string]interface{}, error) {
	data, err := handler.call(ctx, "get", path, nil)
	if err != nil {
		return nil, err
	}
	return decodeObject(data)
}
