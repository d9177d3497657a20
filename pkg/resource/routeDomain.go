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

package resource

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	log "github.com/F5Networks/f5-cccl-go/pkg/vlogger"
)

var ipRouteDomainRE = regexp.MustCompile(`^([^%]*)%(\d+)$`)

// SplitIPWithRouteDomainCIDR splits <ip>[/<cidr>][%<rd>] into its parts.
// An address with the CIDR after the route domain is invalid and is
// returned whole as ip.
func SplitIPWithRouteDomainCIDR(address string) (ip string, rd string, cidr string) {
	match := strings.Split(address, "%")
	if len(match) == 2 && strings.Contains(match[1], "/") {
		log.Errorf("[CCCL] CIDR format is invalid for address: %s", address)
	}
	ipCIDR := strings.Split(match[0], "/")
	if len(match) == 2 {
		// only numeric route domains
		if _, err := strconv.Atoi(match[1]); err == nil {
			ip = ipCIDR[0]
			rd = match[1]
		} else {
			ip = address
		}
	} else {
		ip = ipCIDR[0]
	}
	if len(ipCIDR) == 2 {
		if !strings.Contains(ipCIDR[1], "%") {
			cidr = ipCIDR[1]
		} else {
			ipCIDR = strings.Split(ipCIDR[1], "%")
			cidr = ipCIDR[0]
		}
		if _, _, err := net.ParseCIDR(ip + "/" + cidr); err != nil {
			log.Errorf("[CCCL] CIDR for the address: %s is not valid", address)
		}
	}
	return
}

// CombineIPAndRouteDomain returns <ip>%<rd>.
func CombineIPAndRouteDomain(ip string, rd int) string {
	return fmt.Sprintf("%s%%%d", ip, rd)
}

// SplitIPWithRouteDomain splits <ip>[%<rd>]. ok is false when the address
// carries no route domain.
func SplitIPWithRouteDomain(address string) (ip string, rd int, ok bool) {
	m := ipRouteDomainRE.FindStringSubmatch(address)
	if m == nil {
		return address, 0, false
	}
	rd, err := strconv.Atoi(m[2])
	if err != nil {
		return address, 0, false
	}
	return m[1], rd, true
}

// NormalizeAddressWithRouteDomain returns the address with a route domain,
// adding defaultRD when it has none, along with its ip and route domain.
func NormalizeAddressWithRouteDomain(address string, defaultRD int) (string, string, int) {
	if ip, rd, ok := SplitIPWithRouteDomain(address); ok {
		return address, ip, rd
	}
	return CombineIPAndRouteDomain(address, defaultRD), address, defaultRD
}

// EncodedNormalizeAddressWithRouteDomain normalizes an address that may be
// URL encoded on input, output or both.
func EncodedNormalizeAddressWithRouteDomain(address string, defaultRD int,
	inputEncoded, outputEncoded bool) string {
	if inputEncoded {
		if unescaped, err := url.PathUnescape(address); err == nil {
			address = unescaped
		}
	}
	address, _, _ = NormalizeAddressWithRouteDomain(address, defaultRD)
	if outputEncoded {
		address = QuoteName(address)
	}
	return address
}

// QuoteName escapes a resource name for use in a REST path. Route domain
// markers and port separators are escaped ("%" and ":").
func QuoteName(name string) string {
	return strings.ReplaceAll(url.PathEscape(name), ":", "%3A")
}
