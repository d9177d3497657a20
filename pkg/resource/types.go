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

// Declarations: the desired state as the API accepts it. Constructors in
// this package turn them into canonical resources.
type (
	// LTMConfig is the desired LTM state of the managed partition.
	LTMConfig struct {
		Virtuals           []Virtual           `json:"virtualServers,omitempty"`
		VirtualAddresses   []VirtualAddress    `json:"virtualAddresses,omitempty"`
		Pools              []Pool              `json:"pools,omitempty"`
		Monitors           []Monitor           `json:"monitors,omitempty"`
		Policies           []Policy            `json:"l7Policies,omitempty"`
		IRules             []IRule             `json:"iRules,omitempty"`
		InternalDataGroups []InternalDataGroup `json:"internalDataGroups,omitempty"`
		IApps              []IApp              `json:"iapps,omitempty"`
	}

	// NetConfig is the desired network state.
	NetConfig struct {
		Arps           []Arp       `json:"arps,omitempty"`
		FDBTunnels     []FDBTunnel `json:"fdbTunnels,omitempty"`
		UserFDBTunnels []FDBTunnel `json:"userFdbTunnels,omitempty"`
		Routes         []Route     `json:"routes,omitempty"`
		// Description stamped on routes this controller owns in Common
		CISIdentifier string `json:"cis-identifier,omitempty"`
	}

	// Metadata entry attached to a BIG-IP object
	Metadata struct {
		Name    string `json:"name"`
		Persist string `json:"persist,omitempty"`
		Value   string `json:"value"`
	}

	// virtual server policy reference
	NameRef struct {
		Name      string `json:"name"`
		Partition string `json:"partition"`
	}

	// Reference to pre-existing profiles
	ProfileRef struct {
		Name      string `json:"name"`
		Partition string `json:"partition"`
		Context   string `json:"context,omitempty"` // 'clientside', 'serverside', or 'all'
	}

	// Virtual Server Source Address Translation
	SourceAddrTranslation struct {
		Type string `json:"type"`
		Pool string `json:"pool,omitempty"`
	}

	// Virtual server config
	Virtual struct {
		Name                  string                 `json:"name"`
		Description           string                 `json:"description,omitempty"`
		Destination           string                 `json:"destination"`
		Source                string                 `json:"source,omitempty"`
		IpProtocol            string                 `json:"ipProtocol,omitempty"`
		Enabled               *bool                  `json:"enabled,omitempty"`
		VlansEnabled          *bool                  `json:"vlansEnabled,omitempty"`
		Vlans                 []string               `json:"vlans,omitempty"`
		SourceAddrTranslation *SourceAddrTranslation `json:"sourceAddressTranslation,omitempty"`
		ConnectionLimit       int                    `json:"connectionLimit,omitempty"`
		PoolName              string                 `json:"pool,omitempty"`
		Policies              []NameRef              `json:"policies,omitempty"`
		Profiles              []ProfileRef           `json:"profiles,omitempty"`
		IRules                []string               `json:"rules,omitempty"`
		Metadata              []Metadata             `json:"metadata,omitempty"`
	}

	VirtualAddress struct {
		Name         string     `json:"name"`
		Address      string     `json:"address"`
		AutoDelete   string     `json:"autoDelete,omitempty"`
		Enabled      string     `json:"enabled,omitempty"`
		Description  string     `json:"description,omitempty"`
		TrafficGroup string     `json:"trafficGroup,omitempty"`
		Metadata     []Metadata `json:"metadata,omitempty"`
	}

	// Pool Member
	Member struct {
		Address         string `json:"address"`
		Port            int32  `json:"port"`
		Ratio           int    `json:"ratio,omitempty"`
		ConnectionLimit int    `json:"connectionLimit,omitempty"`
		PriorityGroup   int    `json:"priorityGroup,omitempty"`
		Session         string `json:"session,omitempty"`
		Description     string `json:"description,omitempty"`
	}

	// Pool config
	Pool struct {
		Name         string     `json:"name"`
		Description  string     `json:"description,omitempty"`
		Balance      string     `json:"loadBalancingMode,omitempty"`
		Members      []Member   `json:"members,omitempty"`
		MonitorNames []string   `json:"monitors,omitempty"`
		Metadata     []Metadata `json:"metadata,omitempty"`
	}

	// Pool health monitor
	Monitor struct {
		Name        string  `json:"name"`
		Type        string  `json:"type"` // http, https, tcp, icmp or udp
		Description string  `json:"description,omitempty"`
		Interval    int     `json:"interval,omitempty"`
		Timeout     int     `json:"timeout,omitempty"`
		Send        *string `json:"send,omitempty"`
		Recv        *string `json:"recv,omitempty"`
	}

	// L7 policy
	Policy struct {
		Name     string     `json:"name"`
		Strategy string     `json:"strategy,omitempty"`
		Rules    []Rule     `json:"rules,omitempty"`
		Metadata []Metadata `json:"metadata,omitempty"`
	}

	// Rule config for a Policy; evaluated in list order
	Rule struct {
		Name       string      `json:"name"`
		Actions    []Action    `json:"actions,omitempty"`
		Conditions []Condition `json:"conditions,omitempty"`
	}

	// Action config for a Rule
	Action struct {
		Forward     bool   `json:"forward,omitempty"`
		Pool        string `json:"pool,omitempty"`
		Reset       bool   `json:"reset,omitempty"`
		Redirect    bool   `json:"redirect,omitempty"`
		Location    string `json:"location,omitempty"`
		HttpReply   *bool  `json:"httpReply,omitempty"`
		SetVariable bool   `json:"setVariable,omitempty"`
		TmName      string `json:"tmName,omitempty"`
		Expression  string `json:"expression,omitempty"`
	}

	// Condition config for a Rule
	Condition struct {
		HTTPHost      bool     `json:"httpHost,omitempty"`
		HTTPURI       bool     `json:"httpUri,omitempty"`
		HTTPHeader    bool     `json:"httpHeader,omitempty"`
		HTTPCookie    bool     `json:"httpCookie,omitempty"`
		Tcp           bool     `json:"tcp,omitempty"`
		Host          bool     `json:"host,omitempty"`
		Path          bool     `json:"path,omitempty"`
		PathSegment   bool     `json:"pathSegment,omitempty"`
		Extension     bool     `json:"extension,omitempty"`
		Index         *int     `json:"index,omitempty"`
		External      bool     `json:"external,omitempty"`
		Internal      bool     `json:"internal,omitempty"`
		Address       bool     `json:"address,omitempty"`
		TmName        string   `json:"tmName,omitempty"`
		Not           bool     `json:"not,omitempty"`
		Missing       bool     `json:"missing,omitempty"`
		CaseSensitive bool     `json:"caseSensitive,omitempty"`
		Contains      bool     `json:"contains,omitempty"`
		Equals        bool     `json:"equals,omitempty"`
		StartsWith    bool     `json:"startsWith,omitempty"`
		EndsWith      bool     `json:"endsWith,omitempty"`
		Matches       bool     `json:"matches,omitempty"`
		Values        []string `json:"values,omitempty"`
	}

	// iRules
	IRule struct {
		Name     string     `json:"name"`
		Code     string     `json:"apiAnonymous"`
		Metadata []Metadata `json:"metadata,omitempty"`
	}

	InternalDataGroup struct {
		Name    string                    `json:"name"`
		Type    string                    `json:"type,omitempty"`
		Records []InternalDataGroupRecord `json:"records,omitempty"`
	}

	InternalDataGroupRecord struct {
		Name string `json:"name"`
		Data string `json:"data,omitempty"`
	}

	// IApp application service
	IApp struct {
		Name                  string                 `json:"name"`
		Template              string                 `json:"template"`
		Options               map[string]interface{} `json:"options,omitempty"`
		Description           string                 `json:"description,omitempty"`
		InheritedTrafficGroup string                 `json:"inheritedTrafficGroup,omitempty"`
		InheritedDevicegroup  string                 `json:"inheritedDevicegroup,omitempty"`
		TrafficGroup          string                 `json:"trafficGroup,omitempty"`
		DeviceGroup           string                 `json:"deviceGroup,omitempty"`
		PoolMemberTable       *IappPoolMemberTable   `json:"poolMemberTable,omitempty"`
		Tables                map[string]IappTable   `json:"tables,omitempty"`
		Variables             map[string]string      `json:"variables,omitempty"`
	}

	// iApp pool member column definition
	IappPoolMemberColumn struct {
		Name  string `json:"name"`
		Kind  string `json:"kind,omitempty"` // IPAddress or Port
		Value string `json:"value,omitempty"`
	}

	// iApp pool member table
	IappPoolMemberTable struct {
		Name    string                 `json:"name"`
		Columns []IappPoolMemberColumn `json:"columns"`
		Members []Member               `json:"members,omitempty"`
	}

	// iApp table entry
	IappTable struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows,omitempty"`
	}

	Arp struct {
		Name       string `json:"name"`
		IPAddress  string `json:"ipAddress"`
		MACAddress string `json:"macAddress"`
	}

	FDBTunnel struct {
		Name    string      `json:"name"`
		Records []FDBRecord `json:"records,omitempty"`
	}

	// FDB record: a fake MAC and the VTEP it maps to
	FDBRecord struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
	}

	Route struct {
		Name        string `json:"name"`
		Network     string `json:"network"`
		Gateway     string `json:"gw"`
		Description string `json:"description,omitempty"`
	}
)
