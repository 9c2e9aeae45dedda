// Package config loads and defaults the server's YAML configuration,
// per spec.md §6.3. Its shape follows this codebase's established
// pattern of a flat struct per section, loaded with gopkg.in/yaml.v3.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration object consumed at startup
// and (for zone/forwarder sections) on reload.
type Config struct {
	Server                  ServerConfig                 `yaml:"server"`
	Workers                 WorkersConfig                `yaml:"workers"`
	Listeners               []ListenerConfig              `yaml:"listener"`
	Forwarders              []ForwarderConfig              `yaml:"forwarder"`
	Cache                   CacheConfig                  `yaml:"cache"`
	Recursion               RecursionConfig               `yaml:"recursion"`
	Zones                   []ZoneConfig                  `yaml:"zone"`
	AmplificationMitigation AmplificationMitigationConfig `yaml:"amplification_mitigation"`
	Tuning                  TuningConfig                  `yaml:"tuning"`
	Limits                  LimitsConfig                  `yaml:"limits"`

	// Unknown/unused sections: preserved for future use, parsed but
	// not consulted by the core per spec.md §6.3.
	DNSSEC    map[string]any `yaml:"dnssec"`
	DoH       map[string]any `yaml:"doh"`
	TSIG      map[string]any `yaml:"tsig"`
	AXFR      map[string]any `yaml:"axfr"`
	ACL       map[string]any `yaml:"acl"`
	DynUpdate map[string]any `yaml:"dynupdate"`
	Views     map[string]any `yaml:"views"`
}

// ServerConfig is the core server tuning section.
type ServerConfig struct {
	BindPort                    int    `yaml:"bind_port"`
	MaxConcurrentRequests       int    `yaml:"max_concurrent_requests"`
	GracefulShutdownTimeoutSecs int    `yaml:"graceful_shutdown_timeout_secs"`
	DefaultTTL                  uint32 `yaml:"default_ttl"`
	MaxUDPPayload               int    `yaml:"max_udp_payload"`
	EnableEDNS                  bool   `yaml:"enable_edns"`
	EnableTCP                   bool   `yaml:"enable_tcp"`
}

// ShutdownTimeout returns the graceful shutdown window as a Duration.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.GracefulShutdownTimeoutSecs) * time.Second
}

// WorkersConfig holds per-stage worker counts. They are parsed but not
// read: the pipeline runs one goroutine per stage.
type WorkersConfig struct {
	Listener        int `yaml:"listener"`
	Decoder         int `yaml:"decoder"`
	QueryDispatcher int `yaml:"query_dispatcher"`
	CacheLookup     int `yaml:"cache_lookup"`
	ZoneManager     int `yaml:"zone_manager"`
	Resolver        int `yaml:"resolver"`
	CacheWriter     int `yaml:"cache_writer"`
	Encoder         int `yaml:"encoder"`
	Sender          int `yaml:"sender"`
	CacheJanitor    int `yaml:"cache_janitor"`
}

// ListenerConfig describes one bound socket.
type ListenerConfig struct {
	Name      string   `yaml:"name"`
	Address   string   `yaml:"address"`
	Port      int      `yaml:"port"`
	Protocols []string `yaml:"protocols"`
	ACL       []string `yaml:"acl"`
	Workers   int      `yaml:"workers"`
}

// ForwarderConfig describes one named upstream resolver set.
type ForwarderConfig struct {
	Name           string   `yaml:"name"`
	Addresses      []string `yaml:"addresses"`
	Policy         string   `yaml:"policy"` // first, round_robin, random
	TimeoutMS      int      `yaml:"timeout_ms"`
	UseTCPOnRetry  bool     `yaml:"use_tcp_on_retry"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled            bool   `yaml:"enabled"`
	MaxEntries          int    `yaml:"max_entries"`
	MaxTTLSeconds       int    `yaml:"max_ttl_seconds"`
	NegativeTTLSeconds  int    `yaml:"negative_ttl_seconds"`
	EvictionPolicy      string `yaml:"eviction_policy"`
}

// RecursionConfig controls the stub/forwarding resolver's use.
type RecursionConfig struct {
	Enabled              bool     `yaml:"enabled"`
	AllowedACL           []string `yaml:"allowed_acl"`
	MaxRecursiveQueries  int      `yaml:"max_recursive_queries"`
	RecursionTimeoutMS   int      `yaml:"recursion_timeout_ms"`
	RetryIntervalMS      int      `yaml:"retry_interval_ms"`
}

// ZoneConfig describes one zone's source and type.
type ZoneConfig struct {
	Name           string   `yaml:"name"`
	Type           string   `yaml:"type"` // master, slave, forward, stub
	File           string   `yaml:"file"`
	Inline         string   `yaml:"inline"`
	Records        []string `yaml:"records"`
	Masters        []string `yaml:"masters"`
	Forwarders     []string `yaml:"forwarders"`
	ForwardPolicy  string   `yaml:"forward_policy"`
}

// AmplificationMitigationConfig bounds UDP response size.
type AmplificationMitigationConfig struct {
	DropFragments      bool `yaml:"drop_fragments"`
	MaxResponseSizeUDP int  `yaml:"max_response_size_udp"`
}

// TuningConfig exposes low-level socket/name-length knobs.
type TuningConfig struct {
	SocketRecvBufferBytes int `yaml:"socket_recv_buffer_bytes"`
	SocketSendBufferBytes int `yaml:"socket_send_buffer_bytes"`
	MaxLabelLength        int `yaml:"max_label_length"`
	MaxDomainLength       int `yaml:"max_domain_length"`
}

// LimitsConfig is a catch-all for additional size limits.
type LimitsConfig struct {
	MaxUDPPacketSize int `yaml:"max_udp_packet_size"`
}

// Default returns the documented representative defaults from
// spec.md §6.3.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindPort:                    53,
			MaxConcurrentRequests:       512,
			GracefulShutdownTimeoutSecs: 10,
			DefaultTTL:                  3600,
			MaxUDPPayload:               4096,
			EnableEDNS:                  true,
			EnableTCP:                   true,
		},
		Workers: WorkersConfig{
			Listener: 1, Decoder: 4, QueryDispatcher: 1, CacheLookup: 4,
			ZoneManager: 2, Resolver: 8, CacheWriter: 2, Encoder: 4,
			Sender: 1, CacheJanitor: 1,
		},
		Cache: CacheConfig{
			Enabled: true, MaxEntries: 65536, MaxTTLSeconds: 86400,
			NegativeTTLSeconds: 60, EvictionPolicy: "lru",
		},
		Recursion: RecursionConfig{
			Enabled: true, MaxRecursiveQueries: 3,
			RecursionTimeoutMS: 2000, RetryIntervalMS: 200,
		},
		AmplificationMitigation: AmplificationMitigationConfig{
			MaxResponseSizeUDP: 4096,
		},
		Tuning: TuningConfig{
			MaxLabelLength: 63, MaxDomainLength: 255,
		},
	}
}

// Load reads and parses a YAML config file, filling any unset fields
// with the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
