package config

import "time"

// MeshConfig is the root configuration for meshsidecar.
type MeshConfig struct {
	Server       ServerSection       `koanf:"server"`
	Routing      RoutingSection      `koanf:"routing"`
	Backend      BackendSection      `koanf:"backend"`
	DNS          DNSSection          `koanf:"dns"`
	MySQL        MySQLSection        `koanf:"mysql"`
	Security     SecuritySection     `koanf:"security"`
	ControlPlane ControlPlaneSection `koanf:"control_plane"`
	Metrics      MetricsSection      `koanf:"metrics"`
	Log          LogSection          `koanf:"log"`
}

// MetricsSection configures the Prometheus scrape endpoint. An empty
// Addr disables it.
type MetricsSection struct {
	Addr string `koanf:"addr"`
}

// ServerSection configures every protocol front end's listen address.
// An empty Addr disables that front end entirely.
type ServerSection struct {
	Redis    EndpointConfig `koanf:"redis"`
	Mctext   EndpointConfig `koanf:"mctext"`
	Mcbinary EndpointConfig `koanf:"mcbinary"`
	Mq       EndpointConfig `koanf:"mq"`
	Kvector  EndpointConfig `koanf:"kvector"`
	Local    LocalConfig    `koanf:"local"`
}

// EndpointConfig configures one TCP-listening protocol front end.
type EndpointConfig struct {
	Addr string `koanf:"addr"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	Path string `koanf:"path"`
}

// RoutingSection configures how a key's hash maps to a shard.
type RoutingSection struct {
	// Hasher names the key-hashing algorithm: "murmur3" or "xxhash".
	Hasher string `koanf:"hasher"`
	// Distributor names the hash-to-shard strategy: "modula" or "range"
	// (empty selects the default); Verify rejects any other name.
	Distributor string `koanf:"distributor"`
}

// BackendSection configures the Memcached/Redis/MQ backend connections
// every protocol handler multiplexes over.
type BackendSection struct {
	DialTimeout    time.Duration `koanf:"dial_timeout"`
	SlotsPerStream int           `koanf:"slots_per_stream"`
}

// DNSSection configures the periodic backend-host resolver.
type DNSSection struct {
	Server string `koanf:"server"`
}

// MySQLSection configures the KVector protocol's MySQL dispatch.
type MySQLSection struct {
	// CredentialLabel names the control-plane pushed credential this
	// namespace's MySQL shards authenticate with.
	CredentialLabel string `koanf:"credential_label"`
	// TablePrefix is the base name for the monthly event-vector tables,
	// e.g. "vector_events" yields "vector_events_202607".
	TablePrefix string `koanf:"table_prefix"`
	// RangeBatchLimit caps VRange/VRangeTimeline row counts regardless of
	// the client's own LIMIT.
	RangeBatchLimit int           `koanf:"range_batch_limit"`
	DialTimeout     time.Duration `koanf:"dial_timeout"`
}

// SecuritySection configures at-rest encryption for backend credentials.
type SecuritySection struct {
	// MasterSecretEnv names the environment variable holding the base64
	// master secret internal/secrets.Store derives per-label ciphers
	// from. Never read from the config file itself.
	MasterSecretEnv string `koanf:"master_secret_env"`
}

// ControlPlaneSection configures the HTTP endpoint namespace topology
// and credential pushes arrive on.
type ControlPlaneSection struct {
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
