package config

import "time"

// Default configuration values.
const (
	DefaultRedisAddr    = "127.0.0.1:6379"
	DefaultMctextAddr   = "127.0.0.1:11211"
	DefaultMcbinaryAddr = "127.0.0.1:11212"
	DefaultMqAddr       = "127.0.0.1:11311"
	DefaultKvectorAddr  = "127.0.0.1:6400"
	DefaultLocalSocket  = "/var/run/meshsidecar/meshsidecar.sock"

	DefaultHasher      = "murmur3"
	DefaultDistributor = "modula"

	DefaultBackendDialTimeout = 2 * time.Second
	DefaultSlotsPerStream     = 256

	DefaultMySQLTablePrefix     = "vector_events"
	DefaultMySQLRangeBatchLimit = 500
	DefaultMySQLDialTimeout     = 3 * time.Second
	DefaultMySQLCredentialLabel = "default"

	DefaultMasterSecretEnv = "MESHSIDECAR_MASTER_SECRET"

	DefaultControlPlaneAddr = "127.0.0.1:7070"
	DefaultMetricsAddr      = "127.0.0.1:9090"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default meshsidecar configuration. Every protocol
// front end is left with an address but is only actually started by
// main if the operator's config keeps it enabled (see cmd/meshsidecar).
func Default() *MeshConfig {
	return &MeshConfig{
		Server: ServerSection{
			Redis:    EndpointConfig{Addr: DefaultRedisAddr},
			Mctext:   EndpointConfig{Addr: DefaultMctextAddr},
			Mcbinary: EndpointConfig{Addr: DefaultMcbinaryAddr},
			Mq:       EndpointConfig{Addr: DefaultMqAddr},
			Kvector:  EndpointConfig{Addr: DefaultKvectorAddr},
			Local:    LocalConfig{Path: DefaultLocalSocket},
		},
		Routing: RoutingSection{
			Hasher:      DefaultHasher,
			Distributor: DefaultDistributor,
		},
		Backend: BackendSection{
			DialTimeout:    DefaultBackendDialTimeout,
			SlotsPerStream: DefaultSlotsPerStream,
		},
		DNS: DNSSection{},
		MySQL: MySQLSection{
			CredentialLabel: DefaultMySQLCredentialLabel,
			TablePrefix:     DefaultMySQLTablePrefix,
			RangeBatchLimit: DefaultMySQLRangeBatchLimit,
			DialTimeout:     DefaultMySQLDialTimeout,
		},
		Security: SecuritySection{
			MasterSecretEnv: DefaultMasterSecretEnv,
		},
		ControlPlane: ControlPlaneSection{
			Addr: DefaultControlPlaneAddr,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
