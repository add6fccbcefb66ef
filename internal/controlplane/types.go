package controlplane

// NamespaceUpdate is the wire shape pushed by the control plane for one
// namespace: every shard-list version it carries, the MySQL credential
// to encrypt at rest for it, and nothing about how those were derived
// (reload cadence, source file format, signing) — that lives entirely on
// the control-plane side.
type NamespaceUpdate struct {
	Namespace string             `json:"namespace"`
	Shards    []ShardRangeUpdate `json:"shards"`
	MySQL     *CredentialUpdate  `json:"mysql,omitempty"`
}

// ShardRangeUpdate is one contiguous year range and the shard list in
// effect for it, mirroring topology.Shards.PushYearRange's parameters.
type ShardRangeUpdate struct {
	FromYear int           `json:"from_year"`
	ToYear   int           `json:"to_year"`
	List     []ShardUpdate `json:"list"`
}

// ShardUpdate is one dense shard slot: a master plus an optional replica
// pool and the policy/quota to select among it.
type ShardUpdate struct {
	Master      EndpointUpdate   `json:"master"`
	Slaves      []EndpointUpdate `json:"slaves,omitempty"`
	SlavePolicy string           `json:"slave_policy,omitempty"`
	SlaveRPS    float64          `json:"slave_rps,omitempty"`
}

// EndpointUpdate is a single "host:port" backend target.
type EndpointUpdate struct {
	Addr string `json:"addr"`
}

// CredentialUpdate is a plaintext MySQL user/password pair as read by the
// control plane from the namespace spec; the core encrypts it at rest
// the moment it is applied and never logs or stores it in this form.
type CredentialUpdate struct {
	Label    string `json:"label"`
	User     string `json:"user"`
	Password string `json:"password"`
}
