package mysqlwire

// CapabilityFlags are the client/server capability bits exchanged
// during the handshake. Only the subset this proxy's backend client
// negotiates is named.
type CapabilityFlags uint32

const (
	ClientLongPassword CapabilityFlags = 1 << 0
	ClientFoundRows    CapabilityFlags = 1 << 1
	ClientLongFlag     CapabilityFlags = 1 << 2
	ClientConnectWithDB CapabilityFlags = 1 << 3
	ClientProtocol41   CapabilityFlags = 1 << 9
	ClientSSL          CapabilityFlags = 1 << 11
	ClientTransactions CapabilityFlags = 1 << 13
	ClientSecureConnection CapabilityFlags = 1 << 15
	ClientMultiStatements  CapabilityFlags = 1 << 16
	ClientMultiResults     CapabilityFlags = 1 << 17
	ClientPluginAuth       CapabilityFlags = 1 << 19
	ClientConnectAttrs     CapabilityFlags = 1 << 20
	ClientPluginAuthLenencClientData CapabilityFlags = 1 << 21
	ClientDeprecateEOF     CapabilityFlags = 1 << 24

	// BaseClientFlags is the capability set this proxy asks for in its
	// handshake response: everything needed to speak protocol 4.1 with
	// a named schema and a length-encoded auth response, nothing more.
	BaseClientFlags = ClientLongPassword | ClientProtocol41 | ClientSecureConnection |
		ClientConnectWithDB | ClientPluginAuth | ClientTransactions |
		ClientMultiStatements | ClientMultiResults
)

func (f CapabilityFlags) Has(bit CapabilityFlags) bool { return f&bit != 0 }

// StatusFlags report server-side session state carried on OK/EOF
// packets.
type StatusFlags uint16

const (
	StatusMoreResultsExists StatusFlags = 0x0008
)

func (f StatusFlags) Has(bit StatusFlags) bool { return f&bit != 0 }
