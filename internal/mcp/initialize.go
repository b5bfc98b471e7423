package mcp

// Lifecycle methods and the protocol revision this server speaks.
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	ProtocolVersion  = "2024-11-05"

	NotificationInitialized = "notifications/initialized"
)

// Implementation names one side of the session, as carried in clientInfo
// and serverInfo.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeRequest is the part of initialize params the server reads.
// Client capabilities are accepted and ignored.
type InitializeRequest struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    M               `json:"capabilities"`
	ClientInfo      *Implementation `json:"clientInfo"`
}

// InitializeResponse is fixed once the Dispatcher is built and returned
// verbatim to every initialize call.
type InitializeResponse struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    M              `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

// InitializedParams is carried by the unsolicited notifications/initialized
// event a stream sends when it opens.
type InitializedParams struct {
	ServerInfo   Implementation `json:"serverInfo"`
	Capabilities M              `json:"capabilities"`
}

// Only tools are served; prompts and resources are not advertised.
var DefaultCapabilities = M{
	"tools": M{"listChanged": false},
}
