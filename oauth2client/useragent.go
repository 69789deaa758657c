package oauth2client

import (
	"os"
	"strings"
)

const (
	// Product is the first User-Agent product token.
	Product = "edx-rest-api-client"

	// ClientNameEnv overrides the client name reported in the User-Agent.
	ClientNameEnv = "EDX_REST_API_CLIENT_NAME"

	goHTTPClient      = "Go-http-client/1.1"
	unknownClientName = "unknown_client_name"
)

// Version is the library version reported in the User-Agent.
var Version = "1.9.2"

var hostname = os.Hostname

// ClientName identifies the calling process: the EDX_REST_API_CLIENT_NAME
// environment variable, else the host name, else a placeholder.
func ClientName() string {
	if name := strings.TrimSpace(os.Getenv(ClientNameEnv)); name != "" {
		return name
	}
	name, err := hostname()
	if err != nil || name == "" {
		return unknownClientName
	}
	return name
}

// UserAgent returns "edx-rest-api-client/<version> Go-http-client/1.1 <client-name>".
func UserAgent() string {
	return UserAgentFor(ClientName())
}

// UserAgentFor is UserAgent with an explicit client name.
func UserAgentFor(clientName string) string {
	return Product + "/" + Version + " " + goHTTPClient + " " + clientName
}
