// Package testutil provides test helpers for the client packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// mock OAuth2 token endpoints without real sockets, a manual clock, and self-signed certificates
// for TLS/mTLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - MockOAuth2Server: stub token endpoint that records requests and form bodies
//   - TokenJSON, SequentialTokens, StatusResponse: canned token endpoint behaviors
//   - RoundTripFunc: inline http.RoundTripper implementations
//   - Clock: deterministic time source for expiry tests
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
package testutil
