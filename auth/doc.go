// Package auth provides the credential attachers used by the API clients.
//
// An Attacher sets exactly one Authorization header on an outbound request:
//
//   - JWTAuth signs a claims payload with a shared HS256 key ("JWT <token>")
//   - SuppliedJWTAuth forwards a caller-provided JWT ("JWT <token>")
//   - BearerAuth forwards an opaque access token ("Bearer <token>")
//
// Credentials gathers all supported inputs and resolves exactly one variant
// by priority, so client constructors can accept loosely-populated settings
// and still attach a single, predictable credential.
package auth
