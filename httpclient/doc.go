// Package httpclient sends authenticated requests to edX REST APIs.
//
// Session is the long-lived, self-refreshing client: before every request it
// obtains a valid token from an oauth2client.TokenManager (which consults the
// shared token cache) and attaches it as "Bearer <token>", or "JWT <token>"
// for the jwt token type. Builder constructs plain *http.Client values with
// connect/read timeouts, TLS/mTLS, and either a TokenManager or a static
// auth.Attacher injected through Transport or OAuth2Transport.
//
// # Features
//
//   - Token check before every request; failures surface unchanged and are never retried
//   - Relative request URLs resolved against the session base URL
//   - Per-request headers, query parameters, and timeouts
//   - X-Request-ID forwarding from the context (WithRequestID, RequestIDMiddleware)
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//
// # Quick Start
//
//	tc := oauth2client.NewTokenCache(store, nil)
//	tm := oauth2client.NewTokenManager(ctx, tc, "https://lms.example.com", "client-id", "client-secret")
//
//	session, err := httpclient.NewSession("https://ecommerce.example.com/api/v2/", tm)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := session.Get(ctx, "orders/", httpclient.WithRequestTimeout(10*time.Second))
//
// # Manual Transport Wrapping
//
//	signer, _ := auth.NewJWTAuth("worker", signingKey)
//	client := &http.Client{Transport: httpclient.NewTransport(signer, nil)}
//
// All components are safe for concurrent use.
package httpclient
