// Package oauth2client obtains and caches OAuth2 access tokens for the
// client credentials and refresh token grants.
//
// Fetcher performs one POST against the token endpoint. TokenCache wraps a
// Fetcher with a cache.Cache keyed by endpoint, client id, token type and
// grant type, and refreshes entries inside a safety margin before they expire.
// TokenManager binds one grant to a TokenCache for use by HTTP sessions,
// gRPC interceptors, and golang.org/x/oauth2 consumers.
//
// # Features
//
//   - Endpoint normalization so any spelling of a base URL shares one cache slot
//   - Distinct errors for rejected requests (*HTTPError) and unusable bodies (*MalformedResponseError)
//   - Memory, Redis, or tiered token storage via the cache package
//   - Per-key collapsing of concurrent fetches (disable with WithoutSingleFlight)
//   - gRPC unary and stream client interceptors
//   - zap logging, Prometheus metrics, and OpenTelemetry spans
//
// # Quick Start
//
//	store, err := cache.New(&cfg.Cache, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tc := oauth2client.NewTokenCache(store, nil, oauth2client.WithLogger(logger))
//	tm := oauth2client.NewTokenManager(ctx, tc, "https://lms.example.com", "client-id", "client-secret")
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
//	    grpc.WithStreamInterceptor(tm.StreamClientInterceptor()),
//	)
//
// # Notes
//
//   - The client secret is not part of the cache key.
//   - No operation retries; every failure reaches the caller.
package oauth2client
