// Package grpcclient builds gRPC client connections that authenticate with
// edX OAuth2 access tokens.
//
// Tokens come from an oauth2client.TokenManager, so a connection built here
// shares cached tokens with httpclient sessions using the same manager or
// token cache. TLS 1.2+ with system roots is the default.
//
// # Quick Start
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("discovery.example.com:9090").
//	    WithOAuth2("https://lms.example.com", "client-id", "client-secret").
//	    WithTLS("/path/to/ca.crt", "", "", "discovery.example.com").
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	client := pb.NewYourServiceClient(conn)
//
// Every call carries "authorization: Bearer <token>" metadata, or
// "authorization: JWT <token>" for the jwt token type.
package grpcclient
