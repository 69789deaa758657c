// Package ecommerce is a client for the edX E-Commerce API: orders,
// payment processors and baskets.
//
//	client, err := ecommerce.New("https://ecommerce.example.com/api/v2",
//	    restclient.WithSigningKey(signingKey),
//	    restclient.WithUsername("edx"),
//	    restclient.WithEmail("edx@example.com"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	order, err := client.GetOrder(ctx, "EDX-100001")
package ecommerce
