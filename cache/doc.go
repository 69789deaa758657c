// Package cache provides the storage tiers behind the OAuth2 token cache.
//
// Three implementations satisfy Cache:
//
//   - MemoryCache: process-local LRU with per-entry TTL
//   - RedisCache: shared across processes through Redis
//   - TieredCache: a memory tier in front of a distributed tier
//
// Caches are passed explicitly to the components that use them; there is no
// package-level instance.
//
//	c := cache.NewMemory(1000)
//	defer c.Close()
//
//	tc := oauth2client.NewTokenCache(c, oauth2client.NewFetcher())
package cache
