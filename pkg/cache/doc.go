// Package cache provides an optional Redis-backed cache for fetched result
// pages.
//
// Pages are keyed by endpoint and query parameters (including $filter,
// $select and any continuation token), so a re-run within the TTL replays
// the same pages without contacting the resource server.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 5*time.Minute)
//
//	key := cache.KeyFromURL("orders", requestURL)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch the page, then
//		entry, _ = cache.ResponseToEntry(resp, manager.TTL())
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - odata_cache_hits_total - Cache hits
//   - odata_cache_misses_total - Cache misses
//   - odata_cache_size_bytes - Bytes written to the cache
//   - odata_cache_errors_total{operation} - Cache operation errors
//
// Cache errors never fail a fetch; the caller logs them and goes to the
// network.
package cache
