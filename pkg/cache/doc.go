// Package cache stores terminal owner-lookup results in Redis so that a
// business investigated once is not sent to the upstream model again until
// the entry expires.
//
// Only answers that are stable for a business are cached: a found owner and
// an explicit "no owner found". Credential failures and transient errors are
// never cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//	key := cache.KeyFor(rec, "gemini-2.5-flash")
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// ask the upstream, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(cache.OutcomeFound, owner, 24*time.Hour))
//	}
//
// # Keys
//
// Keys are derived from the business attributes after normalisation
// (case, surrounding whitespace, URL scheme and "www." prefix, phone
// punctuation), so the same business loaded from two files maps to the
// same entry. The model name is part of the key.
//
// # Metrics
//
//   - enricher_cache_hits_total{layer="redis"} - Cache hits
//   - enricher_cache_misses_total - Cache misses
//   - enricher_cache_size_bytes{layer="redis"} - Bytes written to / read from cache
//   - enricher_cache_errors_total{operation} - Cache operation errors
package cache
