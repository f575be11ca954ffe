// Package cache defines the key-value store used by cached service reads.
//
// # Overview
//
//   - CacheService: read-through GetOrFetch plus direct Get, Set, Delete and
//     DeleteByPrefix. The default implementation is backed by sturdyc and
//     deduplicates concurrent fetches for the same key.
//   - KeySerializer: builds "::" separated keys from a namespace and segments.
//
// # Keys
//
//	serializer := cache.NewDefaultKeySerializer()
//	serializer.SerializeKey("services", ownerID)              // services::<owner>
//	serializer.SerializeKey("service", id)                    // service::<id>
//	serializer.SerializeKey("services", "search", q, ownerID) // services::search::<q>::<owner>
//
// Segments longer than 64 bytes, or containing the separator, are replaced by
// an xxhash digest so free-text search queries cannot break prefix matching.
//
// # Typed access
//
//	list, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) ([]model.Service, error) {
//		return queries.FetchList(ctx, ownerID)
//	})
//
// A fetch that returns ErrNotFound is remembered as a missing record when
// Config.MissingRecordStorage is set, so absent items are not refetched on
// every read.
package cache
