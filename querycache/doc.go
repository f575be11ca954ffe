// Package querycache binds reads to cache keys and keeps them consistent with
// writes made elsewhere.
//
// A read is described by a Spec: a key, an enabled flag, optional tags and a
// fetch function.
//
//	list, err := querycache.Query(ctx, client, querycache.Spec[[]model.Service]{
//		Key:     "services::" + ownerID,
//		Enabled: ownerID != "",
//		Tags:    []string{"owner::" + ownerID},
//		Fetch:   func(ctx context.Context) ([]model.Service, error) { ... },
//	})
//
// Writers keep the cache in step in three ways:
//
//   - SetQueryData and UpdateQueryData replace a value directly.
//   - Invalidate marks a key stale; the next Query refetches it. Data stays
//     readable through GetQueryData in the meantime.
//   - RemoveTag drops every key registered under a tag, used when the signed
//     in user changes.
//
// BeginPatch supports optimistic writes: it snapshots the value, applies the
// edit, and returns a Patch that is later committed with the confirmed result
// or restored to the snapshot.
//
// Values stored in the cache are shared between readers. Update and apply
// functions must build new values instead of modifying the ones they receive.
package querycache
