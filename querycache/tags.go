package querycache

import (
	"context"
)

type cacheTagsContextKey struct{}

// WithTags attaches additional tags to the context. Every Query run with the
// returned context registers its key under these tags too.
func WithTags(ctx context.Context, tags ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}

	combined := dedupeStrings(append(tagsFromContext(ctx), tags...))
	if len(combined) == 0 {
		return ctx
	}
	return context.WithValue(ctx, cacheTagsContextKey{}, combined)
}

func tagsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if tags, ok := ctx.Value(cacheTagsContextKey{}).([]string); ok {
		return append([]string(nil), tags...)
	}
	return nil
}

// dedupeStrings drops empty and repeated entries, keeping first occurrences.
func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
