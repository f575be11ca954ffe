package cache

import (
	"strings"
	"testing"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestDefaultKeySerializer_Segments(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	query := "git"

	tests := []struct {
		name      string
		namespace string
		args      []any
		want      string
	}{
		{
			name:      "namespace only",
			namespace: "services",
			want:      "services",
		},
		{
			name:      "owner list",
			namespace: "services",
			args:      []any{"u1"},
			want:      joinWithSeparator("services", "u1"),
		},
		{
			name:      "search key",
			namespace: "services",
			args:      []any{"search", "git", "u1"},
			want:      joinWithSeparator("services", "search", "git", "u1"),
		},
		{
			name:      "basic types",
			namespace: "page",
			args:      []any{1, int64(2), true},
			want:      joinWithSeparator("page", "1", "2", "true"),
		},
		{
			name:      "nil and empty",
			namespace: "service",
			args:      []any{nil, ""},
			want:      joinWithSeparator("service", "nil", "_"),
		},
		{
			name:      "string pointer",
			namespace: "services",
			args:      []any{&query},
			want:      joinWithSeparator("services", "git"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.namespace, tt.args...)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDefaultKeySerializer_HashesUnsafeSegments(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	long := strings.Repeat("a", maxSegmentLength+1)
	key := serializer.SerializeKey("services", "search", long, "u1")
	if strings.Contains(key, long) {
		t.Errorf("expected long segment to be hashed, got %q", key)
	}
	if !strings.HasSuffix(key, KeySeparator+"u1") {
		t.Errorf("expected owner to stay the last segment, got %q", key)
	}

	withSep := serializer.SerializeKey("services", "search", "a::b", "u1")
	if got := strings.Count(withSep, KeySeparator); got != 3 {
		t.Errorf("expected 3 separators, got %d in %q", got, withSep)
	}

	again := serializer.SerializeKey("services", "search", long, "u1")
	if key != again {
		t.Errorf("expected stable hashing, got %q and %q", key, again)
	}
}
