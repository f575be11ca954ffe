package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// maxSegmentLength bounds a single key segment. Longer segments are hashed.
const maxSegmentLength = 64

// KeySerializer builds a cache key from a namespace and its segments.
// Keys that share leading segments share a prefix, which is what prefix
// invalidation relies on.
type KeySerializer interface {
	SerializeKey(namespace string, parts ...any) string
}

type segmentKeySerializer struct{}

// NewDefaultKeySerializer creates the serializer used for every service key.
func NewDefaultKeySerializer() KeySerializer {
	return &segmentKeySerializer{}
}

// SerializeKey joins namespace and parts with KeySeparator.
//
//	SerializeKey("services", "u1")                    // services::u1
//	SerializeKey("services", "search", "git", "u1")   // services::search::git::u1
func (s *segmentKeySerializer) SerializeKey(namespace string, parts ...any) string {
	if len(parts) == 0 {
		return namespace
	}

	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, namespace)
	for _, part := range parts {
		segments = append(segments, segment(part))
	}
	return strings.Join(segments, KeySeparator)
}

func segment(v any) string {
	var raw string
	switch t := v.(type) {
	case nil:
		return "nil"
	case string:
		raw = t
	case *string:
		if t == nil {
			return "nil"
		}
		raw = *t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		raw = t.String()
	default:
		raw = fmt.Sprintf("%v", t)
	}

	if raw == "" {
		return "_"
	}
	// Free text may contain the separator or be arbitrarily long; neither may
	// leak into the key structure.
	if len(raw) > maxSegmentLength || strings.Contains(raw, KeySeparator) {
		return "h:" + strconv.FormatUint(xxhash.Sum64String(raw), 16)
	}
	return raw
}
