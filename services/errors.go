package services

import (
	"github.com/fanyicharllson/whichemail/rowstore"
	"github.com/goliatone/go-errors"
)

// Kind groups mutation failures by how they are reported.
type Kind int

const (
	// KindTransport covers failures to reach the backend.
	KindTransport Kind = iota
	// KindUnauthenticated means no owning user was resolved.
	KindUnauthenticated
	// KindRejected means the backend refused the request.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindRejected:
		return "rejected"
	default:
		return "transport"
	}
}

// TransportMessage is shown when the backend could not be reached.
const TransportMessage = "Please check your connection and try again"

// ErrNotAuthenticated is returned by writes attempted without a signed in
// user. Such writes never reach the backend.
var ErrNotAuthenticated = errors.New("Not authenticated", errors.CategoryAuth).
	WithTextCode("NOT_AUTHENTICATED")

// Classify maps err to its Kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return KindUnauthenticated
	case rowstore.IsRejection(err):
		return KindRejected
	default:
		return KindTransport
	}
}

// UserMessage returns the text shown to the user for err: the backend's own
// message for rejections, a retry prompt for transport failures.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case KindUnauthenticated:
		return ErrNotAuthenticated.Message
	case KindRejected:
		var e *errors.Error
		if errors.As(err, &e) && e.Message != "" {
			return e.Message
		}
		return err.Error()
	default:
		return TransportMessage
	}
}

// readMessage is the message attached to read failure notifications.
func readMessage(err error) string {
	var e *errors.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
