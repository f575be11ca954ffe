package testsupport

import (
	"context"
	"sync"

	"github.com/fanyicharllson/whichemail/session"
)

// Owner is a switchable signed in user for tests.
type Owner struct {
	mu sync.RWMutex
	id string
}

// NewOwner returns an Owner signed in as id; "" means signed out.
func NewOwner(id string) *Owner {
	return &Owner{id: id}
}

// OwnerID returns the current user id.
func (o *Owner) OwnerID(context.Context) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}

// Set switches the signed in user.
func (o *Owner) Set(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.id = id
}

// Resolver returns a session resolver reporting the current user, or nil
// while signed out.
func (o *Owner) Resolver() session.Resolver {
	return session.ResolverFunc(func(ctx context.Context) (*session.User, error) {
		id := o.OwnerID(ctx)
		if id == "" {
			return nil, nil
		}
		return &session.User{ID: id, Email: id + "@example.com"}, nil
	})
}
