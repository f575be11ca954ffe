package services

import (
	"github.com/fanyicharllson/whichemail/cache"
)

const (
	listNamespace  = "services"
	itemNamespace  = "service"
	searchSegment  = "search"
	ownerNamespace = "owner"
)

// Keys builds the cache keys of service reads.
type Keys struct {
	serializer cache.KeySerializer
}

// NewKeys returns Keys using serializer, or the default serializer when nil.
func NewKeys(serializer cache.KeySerializer) Keys {
	if serializer == nil {
		serializer = cache.NewDefaultKeySerializer()
	}
	return Keys{serializer: serializer}
}

// List is the key of the owner's service list: services::<owner>.
func (k Keys) List(ownerID string) string {
	return k.serializer.SerializeKey(listNamespace, ownerID)
}

// Item is the key of one service: service::<id>.
func (k Keys) Item(id string) string {
	return k.serializer.SerializeKey(itemNamespace, id)
}

// Search is the key of a search result: services::search::<query>::<owner>.
func (k Keys) Search(query, ownerID string) string {
	return k.serializer.SerializeKey(listNamespace, searchSegment, query, ownerID)
}

// SearchPrefix matches every search key.
func (k Keys) SearchPrefix() string {
	return k.serializer.SerializeKey(listNamespace, searchSegment) + cache.KeySeparator
}

// OwnerTag groups every key read on behalf of ownerID.
func (k Keys) OwnerTag(ownerID string) string {
	return k.serializer.SerializeKey(ownerNamespace, ownerID)
}
