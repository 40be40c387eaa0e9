package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixBookmark is the prefix for bookmark records
	KeyPrefixBookmark = "shelf:bookmark:"
	// KeyPrefixOwner is the prefix for per-owner indexes
	KeyPrefixOwner = "shelf:owner:"
	// KeyPrefixFeed is the prefix for per-owner change-feed channels
	KeyPrefixFeed = "shelf:feed:"
	// KeyPrefixSession is the prefix for session records and their channels
	KeyPrefixSession = "shelf:session:"
	// KeyPrefixUser is the prefix for user records (keyed by email)
	KeyPrefixUser = "shelf:user:"

	ownerIndexSuffix = ":bookmarks"
)

// BookmarkKey returns the Redis key for a bookmark record
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// OwnerIndexKey returns the sorted set of an owner's bookmark IDs, scored by inserted_at
func OwnerIndexKey(ownerID string) string {
	return KeyPrefixOwner + ownerID + ownerIndexSuffix
}

// FeedChannel returns the pub/sub channel carrying an owner's change events
func FeedChannel(ownerID string) string {
	return KeyPrefixFeed + ownerID
}

// SessionKey returns the Redis key for a session record
func SessionKey(id string) string {
	return KeyPrefixSession + id
}

// SessionChannel returns the pub/sub channel announcing a session's revocation
func SessionChannel(id string) string {
	return KeyPrefixSession + id + ":events"
}

// UserKey returns the Redis key for a user record
func UserKey(email string) string {
	return KeyPrefixUser + strings.ToLower(strings.TrimSpace(email))
}

// ExtractOwnerID extracts the owner ID from an owner index key
func ExtractOwnerID(key string) (string, error) {
	if !strings.HasPrefix(key, KeyPrefixOwner) || !strings.HasSuffix(key, ownerIndexSuffix) ||
		len(key) <= len(KeyPrefixOwner)+len(ownerIndexSuffix) {
		return "", fmt.Errorf("invalid owner index key: %s", key)
	}
	return key[len(KeyPrefixOwner) : len(key)-len(ownerIndexSuffix)], nil
}
