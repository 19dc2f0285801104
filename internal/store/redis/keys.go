package redis

import (
	"fmt"
	"strings"
)

const (
	// KeySubscription holds the last accepted subscription payload.
	KeySubscription = "clashfun:subscription"
	// KeySelection holds the last active node record.
	KeySelection = "clashfun:selection"
	// KeyPrefixHistory prefixes per-node probe history lists, keyed by Node.HistoryID.
	KeyPrefixHistory = "clashfun:history:"
)

// HistoryKey returns the Redis key for a node's probe history.
func HistoryKey(id string) string {
	return KeyPrefixHistory + id
}

// ExtractHistoryID extracts the node history id from a history key.
func ExtractHistoryID(key string) (string, error) {
	if !strings.HasPrefix(key, KeyPrefixHistory) || len(key) == len(KeyPrefixHistory) {
		return "", fmt.Errorf("invalid history key: %s", key)
	}
	return key[len(KeyPrefixHistory):], nil
}
