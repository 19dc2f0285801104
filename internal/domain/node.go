package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strconv"
)

// KV is an ordered key/value pair. Order is kept so re-encoding a node is deterministic.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Node represents one candidate proxy endpoint decoded from a subscription.
//
// A Node is owned by exactly one Subscription snapshot and is identified by its
// Name inside that snapshot.
type Node struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// Name is unique within a subscription snapshot and is the display key.
	Name string `json:"name"`

	// Protocol is the proxy type, e.g. "ss" for URI nodes or the Clash "type" field.
	Protocol string `json:"protocol"`

	// ─────────────────────────────
	// Connection parameters
	// ─────────────────────────────

	Server   string `json:"server"`
	Port     int    `json:"port"`
	Cipher   string `json:"cipher,omitempty"`
	Password string `json:"-"`

	// Plugin/PluginOpts come from the SIP002 "plugin" parameter or Clash plugin fields.
	Plugin     string `json:"plugin,omitempty"`
	PluginOpts []KV   `json:"plugin_opts,omitempty"`

	// ─────────────────────────────
	// Labels & opaque data
	// ─────────────────────────────

	// Region is an optional free-text label used by filters.
	Region string `json:"region,omitempty"`

	// Params holds URI query parameters the core does not interpret.
	Params []KV `json:"params,omitempty"`

	// Extra holds structured-document fields the core does not interpret.
	// They are handed back to the proxy engine untouched.
	Extra map[string]any `json:"-"`
}

// Address returns the connectable host:port pair of the node.
func (n *Node) Address() string {
	return net.JoinHostPort(n.Server, strconv.Itoa(n.Port))
}

// HistoryID identifies the node across subscriptions: the same name with a
// different endpoint or credential is a different node.
func (n *Node) HistoryID() string {
	h := sha256.New()
	for _, part := range []string{n.Name, n.Protocol, n.Address(), n.Cipher, n.Password} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}

// Valid reports whether the node resolves to a connectable (host, port) pair.
func (n *Node) Valid() bool {
	return n != nil && n.Server != "" && n.Port >= 1 && n.Port <= 65535
}

// Param returns the first opaque parameter with the given key.
func (n *Node) Param(key string) (string, bool) {
	for _, kv := range n.Params {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}
