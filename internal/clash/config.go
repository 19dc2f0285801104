package clash

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// GroupName is the selector group every rendered config routes through.
const GroupName = "PROXY"

// Options describes the engine process and its runtime config.
type Options struct {
	Binary     string
	WorkDir    string
	MixedPort  int
	Controller string
	Secret     string
	LogLevel   string
}

type proxyGroup struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Proxies []string `yaml:"proxies"`
}

type runtimeConfig struct {
	MixedPort          int              `yaml:"mixed-port"`
	AllowLan           bool             `yaml:"allow-lan"`
	Mode               string           `yaml:"mode"`
	LogLevel           string           `yaml:"log-level"`
	ExternalController string           `yaml:"external-controller"`
	Secret             string           `yaml:"secret,omitempty"`
	Proxies            []map[string]any `yaml:"proxies"`
	ProxyGroups        []proxyGroup     `yaml:"proxy-groups"`
	Rules              []string         `yaml:"rules"`
}

// RenderConfig produces a mihomo config that routes all traffic through node.
// Exactly one proxy is present, so only one node can ever be active.
func RenderConfig(node *domain.Node, opt Options) ([]byte, error) {
	if !node.Valid() {
		return nil, fmt.Errorf("node %q has no connectable address", node.Name)
	}
	entry, err := proxyEntry(node)
	if err != nil {
		return nil, err
	}
	logLevel := opt.LogLevel
	if logLevel == "" {
		logLevel = "warning"
	}
	cfg := runtimeConfig{
		MixedPort:          opt.MixedPort,
		Mode:               "rule",
		LogLevel:           logLevel,
		ExternalController: opt.Controller,
		Secret:             opt.Secret,
		Proxies:            []map[string]any{entry},
		ProxyGroups:        []proxyGroup{{Name: GroupName, Type: "select", Proxies: []string{node.Name}}},
		Rules:              []string{"MATCH," + GroupName},
	}
	return yaml.Marshal(&cfg)
}

// proxyEntry converts a node back to a Clash proxy map. Fields preserved
// from a Clash document come first and typed fields override them.
func proxyEntry(n *domain.Node) (map[string]any, error) {
	entry := make(map[string]any, len(n.Extra)+8)
	for k, v := range n.Extra {
		entry[k] = v
	}
	entry["name"] = n.Name
	entry["type"] = n.Protocol
	entry["server"] = n.Server
	entry["port"] = n.Port
	if n.Cipher != "" {
		entry["cipher"] = n.Cipher
	}
	if n.Password != "" {
		entry["password"] = n.Password
	}
	if n.Plugin != "" {
		name, opts, err := pluginEntry(n)
		if err != nil {
			return nil, err
		}
		entry["plugin"] = name
		entry["plugin-opts"] = opts
	}
	return entry, nil
}

// writeFileAtomic replaces path so a reader never sees a partial config.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
