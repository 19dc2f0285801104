package clash

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// ErrUnsupportedPlugin is returned when a node's plugin cannot be expressed
// in a mihomo config.
var ErrUnsupportedPlugin = errors.New("unsupported plugin")

// pluginEntry translates a node's plugin into mihomo's plugin name and
// plugin-opts. SIP003 option names (obfs, obfs-host, bare tls) and the
// mihomo names (mode, host, tls: true) are both accepted.
func pluginEntry(n *domain.Node) (string, map[string]any, error) {
	opts := make(map[string]string, len(n.PluginOpts))
	for _, kv := range n.PluginOpts {
		opts[strings.TrimSpace(kv.Key)] = strings.TrimSpace(kv.Value)
	}

	switch n.Plugin {
	case "simple-obfs", "obfs-local", "obfs":
		return obfsOpts(n, opts)
	case "v2ray-plugin", "gost-plugin":
		return v2rayOpts(n, opts)
	case "shadow-tls", "restls":
		// Only produced by Clash documents, already in mihomo form.
		out := make(map[string]any, len(opts))
		for k, v := range opts {
			out[k] = optValue(v)
		}
		return n.Plugin, out, nil
	default:
		return "", nil, fmt.Errorf("%w %q on node %q", ErrUnsupportedPlugin, n.Plugin, n.Name)
	}
}

func obfsOpts(n *domain.Node, opts map[string]string) (string, map[string]any, error) {
	mode := firstOf(opts, "mode", "obfs")
	if mode != "http" && mode != "tls" {
		return "", nil, fmt.Errorf("%w: obfs on node %q needs obfs=http|tls, got %q", ErrUnsupportedPlugin, n.Name, mode)
	}
	out := map[string]any{"mode": mode}
	if host := firstOf(opts, "host", "obfs-host"); host != "" {
		out["host"] = host
	}
	return "obfs", out, nil
}

func v2rayOpts(n *domain.Node, opts map[string]string) (string, map[string]any, error) {
	mode := opts["mode"]
	if mode == "" {
		mode = "websocket"
	}
	if mode != "websocket" {
		return "", nil, fmt.Errorf("%w: %s on node %q only supports mode=websocket, got %q", ErrUnsupportedPlugin, n.Plugin, n.Name, mode)
	}
	out := map[string]any{"mode": mode}
	if v, ok := opts["tls"]; ok {
		// A bare "tls" flag arrives with an empty value.
		out["tls"] = v == "" || isTrue(v)
	}
	for _, key := range []string{"host", "path"} {
		if v := opts[key]; v != "" {
			out[key] = v
		}
	}
	for _, key := range []string{"mux", "skip-cert-verify"} {
		if v, ok := opts[key]; ok {
			out[key] = v == "" || isTrue(v)
		}
	}
	return n.Plugin, out, nil
}

func firstOf(opts map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := opts[k]; v != "" {
			return v
		}
	}
	return ""
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func optValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil && v != "1" && v != "0" {
		return b
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return v
}
