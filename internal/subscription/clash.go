package subscription

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// clashDocument is the subset of a Clash/mihomo config a subscription carries.
type clashDocument struct {
	Proxies []any `yaml:"proxies"`
}

// Keys consumed into typed Node fields; everything else lands in Node.Extra.
var clashKnownKeys = map[string]bool{
	"name": true, "type": true, "server": true, "port": true,
	"cipher": true, "password": true, "plugin": true, "plugin-opts": true,
	"region": true, "tag": true,
}

func parseClashDocument(source string, data []byte) (*Result, error) {
	var doc clashDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newParseError(CodeInvalidDocument, "subscription yaml is malformed", err).at(source, 0, "")
	}

	res := &Result{}
	for i, entry := range doc.Proxies {
		node, err := clashEntryToNode(entry)
		if err != nil {
			pe := asParseError(err)
			pe.AppError.Source = source
			pe.AppError.Hint = fmt.Sprintf("proxies[%d]", i)
			res.Rejected = append(res.Rejected, pe)
			continue
		}
		res.Nodes = append(res.Nodes, node)
	}
	return res, nil
}

func clashEntryToNode(raw any) (*domain.Node, error) {
	entry, ok := raw.(map[string]any)
	if !ok {
		return nil, newParseError(CodeInvalidEntry, fmt.Sprintf("proxy entry is %T, want a mapping", raw), nil)
	}
	name, _ := stringField(entry, "name")
	for _, key := range []string{"name", "server", "type"} {
		if v, ok := stringField(entry, key); !ok || strings.TrimSpace(v) == "" {
			return nil, newParseError(CodeMissingField, "missing mandatory field "+key, nil).withNode(name)
		}
	}
	port, err := portField(entry["port"])
	if err != nil {
		return nil, newParseError(CodeInvalidAddress, "invalid port", err).withNode(name)
	}

	server, _ := stringField(entry, "server")
	protocol, _ := stringField(entry, "type")
	node := &domain.Node{
		Name:     strings.TrimSpace(name),
		Protocol: strings.ToLower(strings.TrimSpace(protocol)),
		Server:   strings.TrimSpace(server),
		Port:     port,
	}
	node.Cipher, _ = stringField(entry, "cipher")
	node.Password, _ = stringField(entry, "password")
	node.Plugin, _ = stringField(entry, "plugin")
	if region, ok := stringField(entry, "region"); ok {
		node.Region = region
	} else if tag, ok := stringField(entry, "tag"); ok {
		node.Region = tag
	}
	if opts, ok := entry["plugin-opts"].(map[string]any); ok {
		node.PluginOpts = sortedKVs(opts)
	}
	if node.Protocol == "ss" && (node.Cipher == "" || node.Password == "") {
		return nil, newParseError(CodeMissingField, "ss node requires cipher and password", nil).withNode(node.Name)
	}

	for k, v := range entry {
		if clashKnownKeys[k] {
			continue
		}
		if node.Extra == nil {
			node.Extra = make(map[string]any)
		}
		node.Extra[k] = v
	}
	return node, nil
}

func stringField(entry map[string]any, key string) (string, bool) {
	switch v := entry[key].(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

func portField(v any) (int, error) {
	var port int
	switch p := v.(type) {
	case int:
		port = p
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, err
		}
		port = n
	case nil:
		return 0, fmt.Errorf("missing mandatory field port")
	default:
		return 0, fmt.Errorf("unexpected port type %T", v)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

func sortedKVs(m map[string]any) []domain.KV {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.KV, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.KV{Key: k, Value: fmt.Sprint(m[k])})
	}
	return out
}
