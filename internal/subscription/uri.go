package subscription

import (
	"encoding/base64"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

const schemeSS = "ss://"

// ParseURI decodes one single-node URI:
//
//	ss://method:password@host:port?param=value&name=display-name
//	ss://BASE64(method:password)@host:port/?plugin=...#display-name
//	ss://BASE64(method:password@host:port)#display-name
//
// The node is either fully populated or not returned at all.
func ParseURI(raw string) (*domain.Node, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(s), schemeSS) {
		scheme, _, _ := strings.Cut(s, "://")
		return nil, newParseError(CodeUnsupportedScheme, "unsupported node scheme", nil).
			withNode(scheme)
	}
	s = s[len(schemeSS):]

	withoutFrag, frag, hasFrag := strings.Cut(s, "#")
	name := ""
	if hasFrag {
		decoded, err := url.PathUnescape(frag)
		if err != nil {
			return nil, newParseError(CodeInvalidEncoding, "node name is not valid percent-encoding", err)
		}
		name = strings.TrimSpace(decoded)
	}

	body, query, _ := strings.Cut(withoutFrag, "?")
	params, err := parseQuery(query)
	if err != nil {
		return nil, err
	}

	if body == "" {
		return nil, newParseError(CodeMissingField, "empty ss uri", nil)
	}

	var node *domain.Node
	if userInfo, hostPart, ok := cutLast(body, "@"); ok {
		method, password, err := decodeUserInfo(userInfo)
		if err != nil {
			return nil, newParseError(CodeInvalidEncoding, "malformed user-info", err)
		}
		node, err = newSSNode(method, password, strings.TrimSuffix(hostPart, "/"))
		if err != nil {
			return nil, err
		}
	} else {
		// Legacy form: the whole body is base64.
		decoded, err := decodeBase64(strings.TrimSuffix(body, "/"))
		if err != nil || !utf8.Valid(decoded) {
			return nil, newParseError(CodeInvalidEncoding, "legacy ss body is not base64", err)
		}
		cred, hostPart, ok := cutLast(string(decoded), "@")
		if !ok {
			return nil, newParseError(CodeInvalidEncoding, "legacy ss body is missing '@'", nil)
		}
		method, password, err := splitMethodPassword(cred)
		if err != nil {
			return nil, newParseError(CodeInvalidEncoding, "malformed user-info", err)
		}
		node, err = newSSNode(method, password, hostPart)
		if err != nil {
			return nil, err
		}
	}

	for _, kv := range params {
		switch kv.Key {
		case "name":
			if name == "" {
				name = strings.TrimSpace(kv.Value)
			}
		case "plugin":
			plugin, opts, err := parsePlugin(kv.Value)
			if err != nil {
				return nil, err
			}
			node.Plugin, node.PluginOpts = plugin, opts
		case "region", "tag":
			node.Region = strings.TrimSpace(kv.Value)
		default:
			node.Params = append(node.Params, kv)
		}
	}
	if strings.ContainsAny(name, "\r\n\x00") {
		return nil, newParseError(CodeInvalidEncoding, "node name contains control characters", nil)
	}
	node.Name = name
	return node, nil
}

// EncodeURI renders a node in the SIP002 form understood by ParseURI.
func EncodeURI(n *domain.Node) string {
	var b strings.Builder
	b.WriteString(schemeSS)
	b.WriteString(base64.RawURLEncoding.EncodeToString([]byte(n.Cipher + ":" + n.Password)))
	b.WriteByte('@')
	b.WriteString(n.Address())

	q := make([]string, 0, len(n.Params)+2)
	if n.Plugin != "" {
		plugin := n.Plugin
		for _, kv := range n.PluginOpts {
			plugin += ";" + kv.Key + "=" + kv.Value
		}
		q = append(q, "plugin="+url.QueryEscape(plugin))
	}
	if n.Region != "" {
		q = append(q, "region="+url.QueryEscape(n.Region))
	}
	for _, kv := range n.Params {
		q = append(q, url.QueryEscape(kv.Key)+"="+url.QueryEscape(kv.Value))
	}
	if len(q) > 0 {
		b.WriteString("/?")
		b.WriteString(strings.Join(q, "&"))
	}
	if n.Name != "" {
		b.WriteByte('#')
		b.WriteString(url.PathEscape(n.Name))
	}
	return b.String()
}

func newSSNode(method, password, hostPort string) (*domain.Node, error) {
	host, port, err := parseHostPort(hostPort)
	if err != nil {
		return nil, newParseError(CodeInvalidAddress, "invalid server address or port", err)
	}
	return &domain.Node{
		Protocol: "ss",
		Server:   host,
		Port:     port,
		Cipher:   method,
		Password: password,
	}, nil
}

// decodeUserInfo accepts plain percent-encoded "method:password" or its base64 form.
func decodeUserInfo(userInfo string) (string, string, error) {
	if plain, err := url.PathUnescape(userInfo); err == nil && strings.Contains(plain, ":") {
		return splitMethodPassword(plain)
	}
	decoded, err := decodeBase64(userInfo)
	if err != nil {
		return "", "", err
	}
	if !utf8.Valid(decoded) {
		return "", "", errors.New("decoded user-info is not valid utf-8")
	}
	return splitMethodPassword(string(decoded))
}

func splitMethodPassword(s string) (string, string, error) {
	method, password, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", errors.New("missing ':' between method and password")
	}
	method = strings.TrimSpace(method)
	if method == "" || password == "" {
		return "", "", errors.New("empty method or password")
	}
	if strings.ContainsAny(method, "\r\n\x00") || strings.ContainsAny(password, "\r\n\x00") {
		return "", "", errors.New("control characters in method or password")
	}
	return method, password, nil
}

// parseQuery splits on '&' only: SIP002 plugin values contain ';' which
// url.ParseQuery rejects.
func parseQuery(query string) ([]domain.KV, error) {
	if query == "" {
		return nil, nil
	}
	var out []domain.KV
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		kRaw, vRaw, _ := strings.Cut(part, "=")
		k, err := url.QueryUnescape(kRaw)
		if err != nil {
			return nil, newParseError(CodeInvalidQuery, "query key is not valid percent-encoding", err)
		}
		v, err := url.QueryUnescape(vRaw)
		if err != nil {
			return nil, newParseError(CodeInvalidQuery, "query value is not valid percent-encoding", err)
		}
		if k == "" {
			return nil, newParseError(CodeInvalidQuery, "empty query key", nil)
		}
		out = append(out, domain.KV{Key: k, Value: v})
	}
	return out, nil
}

func parsePlugin(value string) (string, []domain.KV, error) {
	segs := strings.Split(value, ";")
	name := strings.TrimSpace(segs[0])
	if name == "" {
		return "", nil, newParseError(CodeInvalidQuery, "plugin name is empty", nil)
	}
	opts := make([]domain.KV, 0, len(segs)-1)
	for _, seg := range segs[1:] {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			return "", nil, newParseError(CodeInvalidQuery, "plugin option key is empty", nil)
		}
		opts = append(opts, domain.KV{Key: k, Value: v})
	}
	return name, opts, nil
}

func parseHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return "", 0, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, err
	}
	if port < 1 || port > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, port, nil
}

// decodeBase64 tries the standard alphabet first, then URL-safe, then unpadded variants.
func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
