package subscription

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestParse_URIList(t *testing.T) {
	raw := strings.Join([]string{
		"# comment",
		"  ",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201",
		"ss://YWVzLTEyOC1nY206cDI=@example.com:8389#Node%202",
		"",
	}, "\n")

	res, err := Parse("https://example.com/sub.txt", []byte(raw), FormatAuto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format != FormatURI {
		t.Fatalf("format=%q, want=%q", res.Format, FormatURI)
	}
	if len(res.Nodes) != 2 {
		t.Fatalf("len=%d, want=2", len(res.Nodes))
	}
	if res.Nodes[0].Name != "Node 1" {
		t.Fatalf("name=%q, want=%q", res.Nodes[0].Name, "Node 1")
	}
	if res.Nodes[0].Server != "example.com" || res.Nodes[0].Port != 8388 {
		t.Fatalf("server/port=%q/%d, want example.com/8388", res.Nodes[0].Server, res.Nodes[0].Port)
	}
	if res.Nodes[1].Password != "p2" {
		t.Fatalf("password=%q, want=p2", res.Nodes[1].Password)
	}
}

func TestParse_Base64List(t *testing.T) {
	raw := "ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201\n"
	b64 := base64.StdEncoding.EncodeToString([]byte(raw))

	res, err := Parse("https://example.com/sub.b64", []byte(b64), FormatAuto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format != FormatBase64 {
		t.Fatalf("format=%q, want=%q", res.Format, FormatBase64)
	}
	if len(res.Nodes) != 1 || res.Nodes[0].Name != "Node 1" {
		t.Fatalf("nodes=%+v, want one node named Node 1", res.Nodes)
	}
}

func TestParse_ClashDocument(t *testing.T) {
	doc := `
port: 7890
proxies:
  - name: hk-01
    type: ss
    server: hk.example.com
    port: 443
    cipher: aes-256-gcm
    password: secret
    region: HK
    udp: true
  - name: jp-01
    type: trojan
    server: jp.example.com
    port: "8443"
    password: t0ken
    sni: jp.example.com
  - name: broken
    type: ss
    port: 443
`
	res, err := Parse("inline", []byte(doc), FormatAuto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format != FormatClash {
		t.Fatalf("format=%q, want=%q", res.Format, FormatClash)
	}
	if len(res.Nodes) != 2 {
		t.Fatalf("len=%d, want=2", len(res.Nodes))
	}
	hk := res.Nodes[0]
	if hk.Region != "HK" || hk.Cipher != "aes-256-gcm" || hk.Protocol != "ss" {
		t.Fatalf("hk node=%+v", hk)
	}
	if hk.Extra["udp"] != true {
		t.Fatalf("extra udp=%v, want true", hk.Extra["udp"])
	}
	if res.Nodes[1].Port != 8443 || res.Nodes[1].Protocol != "trojan" {
		t.Fatalf("jp node=%+v", res.Nodes[1])
	}
	if len(res.Rejected) != 1 {
		t.Fatalf("rejected=%d, want=1", len(res.Rejected))
	}
	if res.Rejected[0].AppError.Code != CodeMissingField || res.Rejected[0].AppError.Node != "broken" {
		t.Fatalf("rejected=%+v", res.Rejected[0].AppError)
	}
}

func TestParse_ClashDocumentKeepsEntriesAroundScalar(t *testing.T) {
	doc := `
proxies:
  - {name: a, type: ss, server: a.example.com, port: 1, cipher: x, password: y}
  - just-a-string
  - [1, 2]
  - {name: b, type: ss, server: b.example.com, port: 2, cipher: x, password: y}
`
	res, err := Parse("inline", []byte(doc), FormatClash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Nodes) != 2 || res.Nodes[0].Name != "a" || res.Nodes[1].Name != "b" {
		t.Fatalf("nodes=%+v, want a and b", res.Nodes)
	}
	if len(res.Rejected) != 2 {
		t.Fatalf("rejected=%d, want=2", len(res.Rejected))
	}
	for i, want := range []string{"proxies[1]", "proxies[2]"} {
		pe := res.Rejected[i]
		if pe.AppError.Code != CodeInvalidEntry || pe.AppError.Hint != want {
			t.Errorf("rejected[%d]=%+v, want code %s at %s", i, pe.AppError, CodeInvalidEntry, want)
		}
		if errors.Is(pe, ErrInvalidDocument) {
			t.Errorf("rejected[%d] should not report the whole document as invalid", i)
		}
	}
}

func TestParse_EmptyPayloadIsNotAnError(t *testing.T) {
	for _, raw := range []string{"", "   \n", "\uFEFF"} {
		res, err := Parse("inline", []byte(raw), FormatAuto)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", raw, err)
		}
		if len(res.Nodes) != 0 {
			t.Fatalf("Parse(%q) nodes=%d, want 0", raw, len(res.Nodes))
		}
	}
}

func TestParse_RejectsEntriesWithoutAbortingBatch(t *testing.T) {
	raw := strings.Join([]string{
		"ss://YWVzLTEyOC1nY206cGFzcw==@a.example.com:8388#ok",
		"ss://%%%@b.example.com:8388#bad-userinfo",
		"vmess://eyJhZGQiOiJ4In0=",
		"ss://YWVzLTEyOC1nY206cGFzcw==@c.example.com:99999#bad-port",
	}, "\n")

	res, err := Parse("inline", []byte(raw), FormatURI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Nodes) != 1 || res.Nodes[0].Name != "ok" {
		t.Fatalf("nodes=%+v, want only 'ok'", res.Nodes)
	}
	if len(res.Rejected) != 3 {
		t.Fatalf("rejected=%d, want=3", len(res.Rejected))
	}

	wantCodes := []string{CodeInvalidEncoding, CodeUnsupportedScheme, CodeInvalidAddress}
	for i, pe := range res.Rejected {
		if pe.AppError.Code != wantCodes[i] {
			t.Errorf("rejected[%d].code=%q, want=%q", i, pe.AppError.Code, wantCodes[i])
		}
		if pe.AppError.Line != i+2 {
			t.Errorf("rejected[%d].line=%d, want=%d", i, pe.AppError.Line, i+2)
		}
		if pe.AppError.Stage != "parse_sub" {
			t.Errorf("rejected[%d].stage=%q", i, pe.AppError.Stage)
		}
	}
	if !errors.Is(res.Rejected[0], ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", res.Rejected[0])
	}
}

func TestParse_DuplicateNamesAreSuffixed(t *testing.T) {
	raw := strings.Join([]string{
		"ss://YWVzLTEyOC1nY206cGFzcw==@a.example.com:1#dup",
		"ss://YWVzLTEyOC1nY206cGFzcw==@a.example.com:1#dup",
		"ss://YWVzLTEyOC1nY206cGFzcw==@b.example.com:2#dup-2",
		"ss://YWVzLTEyOC1nY206cGFzcw==@c.example.com:3#dup",
	}, "\n")

	res, err := Parse("inline", []byte(raw), FormatURI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := make([]string, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		got = append(got, n.Name)
	}
	want := []string{"dup", "dup-3", "dup-2", "dup-4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("names=%v, want=%v", got, want)
	}
	// Same endpoint listed twice is retained as two nodes.
	if res.Nodes[0].Address() != res.Nodes[1].Address() {
		t.Fatalf("duplicate endpoints should be kept")
	}
}

func TestParse_UndecodablePayload(t *testing.T) {
	_, err := Parse("inline", []byte("this is not a subscription!"), FormatAuto)
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.AppError.Source != "inline" {
		t.Fatalf("expected *ParseError with source, got %T: %v", err, err)
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse("inline", []byte("proxies:\n  - name: [unterminated"), FormatClash)
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":        FormatAuto,
		"CLASH":   FormatClash,
		" uri ":   FormatURI,
		"base64":  FormatBase64,
		"unknown": FormatAuto,
	}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q)=%q, want=%q", in, got, want)
		}
	}
}
