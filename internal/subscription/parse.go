package subscription

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
)

// Format hints how a payload is encoded.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatURI    Format = "uri"
	FormatBase64 Format = "base64"
	FormatClash  Format = "clash"
)

// ParseFormat maps user input to a Format; unknown values fall back to auto.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatURI:
		return FormatURI
	case FormatBase64:
		return FormatBase64
	case FormatClash:
		return FormatClash
	default:
		return FormatAuto
	}
}

// Result is the outcome of a parse. Rejected entries never appear in Nodes.
type Result struct {
	Format   Format
	Nodes    []*domain.Node
	Rejected []*ParseError
}

// Parse decodes a subscription payload into an ordered node sequence.
//
// Entry-level problems are collected in Result.Rejected; an error is only
// returned when the payload cannot be decoded as a whole. An empty payload
// yields an empty node list, not an error.
func Parse(source string, raw []byte, hint Format) (*Result, error) {
	text := strings.TrimSpace(strings.TrimPrefix(string(raw), "\uFEFF"))
	if text == "" {
		return &Result{Format: hint}, nil
	}
	if !utf8.ValidString(text) {
		return nil, newParseError(CodeInvalidDocument, "payload is not valid utf-8", nil).at(source, 0, "")
	}

	format := hint
	if format == "" || format == FormatAuto {
		format = detectFormat(text)
	}

	var (
		res *Result
		err error
	)
	switch format {
	case FormatClash:
		res, err = parseClashDocument(source, []byte(text))
	case FormatBase64:
		res, err = parseBase64List(source, text)
	case FormatURI:
		res = parseURIList(source, text)
	default:
		return nil, fmt.Errorf("unknown subscription format %q", format)
	}
	if err != nil {
		return nil, err
	}
	res.Format = format
	res.Nodes = disambiguateNames(res.Nodes)
	return res, nil
}

func detectFormat(text string) Format {
	if looksLikeClash(text) {
		return FormatClash
	}
	if strings.Contains(text, "://") {
		return FormatURI
	}
	return FormatBase64
}

func looksLikeClash(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimRight(line, "\r "), "proxies:") {
			return true
		}
	}
	return false
}

func parseBase64List(source, text string) (*Result, error) {
	decoded, err := decodeBase64(removeWhitespace(text))
	if err != nil || !utf8.Valid(decoded) {
		return nil, newParseError(CodeInvalidDocument, "subscription is neither a node list nor base64 of one", ErrInvalidEncoding).
			at(source, 0, text)
	}
	decoded = bytes.TrimSpace(bytes.TrimPrefix(decoded, []byte("\uFEFF")))
	if looksLikeClash(string(decoded)) {
		return parseClashDocument(source, decoded)
	}
	return parseURIList(source, string(decoded)), nil
}

func parseURIList(source, text string) *Result {
	res := &Result{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		node, err := ParseURI(line)
		if err != nil {
			pe := asParseError(err)
			res.Rejected = append(res.Rejected, pe.at(source, i+1, line))
			continue
		}
		res.Nodes = append(res.Nodes, node)
	}
	return res
}

// disambiguateNames makes names unique by suffixing an index, keeping order.
// Unnamed nodes are named after their address.
func disambiguateNames(nodes []*domain.Node) []*domain.Node {
	original := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.Name == "" {
			n.Name = n.Address()
		}
		original[n.Name] = true
	}
	used := make(map[string]bool, len(nodes))
	next := make(map[string]int)
	for _, n := range nodes {
		base := n.Name
		if !used[base] {
			used[base] = true
			continue
		}
		for {
			next[base]++
			candidate := fmt.Sprintf("%s-%d", base, next[base]+1)
			if !original[candidate] && !used[candidate] {
				n.Name = candidate
				used[candidate] = true
				break
			}
		}
	}
	return nodes
}

func asParseError(err error) *ParseError {
	if pe, ok := err.(*ParseError); ok {
		return pe
	}
	return newParseError(CodeInvalidDocument, "unexpected parse failure", err)
}

func removeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if len(s) <= max {
		return s
	}
	return s[:max]
}
