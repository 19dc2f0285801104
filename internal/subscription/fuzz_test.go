package subscription

import "testing"

func FuzzParse(f *testing.F) {
	seed := []string{
		"",
		"   \n",
		"# comment\nss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201\n",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388/?plugin=simple-obfs%3Bobfs%3Dtls#obfs\n",
		"ss://YWVzLTEyOC1nY206cGFzcw==@[::1]:8388#ipv6\n",
		"proxies:\n  - {name: a, type: ss, server: a.example.com, port: 1, cipher: x, password: y}\n",
	}
	for _, s := range seed {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, content string) {
		res, err := Parse("fuzz", []byte(content), FormatAuto)
		if err != nil {
			return
		}
		names := make(map[string]bool, len(res.Nodes))
		for _, n := range res.Nodes {
			if !n.Valid() {
				t.Fatalf("invalid node accepted: %+v", n)
			}
			if names[n.Name] {
				t.Fatalf("duplicate node name %q", n.Name)
			}
			names[n.Name] = true
		}
	})
}
