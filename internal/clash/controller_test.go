package clash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestController(t *testing.T) {
	var gotPath, gotAuth, gotBody, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/version":
			_ = json.NewEncoder(w).Encode(map[string]string{"version": "v1.19.0"})
		case r.Method == http.MethodPut && r.URL.Path == "/configs":
			gotQuery = r.URL.RawQuery
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotBody = body["path"]
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/proxies/"):
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "nope", http.StatusBadRequest)
		}
	}))
	defer ts.Close()

	c := NewController(strings.TrimPrefix(ts.URL, "http://"), "t0ken")
	ctx := context.Background()

	v, err := c.Version(ctx)
	if err != nil || v != "v1.19.0" {
		t.Fatalf("Version()=%q,%v", v, err)
	}
	if gotAuth != "Bearer t0ken" {
		t.Fatalf("Authorization=%q", gotAuth)
	}

	if err := c.ReloadConfig(ctx, "/tmp/clashfun/config.yaml"); err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if gotBody != "/tmp/clashfun/config.yaml" || gotQuery != "force=true" {
		t.Fatalf("reload body=%q query=%q", gotBody, gotQuery)
	}

	if err := c.SelectProxy(ctx, GroupName, "hk-01"); err != nil {
		t.Fatalf("SelectProxy() error = %v", err)
	}
	if gotPath != "/proxies/PROXY" {
		t.Fatalf("path=%q", gotPath)
	}
}

func TestController_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := NewController(ts.URL, "").Version(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("Version() error = %v, want status 401", err)
	}
}
