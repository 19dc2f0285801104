package clash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/utils"
)

// Controller talks to the engine's external-controller REST API.
type Controller struct {
	base   string
	secret string
	client *http.Client
}

func NewController(addr, secret string) *Controller {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Controller{
		base:   base,
		secret: secret,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Version returns the engine version; it doubles as a liveness check.
func (c *Controller) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/version", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// ReloadConfig makes the engine re-read the config file at path.
func (c *Controller) ReloadConfig(ctx context.Context, path string) error {
	body := map[string]string{"path": path}
	return c.do(ctx, http.MethodPut, "/configs?force=true", body, nil)
}

// SelectProxy points a selector group at the named proxy.
func (c *Controller) SelectProxy(ctx context.Context, group, name string) error {
	body := map[string]string{"name": name}
	return c.do(ctx, http.MethodPut, "/proxies/"+url.PathEscape(group), body, nil)
}

func (c *Controller) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("controller %s %s: %w", method, path, err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("controller %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
