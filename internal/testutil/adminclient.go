package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// AdminClient talks to a running admin listener with a bearer token.
type AdminClient struct {
	Client  *http.Client
	BaseURL string
	Token   string
}

func NewAdminClient(t *testing.T, addr string, token string) *AdminClient {
	t.Helper()
	if addr == "" {
		t.Fatalf("admin address is empty")
	}
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &AdminClient{
		Client:  &http.Client{Timeout: 5 * time.Second},
		BaseURL: strings.TrimRight(base, "/"),
		Token:   token,
	}
}

func (c *AdminClient) Do(req *http.Request) (*http.Response, error) {
	if c == nil || c.Client == nil {
		return nil, http.ErrServerClosed
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return c.Client.Do(req)
}

func (c *AdminClient) PostJSON(path string, body []byte) (*http.Response, []byte, error) {
	if c == nil {
		return nil, nil, http.ErrServerClosed
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(req)
}

// GetJSON decodes a 200 response into out and returns the status code.
func (c *AdminClient) GetJSON(path string, out any) (int, error) {
	if c == nil {
		return 0, http.ErrServerClosed
	}
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, data, err := c.roundTrip(req)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK || out == nil {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.Unmarshal(data, out)
}

func (c *AdminClient) roundTrip(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	return resp, data, nil
}
