// Package proxy acquires forward proxies from the Webshare list API.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Provisioner fetches proxy endpoints for crawl sessions.
type Provisioner struct {
	client  *retryablehttp.Client
	token   string
	baseURL string
	logger  *slog.Logger
}

// Endpoint is one usable proxy.
type Endpoint struct {
	Server   string
	Username string
	Password string
}

type listResponse struct {
	Results []struct {
		ProxyAddress string `json:"proxy_address"`
		Port         int    `json:"port"`
		Username     string `json:"username"`
		Password     string `json:"password"`
	} `json:"results"`
}

func NewProvisioner(token, baseURL string) *Provisioner {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil

	if baseURL == "" {
		baseURL = "https://proxy.webshare.io"
	}

	return &Provisioner{
		client:  client,
		token:   token,
		baseURL: baseURL,
		logger:  slog.Default().With("component", "proxy"),
	}
}

// HTTPClient exposes the underlying client for transport injection in tests.
func (p *Provisioner) HTTPClient() *http.Client {
	return p.client.HTTPClient
}

// Acquire fetches the first proxy from the direct-mode list.
func (p *Provisioner) Acquire(ctx context.Context) (*Endpoint, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/api/v2/proxy/list/?mode=direct", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build proxy request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proxy list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy list returned status %d", resp.StatusCode)
	}

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode proxy list: %w", err)
	}

	if len(list.Results) == 0 {
		return nil, fmt.Errorf("proxy list is empty")
	}

	first := list.Results[0]
	endpoint := &Endpoint{
		Server:   fmt.Sprintf("%s:%d", first.ProxyAddress, first.Port),
		Username: first.Username,
		Password: first.Password,
	}

	p.logger.Info("acquired proxy", "server", endpoint.Server)
	return endpoint, nil
}
