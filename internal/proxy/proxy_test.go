package proxy

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listURL = "https://proxy.webshare.io/api/v2/proxy/list/"

func newTestProvisioner(t *testing.T) *Provisioner {
	t.Helper()
	p := NewProvisioner("test-token", "")
	p.client.RetryWaitMin = 0
	p.client.RetryWaitMax = 0

	httpmock.ActivateNonDefault(p.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return p
}

func TestAcquireReturnsFirstProxy(t *testing.T) {
	p := newTestProvisioner(t)

	httpmock.RegisterResponder("GET", listURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Token test-token", req.Header.Get("Authorization"))
		assert.Equal(t, "direct", req.URL.Query().Get("mode"))
		return httpmock.NewJsonResponse(200, map[string]interface{}{
			"results": []map[string]interface{}{
				{"proxy_address": "192.0.2.10", "port": 8080, "username": "user-a", "password": "pass-a"},
				{"proxy_address": "192.0.2.11", "port": 8081, "username": "user-b", "password": "pass-b"},
			},
		})
	})

	endpoint, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10:8080", endpoint.Server)
	assert.Equal(t, "user-a", endpoint.Username)
	assert.Equal(t, "pass-a", endpoint.Password)
}

func TestAcquireEmptyList(t *testing.T) {
	p := newTestProvisioner(t)
	httpmock.RegisterResponder("GET", listURL,
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{"results": []interface{}{}}))

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestAcquireUnauthorized(t *testing.T) {
	p := newTestProvisioner(t)
	httpmock.RegisterResponder("GET", listURL,
		httpmock.NewStringResponder(401, `{"detail": "Invalid token."}`))

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
