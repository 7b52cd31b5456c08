package mcplink

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// credentialRoundTripper injects the API key and profile as query parameters
// on every request, so the configured endpoint stays credential free in
// config, logs, and errors.
type credentialRoundTripper struct {
	base    http.RoundTripper
	apiKey  string
	profile string
}

func (rt *credentialRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	query := clone.URL.Query()
	query.Set("api_key", rt.apiKey)
	if rt.profile != "" {
		query.Set("profile", rt.profile)
	}
	clone.URL.RawQuery = query.Encode()
	return rt.base.RoundTrip(clone)
}

// newStreamableTransport builds the production transport for the configured
// endpoint.
func newStreamableTransport(cfg Config) mcp.Transport {
	client := &http.Client{
		Transport: &credentialRoundTripper{
			base:    http.DefaultTransport,
			apiKey:  cfg.APIKey,
			profile: cfg.Profile,
		},
	}

	return &mcp.StreamableClientTransport{
		Endpoint:   cfg.Endpoint,
		HTTPClient: client,
	}
}
