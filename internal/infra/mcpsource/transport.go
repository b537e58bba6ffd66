package mcpsource

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/envutil"
)

const defaultHTTPMaxRetries = 5

// transportFactory builds a fresh transport for every connection attempt.
type transportFactory func(ctx context.Context) (mcp.Transport, error)

func newTransportFactory(spec domain.MCPServerSpec) transportFactory {
	if spec.UsesHTTP() {
		return func(context.Context) (mcp.Transport, error) {
			return streamableTransport(spec)
		}
	}
	return func(ctx context.Context) (mcp.Transport, error) {
		return commandTransport(ctx, spec)
	}
}

// commandTransport launches the server process. The process lives as long
// as ctx, so callers pass a context that outlives a single Load.
func commandTransport(ctx context.Context, spec domain.MCPServerSpec) (mcp.Transport, error) {
	if len(spec.Cmd) == 0 {
		return nil, errors.New("cmd is required for stdio transport")
	}
	cmd := exec.CommandContext(ctx, spec.Cmd[0], spec.Cmd[1:]...)
	if spec.Cwd != "" {
		cmd.Dir = spec.Cwd
	}
	cmd.Env = envutil.CommandEnv(os.Environ(), spec.Env)
	return &mcp.CommandTransport{Command: cmd}, nil
}

func streamableTransport(spec domain.MCPServerSpec) (mcp.Transport, error) {
	endpoint := strings.TrimSpace(spec.Endpoint)
	if endpoint == "" {
		return nil, errors.New("streamable http endpoint is required")
	}
	roundTripper, err := newHeaderRoundTripper(spec.Headers)
	if err != nil {
		return nil, err
	}
	return &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Transport: roundTripper},
		MaxRetries: defaultHTTPMaxRetries,
	}, nil
}

func newHeaderRoundTripper(raw map[string]string) (http.RoundTripper, error) {
	headers := http.Header{}
	for key, value := range raw {
		name := http.CanonicalHeaderKey(strings.TrimSpace(key))
		if name == "" {
			return nil, errors.New("http headers contain empty key")
		}
		headers.Set(name, value)
	}
	return &headerRoundTripper{base: http.DefaultTransport, headers: headers}, nil
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers http.Header
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(h.headers) > 0 {
		req = req.Clone(req.Context())
		for key, values := range h.headers {
			req.Header.Del(key)
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
	}
	return h.base.RoundTrip(req)
}
