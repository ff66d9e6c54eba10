package httpclient

import (
	"net/http"
	"time"

	"offload/internal/shared/logging"
)

const defaultTimeout = 30 * time.Second

// New returns an http.Client for outbound fetches made by work tools.
// Proxies come from HTTP(S)_PROXY/NO_PROXY.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: Transport(logger),
	}
}

// Transport clones the default transport and logs redirects at debug level.
func Transport(logger logging.Logger) http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &loggingTransport{next: &http.Transport{Proxy: http.ProxyFromEnvironment}, logger: logging.OrNop(logger)}
	}
	transport := base.Clone()
	transport.Proxy = http.ProxyFromEnvironment
	return &loggingTransport{next: transport, logger: logging.OrNop(logger)}
}

type loggingTransport struct {
	next   http.RoundTripper
	logger logging.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug("%s %s failed after %s: %v", req.Method, req.URL.Redacted(), time.Since(started), err)
		return nil, err
	}
	t.logger.Debug("%s %s -> %d in %s", req.Method, req.URL.Redacted(), resp.StatusCode, time.Since(started))
	return resp, nil
}
