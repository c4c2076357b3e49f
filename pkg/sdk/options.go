package coursekb

import (
	"net/http"
	"time"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	httpClient *http.Client
}

// WithHTTPClient sets the underlying HTTP client. Use it to configure
// proxies, transports, or instrumentation.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		if hc != nil {
			c.httpClient = hc
		}
	})
}

// WithTimeout sets a per-request timeout on the default HTTP client.
// Generation can take tens of seconds; pick something generous.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = &http.Client{Timeout: d}
	})
}
