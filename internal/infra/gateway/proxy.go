// Package gateway holds helpers shared by the gateway adapters.
package gateway

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// ProxyTransport returns an HTTP transport that dials through the proxy URL raw
func ProxyTransport(raw string) (*http.Transport, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid proxy %q", domain.ErrInvalidCredentials, raw)
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = http.ProxyURL(u)
	return t, nil
}
