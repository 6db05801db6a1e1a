package httputil

import (
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Provider *http.Client // direct, for the listing data API
	Media    *http.Client // longer timeout, optionally proxied, for CDN image downloads
}

func NewClients(mediaProxyURL string) *Clients {
	media := &http.Client{Timeout: 60 * time.Second}

	if mediaProxyURL != "" {
		if proxyURL, err := url.Parse(mediaProxyURL); err == nil {
			media.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Clients{
		Provider: &http.Client{Timeout: 30 * time.Second},
		Media:    media,
	}
}
