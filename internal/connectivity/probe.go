package connectivity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPProbe decides reachability by issuing a GET against the remote API.
// Any HTTP response counts as online; only transport failures count as
// offline. Run polls on a ticker; Report lets the embedding client push the
// platform's own network state.
type HTTPProbe struct {
	Broadcaster

	url        string
	interval   time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPProbe(baseURL, path string, interval, timeout time.Duration, logger *zap.Logger) *HTTPProbe {
	return &HTTPProbe{
		url:        strings.TrimRight(baseURL, "/") + path,
		interval:   interval,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// IsOnline probes the remote API once.
func (p *HTTPProbe) IsOnline(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("connectivity probe failed", zap.Error(err))
		return false
	}
	resp.Body.Close()
	return true
}

// CachedOnline returns the last observed state, probing only when nothing
// has been observed yet.
func (p *HTTPProbe) CachedOnline(ctx context.Context) bool {
	if online, known := p.Last(); known {
		return online
	}
	return p.IsOnline(ctx)
}

// Report records an externally observed state.
func (p *HTTPProbe) Report(online bool) {
	p.logger.Info("connectivity reported", zap.Bool("online", online))
	p.Set(online)
}

// Run probes immediately, then every interval, until ctx is cancelled.
func (p *HTTPProbe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("connectivity probe started",
		zap.String("url", p.url), zap.Duration("interval", p.interval))

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("connectivity probe stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *HTTPProbe) poll(ctx context.Context) {
	online := p.IsOnline(ctx)
	if ctx.Err() != nil {
		return
	}
	if last, known := p.Last(); !known || last != online {
		p.logger.Info("connectivity changed", zap.Bool("online", online))
	}
	p.Set(online)
}

var _ Observer = (*HTTPProbe)(nil)
