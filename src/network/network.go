package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"market-pipeline/src/helpers"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"
)

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger

	client   *http.Client
	clientMu sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent, log),
		Logger:       log,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	nm.clientMu.Lock()
	nm.client = nm.createClient()
	nm.clientMu.Unlock()
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
// Rate limits (429, 418), server errors and transport failures are retried;
// anything else fails at once.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewGatewayError("invalid url", 0, false, err)
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	baseDelay := time.Duration(nm.Config.Network.BackoffMillis) * time.Millisecond
	attempt := 0

	return helpers.RetryWithBackoff(ctx, "GET "+reqURL.Path, nm.Config.Network.MaxRetries, baseDelay, nm.Logger,
		func(ctx context.Context) ([]byte, error) {
			if attempt > 0 {
				nm.rotateProxy()
			}
			attempt++
			return nm.do(ctx, finalURL)
		})
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, helpers.NewGatewayError("build request", 0, false, err)
	}
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "application/json")

	nm.clientMu.RLock()
	client := nm.client
	nm.clientMu.RUnlock()

	resp, err := client.Do(req)
	if err != nil {
		// Caller cancellation is not worth retrying
		if ctx.Err() != nil {
			return nil, helpers.NewGatewayError("request cancelled", 0, false, ctx.Err())
		}
		return nil, helpers.NewGatewayError("request failed", 0, true, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, helpers.NewGatewayError("read body", resp.StatusCode, true, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		nm.Logger.Warning("Rate limited (status %d) on %s", resp.StatusCode, req.URL.Path)
		return nil, helpers.NewGatewayError(fmt.Sprintf("rate limited (status %d)", resp.StatusCode), resp.StatusCode, true, nil)
	case resp.StatusCode >= 500:
		return nil, helpers.NewGatewayError(fmt.Sprintf("exchange error (status %d)", resp.StatusCode), resp.StatusCode, true, nil)
	default:
		return nil, helpers.NewGatewayError(fmt.Sprintf("bad status %d: %s", resp.StatusCode, truncate(body, 200)), resp.StatusCode, false, nil)
	}
}

// -----------------------------------------------------------------------------

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
