// Package exchange предоставляет клиент брокера, источники позиций и закрытие позиций.
package exchange

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"autoexit/pkg/ratelimit"
)

// maxResponseBody ограничивает чтение ответа брокера
const maxResponseBody = 4 << 20

// HTTPClientConfig содержит настройки HTTP клиента брокера
type HTTPClientConfig struct {
	ConnectTimeout time.Duration // default: 5s
	ReadTimeout    time.Duration // ожидание заголовков ответа, default: 10s
	TotalTimeout   time.Duration // default: 15s

	MaxIdleConnsPerHost int           // default: 4
	IdleConnTimeout     time.Duration // default: 90s
}

// DefaultHTTPClientConfig возвращает конфигурацию по умолчанию
//
// Таймаут запроса меньше таймаута тика мониторинга, чтобы тик
// успевал зафиксировать ошибку сам.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		ConnectTimeout:      5 * time.Second,
		ReadTimeout:         10 * time.Second,
		TotalTimeout:        15 * time.Second,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
}

// HTTPClient - пул соединений к одному брокеру с лимитами по категориям запросов
type HTTPClient struct {
	client  *http.Client
	limiter *ratelimit.MultiLimiter
}

// NewHTTPClient создаёт клиент. limiter может быть nil.
func NewHTTPClient(config HTTPClientConfig, limiter *ratelimit.MultiLimiter) *HTTPClient {
	if limiter == nil {
		limiter = ratelimit.NewMultiLimiter()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.ConnectTimeout,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		ResponseHeaderTimeout: config.ReadTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &HTTPClient{
		client:  &http.Client{Transport: transport, Timeout: config.TotalTimeout},
		limiter: limiter,
	}
}

// PostJSON ждёт токен категории, отправляет body как JSON и возвращает
// тело ответа со статусом. Статус не проверяется: брокер отвечает 200
// и на ошибки, разбор делает вызывающий.
func (hc *HTTPClient) PostJSON(ctx context.Context, category, url string, headers map[string]string, body []byte) ([]byte, int, error) {
	if err := hc.limiter.Wait(ctx, category); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// Close закрывает idle соединения. Вызывается при graceful shutdown.
func (hc *HTTPClient) Close() {
	hc.client.CloseIdleConnections()
}
