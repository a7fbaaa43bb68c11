// Package ingest fetches company data from the financial-data provider and
// persists raw payloads for downstream extraction.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/awc-invest/prospect-cli/internal/config"
	"github.com/awc-invest/prospect-cli/internal/model"
)

// Sentinel errors callers branch on. Quota exhaustion must abort a whole
// run; a missing entity only skips one.
var (
	ErrQuotaExhausted = eris.New("ingest: provider quota or auth exhausted")
	ErrNotFound       = eris.New("ingest: entity not found")
)

const backoffBase = time.Second

// Client is a rate-limited provider API client with retry on transient
// failures.
type Client struct {
	httpc      *http.Client
	baseURL    string
	apiKey     string
	apiVersion string
	country    string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient builds a client from configuration.
func NewClient(cfg config.ProviderConfig) *Client {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 6
	}

	return &Client{
		httpc:      &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		country:    cfg.Country,
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		maxRetries: retries,
	}
}

// FetchCompany retrieves the full register record for one company. The
// returned payload is guaranteed to be a non-empty JSON object; anything
// less never overwrites a stored payload.
func (c *Client) FetchCompany(ctx context.Context, orgnr string) (*model.RawPayload, error) {
	u := fmt.Sprintf("%s/api/companies/register/%s/%s", c.baseURL, c.country, url.PathEscape(orgnr))

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, eris.Wrapf(ErrQuotaExhausted, "ingest: fetch %s returned %d", orgnr, status)
	case status == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "ingest: fetch %s", orgnr)
	default:
		return nil, eris.Errorf("ingest: fetch %s returned %d", orgnr, status)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || len(obj) == 0 {
		return nil, eris.Errorf("ingest: fetch %s returned 200 with unusable body", orgnr)
	}

	return &model.RawPayload{
		Orgnr:      orgnr,
		HTTPStatus: status,
		SourceURL:  u,
		Payload:    body,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// get performs a rate-limited GET with exponential backoff on 429/5xx,
// honoring Retry-After when the provider sends one.
func (c *Client) get(ctx context.Context, u string) (int, []byte, error) {
	log := zap.L().With(zap.String("component", "ingest.client"))

	var lastStatus int
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, eris.Wrap(err, "ingest: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return 0, nil, eris.Wrap(err, "ingest: build request")
		}
		req.Header.Set("Authorization", "Token "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("api-version", c.apiVersion)

		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, eris.Wrap(ctx.Err(), "ingest: request canceled")
			}
			log.Warn("request failed, backing off", zap.Int("attempt", attempt), zap.Error(err))
			if err := sleepCtx(ctx, backoff(attempt, "")); err != nil {
				return 0, nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck
		if readErr != nil {
			return 0, nil, eris.Wrap(readErr, "ingest: read response body")
		}

		lastStatus = resp.StatusCode
		if transient(resp.StatusCode) {
			log.Warn("transient provider status, backing off",
				zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
			if err := sleepCtx(ctx, backoff(attempt, resp.Header.Get("Retry-After"))); err != nil {
				return 0, nil, err
			}
			continue
		}

		return resp.StatusCode, body, nil
	}

	return 0, nil, eris.Errorf("ingest: giving up on %s after %d retries (last status %d)", u, c.maxRetries, lastStatus)
}

func transient(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func backoff(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return backoffBase * (1 << attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "ingest: backoff canceled")
	case <-t.C:
		return nil
	}
}
