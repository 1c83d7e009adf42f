package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
	"github.com/vestigolabs/vestigo/internal/models"
)

// maxBodyBytes caps the response body read per fetch
const maxBodyBytes = 5 * 1024 * 1024

// Service is the resilient fetch layer. Transport failures are absorbed into
// FetchOutcome; the only observable difference between a live response and a
// cache-served one is the FromCache flag.
type Service struct {
	config  *common.FetchConfig
	cache   interfaces.FetchCacheStorage
	health  interfaces.SourceHealthStorage
	policy  *RetryPolicy
	limiter *RateLimiter
	clients []*http.Client
	logger  arbor.ILogger
}

// NewService creates a fetch service. One HTTP client is built per configured
// proxy; attempts rotate through them round-robin. With no proxies a single
// direct client is used.
func NewService(config *common.FetchConfig, cache interfaces.FetchCacheStorage, health interfaces.SourceHealthStorage, logger arbor.ILogger) *Service {
	clients := buildClients(config)

	return &Service{
		config:  config,
		cache:   cache,
		health:  health,
		policy:  NewRetryPolicy(config),
		limiter: NewRateLimiter(config.RequestsPerSecond, config.BurstSize),
		clients: clients,
		logger:  logger,
	}
}

func buildClients(config *common.FetchConfig) []*http.Client {
	if len(config.Proxies) == 0 {
		return []*http.Client{{Timeout: config.RequestTimeout}}
	}

	clients := make([]*http.Client, 0, len(config.Proxies))
	for _, proxyURL := range config.Proxies {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			continue
		}
		clients = append(clients, &http.Client{
			Timeout:   config.RequestTimeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(parsed)},
		})
	}
	if len(clients) == 0 {
		clients = []*http.Client{{Timeout: config.RequestTimeout}}
	}
	return clients
}

// Fetch retrieves a URL with retries, proxy rotation, and cache fallback.
// It never returns a Go error for network failure; inspect FetchOutcome.OK.
func (s *Service) Fetch(ctx context.Context, req models.FetchRequest) models.FetchOutcome {
	start := time.Now()

	target := common.SanitizeURL(req.URL)
	if target == "" {
		return models.FetchOutcome{
			URL:     req.URL,
			OK:      false,
			Error:   "invalid or non-crawlable URL",
			Elapsed: time.Since(start),
		}
	}

	sourceKey := req.SourceKey
	if sourceKey == "" {
		sourceKey = common.RegistrableDomain(common.HostOf(target))
	}

	outcome := models.FetchOutcome{URL: target}

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx, sourceKey); err != nil {
			outcome.Error = fmt.Sprintf("rate limit wait aborted: %v", err)
			outcome.Attempts = attempt
			outcome.Elapsed = time.Since(start)
			return outcome
		}

		outcome.Attempts = attempt + 1
		status, body, finalURL, err := s.doRequest(ctx, target, req.Headers, attempt)

		if err == nil && status == http.StatusOK {
			outcome.OK = true
			outcome.StatusCode = status
			outcome.Body = body
			outcome.FinalURL = finalURL
			outcome.Elapsed = time.Since(start)
			s.recordSuccess(ctx, sourceKey, target, status, body)
			return outcome
		}

		lastStatus = status
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("unexpected status %d", status)
		}

		if !s.policy.ShouldRetry(attempt, status, err) {
			break
		}

		backoff := s.policy.CalculateBackoff(attempt)
		s.logger.Debug().
			Str("url", target).
			Int("attempt", attempt+1).
			Int("status", status).
			Dur("backoff", backoff).
			Msg("Retrying fetch after backoff")

		select {
		case <-ctx.Done():
			outcome.Error = ctx.Err().Error()
			outcome.Elapsed = time.Since(start)
			return outcome
		case <-time.After(backoff):
		}
	}

	// All attempts exhausted
	s.recordFailure(ctx, sourceKey, lastErr)

	if !req.NoCache {
		if cached := s.cacheFallback(ctx, target); cached != nil {
			outcome.OK = true
			outcome.StatusCode = cached.StatusCode
			outcome.Body = cached.Body
			outcome.FromCache = true
			outcome.Error = errorString(lastErr)
			outcome.Elapsed = time.Since(start)
			s.logger.Debug().Str("url", target).Msg("Serving fetch from cache after failure")
			return outcome
		}
	}

	outcome.OK = false
	outcome.StatusCode = lastStatus
	outcome.Error = errorString(lastErr)
	outcome.Elapsed = time.Since(start)
	return outcome
}

// SourceHealthy reports whether a source should be fetched at all. Sources
// accumulate consecutive failures and are skipped during the cooloff window.
func (s *Service) SourceHealthy(ctx context.Context, sourceKey string) bool {
	record, err := s.health.Get(ctx, sourceKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return true
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("source", sourceKey).Msg("Failed to read source health")
		return true
	}
	return !record.Unhealthy(s.config.FailureThreshold, s.config.FailureCooloff, time.Now())
}

func (s *Service) doRequest(ctx context.Context, target string, headers map[string]string, attempt int) (int, string, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to build request: %w", err)
	}

	httpReq.Header.Set("User-Agent", s.config.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	client := s.clients[attempt%len(s.clients)]
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, "", "", fmt.Errorf("failed to read body: %w", err)
	}

	return resp.StatusCode, string(body), resp.Request.URL.String(), nil
}

func (s *Service) recordSuccess(ctx context.Context, sourceKey, target string, status int, body string) {
	if err := s.cache.Upsert(ctx, &models.CachedResponse{
		Key:        common.DedupURLKey(target),
		URL:        target,
		StatusCode: status,
		Body:       body,
		SourceKey:  sourceKey,
	}); err != nil {
		s.logger.Warn().Err(err).Str("url", target).Msg("Failed to cache fetch response")
	}

	if err := s.health.RecordSuccess(ctx, sourceKey); err != nil {
		s.logger.Warn().Err(err).Str("source", sourceKey).Msg("Failed to record source success")
	}
}

func (s *Service) recordFailure(ctx context.Context, sourceKey string, cause error) {
	if err := s.health.RecordFailure(ctx, sourceKey, errorString(cause)); err != nil {
		s.logger.Warn().Err(err).Str("source", sourceKey).Msg("Failed to record source failure")
	}
}

// cacheFallback returns a cached response younger than the TTL, or nil
func (s *Service) cacheFallback(ctx context.Context, target string) *models.CachedResponse {
	cached, err := s.cache.Get(ctx, common.DedupURLKey(target))
	if err != nil {
		return nil
	}
	if s.config.CacheTTL > 0 && cached.Age(time.Now()) > s.config.CacheTTL {
		return nil
	}
	return cached
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
