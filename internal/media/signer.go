package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	storage_go "github.com/supabase-community/storage-go"

	"github.com/joshua-takyi/eventradar/internal/metrics"
)

// SupabaseSigner signs object URLs through Supabase Storage.
type SupabaseSigner struct {
	storage *storage_go.Client
}

func NewSupabaseSigner(storage *storage_go.Client) *SupabaseSigner {
	return &SupabaseSigner{storage: storage}
}

func (s *SupabaseSigner) SignURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := s.storage.CreateSignedUrl(bucket, path, int(ttl/time.Second))
	if err != nil {
		return "", fmt.Errorf("sign %s/%s: %w", bucket, path, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("sign %s/%s: empty url", bucket, path)
	}
	return resp.SignedURL, nil
}

func (s *SupabaseSigner) PublicURL(bucket, path string) (string, error) {
	resp := s.storage.GetPublicUrl(bucket, path)
	if resp.SignedURL == "" {
		return "", fmt.Errorf("public url %s/%s: empty", bucket, path)
	}
	return resp.SignedURL, nil
}

// BreakerConfig tunes the signing circuit breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "media-signer",
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
	}
}

// BreakerSigner stops calling a failing storage backend for a while so a
// slow outage degrades to public URLs instead of stalling every feed.
type BreakerSigner struct {
	next Signer
	cb   *gobreaker.CircuitBreaker[string]
}

func NewBreakerSigner(next Signer, cfg BreakerConfig, logger *slog.Logger) *BreakerSigner {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about the backend
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerSigner{next: next, cb: gobreaker.NewCircuitBreaker[string](settings)}
}

func (b *BreakerSigner) SignURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	u, err := b.cb.Execute(func() (string, error) {
		return b.next.SignURL(ctx, bucket, path, ttl)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.SigningFailures.WithLabelValues("rejected").Inc()
		} else {
			metrics.SigningFailures.WithLabelValues("error").Inc()
		}
		return "", err
	}
	return u, nil
}

// PublicURL is computed locally and never trips the breaker.
func (b *BreakerSigner) PublicURL(bucket, path string) (string, error) {
	return b.next.PublicURL(bucket, path)
}

func (b *BreakerSigner) State() gobreaker.State {
	return b.cb.State()
}
