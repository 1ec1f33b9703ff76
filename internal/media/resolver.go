// Package media turns stored image references into URLs a client can load.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/metrics"
)

const (
	DefaultTTL          = time.Hour
	DefaultSafetyMargin = 30 * time.Second
)

// Signer issues URLs for objects in a storage bucket.
type Signer interface {
	SignURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
	PublicURL(bucket, path string) (string, error)
}

// Entry is a cached signed URL.
type Entry struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Cache stores signed URLs. Implementations are safe for concurrent use and
// never authoritative: a miss only costs a signing call.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, e Entry)
}

// Resolver produces a currently valid URL for a stored reference.
type Resolver struct {
	signer     Signer
	cache      Cache
	clock      clock.Clock
	logger     *slog.Logger
	defaultTTL time.Duration
	margin     time.Duration
}

type ResolverOption func(*Resolver)

func WithClock(c clock.Clock) ResolverOption {
	return func(r *Resolver) { r.clock = c }
}

func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

func WithDefaultTTL(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.defaultTTL = d
		}
	}
}

func WithSafetyMargin(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d >= 0 {
			r.margin = d
		}
	}
}

func NewResolver(signer Signer, cache Cache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		signer:     signer,
		cache:      cache,
		clock:      clock.NewSystem(),
		logger:     slog.Default(),
		defaultTTL: DefaultTTL,
		margin:     DefaultSafetyMargin,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails: when signing and the public URL both fail, the
// original reference is returned and the client shows a broken image.
func (r *Resolver) Resolve(ctx context.Context, bucket, ref string, ttl time.Duration) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	path, kind := ParseRef(bucket, ref)
	if kind == RefSigned || kind == RefForeign {
		metrics.MediaResolutions.WithLabelValues("passthrough").Inc()
		return ref
	}

	key := cacheKey(bucket, path, ttl)
	now := r.clock.Now()
	if r.cache != nil {
		if e, ok := r.cache.Get(ctx, key); ok && now.Add(r.margin).Before(e.ExpiresAt) {
			metrics.MediaResolutions.WithLabelValues("cached").Inc()
			return e.URL
		}
	}

	signed, err := r.signer.SignURL(ctx, bucket, path, ttl)
	if err == nil && signed != "" {
		if r.cache != nil {
			r.cache.Set(ctx, key, Entry{URL: signed, ExpiresAt: now.Add(ttl)})
		}
		metrics.MediaResolutions.WithLabelValues("signed").Inc()
		return signed
	}
	r.logger.Warn("signing media url failed", "bucket", bucket, "path", path, "error", err)

	public, err := r.signer.PublicURL(bucket, path)
	if err == nil && public != "" {
		metrics.MediaResolutions.WithLabelValues("public").Inc()
		return public
	}

	metrics.MediaResolutions.WithLabelValues("original").Inc()
	return ref
}

func cacheKey(bucket, path string, ttl time.Duration) string {
	return fmt.Sprintf("%s|%s|%d", bucket, path, int64(ttl/time.Second))
}

// RefKind classifies a stored reference.
type RefKind int

const (
	// RefPath is a bucket-relative object path.
	RefPath RefKind = iota
	// RefSigned is already a signed URL for the bucket.
	RefSigned
	// RefForeign is an absolute URL this resolver does not manage.
	RefForeign
)

// storage URL shapes, after /storage/v1/
var objectPrefixes = []string{
	"object/sign/",
	"object/public/",
	"object/authenticated/",
	"render/image/public/",
	"render/image/authenticated/",
	"object/",
}

// ParseRef extracts the bucket-relative path from ref.
func ParseRef(bucket, ref string) (string, RefKind) {
	if !strings.Contains(ref, "://") {
		return strings.TrimLeft(ref, "/"), RefPath
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ref, RefForeign
	}

	p := u.EscapedPath()
	i := strings.Index(p, "/storage/v1/")
	if i < 0 {
		return ref, RefForeign
	}
	rest := p[i+len("/storage/v1/"):]

	for _, prefix := range objectPrefixes {
		if !strings.HasPrefix(rest, prefix) {
			continue
		}
		obj := strings.TrimPrefix(rest, prefix)
		if !strings.HasPrefix(obj, bucket+"/") {
			return ref, RefForeign
		}
		if prefix == "object/sign/" && u.Query().Get("token") != "" {
			return ref, RefSigned
		}
		path, err := url.PathUnescape(strings.TrimPrefix(obj, bucket+"/"))
		if err != nil || path == "" {
			return ref, RefForeign
		}
		return path, RefPath
	}
	return ref, RefForeign
}
