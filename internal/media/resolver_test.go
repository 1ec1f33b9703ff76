package media

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joshua-takyi/eventradar/internal/clock"
)

const bucket = "event-images"

type mockSigner struct {
	mock.Mock
}

func (m *mockSigner) SignURL(ctx context.Context, b, p string, ttl time.Duration) (string, error) {
	args := m.Called(b, p, ttl)
	return args.String(0), args.Error(1)
}

func (m *mockSigner) PublicURL(b, p string) (string, error) {
	args := m.Called(b, p)
	return args.String(0), args.Error(1)
}

func newTestResolver(s Signer, clk clock.Clock) (*Resolver, *MemoryCache) {
	cache := NewMemoryCache(clk, 0)
	return NewResolver(s, cache, WithClock(clk)), cache
}

func TestResolveCachesWithinSafetyMargin(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	signer := &mockSigner{}
	signer.On("SignURL", bucket, "events/e1/a.jpg", time.Hour).Return("https://x/sign/1", nil).Once()

	r, _ := newTestResolver(signer, clk)
	ctx := context.Background()

	assert.Equal(t, "https://x/sign/1", r.Resolve(ctx, bucket, "events/e1/a.jpg", 0))
	clk.Advance(59 * time.Minute)
	assert.Equal(t, "https://x/sign/1", r.Resolve(ctx, bucket, "events/e1/a.jpg", time.Hour))
	signer.AssertNumberOfCalls(t, "SignURL", 1)
}

func TestResolveResignsInsideMargin(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	signer := &mockSigner{}
	signer.On("SignURL", bucket, "events/e1/a.jpg", time.Hour).Return("https://x/sign/1", nil).Once()
	signer.On("SignURL", bucket, "events/e1/a.jpg", time.Hour).Return("https://x/sign/2", nil).Once()

	r, _ := newTestResolver(signer, clk)
	ctx := context.Background()

	assert.Equal(t, "https://x/sign/1", r.Resolve(ctx, bucket, "events/e1/a.jpg", time.Hour))
	clk.Advance(time.Hour - 10*time.Second)
	assert.Equal(t, "https://x/sign/2", r.Resolve(ctx, bucket, "events/e1/a.jpg", time.Hour))
	signer.AssertExpectations(t)
}

func TestResolveFallsBackToPublicURL(t *testing.T) {
	signer := &mockSigner{}
	signer.On("SignURL", bucket, "events/e1/a.jpg", time.Hour).Return("", errors.New("storage down"))
	signer.On("PublicURL", bucket, "events/e1/a.jpg").Return("https://x/public/a.jpg", nil)

	r, cache := newTestResolver(signer, clock.NewManual(time.Now()))

	assert.Equal(t, "https://x/public/a.jpg", r.Resolve(context.Background(), bucket, "events/e1/a.jpg", time.Hour))
	assert.Zero(t, cache.Len(), "fallback urls are not cached")
}

func TestResolveFallsBackToOriginalRef(t *testing.T) {
	signer := &mockSigner{}
	signer.On("SignURL", bucket, "a.jpg", time.Hour).Return("", errors.New("storage down"))
	signer.On("PublicURL", bucket, "a.jpg").Return("", errors.New("no public url"))

	r, _ := newTestResolver(signer, clock.NewManual(time.Now()))
	assert.Equal(t, "a.jpg", r.Resolve(context.Background(), bucket, "a.jpg", time.Hour))
}

func TestResolvePassesThroughSignedAndForeign(t *testing.T) {
	signer := &mockSigner{}
	r, _ := newTestResolver(signer, clock.NewManual(time.Now()))
	ctx := context.Background()

	signed := "https://p.supabase.co/storage/v1/object/sign/event-images/events/e1/a.jpg?token=abc"
	foreign := "https://res.cloudinary.com/demo/image/upload/v1/events/e1/a.jpg"

	assert.Equal(t, signed, r.Resolve(ctx, bucket, signed, time.Hour))
	assert.Equal(t, foreign, r.Resolve(ctx, bucket, foreign, time.Hour))
	assert.Empty(t, r.Resolve(ctx, bucket, "   ", time.Hour))
	signer.AssertNotCalled(t, "SignURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestParseRef(t *testing.T) {
	cases := []struct {
		ref  string
		path string
		kind RefKind
	}{
		{"events/e1/a.jpg", "events/e1/a.jpg", RefPath},
		{"/events/e1/a.jpg", "events/e1/a.jpg", RefPath},
		{"https://p.supabase.co/storage/v1/object/public/event-images/events/e1/a%20b.jpg", "events/e1/a b.jpg", RefPath},
		{"https://p.supabase.co/storage/v1/object/event-images/x.png", "x.png", RefPath},
		{"https://p.supabase.co/storage/v1/object/sign/event-images/x.png", "x.png", RefPath},
		{"https://p.supabase.co/storage/v1/object/sign/event-images/x.png?token=t", "", RefSigned},
		{"https://p.supabase.co/storage/v1/object/public/avatars/x.png", "", RefForeign},
		{"https://example.com/x.png", "", RefForeign},
	}
	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			path, kind := ParseRef(bucket, tc.ref)
			assert.Equal(t, tc.kind, kind)
			if kind == RefPath {
				assert.Equal(t, tc.path, path)
			} else {
				assert.Equal(t, tc.ref, path)
			}
		})
	}
}

func TestMemoryCachePurge(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	c := NewMemoryCache(clk, 0)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", Entry{URL: "u1", ExpiresAt: clk.Now().Add(time.Minute)})
	c.Set(ctx, "b", Entry{URL: "u2", ExpiresAt: clk.Now().Add(time.Hour)})

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Purge())
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	e, ok := c.Get(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, "u2", e.URL)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clk := clock.NewManual(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	c := NewRedisCache(client, clk, nil)
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	exp := clk.Now().Add(time.Hour)
	c.Set(ctx, "k", Entry{URL: "https://x/sign/1", ExpiresAt: exp})
	e, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "https://x/sign/1", e.URL)
	assert.True(t, exp.Equal(e.ExpiresAt))
	assert.Equal(t, time.Hour, mr.TTL(redisKeyPrefix+"k"))

	mr.FastForward(2 * time.Hour)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "expired", Entry{URL: "u", ExpiresAt: clk.Now().Add(-time.Second)})
	assert.False(t, mr.Exists(redisKeyPrefix+"expired"))

	// Expiry is measured against the injected clock, not the wall clock.
	clk.Advance(30 * time.Minute)
	c.Set(ctx, "later", Entry{URL: "u2", ExpiresAt: exp})
	assert.Equal(t, 30*time.Minute, mr.TTL(redisKeyPrefix+"later"))
}

func TestBreakerSignerOpensAfterFailures(t *testing.T) {
	signer := &mockSigner{}
	signer.On("SignURL", bucket, "a.jpg", time.Hour).Return("", errors.New("boom"))
	signer.On("PublicURL", bucket, "a.jpg").Return("https://x/public/a.jpg", nil)

	b := NewBreakerSigner(signer, BreakerConfig{Name: "test-signer", FailureThreshold: 3, Timeout: time.Minute}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.SignURL(ctx, bucket, "a.jpg", time.Hour)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.SignURL(ctx, bucket, "a.jpg", time.Hour)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	signer.AssertNumberOfCalls(t, "SignURL", 3)

	u, err := b.PublicURL(bucket, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://x/public/a.jpg", u)
}

func TestObjectPathAndCloudinaryID(t *testing.T) {
	p := ObjectPath(Upload{EventID: "e1", UploaderID: "u1", Filename: "Photo.JPG"})
	assert.Regexp(t, `^events/e1/u1/[0-9a-f-]{36}\.jpg$`, p)

	assert.Equal(t, "events/e1/abc", CloudinaryPublicID("https://res.cloudinary.com/demo/image/upload/v1712/events/e1/abc.jpg"))
	assert.Equal(t, "abc", CloudinaryPublicID("https://res.cloudinary.com/demo/image/upload/abc.png"))
	assert.Empty(t, CloudinaryPublicID("events/e1/abc.jpg"))
}

func ExampleParseRef() {
	p, kind := ParseRef("event-images", "https://p.supabase.co/storage/v1/object/public/event-images/events/e1/a.jpg")
	fmt.Println(p, kind == RefPath)
	// Output: events/e1/a.jpg true
}
