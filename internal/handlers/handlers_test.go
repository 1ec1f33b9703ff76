package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/geo"
	"github.com/joshua-takyi/eventradar/internal/media"
	"github.com/joshua-takyi/eventradar/internal/middleware"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/policy"
	"github.com/joshua-takyi/eventradar/internal/services"
	"github.com/joshua-takyi/eventradar/internal/testutil"
)

var (
	start = time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	end   = time.Date(2026, 5, 2, 3, 0, 0, 0, time.UTC)
)

type memUploader struct{}

func (memUploader) Upload(_ context.Context, u media.Upload) (string, error) {
	_, err := io.Copy(io.Discard, u.Body)
	return media.ObjectPath(u), err
}

func (memUploader) Remove(context.Context, []string) error { return nil }

type echoResolver struct{}

func (echoResolver) Resolve(_ context.Context, bucket, ref string, ttl time.Duration) string {
	return "https://cdn.test/" + bucket + "/" + ref + "?ttl=" + ttl.String()
}

// asViewer injects the viewer named by test headers instead of a token.
func asViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetViewer(c, models.Viewer{
			UserID:     c.GetHeader("X-Test-User"),
			Role:       models.Role(c.GetHeader("X-Test-Role")),
			SessionKey: c.GetHeader(middleware.SessionHeader),
		})
		c.Next()
	}
}

type env struct {
	router *gin.Engine
	clk    *clock.Manual
	events *services.EventService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := models.NewSQLRepo(testutil.NewDB(t))
	clk := clock.NewManual(start.Add(-48 * time.Hour))
	p := policy.New()
	locations := geo.NewResolver(geo.NewMemoryStore(clk), geo.WithClock(clk), geo.WithLogger(logger))

	es := services.NewEventService(repo, repo, memUploader{}, p, clk, logger)
	is := services.NewInteractionService(
		services.InteractionRepos{Events: repo, Attendance: repo, Comments: repo, Images: repo},
		memUploader{}, echoResolver{}, p, clk,
		services.InteractionConfig{Bucket: "event-images", URLTTL: time.Hour},
		logger,
	)
	rs := services.NewRatingService(repo, repo, repo, p, clk, logger)
	fs := services.NewFeedService(repo, locations, nil)

	r := gin.New()
	r.Use(asViewer())
	r.POST("/events", middleware.RequireRole(models.RoleOrganizer), CreateEvent(es))
	r.GET("/events", ListFeed(fs, services.NewFeedCoordinator()))
	r.GET("/events/:id", GetEvent(es))
	r.POST("/events/:id/going", MarkGoing(is))
	r.POST("/events/:id/comments", AddComment(is))
	r.GET("/events/:id/comments", ListComments(is))
	r.POST("/events/:id/images", UploadImage(is, 1<<20))
	r.POST("/events/:id/ratings", SubmitRating(rs))
	r.GET("/media/url", MediaURL(echoResolver{}, "event-images"))
	r.POST("/location/resolve", ResolveLocation(services.NewLocationService(locations)))

	return &env{router: r, clk: clk, events: es}
}

func (e *env) do(t *testing.T, method, path, user, role string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) doJSON(t *testing.T, method, path, user, role, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(t, method, path, user, role, r, "application/json")
}

func (e *env) publish(t *testing.T) string {
	t.Helper()
	ev, err := e.events.Create(context.Background(), models.Viewer{UserID: "org-1", Role: models.RoleOrganizer}, services.EventInput{
		Title: "Rooftop", City: "Ljubljana", StartsAt: start, EndsAt: end,
		Genre: "house", Status: models.StatusPublished,
	})
	require.NoError(t, err)
	return ev.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{models.NewValidationError("title", "is required"), http.StatusBadRequest, "validation"},
		{&policy.DeniedError{Action: policy.ActionRate, Reason: policy.ReasonAlreadyRated}, http.StatusForbidden, "already-rated"},
		{models.ErrNotFound, http.StatusNotFound, "not-found"},
		{models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{&models.ConflictError{Resource: "follow", Reason: "exists"}, http.StatusConflict, "conflict"},
		{&models.TransientIOError{Op: "upload", Err: errors.New("timeout")}, http.StatusServiceUnavailable, "unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		if tc.code != "" {
			assert.Equal(t, tc.code, decode(t, w)["code"], tc.err.Error())
		}
	}
}

func TestCreateEventRequiresOrganizer(t *testing.T) {
	e := newEnv(t)
	body := `{"title":"Basement","starts_at":"2026-05-01T21:00:00Z","ends_at":"2026-05-02T03:00:00Z","genre":"techno"}`

	w := e.doJSON(t, http.MethodPost, "/events", "u-1", "user", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.doJSON(t, http.MethodPost, "/events", "org-1", "organizer", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "draft", data["status"])

	w = e.doJSON(t, http.MethodPost, "/events", "org-1", "organizer", `{"title":"x","genre":"polka"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeniedCarriesReason(t *testing.T) {
	e := newEnv(t)
	id := e.publish(t)

	w := e.doJSON(t, http.MethodPost, "/events/"+id+"/going", "org-1", "organizer", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "own-event", decode(t, w)["code"])

	w = e.doJSON(t, http.MethodPost, "/events/"+id+"/going", "u-1", "user", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.doJSON(t, http.MethodPost, "/events/"+id+"/comments", "u-1", "user", `{"body":"soon"}`)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "window-not-open", decode(t, w)["code"])

	e.clk.Set(end.Add(3 * time.Hour))
	w = e.doJSON(t, http.MethodPost, "/events/"+id+"/comments", "u-1", "user", `{"body":"great night"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.doJSON(t, http.MethodPost, "/events/"+id+"/ratings", "u-1", "user", `{"value":4.5}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.doJSON(t, http.MethodPost, "/events/"+id+"/ratings", "u-1", "user", `{"value":4}`)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "already-rated", decode(t, w)["code"])

	w = e.doJSON(t, http.MethodGet, "/events/"+id+"/comments?limit=5", "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = e.doJSON(t, http.MethodGet, "/events/"+id+"/comments?limit=-1", "", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftIsNotFoundForOthers(t *testing.T) {
	e := newEnv(t)
	ev, err := e.events.Create(context.Background(), models.Viewer{UserID: "org-1", Role: models.RoleOrganizer}, services.EventInput{
		Title: "Secret", StartsAt: start, EndsAt: end, Genre: "jazz",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, e.doJSON(t, http.MethodGet, "/events/"+ev.ID, "u-2", "user", "").Code)
	assert.Equal(t, http.StatusOK, e.doJSON(t, http.MethodGet, "/events/"+ev.ID, "org-1", "organizer", "").Code)
}

func multipartImage(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="pic.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	e := newEnv(t)
	id := e.publish(t)
	require.Equal(t, http.StatusOK, e.doJSON(t, http.MethodPost, "/events/"+id+"/going", "u-1", "user", "").Code)
	e.clk.Set(end.Add(time.Hour))

	body, ct := multipartImage(t, "image/png", []byte("\x89PNG fake"))
	w := e.do(t, http.MethodPost, "/events/"+id+"/images", "u-1", "user", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	assert.Contains(t, data["url"], "https://cdn.test/event-images/events/"+id+"/u-1/")
	assert.NotContains(t, data, "ref")

	body, ct = multipartImage(t, "application/pdf", []byte("%PDF"))
	w = e.do(t, http.MethodPost, "/events/"+id+"/images", "u-1", "user", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/events/"+id+"/images", "u-1", "user", strings.NewReader(""), "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMediaURLAndLocation(t *testing.T) {
	e := newEnv(t)

	w := e.doJSON(t, http.MethodGet, "/media/url?ref=events/a/b.jpg&ttl=120", "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "https://cdn.test/event-images/events/a/b.jpg?ttl=2m0s", data["url"])

	assert.Equal(t, http.StatusBadRequest, e.doJSON(t, http.MethodGet, "/media/url", "", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.doJSON(t, http.MethodGet, "/media/url?ref=x&ttl=soon", "", "", "").Code)

	w = e.doJSON(t, http.MethodPost, "/location/resolve", "u-1", "user", `{"city":"Maribor"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data = decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "city", data["source"])

	w = e.doJSON(t, http.MethodPost, "/location/resolve", "u-1", "user", `{"lat":46.0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedQueryValidation(t *testing.T) {
	e := newEnv(t)
	e.publish(t)

	w := e.doJSON(t, http.MethodGet, "/events?lat=46.05&lng=14.5", "", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	assert.Len(t, data["items"], 1)
	assert.Equal(t, "device", data["location"].(map[string]any)["source"])

	assert.Equal(t, http.StatusBadRequest, e.doJSON(t, http.MethodGet, "/events?lat=46.05", "", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.doJSON(t, http.MethodGet, "/events?genre=polka", "", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.doJSON(t, http.MethodGet, "/events?scope=everything", "", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.doJSON(t, http.MethodGet, "/events?scope=admin", "", "", "").Code)
}

// blockingEvents holds the first ListEvents call until its context ends.
type blockingEvents struct {
	models.EventRepo
	once    sync.Once
	started chan struct{}
}

func (b *blockingEvents) ListEvents(ctx context.Context, _ models.EventQuery) ([]models.EventWithStats, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []models.EventWithStats{}, nil
}

func TestFeedSupersession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clk := clock.NewManual(start)
	repo := &blockingEvents{started: make(chan struct{})}
	fs := services.NewFeedService(repo, geo.NewResolver(nil, geo.WithClock(clk)), nil)

	r := gin.New()
	r.Use(asViewer())
	r.GET("/events", ListFeed(fs, services.NewFeedCoordinator()))

	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		req.Header.Set(middleware.SessionHeader, "sess-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() { firstDone <- request() }()
	<-repo.started

	second := request()
	assert.Equal(t, http.StatusOK, second.Code)

	first := <-firstDone
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "true", first.Header().Get(SupersededHeader))
	assert.Empty(t, first.Body.String())
}
