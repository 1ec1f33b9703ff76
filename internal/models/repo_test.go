package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/testutil"
)

var base = time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)

func newEvent(organizer, title string, status models.EventStatus) *models.Event {
	return &models.Event{
		ID:          uuid.NewString(),
		OrganizerID: organizer,
		Title:       title,
		Description: "night out",
		City:        "Ljubljana",
		Region:      "Osrednjeslovenska",
		StartsAt:    base,
		EndsAt:      base.Add(6 * time.Hour),
		Genre:       "techno",
		PriceType:   models.PriceFree,
		Status:      status,
		CreatedAt:   base.Add(-48 * time.Hour),
		UpdatedAt:   base.Add(-48 * time.Hour),
	}
}

func setup(t *testing.T) (*models.SQLRepo, context.Context) {
	t.Helper()
	return models.NewSQLRepo(testutil.NewDB(t)), context.Background()
}

func TestEventCRUD(t *testing.T) {
	repo, ctx := setup(t)
	e := newEvent("org-1", "Warehouse", models.StatusPublished)
	require.NoError(t, repo.CreateEvent(ctx, e))

	got, err := repo.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Warehouse", got.Title)
	assert.True(t, got.StartsAt.Equal(base))

	got.Title = "Warehouse II"
	got.OrganizerID = "someone-else"
	require.NoError(t, repo.UpdateEvent(ctx, got))

	again, err := repo.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Warehouse II", again.Title)
	assert.Equal(t, "org-1", again.OrganizerID, "organizer is immutable")

	_, err = repo.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAttendanceIsUniquePerUser(t *testing.T) {
	repo, ctx := setup(t)
	e := newEvent("org-1", "Warehouse", models.StatusPublished)
	require.NoError(t, repo.CreateEvent(ctx, e))

	require.NoError(t, repo.AddAttendance(ctx, &models.Attendance{ID: uuid.NewString(), EventID: e.ID, UserID: "u1", CreatedAt: base}))
	err := repo.AddAttendance(ctx, &models.Attendance{ID: uuid.NewString(), EventID: e.ID, UserID: "u1", CreatedAt: base})
	var conflict *models.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "attendance", conflict.Resource)

	facts, err := repo.ViewerFacts(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.True(t, facts.Going)

	removed, err := repo.RemoveAttendance(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.RemoveAttendance(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRatingUniqueAndSummary(t *testing.T) {
	repo, ctx := setup(t)
	e := newEvent("org-1", "Warehouse", models.StatusPublished)
	require.NoError(t, repo.CreateEvent(ctx, e))

	empty, err := repo.RatingSummary(ctx, e.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Nil(t, empty.Average)

	for i, v := range []float64{4.0, 5.0, 3.5} {
		require.NoError(t, repo.CreateRating(ctx, &models.Rating{
			ID: uuid.NewString(), EventID: e.ID, UserID: []string{"a", "b", "c"}[i], Value: v,
			CreatedAt: base, UpdatedAt: base,
		}))
	}
	err = repo.CreateRating(ctx, &models.Rating{ID: uuid.NewString(), EventID: e.ID, UserID: "a", Value: 1, CreatedAt: base, UpdatedAt: base})
	var conflict *models.ConflictError
	assert.ErrorAs(t, err, &conflict)

	summary, err := repo.RatingSummary(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	require.NotNil(t, summary.Average)
	assert.InDelta(t, 4.1667, *summary.Average, 0.001)

	facts, err := repo.ViewerFacts(ctx, e.ID, "b")
	require.NoError(t, err)
	require.NotNil(t, facts.Rating)
	assert.Equal(t, 5.0, *facts.Rating)
	assert.NotEmpty(t, facts.RatingID)
}

func TestListEventsStatsAndVisibility(t *testing.T) {
	repo, ctx := setup(t)
	pub := newEvent("org-1", "Published", models.StatusPublished)
	draft := newEvent("org-1", "Draft", models.StatusDraft)
	other := newEvent("org-2", "Other draft", models.StatusDraft)
	for _, e := range []*models.Event{pub, draft, other} {
		require.NoError(t, repo.CreateEvent(ctx, e))
	}

	for _, u := range []string{"u1", "u2"} {
		require.NoError(t, repo.AddAttendance(ctx, &models.Attendance{ID: uuid.NewString(), EventID: pub.ID, UserID: u, CreatedAt: base}))
	}
	require.NoError(t, repo.CreateComment(ctx, &models.Comment{ID: uuid.NewString(), EventID: pub.ID, AuthorID: "u1", Body: "great", CreatedAt: base}))
	require.NoError(t, repo.CreateRating(ctx, &models.Rating{ID: uuid.NewString(), EventID: pub.ID, UserID: "u1", Value: 4.5, CreatedAt: base, UpdatedAt: base}))

	anon, err := repo.ListEvents(ctx, models.EventQuery{})
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Equal(t, pub.ID, anon[0].ID)
	assert.Equal(t, 2, anon[0].GoingCount)
	assert.Equal(t, 1, anon[0].CommentCount)
	assert.Equal(t, 1, anon[0].RatingCount)
	require.NotNil(t, anon[0].AverageRating)
	assert.Equal(t, 4.5, *anon[0].AverageRating)

	own, err := repo.ListEvents(ctx, models.EventQuery{VisibleTo: "org-1"})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	all, err := repo.ListEvents(ctx, models.EventQuery{IncludeAll: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	single, err := repo.GetEventWithStats(ctx, draft.ID)
	require.NoError(t, err)
	assert.Zero(t, single.GoingCount)
	assert.Nil(t, single.AverageRating)
}

func TestListEventsFilters(t *testing.T) {
	repo, ctx := setup(t)
	a := newEvent("org-1", "100% Techno", models.StatusPublished)
	b := newEvent("org-1", "1000 nights", models.StatusPublished)
	b.City = "Maribor"
	b.Genre = "house"
	for _, e := range []*models.Event{a, b} {
		require.NoError(t, repo.CreateEvent(ctx, e))
	}

	byText, err := repo.ListEvents(ctx, models.EventQuery{Text: "100%"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, a.ID, byText[0].ID)

	byCity, err := repo.ListEvents(ctx, models.EventQuery{City: "  maribor "})
	require.NoError(t, err)
	require.Len(t, byCity, 1)
	assert.Equal(t, b.ID, byCity[0].ID)

	byGenre, err := repo.ListEvents(ctx, models.EventQuery{Genre: "techno"})
	require.NoError(t, err)
	require.Len(t, byGenre, 1)
	assert.Equal(t, a.ID, byGenre[0].ID)
}

func TestDeleteEventCascades(t *testing.T) {
	repo, ctx := setup(t)
	e := newEvent("org-1", "Warehouse", models.StatusPublished)
	require.NoError(t, repo.CreateEvent(ctx, e))
	require.NoError(t, repo.AddAttendance(ctx, &models.Attendance{ID: uuid.NewString(), EventID: e.ID, UserID: "u1", CreatedAt: base}))
	img := &models.EventImage{ID: uuid.NewString(), EventID: e.ID, UploaderID: "u1", Ref: "events/x/u1/a.jpg", CreatedAt: base}
	require.NoError(t, repo.CreateImage(ctx, img))

	refs, err := repo.DeleteEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"events/x/u1/a.jpg"}, refs)

	_, err = repo.GetImage(ctx, img.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	attendees, err := repo.ListAttendees(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, attendees)

	_, err = repo.DeleteEvent(ctx, e.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPurgeUser(t *testing.T) {
	repo, ctx := setup(t)
	owned := newEvent("bad", "Theirs", models.StatusPublished)
	kept := newEvent("org-1", "Ours", models.StatusPublished)
	require.NoError(t, repo.CreateEvent(ctx, owned))
	require.NoError(t, repo.CreateEvent(ctx, kept))

	require.NoError(t, repo.AddAttendance(ctx, &models.Attendance{ID: uuid.NewString(), EventID: kept.ID, UserID: "bad", CreatedAt: base}))
	require.NoError(t, repo.AddAttendance(ctx, &models.Attendance{ID: uuid.NewString(), EventID: kept.ID, UserID: "good", CreatedAt: base}))
	require.NoError(t, repo.AddAttendance(ctx, &models.Attendance{ID: uuid.NewString(), EventID: owned.ID, UserID: "good", CreatedAt: base}))
	require.NoError(t, repo.CreateImage(ctx, &models.EventImage{ID: uuid.NewString(), EventID: kept.ID, UploaderID: "bad", Ref: "r1", CreatedAt: base}))
	require.NoError(t, repo.CreateImage(ctx, &models.EventImage{ID: uuid.NewString(), EventID: owned.ID, UploaderID: "good", Ref: "r2", CreatedAt: base}))
	require.NoError(t, repo.CreateFollow(ctx, &models.Follow{ID: uuid.NewString(), OrganizerID: "bad", UserID: "good", CreatedAt: base}))

	refs, err := repo.PurgeUser(ctx, "bad")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, refs)

	_, err = repo.GetEvent(ctx, owned.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	attendees, err := repo.ListAttendees(ctx, kept.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.Equal(t, "good", attendees[0].UserID)

	following, err := repo.ListFollowing(ctx, "good")
	require.NoError(t, err)
	assert.Empty(t, following)
}

func TestListCommentsPaginates(t *testing.T) {
	repo, ctx := setup(t)
	e := newEvent("org-1", "Warehouse", models.StatusPublished)
	require.NoError(t, repo.CreateEvent(ctx, e))
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateComment(ctx, &models.Comment{
			ID: uuid.NewString(), EventID: e.ID, AuthorID: "u1", Body: "c", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, total, err := repo.ListComments(ctx, e.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt), "newest first")
}

func TestEventValidate(t *testing.T) {
	e := newEvent("org-1", "Warehouse", models.StatusPublished)
	require.NoError(t, e.Validate())

	bad := *e
	bad.EndsAt = bad.StartsAt
	assert.Error(t, bad.Validate())

	paid := *e
	paid.PriceType = models.PricePaid
	var ve *models.ValidationError
	require.ErrorAs(t, paid.Validate(), &ve)
	assert.Equal(t, "price", ve.Field)

	lat := 46.05
	half := *e
	half.Latitude = &lat
	require.ErrorAs(t, half.Validate(), &ve)

	genre := *e
	genre.Genre = "polka"
	require.ErrorAs(t, genre.Validate(), &ve)
	assert.Equal(t, "genre", ve.Field)
}

func TestValidateRatingValue(t *testing.T) {
	for _, v := range []float64{1, 1.5, 4.9, 5} {
		assert.NoError(t, models.ValidateRatingValue(v), v)
	}
	for _, v := range []float64{0, 0.9, 5.1, 3.25} {
		assert.Error(t, models.ValidateRatingValue(v), v)
	}
}
