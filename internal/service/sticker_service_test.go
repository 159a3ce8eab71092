package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tothemoon-studio/vocal-api/internal/models"
	appErrors "github.com/tothemoon-studio/vocal-api/pkg/errors"
)

const stickerStudentID = "9e1f2a3b-4c5d-4e6f-8a9b-0c1d2e3f4a5b"

type mockStickerRepo struct {
	stickers   map[string]*models.Sticker
	counts     map[models.StickerLevel]int
	countsErr  error
	latest     *models.Sticker
	listResult []models.Sticker
	lastFilter models.StickerFilter
	deleted    []string
}

func (m *mockStickerRepo) Create(_ context.Context, sticker *models.Sticker) error {
	sticker.ID = "sticker-created"
	return nil
}

func (m *mockStickerRepo) FindByID(_ context.Context, id string) (*models.Sticker, error) {
	if s, ok := m.stickers[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStickerRepo) Update(_ context.Context, sticker *models.Sticker) error {
	m.stickers[sticker.ID] = sticker
	return nil
}

func (m *mockStickerRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStickerRepo) List(_ context.Context, filter models.StickerFilter) ([]models.Sticker, error) {
	m.lastFilter = filter
	return m.listResult, nil
}

func (m *mockStickerRepo) CountsByLevel(_ context.Context, _ string) (map[models.StickerLevel]int, error) {
	if m.countsErr != nil {
		return nil, m.countsErr
	}
	return m.counts, nil
}

func (m *mockStickerRepo) LatestByStudent(context.Context, string) (*models.Sticker, error) {
	return m.latest, nil
}

type mockStatsCache struct {
	store   map[string]json.RawMessage
	sets    int
	deletes []string
}

func newMockStatsCache() *mockStatsCache {
	return &mockStatsCache{store: map[string]json.RawMessage{}}
}

func (m *mockStatsCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockStatsCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	m.sets++
	return nil
}

func (m *mockStatsCache) Delete(_ context.Context, key string) error {
	m.deletes = append(m.deletes, key)
	delete(m.store, key)
	return nil
}

func TestStickerServiceLevels(t *testing.T) {
	svc := NewStickerService(&mockStickerRepo{}, nil, nil, 0, nil, nil)

	levels := svc.Levels()
	require.Len(t, levels, 7)
	assert.Equal(t, models.StickerSeed, levels[0].Level)
	assert.Equal(t, 100, levels[6].Points)
}

func TestStickerServiceCreate(t *testing.T) {
	repo := &mockStickerRepo{}
	cache := newMockStatsCache()
	svc := NewStickerService(repo, assigned(stickerStudentID, "teacher-1"), cache, time.Minute, nil, nil)

	sticker, err := svc.Create(context.Background(), "teacher-1", models.CreateStickerRequest{
		StudentID: stickerStudentID,
		Level:     models.StickerRocket,
		Comment:   strPtr("고음 돌파!"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StickerRocket, sticker.Level)
	assert.Equal(t, "로켓", sticker.Meta.Name)
	assert.Equal(t, 50, sticker.Meta.Points)
	assert.Equal(t, []string{"sticker_stats:" + stickerStudentID}, cache.deletes)
}

func TestStickerServiceCreateUnknownLevel(t *testing.T) {
	svc := NewStickerService(&mockStickerRepo{}, assigned(stickerStudentID, "teacher-1"), nil, 0, nil, nil)

	_, err := svc.Create(context.Background(), "teacher-1", models.CreateStickerRequest{
		StudentID: stickerStudentID,
		Level:     models.StickerLevel("platinum"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStickerServiceCreateUnassignedStudent(t *testing.T) {
	svc := NewStickerService(&mockStickerRepo{}, &mockAssignments{}, nil, 0, nil, nil)

	_, err := svc.Create(context.Background(), "teacher-1", models.CreateStickerRequest{
		StudentID: stickerStudentID,
		Level:     models.StickerSeed,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStickerServiceUpdateOtherTeachersSticker(t *testing.T) {
	repo := &mockStickerRepo{stickers: map[string]*models.Sticker{
		"sticker-1": {ID: "sticker-1", TeacherID: "teacher-1", StudentID: stickerStudentID, Level: models.StickerSeed},
	}}
	svc := NewStickerService(repo, nil, nil, 0, nil, nil)

	level := models.StickerBloom
	_, err := svc.Update(context.Background(), "teacher-2", "sticker-1", models.UpdateStickerRequest{Level: &level})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStickerServiceDeleteInvalidatesStats(t *testing.T) {
	repo := &mockStickerRepo{stickers: map[string]*models.Sticker{
		"sticker-1": {ID: "sticker-1", TeacherID: "teacher-1", StudentID: stickerStudentID, Level: models.StickerSeed},
	}}
	cache := newMockStatsCache()
	svc := NewStickerService(repo, nil, cache, time.Minute, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "teacher-1", "sticker-1"))
	assert.Equal(t, []string{"sticker-1"}, repo.deleted)
	assert.Equal(t, []string{"sticker_stats:" + stickerStudentID}, cache.deletes)
}

func TestStickerServiceStats(t *testing.T) {
	latest := &models.Sticker{ID: "sticker-9", StudentID: stickerStudentID, Level: models.StickerRocket}
	repo := &mockStickerRepo{
		counts: map[models.StickerLevel]int{
			models.StickerSeed:   3,
			models.StickerRocket: 1,
		},
		latest: latest,
	}
	cache := newMockStatsCache()
	svc := NewStickerService(repo, nil, cache, time.Minute, nil, nil)

	stats, err := svc.Stats(context.Background(), &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}, stickerStudentID)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalCount)
	assert.Equal(t, 3*10+50, stats.TotalPoints)

	// Every tier appears in order, zero counts included.
	require.Len(t, stats.LevelCounts, 7)
	assert.Equal(t, models.StickerSeed, stats.LevelCounts[0].Level)
	assert.Equal(t, 3, stats.LevelCounts[0].Count)
	assert.Equal(t, models.StickerBloom, stats.LevelCounts[1].Level)
	assert.Zero(t, stats.LevelCounts[1].Count)

	require.NotNil(t, stats.LatestSticker)
	assert.Equal(t, "sticker-9", stats.LatestSticker.ID)

	assert.Equal(t, 1, cache.sets)
}

func TestStickerServiceStatsCacheHit(t *testing.T) {
	cache := newMockStatsCache()
	raw, err := json.Marshal(models.StickerStats{TotalCount: 5, TotalPoints: 120})
	require.NoError(t, err)
	cache.store["sticker_stats:"+stickerStudentID] = raw

	// The repository must not be reached on a cache hit.
	repo := &mockStickerRepo{countsErr: errors.New("db down")}
	svc := NewStickerService(repo, nil, cache, time.Minute, nil, nil)

	stats, err := svc.Stats(context.Background(), &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}, stickerStudentID)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalCount)
	assert.Equal(t, 120, stats.TotalPoints)
}

func TestStickerServiceStatsStudentScope(t *testing.T) {
	svc := NewStickerService(&mockStickerRepo{}, nil, nil, 0, nil, nil)

	_, err := svc.Stats(context.Background(), &models.JWTClaims{UserID: "other-student", Role: models.RoleStudent}, stickerStudentID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Stats(context.Background(), &models.JWTClaims{UserID: stickerStudentID, Role: models.RoleStudent}, stickerStudentID)
	require.NoError(t, err)
}

func TestStickerServiceListScoping(t *testing.T) {
	repo := &mockStickerRepo{listResult: []models.Sticker{
		{ID: "sticker-1", Level: models.StickerAurora},
	}}
	svc := NewStickerService(repo, nil, nil, 0, nil, nil)

	items, err := svc.List(context.Background(), &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}, models.StickerFilter{})
	require.NoError(t, err)
	assert.Equal(t, "student-1", repo.lastFilter.StudentID)

	require.Len(t, items, 1)
	assert.Equal(t, "오로라", items[0].Meta.Name)
}
