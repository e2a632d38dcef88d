package aggregates

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/couchlog/couchlog/internal/db"
	"github.com/couchlog/couchlog/internal/models"
	"github.com/couchlog/couchlog/internal/tmdb"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gdb
}

func intPtr(n int) *int { return &n }

// fakeCatalog serves canned series details.
type fakeCatalog struct {
	details *tmdb.SeriesDetails
	err     error
	calls   int
}

func (f *fakeCatalog) Series(ctx context.Context, tmdbID int64) (*tmdb.SeriesDetails, error) {
	f.calls++
	return f.details, f.err
}

func seedSeries(t *testing.T, gdb *gorm.DB, tmdbID int64, title string, total int) *models.MediaItem {
	t.Helper()
	m := models.MediaItem{TmdbID: tmdbID, Kind: models.KindSeries, Title: title, TotalEpisodes: total}
	if err := gdb.Create(&m).Error; err != nil {
		t.Fatalf("seed series: %v", err)
	}
	return &m
}

func seedEpisodeRecord(t *testing.T, gdb *gorm.DB, userID, mediaID uint, season, episode int, partial bool) {
	t.Helper()
	rec := models.WatchRecord{
		UserID:      userID,
		MediaItemID: mediaID,
		Kind:        models.KindEpisode,
		Season:      intPtr(season),
		Episode:     intPtr(episode),
		WatchedAt:   time.Now(),
		Minutes:     50,
		Partial:     partial,
	}
	if err := gdb.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func TestNew_NilDB(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

// --- series progress ---

func TestRecomputeSeriesProgress_CountsDistinctEpisodes(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	series := seedSeries(t, gdb, 1399, "Game of Thrones", 73)

	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 1, false)
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 2, false)
	// Same episode watched on two days still counts once.
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 2, false)
	// Partial watches do not count.
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 3, true)

	if err := svc.RecomputeSeriesProgress(context.Background(), 1, 1399); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	var p models.SeriesProgress
	if err := gdb.Where("user_id = ?", 1).First(&p).Error; err != nil {
		t.Fatalf("progress row not written: %v", err)
	}
	if p.WatchedEpisodes != 2 {
		t.Errorf("watched = %d, want 2 distinct completed episodes", p.WatchedEpisodes)
	}
	if p.TotalEpisodes != 73 {
		t.Errorf("total = %d, want 73", p.TotalEpisodes)
	}
	want := float64(2) / 73 * 100
	if p.Percent < want-0.01 || p.Percent > want+0.01 {
		t.Errorf("percent = %v, want ~%v", p.Percent, want)
	}
}

func TestRecomputeSeriesProgress_UpsertsSingleRow(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	series := seedSeries(t, gdb, 1399, "Game of Thrones", 73)
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 1, false)

	if err := svc.RecomputeSeriesProgress(context.Background(), 1, 1399); err != nil {
		t.Fatalf("first recompute: %v", err)
	}
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 2, false)
	if err := svc.RecomputeSeriesProgress(context.Background(), 1, 1399); err != nil {
		t.Fatalf("second recompute: %v", err)
	}

	var count int64
	gdb.Model(&models.SeriesProgress{}).Count(&count)
	if count != 1 {
		t.Fatalf("progress rows = %d, want 1", count)
	}
	var p models.SeriesProgress
	gdb.First(&p)
	if p.WatchedEpisodes != 2 {
		t.Errorf("watched = %d, want 2 after recompute", p.WatchedEpisodes)
	}
}

func TestRecomputeSeriesProgress_EnrichesTotals(t *testing.T) {
	gdb := openTestDB(t)
	catalog := &fakeCatalog{details: &tmdb.SeriesDetails{Name: "Game of Thrones", Episodes: 73}}
	svc, _ := New(gdb, catalog)
	series := seedSeries(t, gdb, 1399, "", 0)
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 1, false)

	if err := svc.RecomputeSeriesProgress(context.Background(), 1, 1399); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	var m models.MediaItem
	gdb.First(&m, series.ID)
	if m.TotalEpisodes != 73 {
		t.Errorf("total episodes = %d, want 73 from the catalogue", m.TotalEpisodes)
	}
	if m.Title != "Game of Thrones" {
		t.Errorf("title = %q, want backfilled from the catalogue", m.Title)
	}
}

func TestRecomputeSeriesProgress_CatalogFailureNonFatal(t *testing.T) {
	gdb := openTestDB(t)
	catalog := &fakeCatalog{err: fmt.Errorf("rate limited")}
	svc, _ := New(gdb, catalog)
	series := seedSeries(t, gdb, 1399, "Game of Thrones", 0)
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 1, false)

	if err := svc.RecomputeSeriesProgress(context.Background(), 1, 1399); err != nil {
		t.Fatalf("recompute should survive a catalogue failure: %v", err)
	}

	var p models.SeriesProgress
	if err := gdb.First(&p).Error; err != nil {
		t.Fatalf("progress row not written: %v", err)
	}
	if p.Percent != 0 {
		t.Errorf("percent = %v, want 0 with unknown totals", p.Percent)
	}
}

func TestRecomputeSeriesProgress_UnknownSeries(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	if err := svc.RecomputeSeriesProgress(context.Background(), 1, 9999); err == nil {
		t.Fatal("expected error for unknown series")
	}
}

// --- streaks ---

func seedActivity(t *testing.T, gdb *gorm.DB, userID uint, day time.Time) {
	t.Helper()
	a := models.DailyActivity{UserID: userID, Date: day, Minutes: 60, Sessions: 1}
	if err := gdb.Create(&a).Error; err != nil {
		t.Fatalf("seed activity: %v", err)
	}
}

func TestStreak_NoActivity(t *testing.T) {
	gdb := openTestDB(t)
	s, err := Streak(gdb, 1, time.Now())
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if s.Current != 0 || s.Longest != 0 {
		t.Errorf("streak = %+v, want zero", s)
	}
}

func TestStreak_ConsecutiveDays(t *testing.T) {
	gdb := openTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		seedActivity(t, gdb, 1, today.AddDate(0, 0, -i))
	}

	s, err := Streak(gdb, 1, today)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if s.Current != 4 {
		t.Errorf("current = %d, want 4", s.Current)
	}
	if s.Longest != 4 {
		t.Errorf("longest = %d, want 4", s.Longest)
	}
}

func TestStreak_SurvivesUntilAFullDayPasses(t *testing.T) {
	gdb := openTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// Activity yesterday and the day before, none yet today.
	seedActivity(t, gdb, 1, today.AddDate(0, 0, -1))
	seedActivity(t, gdb, 1, today.AddDate(0, 0, -2))

	s, err := Streak(gdb, 1, today)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if s.Current != 2 {
		t.Errorf("current = %d, want 2 (no watch today does not break the run)", s.Current)
	}
}

func TestStreak_BrokenByGap(t *testing.T) {
	gdb := openTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedActivity(t, gdb, 1, today)
	// A five-day run further back.
	for i := 3; i < 8; i++ {
		seedActivity(t, gdb, 1, today.AddDate(0, 0, -i))
	}

	s, err := Streak(gdb, 1, today)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if s.Current != 1 {
		t.Errorf("current = %d, want 1 after the gap", s.Current)
	}
	if s.Longest != 5 {
		t.Errorf("longest = %d, want the historical 5-day run", s.Longest)
	}
}

func TestCurrentStreak(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)

	today := time.Now()
	seedActivity(t, gdb, 1, dateOf(today))
	seedActivity(t, gdb, 1, dateOf(today.AddDate(0, 0, -1)))
	seedActivity(t, gdb, 1, dateOf(today.AddDate(0, 0, -2)))

	days, err := svc.CurrentStreak(context.Background(), 1)
	if err != nil {
		t.Fatalf("current streak: %v", err)
	}
	if days != 3 {
		t.Errorf("current streak = %d, want 3", days)
	}
}

// --- badges ---

func seedBadge(t *testing.T, gdb *gorm.DB, slug, criterion string, threshold int) *models.Badge {
	t.Helper()
	b := models.Badge{Slug: slug, Name: slug, Criterion: criterion, Threshold: threshold}
	if err := gdb.Create(&b).Error; err != nil {
		t.Fatalf("seed badge: %v", err)
	}
	return &b
}

func TestEvaluateBadges_AwardsOnThreshold(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	seedBadge(t, gdb, "first-watch", models.CriterionCompletedWatches, 1)
	seedBadge(t, gdb, "marathon", models.CriterionTotalMinutes, 1000)

	series := seedSeries(t, gdb, 1399, "Game of Thrones", 73)
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 1, false)

	earned, err := svc.EvaluateBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(earned) != 1 {
		t.Fatalf("earned %d badges, want 1", len(earned))
	}
	if earned[0].Slug != "first-watch" {
		t.Errorf("earned %q, want first-watch", earned[0].Slug)
	}
}

func TestEvaluateBadges_Idempotent(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	seedBadge(t, gdb, "first-watch", models.CriterionCompletedWatches, 1)
	series := seedSeries(t, gdb, 1399, "Game of Thrones", 73)
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 1, false)

	if _, err := svc.EvaluateBadges(context.Background(), 1); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	earned, err := svc.EvaluateBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(earned) != 0 {
		t.Errorf("earned %d badges on re-evaluation, want 0", len(earned))
	}

	var count int64
	gdb.Model(&models.UserBadge{}).Count(&count)
	if count != 1 {
		t.Errorf("user badge rows = %d, want 1", count)
	}
}

func TestEvaluateBadges_StreakCriterion(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	seedBadge(t, gdb, "week-streak", models.CriterionStreakDays, 7)

	today := time.Now()
	for i := 0; i < 7; i++ {
		seedActivity(t, gdb, 1, dateOf(today.AddDate(0, 0, -i)))
	}

	earned, err := svc.EvaluateBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(earned) != 1 {
		t.Fatalf("earned %d badges, want 1 for the 7-day streak", len(earned))
	}
}

func TestEvaluateBadges_DistinctSeriesCriterion(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	seedBadge(t, gdb, "explorer", models.CriterionDistinctSeries, 2)

	a := seedSeries(t, gdb, 1399, "Game of Thrones", 73)
	b := seedSeries(t, gdb, 1396, "Breaking Bad", 62)
	seedEpisodeRecord(t, gdb, 1, a.ID, 1, 1, false)
	seedEpisodeRecord(t, gdb, 1, b.ID, 1, 1, false)

	earned, err := svc.EvaluateBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(earned) != 1 {
		t.Fatalf("earned %d badges, want 1 for two distinct series", len(earned))
	}
}

func TestEvaluateBadges_NightOwlCriterion(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	seedBadge(t, gdb, "night-owl", models.CriterionNightOwl, 1)
	series := seedSeries(t, gdb, 1399, "Game of Thrones", 73)

	// An evening watch does not qualify.
	evening := models.WatchRecord{
		UserID: 1, MediaItemID: series.ID, Kind: models.KindEpisode,
		Season: intPtr(1), Episode: intPtr(1),
		WatchedAt: time.Date(2026, 3, 1, 21, 30, 0, 0, time.Local), Minutes: 50,
	}
	if err := gdb.Create(&evening).Error; err != nil {
		t.Fatalf("seed evening record: %v", err)
	}
	earned, err := svc.EvaluateBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(earned) != 0 {
		t.Fatalf("earned %d badges for an evening watch, want 0", len(earned))
	}

	// One finished after midnight does.
	late := models.WatchRecord{
		UserID: 1, MediaItemID: series.ID, Kind: models.KindEpisode,
		Season: intPtr(1), Episode: intPtr(2),
		WatchedAt: time.Date(2026, 3, 2, 1, 15, 0, 0, time.Local), Minutes: 50,
	}
	if err := gdb.Create(&late).Error; err != nil {
		t.Fatalf("seed late record: %v", err)
	}
	earned, err = svc.EvaluateBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(earned) != 1 || earned[0].Slug != "night-owl" {
		t.Fatalf("earned = %v, want the night-owl badge", earned)
	}
}

func TestEvaluateBadges_NightOwlIgnoresPartials(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	seedBadge(t, gdb, "night-owl", models.CriterionNightOwl, 1)
	series := seedSeries(t, gdb, 1399, "Game of Thrones", 73)

	partial := models.WatchRecord{
		UserID: 1, MediaItemID: series.ID, Kind: models.KindEpisode,
		Season: intPtr(1), Episode: intPtr(1),
		WatchedAt: time.Date(2026, 3, 2, 1, 15, 0, 0, time.Local), Minutes: 15, Partial: true,
	}
	if err := gdb.Create(&partial).Error; err != nil {
		t.Fatalf("seed partial record: %v", err)
	}

	earned, err := svc.EvaluateBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(earned) != 0 {
		t.Errorf("earned %d badges for a late partial, want 0", len(earned))
	}
}

func TestEvaluateBadges_BelowThreshold(t *testing.T) {
	gdb := openTestDB(t)
	svc, _ := New(gdb, nil)
	seedBadge(t, gdb, "marathon", models.CriterionTotalMinutes, 1000)
	series := seedSeries(t, gdb, 1399, "Game of Thrones", 73)
	seedEpisodeRecord(t, gdb, 1, series.ID, 1, 1, false) // 50 minutes

	earned, err := svc.EvaluateBadges(context.Background(), 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(earned) != 0 {
		t.Errorf("earned %d badges, want 0 below threshold", len(earned))
	}
}
