package tracker

import (
	"testing"
	"time"

	"github.com/couchlog/couchlog/internal/db"
	"github.com/couchlog/couchlog/internal/models"
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

func movieSession(userID uint) *ActiveSession {
	return &ActiveSession{
		SessionID: "s1",
		UserID:    userID,
		ContentID: 949,
		Kind:      KindMovie,
		Title:     "Heat",
	}
}

func episodeSession(userID uint, season, episode int) *ActiveSession {
	return &ActiveSession{
		SessionID: "s1",
		UserID:    userID,
		ContentID: 1399,
		Kind:      KindEpisode,
		Season:    intPtr(season),
		Episode:   intPtr(episode),
		Title:     "Game of Thrones",
	}
}

func TestNewRecorder_NilDB(t *testing.T) {
	_, err := NewRecorder(nil)
	if err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestRecord_CreatesMovieRecord(t *testing.T) {
	gdb := openTestDB(t)
	rec, _ := NewRecorder(gdb)
	now := time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)

	out := Outcome{Minutes: 103, Completed: true, Record: true}
	got, err := rec.Record(movieSession(1), out, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Minutes != 103 {
		t.Errorf("minutes = %d, want 103", got.Minutes)
	}
	if got.Partial {
		t.Error("completed watch must not be partial")
	}

	var media models.MediaItem
	if err := gdb.Where("tmdb_id = ?", 949).First(&media).Error; err != nil {
		t.Fatalf("media item not created: %v", err)
	}
	if media.Kind != models.KindMovie {
		t.Errorf("media kind = %q, want movie", media.Kind)
	}
}

func TestRecord_EpisodeReferencesSeries(t *testing.T) {
	gdb := openTestDB(t)
	rec, _ := NewRecorder(gdb)
	now := time.Now()

	out := Outcome{Minutes: 52, Completed: true, Record: true}
	if _, err := rec.Record(episodeSession(1, 1, 3), out, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var media models.MediaItem
	if err := gdb.Where("tmdb_id = ?", 1399).First(&media).Error; err != nil {
		t.Fatalf("series item not created: %v", err)
	}
	if media.Kind != models.KindSeries {
		t.Errorf("media kind = %q, want series (episodes reference the series row)", media.Kind)
	}

	var wr models.WatchRecord
	if err := gdb.First(&wr).Error; err != nil {
		t.Fatalf("watch record not created: %v", err)
	}
	if wr.Kind != models.KindEpisode {
		t.Errorf("record kind = %q, want episode", wr.Kind)
	}
	if wr.Season == nil || *wr.Season != 1 || wr.Episode == nil || *wr.Episode != 3 {
		t.Errorf("record episode = S%v E%v, want S1 E3", wr.Season, wr.Episode)
	}
}

func TestRecord_SameDayAccumulates(t *testing.T) {
	gdb := openTestDB(t)
	rec, _ := NewRecorder(gdb)
	morning := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC)

	first := Outcome{Minutes: 40, Completed: false, Record: true}
	if _, err := rec.Record(movieSession(1), first, morning); err != nil {
		t.Fatalf("first record: %v", err)
	}
	second := Outcome{Minutes: 65, Completed: true, Record: true}
	got, err := rec.Record(movieSession(1), second, evening)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}

	var count int64
	gdb.Model(&models.WatchRecord{}).Count(&count)
	if count != 1 {
		t.Fatalf("record count = %d, want 1 (same-day sessions accumulate)", count)
	}
	if got.Minutes != 105 {
		t.Errorf("minutes = %d, want 105", got.Minutes)
	}
	if got.Partial {
		t.Error("completion should have cleared the partial flag")
	}
}

func TestRecord_PartialNeverFlipsBack(t *testing.T) {
	gdb := openTestDB(t)
	rec, _ := NewRecorder(gdb)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	completed := Outcome{Minutes: 103, Completed: true, Record: true}
	if _, err := rec.Record(movieSession(1), completed, now); err != nil {
		t.Fatalf("completed record: %v", err)
	}

	// A later partial rewatch of the same content on the same day.
	partial := Outcome{Minutes: 12, Completed: false, Record: true}
	got, err := rec.Record(movieSession(1), partial, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("partial record: %v", err)
	}
	if got.Partial {
		t.Error("partial flag flipped back to true")
	}
	if got.Minutes != 115 {
		t.Errorf("minutes = %d, want 115", got.Minutes)
	}
}

func TestRecord_DifferentDaysSeparateRecords(t *testing.T) {
	gdb := openTestDB(t)
	rec, _ := NewRecorder(gdb)

	out := Outcome{Minutes: 103, Completed: true, Record: true}
	rec.Record(movieSession(1), out, time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC))
	rec.Record(movieSession(1), out, time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC))

	var count int64
	gdb.Model(&models.WatchRecord{}).Count(&count)
	if count != 2 {
		t.Errorf("record count = %d, want 2 across different days", count)
	}
}

func TestRecord_EpisodesDoNotCollide(t *testing.T) {
	gdb := openTestDB(t)
	rec, _ := NewRecorder(gdb)
	now := time.Now()

	out := Outcome{Minutes: 52, Completed: true, Record: true}
	rec.Record(episodeSession(1, 1, 3), out, now)
	rec.Record(episodeSession(1, 1, 4), out, now)

	var count int64
	gdb.Model(&models.WatchRecord{}).Count(&count)
	if count != 2 {
		t.Errorf("record count = %d, want 2 for different episodes", count)
	}
}

func TestRecord_ManualRecordsUntouched(t *testing.T) {
	gdb := openTestDB(t)
	rec, _ := NewRecorder(gdb)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	media := models.MediaItem{TmdbID: 949, Kind: models.KindMovie, Title: "Heat"}
	if err := gdb.Create(&media).Error; err != nil {
		t.Fatalf("seed media: %v", err)
	}
	manual := models.WatchRecord{
		UserID: 1, MediaItemID: media.ID, Kind: models.KindMovie,
		WatchedAt: now, Minutes: 170, Manual: true,
	}
	if err := gdb.Create(&manual).Error; err != nil {
		t.Fatalf("seed manual record: %v", err)
	}

	out := Outcome{Minutes: 103, Completed: true, Record: true}
	if _, err := rec.Record(movieSession(1), out, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int64
	gdb.Model(&models.WatchRecord{}).Count(&count)
	if count != 2 {
		t.Errorf("record count = %d, want 2 (manual entries are never accumulated into)", count)
	}
	var kept models.WatchRecord
	gdb.Where("manual = ?", true).First(&kept)
	if kept.Minutes != 170 {
		t.Errorf("manual record minutes = %d, want 170 untouched", kept.Minutes)
	}
}

func TestRecordActivity_Upserts(t *testing.T) {
	gdb := openTestDB(t)
	rec, _ := NewRecorder(gdb)
	day := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

	newDay, err := rec.RecordActivity(1, day, 40, false)
	if err != nil {
		t.Fatalf("first activity: %v", err)
	}
	if !newDay {
		t.Error("first activity of the day should report a new day")
	}
	newDay, err = rec.RecordActivity(1, day.Add(3*time.Hour), 65, true)
	if err != nil {
		t.Fatalf("second activity: %v", err)
	}
	if newDay {
		t.Error("second activity on the same day should not report a new day")
	}

	var rows []models.DailyActivity
	if err := gdb.Find(&rows).Error; err != nil {
		t.Fatalf("load activity: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("activity rows = %d, want 1", len(rows))
	}
	a := rows[0]
	if a.Minutes != 105 {
		t.Errorf("minutes = %d, want 105", a.Minutes)
	}
	if a.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", a.Sessions)
	}
	if a.Completed != 1 {
		t.Errorf("completed = %d, want 1", a.Completed)
	}
}
