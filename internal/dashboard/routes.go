package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/couchlog/couchlog/internal/aggregates"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, gdb *gorm.DB, trk NowPlayingSource) {
	router.GET("/healthz", handleHealth())

	api := router.Group("/api")
	api.GET("/history", handleHistory(gdb))
	api.GET("/leaderboard", handleLeaderboard(gdb))
	api.GET("/now", handleNowPlaying(trk))
	api.GET("/events", handleSSE(trk))
	api.GET("/users/:id/streak", handleStreak(gdb))
	api.GET("/users/:id/progress", handleProgress(gdb))
	api.GET("/users/:id/badges", handleBadges(gdb))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleHistory(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f HistoryFilters
		if raw := c.Query("user"); raw != "" {
			id, ok := parseID(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
				return
			}
			f.UserID = id
		}
		if raw := c.Query("limit"); raw != "" {
			f.Limit, _ = strconv.Atoi(raw)
		}
		rows, err := History(gdb, f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func handleLeaderboard(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		days := 7
		if raw := c.Query("days"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				days = n
			}
		}
		rows, err := Leaderboard(gdb, time.Now().AddDate(0, 0, -days))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// nowPlayingEntry is the JSON shape of one active session.
type nowPlayingEntry struct {
	SessionID string  `json:"session_id"`
	UserID    uint    `json:"user_id"`
	Title     string  `json:"title"`
	Kind      string  `json:"kind"`
	Season    *int    `json:"season,omitempty"`
	Episode   *int    `json:"episode,omitempty"`
	Percent   float64 `json:"percent"`
	Paused    bool    `json:"paused"`
	StartedAt string  `json:"started_at"`
}

func handleNowPlaying(trk NowPlayingSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, nowPlayingEntries(trk))
	}
}

func nowPlayingEntries(trk NowPlayingSource) []nowPlayingEntry {
	entries := []nowPlayingEntry{}
	if trk == nil {
		return entries
	}
	for _, s := range trk.NowPlaying() {
		percent := 0.0
		if s.Runtime > 0 {
			percent = float64(s.Position) / float64(s.Runtime) * 100
		}
		entries = append(entries, nowPlayingEntry{
			SessionID: s.SessionID,
			UserID:    s.UserID,
			Title:     s.Title,
			Kind:      s.Kind,
			Season:    s.Season,
			Episode:   s.Episode,
			Percent:   percent,
			Paused:    s.Paused,
			StartedAt: s.StartedAt.UTC().Format(time.RFC3339),
		})
	}
	return entries
}

func handleStreak(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c.Param("id"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		streak, err := aggregates.Streak(gdb, id, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"current": streak.Current, "longest": streak.Longest})
	}
}

func handleProgress(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c.Param("id"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		rows, err := SeriesProgressFor(gdb, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func handleBadges(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c.Param("id"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		rows, err := BadgesFor(gdb, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}
