package telegraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/couchlog/couchlog/internal/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Service fans watch events out to the configured chat adapters. Every
// announcement is first written to the notification outbox, then
// delivered best-effort; undelivered rows are retried on the next flush.
type Service struct {
	db       *gorm.DB
	adapters []Adapter
	out      io.Writer
	cron     *cron.Cron
	now      func() time.Time
}

// New creates a Service with no adapters attached.
func New(gdb *gorm.DB, out io.Writer) (*Service, error) {
	if gdb == nil {
		return nil, fmt.Errorf("telegraph: db is required")
	}
	if out == nil {
		out = io.Discard
	}
	return &Service{db: gdb, out: out, now: time.Now}, nil
}

// AddAdapter attaches a platform adapter. Call before Start.
func (s *Service) AddAdapter(a Adapter) {
	if a != nil {
		s.adapters = append(s.adapters, a)
	}
}

// Start connects all adapters and, if digestCron is non-empty, schedules
// the daily digest. Adapters that fail to connect are dropped with a log
// line; announcement fan-out continues on the rest.
func (s *Service) Start(digestCron string) error {
	connected := s.adapters[:0]
	for _, a := range s.adapters {
		if err := a.Connect(); err != nil {
			log.Printf("telegraph: adapter connect: %v", err)
			continue
		}
		connected = append(connected, a)
	}
	s.adapters = connected

	if digestCron != "" {
		s.cron = cron.New(cron.WithParser(cronParser))
		if _, err := s.cron.AddFunc(digestCron, func() {
			if err := s.SendDailyDigest(context.Background()); err != nil {
				log.Printf("telegraph: daily digest: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("telegraph: digest schedule %q: %w", digestCron, err)
		}
		s.cron.Start()
	}

	fmt.Fprintf(s.out, "Telegraph running (%d adapter(s))\n", len(s.adapters))
	return nil
}

// Stop halts the digest schedule and closes all adapters.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	for _, a := range s.adapters {
		if err := a.Close(); err != nil {
			log.Printf("telegraph: adapter close: %v", err)
		}
	}
}

// AnnounceWatch publishes a completed-watch event for a user.
func (s *Service) AnnounceWatch(ctx context.Context, userID uint, title string, minutes int) {
	user, err := s.user(ctx, userID)
	if err != nil {
		log.Printf("telegraph: announce watch: %v", err)
		return
	}
	s.publish(ctx, models.Notification{
		UserID:  userID,
		Kind:    models.NotifyWatchCompleted,
		Subject: fmt.Sprintf("%s finished %s", user.Name, title),
		Body:    fmt.Sprintf("Watched for %s.", FormatMinutes(minutes)),
	})
}

// AnnounceBadge publishes a badge-earned event for a user.
func (s *Service) AnnounceBadge(ctx context.Context, userID uint, badge models.Badge) {
	user, err := s.user(ctx, userID)
	if err != nil {
		log.Printf("telegraph: announce badge: %v", err)
		return
	}
	s.publish(ctx, models.Notification{
		UserID:  userID,
		Kind:    models.NotifyBadgeEarned,
		Subject: fmt.Sprintf("%s earned the %s badge", user.Name, badge.Name),
		Body:    badge.Description,
	})
}

// AnnounceStreak publishes a streak-extended event for a user.
func (s *Service) AnnounceStreak(ctx context.Context, userID uint, days int) {
	user, err := s.user(ctx, userID)
	if err != nil {
		log.Printf("telegraph: announce streak: %v", err)
		return
	}
	s.publish(ctx, models.Notification{
		UserID:  userID,
		Kind:    models.NotifyStreakExtended,
		Subject: fmt.Sprintf("%s is on a %d-day streak", user.Name, days),
		Body:    fmt.Sprintf("Watched something every day for %d days running.", days),
	})
}

// publish writes the outbox row and attempts delivery.
func (s *Service) publish(ctx context.Context, n models.Notification) {
	n.ID = uuid.NewString()
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		log.Printf("telegraph: outbox write: %v", err)
		return
	}
	s.deliver(ctx, &n)
}

// deliver sends one notification through every adapter. Any single
// success marks the row sent.
func (s *Service) deliver(ctx context.Context, n *models.Notification) {
	if len(s.adapters) == 0 {
		return
	}
	msg := formatNotification(n)
	sent := false
	for _, a := range s.adapters {
		if err := a.Send(msg); err != nil {
			log.Printf("telegraph: send %s: %v", n.Kind, err)
			continue
		}
		sent = true
	}
	if !sent {
		return
	}
	now := s.now()
	n.SentAt = &now
	if err := s.db.WithContext(ctx).Save(n).Error; err != nil {
		log.Printf("telegraph: mark sent: %v", err)
	}
}

// Flush retries delivery of any unsent outbox rows, oldest first.
func (s *Service) Flush(ctx context.Context) error {
	var pending []models.Notification
	err := s.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at ASC").
		Limit(100).
		Find(&pending).Error
	if err != nil {
		return fmt.Errorf("telegraph: load pending: %w", err)
	}
	for i := range pending {
		s.deliver(ctx, &pending[i])
	}
	return nil
}

func (s *Service) user(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d not found", userID)
		}
		return nil, err
	}
	return &u, nil
}
