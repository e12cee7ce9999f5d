package posts

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/iabdinur/blog/cache"
	"github.com/iabdinur/blog/email"
	"github.com/iabdinur/blog/models"
)

// offsetSuffix matches a trailing UTC offset like +02:00 or -0500.
var offsetSuffix = regexp.MustCompile(`[+-]\d{2}:?\d{2}$`)

// parseNaiveLocal interprets a scheduled timestamp in server-local time.
// Any Z, offset or fractional-second suffix the client appended is stripped
// first; the wall-clock digits are the contract, not the zone.
func parseNaiveLocal(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "Z")
	s = offsetSuffix.ReplaceAllString(s, "")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}

	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04", s, time.Local)
}

// Scheduler publishes posts whose scheduled time has arrived and notifies
// newsletter subscribers about them.
type Scheduler struct {
	db     *gorm.DB
	mailer email.Mailer
	cache  *cache.Cache
}

func NewScheduler(db *gorm.DB, mailer email.Mailer, responseCache *cache.Cache) *Scheduler {
	return &Scheduler{db: db, mailer: mailer, cache: responseCache}
}

// Start runs the sweep once a minute until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Sweep publishes every due scheduled post. Failures are logged per post so
// one bad row never blocks the rest.
func (s *Scheduler) Sweep() {
	var scheduled []models.Post
	s.db.Where("is_published = ? AND scheduled_at != ''", false).Find(&scheduled)

	now := time.Now()
	for i := range scheduled {
		post := &scheduled[i]

		due, err := parseNaiveLocal(post.ScheduledAt)
		if err != nil {
			slog.Error("unparseable scheduled time", "slug", post.Slug, "scheduled_at", post.ScheduledAt, "err", err)
			continue
		}
		if due.After(now) {
			continue
		}

		post.IsPublished = true
		post.PublishedAt = &due
		if err := s.db.Save(post).Error; err != nil {
			slog.Error("failed to publish scheduled post", "slug", post.Slug, "err", err)
			continue
		}

		var count int64
		s.db.Model(&models.Post{}).Where("author_id = ? AND is_published = ?", post.AuthorID, true).Count(&count)
		s.db.Model(&models.Author{}).Where("id = ?", post.AuthorID).UpdateColumn("posts_count", count)

		slog.Info("published scheduled post", "slug", post.Slug, "published_at", due)
		s.cache.InvalidatePrefix("/api/v1/posts")
		s.notifySubscribers(post)
	}
}

func (s *Scheduler) notifySubscribers(post *models.Post) {
	var subscribers []models.NewsletterSubscription
	s.db.Where("status = ?", "active").Find(&subscribers)

	for _, sub := range subscribers {
		if err := s.mailer.SendPostNotification(sub.Email, post.Title, post.Slug, post.Excerpt); err != nil {
			slog.Error("failed to notify subscriber", "email", sub.Email, "slug", post.Slug, "err", err)
		}
	}
}
