// Package analytics records raw post visit events next to the denormalized
// view counter, so per-day and top-post queries stay possible.
package analytics

import (
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/iabdinur/blog/models"
)

// visitThrottle is how long a repeat visit from the same IP to the same post
// is ignored, so refreshes do not inflate the numbers.
const visitThrottle = 30 * time.Minute

type Module struct {
	db *gorm.DB
}

func NewModule(db *gorm.DB) *Module {
	return &Module{db: db}
}

// RecordVisit stores a visit event unless the same IP visited the same post
// within the throttle window. The write happens off the request path.
func (m *Module) RecordVisit(postID uint, ip, userAgent string) {
	cutoff := time.Now().Add(-visitThrottle)

	var recent models.PostVisit
	err := m.db.
		Where("post_id = ? AND ip = ? AND created_at > ?", postID, ip, cutoff).
		First(&recent).Error
	if err == nil {
		return
	}

	event := models.PostVisit{
		PostID:  postID,
		IP:      ip,
		Browser: extractBrowser(userAgent),
	}
	go func() {
		if err := m.db.Create(&event).Error; err != nil {
			slog.Error("failed to save visit event", "post_id", postID, "err", err)
		}
	}()
}

// DayVisits is one day of visit counts.
type DayVisits struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// VisitCount returns the total recorded visits for a post.
func (m *Module) VisitCount(postID uint) int64 {
	var count int64
	m.db.Model(&models.PostVisit{}).Where("post_id = ?", postID).Count(&count)
	return count
}

// VisitsByDay returns one entry per day for the last N days, zero-filled.
func (m *Module) VisitsByDay(postID uint, days int) []DayVisits {
	startDate := time.Now().AddDate(0, 0, -days)

	var results []DayVisits
	m.db.Model(&models.PostVisit{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("post_id = ? AND created_at >= ?", postID, startDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results)

	out := make([]DayVisits, days)
	for i := 0; i < days; i++ {
		date := time.Now().AddDate(0, 0, -(days - 1 - i))
		out[i] = DayVisits{Date: date.Format("2006-01-02")}
	}
	for _, r := range results {
		for i := range out {
			if out[i].Date == r.Date {
				out[i].Count = r.Count
				break
			}
		}
	}
	return out
}

// TopPost is a post ranked by visit count.
type TopPost struct {
	PostID uint  `json:"postId"`
	Count  int64 `json:"count"`
}

// TopPosts returns the most visited posts of the last N days.
func (m *Module) TopPosts(days, limit int) []TopPost {
	startDate := time.Now().AddDate(0, 0, -days)

	var results []TopPost
	m.db.Model(&models.PostVisit{}).
		Select("post_id as post_id, COUNT(*) as count").
		Where("created_at >= ?", startDate).
		Group("post_id").
		Order("count DESC").
		Limit(limit).
		Scan(&results)
	return results
}

func extractBrowser(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		return "Opera"
	default:
		return "Other"
	}
}
