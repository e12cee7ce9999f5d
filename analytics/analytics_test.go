package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iabdinur/blog/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.PostVisit{}))
	return db
}

func waitForVisits(t *testing.T, db *gorm.DB, want int64) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var count int64
		db.Model(&models.PostVisit{}).Count(&count)
		if count == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("visit count never reached %d", want)
}

func TestRecordVisitThrottlesRepeats(t *testing.T) {
	db := setupTestDB(t)
	m := NewModule(db)

	m.RecordVisit(1, "10.0.0.1", "Mozilla/5.0 Chrome/120")
	waitForVisits(t, db, 1)

	// Same IP and post inside the window gets dropped.
	m.RecordVisit(1, "10.0.0.1", "Mozilla/5.0 Chrome/120")
	time.Sleep(50 * time.Millisecond)
	var count int64
	db.Model(&models.PostVisit{}).Count(&count)
	assert.Equal(t, int64(1), count)

	// Different IP is a fresh visit.
	m.RecordVisit(1, "10.0.0.2", "Mozilla/5.0 Firefox/121")
	waitForVisits(t, db, 2)
}

func TestVisitCountAndTopPosts(t *testing.T) {
	db := setupTestDB(t)
	m := NewModule(db)

	now := time.Now()
	db.Create(&models.PostVisit{PostID: 1, IP: "a", CreatedAt: now})
	db.Create(&models.PostVisit{PostID: 1, IP: "b", CreatedAt: now})
	db.Create(&models.PostVisit{PostID: 2, IP: "a", CreatedAt: now})

	assert.Equal(t, int64(2), m.VisitCount(1))
	assert.Equal(t, int64(1), m.VisitCount(2))

	top := m.TopPosts(7, 10)
	assert.Len(t, top, 2)
	assert.Equal(t, uint(1), top[0].PostID)
	assert.Equal(t, int64(2), top[0].Count)
}

func TestVisitsByDayZeroFills(t *testing.T) {
	db := setupTestDB(t)
	m := NewModule(db)

	db.Create(&models.PostVisit{PostID: 1, IP: "a", CreatedAt: time.Now()})

	days := m.VisitsByDay(1, 7)
	assert.Len(t, days, 7)
	assert.Equal(t, int64(1), days[6].Count)
	for i := 0; i < 6; i++ {
		assert.Equal(t, int64(0), days[i].Count)
	}
}

func TestExtractBrowser(t *testing.T) {
	assert.Equal(t, "Edge", extractBrowser("Mozilla/5.0 Chrome/120 Edg/120"))
	assert.Equal(t, "Chrome", extractBrowser("Mozilla/5.0 Chrome/120 Safari/537"))
	assert.Equal(t, "Firefox", extractBrowser("Mozilla/5.0 Firefox/121"))
	assert.Equal(t, "", extractBrowser(""))
}
