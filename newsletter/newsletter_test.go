package newsletter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iabdinur/blog/dto"
	"github.com/iabdinur/blog/models"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.NewsletterSubscription{}))

	router := gin.New()
	NewModule(db).RegisterRoutes(router.Group("/api/v1"))
	return router, db
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	buf := bytes.NewBuffer(nil)
	if body != nil {
		raw, _ := json.Marshal(body)
		buf = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubscribeDefaults(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/newsletter/subscribe",
		dto.SubscribeNewsletterRequest{Email: "reader@example.com"})
	assert.Equal(t, http.StatusCreated, w.Code)

	var sub dto.NewsletterSubscription
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "weekly", sub.Preferences["frequency"])
	assert.Empty(t, sub.Preferences["categories"])

	w = doJSON(router, "POST", "/api/v1/newsletter/subscribe",
		dto.SubscribeNewsletterRequest{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResubscribeReactivates(t *testing.T) {
	router, db := setupTestRouter(t)

	doJSON(router, "POST", "/api/v1/newsletter/subscribe",
		dto.SubscribeNewsletterRequest{Email: "reader@example.com"})
	doJSON(router, "POST", "/api/v1/newsletter/unsubscribe",
		dto.SubscribeNewsletterRequest{Email: "reader@example.com"})

	var sub models.NewsletterSubscription
	db.Where("email = ?", "reader@example.com").First(&sub)
	assert.Equal(t, "unsubscribed", sub.Status)
	assert.NotNil(t, sub.UnsubscribedAt)

	w := doJSON(router, "POST", "/api/v1/newsletter/subscribe",
		dto.SubscribeNewsletterRequest{Email: "reader@example.com"})
	assert.Equal(t, http.StatusCreated, w.Code)

	db.Where("email = ?", "reader@example.com").First(&sub)
	assert.Equal(t, "active", sub.Status)
	assert.Nil(t, sub.UnsubscribedAt)

	// Only one row ever exists per email.
	var count int64
	db.Model(&models.NewsletterSubscription{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUnsubscribeUnknownEmail(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/newsletter/unsubscribe",
		dto.SubscribeNewsletterRequest{Email: "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAndUpdatePreferences(t *testing.T) {
	router, db := setupTestRouter(t)

	w := doJSON(router, "GET", "/api/v1/newsletter/subscription/ghost@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	doJSON(router, "POST", "/api/v1/newsletter/subscribe",
		dto.SubscribeNewsletterRequest{Email: "reader@example.com"})

	w = doJSON(router, "PUT", "/api/v1/newsletter/subscription/reader@example.com",
		dto.UpdateNewsletterPreferencesRequest{Preferences: map[string]interface{}{
			"frequency":  "daily",
			"categories": []interface{}{"go", "databases"},
		}})
	assert.Equal(t, http.StatusOK, w.Code)

	var sub dto.NewsletterSubscription
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, "daily", sub.Preferences["frequency"])
	assert.Equal(t, []interface{}{"go", "databases"}, sub.Preferences["categories"])

	var stored models.NewsletterSubscription
	db.Where("email = ?", "reader@example.com").First(&stored)
	assert.Equal(t, `["go","databases"]`, stored.Categories)

	// Empty preferences fall back to the defaults.
	w = doJSON(router, "PUT", "/api/v1/newsletter/subscription/reader@example.com",
		dto.UpdateNewsletterPreferencesRequest{Preferences: map[string]interface{}{}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, "weekly", sub.Preferences["frequency"])
}

func TestSubscribedAtFormat(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/newsletter/subscribe",
		dto.SubscribeNewsletterRequest{Email: "reader@example.com"})
	var sub dto.NewsletterSubscription
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))

	_, err := time.Parse("2006-01-02T15:04:05", sub.SubscribedAt)
	assert.NoError(t, err)
}
