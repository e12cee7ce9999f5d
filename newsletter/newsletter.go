// Package newsletter implements subscription management.
package newsletter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/iabdinur/blog/dto"
	"github.com/iabdinur/blog/models"
)

type Module struct {
	db *gorm.DB
}

func NewModule(db *gorm.DB) *Module {
	return &Module{db: db}
}

func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/newsletter/subscribe", m.subscribe)
	api.POST("/newsletter/unsubscribe", m.unsubscribe)
	api.GET("/newsletter/subscription/:email", m.getSubscription)
	api.PUT("/newsletter/subscription/:email", m.updatePreferences)
}

func toDTO(sub *models.NewsletterSubscription) dto.NewsletterSubscription {
	categories := []string{}
	if sub.Categories != "" {
		_ = json.Unmarshal([]byte(sub.Categories), &categories)
	}
	return dto.NewsletterSubscription{
		ID:           strconv.FormatUint(uint64(sub.ID), 10),
		Email:        sub.Email,
		Status:       sub.Status,
		SubscribedAt: sub.SubscribedAt.Format("2006-01-02T15:04:05"),
		Preferences: map[string]interface{}{
			"frequency":  sub.Frequency,
			"categories": categories,
		},
	}
}

func encodeCategories(categories []string) string {
	raw, err := json.Marshal(categories)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func (m *Module) subscribe(c *gin.Context) {
	var req dto.SubscribeNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	emailAddr := strings.TrimSpace(req.Email)
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
		return
	}

	var sub models.NewsletterSubscription
	if err := m.db.Where("email = ?", emailAddr).First(&sub).Error; err == nil {
		// Coming back after unsubscribing reactivates the old row.
		if sub.Status != "active" {
			sub.Status = "active"
			sub.UnsubscribedAt = nil
			sub.SubscribedAt = time.Now()
			m.db.Save(&sub)
		}
		c.JSON(http.StatusCreated, toDTO(&sub))
		return
	}

	sub = models.NewsletterSubscription{
		Email:        emailAddr,
		Status:       "active",
		Frequency:    "weekly",
		Categories:   "[]",
		SubscribedAt: time.Now(),
	}
	if err := m.db.Create(&sub).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not subscribe"})
		return
	}
	c.JSON(http.StatusCreated, toDTO(&sub))
}

func (m *Module) unsubscribe(c *gin.Context) {
	var req dto.SubscribeNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	var sub models.NewsletterSubscription
	if err := m.db.Where("email = ?", strings.TrimSpace(req.Email)).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}

	now := time.Now()
	sub.Status = "unsubscribed"
	sub.UnsubscribedAt = &now
	m.db.Save(&sub)

	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed"})
}

func (m *Module) getSubscription(c *gin.Context) {
	var sub models.NewsletterSubscription
	if err := m.db.Where("email = ?", c.Param("email")).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	c.JSON(http.StatusOK, toDTO(&sub))
}

func (m *Module) updatePreferences(c *gin.Context) {
	var sub models.NewsletterSubscription
	if err := m.db.Where("email = ?", c.Param("email")).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}

	var req dto.UpdateNewsletterPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sub.Frequency = req.Frequency()
	sub.Categories = encodeCategories(req.Categories())
	if err := m.db.Save(&sub).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update preferences"})
		return
	}

	c.JSON(http.StatusOK, toDTO(&sub))
}
