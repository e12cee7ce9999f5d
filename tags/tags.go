// Package tags implements the tag resource.
package tags

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gslug "github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/iabdinur/blog/auth"
	"github.com/iabdinur/blog/cache"
	"github.com/iabdinur/blog/dto"
	"github.com/iabdinur/blog/models"
)

type Module struct {
	db     *gorm.DB
	cache  *cache.Cache
	issuer *auth.TokenIssuer
}

func NewModule(db *gorm.DB, responseCache *cache.Cache, issuer *auth.TokenIssuer) *Module {
	return &Module{db: db, cache: responseCache, issuer: issuer}
}

func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	authRequired := auth.RequireAuth(m.issuer)
	cached := m.cache.Middleware()

	api.GET("/tags", cached, m.listTags)
	api.GET("/tags/:slug", cached, m.getTag)
	api.POST("/tags", authRequired, m.createTag)
	api.PUT("/tags/:slug", authRequired, m.updateTag)
	api.DELETE("/tags/:slug", authRequired, m.deleteTag)
}

func (m *Module) listTags(c *gin.Context) {
	var tags []models.Tag
	m.db.Order("name ASC").Find(&tags)

	out := make([]dto.Tag, 0, len(tags))
	for i := range tags {
		out = append(out, dto.TagFromModel(&tags[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (m *Module) getTag(c *gin.Context) {
	var tag models.Tag
	if err := m.db.Where("slug = ?", c.Param("slug")).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
		return
	}
	c.JSON(http.StatusOK, dto.TagFromModel(&tag))
}

func (m *Module) createTag(c *gin.Context) {
	var req dto.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if req.Slug == "" {
		req.Slug = gslug.Make(req.Name)
	}

	var existing models.Tag
	if err := m.db.Where("slug = ?", req.Slug).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug already in use"})
		return
	}

	tag := models.Tag{Name: req.Name, Slug: req.Slug, Description: req.Description}
	if err := m.db.Create(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create tag"})
		return
	}

	m.cache.InvalidatePrefix("/api/v1/tags")
	c.JSON(http.StatusCreated, dto.TagFromModel(&tag))
}

func (m *Module) updateTag(c *gin.Context) {
	var tag models.Tag
	if err := m.db.Where("slug = ?", c.Param("slug")).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
		return
	}

	var req dto.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if req.Slug != "" && req.Slug != tag.Slug {
		var conflict models.Tag
		if err := m.db.Where("slug = ? AND id != ?", req.Slug, tag.ID).First(&conflict).Error; err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slug already in use"})
			return
		}
		tag.Slug = req.Slug
	}

	tag.Name = req.Name
	tag.Description = req.Description
	if err := m.db.Save(&tag).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update tag"})
		return
	}

	m.cache.InvalidatePrefix("/api/v1/tags")
	m.cache.InvalidatePrefix("/api/v1/posts")
	c.JSON(http.StatusOK, dto.TagFromModel(&tag))
}

func (m *Module) deleteTag(c *gin.Context) {
	var tag models.Tag
	if err := m.db.Where("slug = ?", c.Param("slug")).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
		return
	}

	m.db.Where("tag_id = ?", tag.ID).Delete(&models.PostTag{})
	m.db.Delete(&tag)

	m.cache.InvalidatePrefix("/api/v1/tags")
	m.cache.InvalidatePrefix("/api/v1/posts")
	c.JSON(http.StatusOK, gin.H{"message": "tag deleted"})
}
