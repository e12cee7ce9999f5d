// Package authors implements the author profile resource.
package authors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
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

	api.GET("/authors", cached, m.listAuthors)
	api.GET("/authors/:username", cached, m.getAuthor)
	api.POST("/authors", authRequired, m.createAuthor)
	api.PUT("/authors/:username", authRequired, m.updateAuthor)
	api.DELETE("/authors/:username", authRequired, m.deleteAuthor)
}

func (m *Module) listAuthors(c *gin.Context) {
	var authors []models.Author
	m.db.Order("name ASC").Find(&authors)

	out := make([]dto.Author, 0, len(authors))
	for i := range authors {
		out = append(out, *dto.AuthorFromModel(&authors[i]))
	}
	c.JSON(http.StatusOK, out)
}

// getAuthor looks up by username first and falls back to a numeric id, so
// both /authors/alice and /authors/7 resolve.
func (m *Module) getAuthor(c *gin.Context) {
	key := c.Param("username")

	var author models.Author
	if err := m.db.Where("username = ?", key).First(&author).Error; err == nil {
		c.JSON(http.StatusOK, dto.AuthorFromModel(&author))
		return
	}

	if id, err := strconv.ParseUint(key, 10, 64); err == nil {
		if err := m.db.First(&author, uint(id)).Error; err == nil {
			c.JSON(http.StatusOK, dto.AuthorFromModel(&author))
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "author not found"})
}

func (m *Module) createAuthor(c *gin.Context) {
	var req dto.CreateAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Name == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	case req.Username == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	case req.Email == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	var existing models.Author
	if err := m.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username already taken"})
		return
	}
	if err := m.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already taken"})
		return
	}

	author := models.Author{
		Name:       req.Name,
		Username:   req.Username,
		Email:      req.Email,
		Bio:        req.Bio,
		Avatar:     req.Avatar,
		CoverImage: req.CoverImage,
		Location:   req.Location,
		Website:    req.Website,
		Twitter:    req.Twitter,
		Github:     req.Github,
		Linkedin:   req.Linkedin,
		JoinedAt:   time.Now(),
	}
	if err := m.db.Create(&author).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create author"})
		return
	}

	m.cache.InvalidatePrefix("/api/v1/authors")
	c.JSON(http.StatusCreated, dto.AuthorFromModel(&author))
}

func (m *Module) updateAuthor(c *gin.Context) {
	var author models.Author
	if err := m.db.Where("username = ?", c.Param("username")).First(&author).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "author not found"})
		return
	}

	var req dto.CreateAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if username := strings.TrimSpace(req.Username); username != "" && username != author.Username {
		var conflict models.Author
		if err := m.db.Where("username = ? AND id != ?", username, author.ID).First(&conflict).Error; err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username already taken"})
			return
		}
		author.Username = username
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		author.Name = name
	}
	author.Bio = req.Bio
	author.Avatar = req.Avatar
	author.CoverImage = req.CoverImage
	author.Location = req.Location
	author.Website = req.Website
	author.Twitter = req.Twitter
	author.Github = req.Github
	author.Linkedin = req.Linkedin

	if err := m.db.Save(&author).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update author"})
		return
	}

	m.cache.InvalidatePrefix("/api/v1/authors")
	m.cache.InvalidatePrefix("/api/v1/posts")
	c.JSON(http.StatusOK, dto.AuthorFromModel(&author))
}

func (m *Module) deleteAuthor(c *gin.Context) {
	var author models.Author
	if err := m.db.Where("username = ?", c.Param("username")).First(&author).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "author not found"})
		return
	}

	m.db.Delete(&author)
	m.cache.InvalidatePrefix("/api/v1/authors")
	c.JSON(http.StatusOK, gin.H{"message": "author deleted"})
}
