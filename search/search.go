// Package search implements the cross-resource substring search.
package search

import (
	"net/http"
	"strconv"
	"strings"

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
	api.GET("/search", m.search)
}

func (m *Module) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	searchType := c.DefaultQuery("type", "all")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	resp := dto.SearchResponse{
		Posts:   []dto.Post{},
		Authors: []dto.Author{},
		Tags:    []dto.Tag{},
	}
	if query == "" {
		c.JSON(http.StatusOK, resp)
		return
	}

	pattern := "%" + strings.ToLower(query) + "%"

	if searchType == "all" || searchType == "posts" {
		var posts []models.Post
		m.db.
			Where("is_published = ?", true).
			Where("LOWER(title) LIKE ? OR LOWER(excerpt) LIKE ? OR LOWER(content) LIKE ?",
				pattern, pattern, pattern).
			Order("published_at DESC").
			Limit(limit).
			Find(&posts)
		for i := range posts {
			resp.Posts = append(resp.Posts, m.postDTO(&posts[i]))
		}
	}

	if searchType == "all" || searchType == "authors" {
		var authors []models.Author
		m.db.
			Where("LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(bio) LIKE ?",
				pattern, pattern, pattern).
			Order("name ASC").
			Limit(limit).
			Find(&authors)
		for i := range authors {
			resp.Authors = append(resp.Authors, *dto.AuthorFromModel(&authors[i]))
		}
	}

	if searchType == "all" || searchType == "tags" {
		var tags []models.Tag
		m.db.
			Where("LOWER(name) LIKE ? OR LOWER(slug) LIKE ? OR LOWER(description) LIKE ?",
				pattern, pattern, pattern).
			Order("name ASC").
			Limit(limit).
			Find(&tags)
		for i := range tags {
			resp.Tags = append(resp.Tags, dto.TagFromModel(&tags[i]))
		}
	}

	resp.Total = len(resp.Posts) + len(resp.Authors) + len(resp.Tags)
	c.JSON(http.StatusOK, resp)
}

func (m *Module) postDTO(p *models.Post) dto.Post {
	var author models.Author
	m.db.First(&author, p.AuthorID)

	var tags []models.Tag
	m.db.
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", p.ID).
		Find(&tags)

	return dto.PostFromModel(p, &author, tags)
}
