// Package posts implements the post resource: listing, CRUD, views, likes,
// drafts, publishing and per-post visit stats.
package posts

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gslug "github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/iabdinur/blog/analytics"
	"github.com/iabdinur/blog/auth"
	"github.com/iabdinur/blog/cache"
	"github.com/iabdinur/blog/dto"
	"github.com/iabdinur/blog/models"
)

type Module struct {
	db        *gorm.DB
	cache     *cache.Cache
	analytics *analytics.Module
	issuer    *auth.TokenIssuer
}

func NewModule(db *gorm.DB, responseCache *cache.Cache, analyticsModule *analytics.Module, issuer *auth.TokenIssuer) *Module {
	return &Module{db: db, cache: responseCache, analytics: analyticsModule, issuer: issuer}
}

func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	authRequired := auth.RequireAuth(m.issuer)
	cached := m.cache.Middleware()

	api.GET("/posts", cached, m.listPosts)
	api.GET("/posts/drafts", authRequired, m.listDrafts)
	api.GET("/posts/:slug", cached, m.getPost)
	api.GET("/posts/:slug/admin", authRequired, m.getPostAdmin)
	api.POST("/posts", authRequired, m.createPost)
	api.PUT("/posts/:slug", authRequired, m.updatePost)
	api.DELETE("/posts/:slug", authRequired, m.deletePost)
	api.POST("/posts/:slug/views", m.recordView)
	api.POST("/posts/:slug/like", m.likePost)
	api.DELETE("/posts/:slug/like", m.unlikePost)
	api.POST("/posts/:slug/publish", authRequired, m.publishPost)
	api.GET("/posts/:slug/stats", authRequired, m.postStats)
}

// isPlaceholderSlug catches the literal route template leaking out of a
// misconfigured client. These never hit the database.
func isPlaceholderSlug(slug string) bool {
	return slug == "{slug}" || slug == "%7Bslug%7D"
}

func (m *Module) toDTO(p *models.Post) dto.Post {
	var author models.Author
	m.db.First(&author, p.AuthorID)

	var tags []models.Tag
	m.db.
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", p.ID).
		Find(&tags)

	return dto.PostFromModel(p, &author, tags)
}

func (m *Module) toDTOs(posts []models.Post) []dto.Post {
	out := make([]dto.Post, 0, len(posts))
	for i := range posts {
		out = append(out, m.toDTO(&posts[i]))
	}
	return out
}

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func (m *Module) listPosts(c *gin.Context) {
	page, limit := pageParams(c)
	sortBy := c.DefaultQuery("sort", "latest")

	query := m.db.Model(&models.Post{}).Where("is_published = ?", true)

	if tagSlug := c.Query("tag"); tagSlug != "" {
		var tag models.Tag
		if err := m.db.Where("slug = ?", tagSlug).First(&tag).Error; err != nil {
			c.JSON(http.StatusOK, dto.PostList{Posts: []dto.Post{}, Total: 0, Page: page, Limit: limit})
			return
		}
		query = query.Where("id IN (SELECT post_id FROM post_tags WHERE tag_id = ?)", tag.ID)
	}

	if username := c.Query("author"); username != "" {
		var author models.Author
		if err := m.db.Where("username = ?", username).First(&author).Error; err != nil {
			c.JSON(http.StatusOK, dto.PostList{Posts: []dto.Post{}, Total: 0, Page: page, Limit: limit})
			return
		}
		query = query.Where("author_id = ?", author.ID)
	}

	var total int64
	query.Count(&total)

	var posts []models.Post
	query.
		Order("published_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts)

	// top and discussions reorder the fetched page only; the underlying
	// pagination stays latest-first.
	switch sortBy {
	case "top":
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].Likes > posts[j].Likes })
	case "discussions":
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].CommentsCount > posts[j].CommentsCount })
	}

	c.JSON(http.StatusOK, dto.PostList{
		Posts: m.toDTOs(posts),
		Total: int(total),
		Page:  page,
		Limit: limit,
	})
}

func (m *Module) getPost(c *gin.Context) {
	slug := c.Param("slug")
	if isPlaceholderSlug(slug) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	var post models.Post
	if err := m.db.Where("slug = ? AND is_published = ?", slug, true).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, m.toDTO(&post))
}

func (m *Module) getPostAdmin(c *gin.Context) {
	slug := c.Param("slug")
	if isPlaceholderSlug(slug) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	var post models.Post
	if err := m.db.Where("slug = ?", slug).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, m.toDTO(&post))
}

func validatePostRequest(req *dto.CreatePostRequest) string {
	req.Title = strings.TrimSpace(req.Title)
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Slug == "" && req.Title != "" {
		req.Slug = gslug.Make(req.Title)
	}
	switch {
	case req.Title == "" || len(req.Title) > 200:
		return "title must be between 1 and 200 characters"
	case req.Slug == "" || len(req.Slug) > 200:
		return "slug must be between 1 and 200 characters"
	case len(req.Content) < 10:
		return "content must be at least 10 characters"
	case len(req.Excerpt) > 500:
		return "excerpt must be at most 500 characters"
	}
	return ""
}

func (m *Module) createPost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if msg := validatePostRequest(&req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	authorID, err := strconv.ParseUint(req.AuthorID, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorId is required"})
		return
	}
	var author models.Author
	if err := m.db.First(&author, uint(authorID)).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "author not found"})
		return
	}

	var existing models.Post
	if err := m.db.Where("slug = ?", req.Slug).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug already in use"})
		return
	}

	post := models.Post{
		Title:       req.Title,
		Slug:        req.Slug,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		CoverImage:  req.CoverImage,
		AuthorID:    author.ID,
		ReadingTime: req.ReadingTime,
		ScheduledAt: strings.TrimSpace(req.ScheduledAt),
	}

	// A scheduled post is never published on create, whatever the flag says.
	if post.ScheduledAt == "" && req.IsPublished != nil && *req.IsPublished {
		now := time.Now()
		post.IsPublished = true
		post.PublishedAt = &now
	}

	if err := m.db.Create(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create post"})
		return
	}

	m.attachTags(&post, req.TagIDs)
	m.recountAuthorPosts(author.ID)
	m.invalidate()

	c.JSON(http.StatusCreated, m.toDTO(&post))
}

func (m *Module) updatePost(c *gin.Context) {
	var post models.Post
	if err := m.db.Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if msg := validatePostRequest(&req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if req.Slug != post.Slug {
		var conflict models.Post
		if err := m.db.Where("slug = ? AND id != ?", req.Slug, post.ID).First(&conflict).Error; err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slug already in use"})
			return
		}
	}

	post.Title = req.Title
	post.Slug = req.Slug
	post.Content = req.Content
	post.Excerpt = req.Excerpt
	post.CoverImage = req.CoverImage
	post.ReadingTime = req.ReadingTime
	post.ScheduledAt = strings.TrimSpace(req.ScheduledAt)

	if post.ScheduledAt != "" {
		// Scheduling takes the post out of the published state.
		post.IsPublished = false
		post.PublishedAt = nil
	} else if req.IsPublished != nil && *req.IsPublished {
		if !post.IsPublished || post.PublishedAt == nil {
			now := time.Now()
			post.PublishedAt = &now
		}
		post.IsPublished = true
	} else if req.IsPublished != nil && !*req.IsPublished {
		post.IsPublished = false
		post.PublishedAt = nil
	}

	if err := m.db.Save(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update post"})
		return
	}

	m.attachTags(&post, req.TagIDs)
	m.recountAuthorPosts(post.AuthorID)
	m.invalidate()

	c.JSON(http.StatusOK, m.toDTO(&post))
}

func (m *Module) deletePost(c *gin.Context) {
	var post models.Post
	if err := m.db.Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	var tagIDs []uint
	m.db.Model(&models.PostTag{}).Where("post_id = ?", post.ID).Pluck("tag_id", &tagIDs)

	m.db.Where("post_id = ?", post.ID).Delete(&models.PostTag{})
	m.db.Where("post_id = ?", post.ID).Delete(&models.Comment{})
	m.db.Delete(&post)

	for _, tagID := range tagIDs {
		m.recountTagPosts(tagID)
	}
	m.recountAuthorPosts(post.AuthorID)
	m.invalidate()

	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

func (m *Module) recordView(c *gin.Context) {
	var post models.Post
	if err := m.db.Where("slug = ? AND is_published = ?", c.Param("slug"), true).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	m.db.Model(&post).UpdateColumn("views", gorm.Expr("views + 1"))
	m.analytics.RecordVisit(post.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, gin.H{"views": post.Views + 1})
}

func (m *Module) likePost(c *gin.Context) {
	m.adjustLikes(c, gorm.Expr("likes + 1"))
}

func (m *Module) unlikePost(c *gin.Context) {
	m.adjustLikes(c, gorm.Expr("MAX(likes - 1, 0)"))
}

func (m *Module) adjustLikes(c *gin.Context, expr interface{}) {
	var post models.Post
	if err := m.db.Where("slug = ? AND is_published = ?", c.Param("slug"), true).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	m.db.Model(&post).UpdateColumn("likes", expr)
	m.db.First(&post, post.ID)
	m.invalidate()

	c.JSON(http.StatusOK, gin.H{"likes": post.Likes})
}

func (m *Module) listDrafts(c *gin.Context) {
	page, limit := pageParams(c)

	var author models.Author
	if err := m.db.Where("email = ?", auth.CallerEmail(c)).First(&author).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no author profile"})
		return
	}

	query := m.db.Model(&models.Post{}).
		Where("author_id = ? AND is_published = ?", author.ID, false)

	var total int64
	query.Count(&total)

	var posts []models.Post
	query.
		Order("updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&posts)

	c.JSON(http.StatusOK, dto.PostList{
		Posts: m.toDTOs(posts),
		Total: int(total),
		Page:  page,
		Limit: limit,
	})
}

func (m *Module) publishPost(c *gin.Context) {
	var post models.Post
	if err := m.db.Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	var author models.Author
	if err := m.db.First(&author, post.AuthorID).Error; err != nil ||
		!strings.EqualFold(author.Email, auth.CallerEmail(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author of this post"})
		return
	}

	if !post.IsPublished {
		now := time.Now()
		post.IsPublished = true
		post.PublishedAt = &now
		post.ScheduledAt = ""
		m.db.Save(&post)
		m.recountAuthorPosts(post.AuthorID)
		m.invalidate()
	}

	c.JSON(http.StatusOK, m.toDTO(&post))
}

func (m *Module) postStats(c *gin.Context) {
	var post models.Post
	if err := m.db.Where("slug = ?", c.Param("slug")).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"views":       post.Views,
		"totalVisits": m.analytics.VisitCount(post.ID),
		"visitsByDay": m.analytics.VisitsByDay(post.ID, 30),
	})
}

// attachTags replaces the post's tag set with the given tag IDs, ignoring
// unknown ones, and recounts every affected tag.
func (m *Module) attachTags(post *models.Post, tagIDs []string) {
	var previous []uint
	m.db.Model(&models.PostTag{}).Where("post_id = ?", post.ID).Pluck("tag_id", &previous)
	m.db.Where("post_id = ?", post.ID).Delete(&models.PostTag{})

	affected := make(map[uint]bool)
	for _, id := range previous {
		affected[id] = true
	}

	for _, raw := range tagIDs {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		var tag models.Tag
		if err := m.db.First(&tag, uint(id)).Error; err != nil {
			continue
		}
		m.db.Create(&models.PostTag{PostID: post.ID, TagID: tag.ID})
		affected[tag.ID] = true
	}

	for tagID := range affected {
		m.recountTagPosts(tagID)
	}
}

func (m *Module) recountTagPosts(tagID uint) {
	var count int64
	m.db.Model(&models.PostTag{}).Where("tag_id = ?", tagID).Count(&count)
	m.db.Model(&models.Tag{}).Where("id = ?", tagID).UpdateColumn("posts_count", count)
}

func (m *Module) recountAuthorPosts(authorID uint) {
	var count int64
	m.db.Model(&models.Post{}).Where("author_id = ? AND is_published = ?", authorID, true).Count(&count)
	m.db.Model(&models.Author{}).Where("id = ?", authorID).UpdateColumn("posts_count", count)
}

func (m *Module) invalidate() {
	m.cache.InvalidatePrefix("/api/v1/posts")
	m.cache.InvalidatePrefix("/api/v1/tags")
	m.cache.InvalidatePrefix("/api/v1/authors")
}
