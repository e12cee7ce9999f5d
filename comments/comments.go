// Package comments implements the comment tree under a post.
package comments

import (
	"net/http"
	"strconv"
	"strings"

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

	api.GET("/posts/:slug/comments", m.listComments)
	api.POST("/posts/:slug/comments", authRequired, m.createComment)
	api.PUT("/posts/:slug/comments/:commentId", authRequired, m.updateComment)
	api.DELETE("/posts/:slug/comments/:commentId", authRequired, m.deleteComment)
	api.POST("/posts/:slug/comments/:commentId/like", m.likeComment)
}

func (m *Module) authorFor(c *models.Comment) *models.Author {
	var author models.Author
	if err := m.db.First(&author, c.AuthorID).Error; err != nil {
		return nil
	}
	return &author
}

// listComments serializes the comment tree: top-level comments in creation
// order, each with its direct replies. Descendants deeper than one level are
// not included.
func (m *Module) listComments(c *gin.Context) {
	var post models.Post
	if err := m.db.Where("slug = ? AND is_published = ?", c.Param("slug"), true).First(&post).Error; err != nil {
		c.JSON(http.StatusOK, []dto.Comment{})
		return
	}

	var all []models.Comment
	m.db.Where("post_id = ?", post.ID).Order("created_at ASC").Find(&all)

	replies := make(map[uint][]dto.Comment)
	for i := range all {
		if all[i].ParentID == nil {
			continue
		}
		parent := *all[i].ParentID
		replies[parent] = append(replies[parent], dto.CommentFromModel(&all[i], m.authorFor(&all[i])))
	}

	tree := make([]dto.Comment, 0)
	for i := range all {
		if all[i].ParentID != nil {
			continue
		}
		node := dto.CommentFromModel(&all[i], m.authorFor(&all[i]))
		if children, ok := replies[all[i].ID]; ok {
			node.Replies = children
		}
		tree = append(tree, node)
	}

	c.JSON(http.StatusOK, tree)
}

func (m *Module) createComment(c *gin.Context) {
	var post models.Post
	if err := m.db.Where("slug = ? AND is_published = ?", c.Param("slug"), true).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	var user models.User
	if err := m.db.Where("email = ?", auth.CallerEmail(c)).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	author, err := m.findOrCreateAuthor(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve comment author"})
		return
	}

	var parentID *uint
	if req.ParentID != "" {
		id, err := strconv.ParseUint(req.ParentID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parentId"})
			return
		}
		var parent models.Comment
		if err := m.db.Where("id = ? AND post_id = ?", uint(id), post.ID).First(&parent).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parentId does not reference a comment on this post"})
			return
		}
		parentID = &parent.ID
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Content:  strings.TrimSpace(req.Content),
		ParentID: parentID,
	}
	if err := m.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create comment"})
		return
	}

	m.db.Model(&post).UpdateColumn("comments_count", gorm.Expr("comments_count + 1"))
	m.cache.InvalidatePrefix("/api/v1/posts")

	c.JSON(http.StatusCreated, dto.CommentFromModel(&comment, author))
}

// findOrCreateAuthor resolves the commenting user's author profile, creating
// a minimal one when the user has never authored anything. The username is
// derived from the email local part and made unique with a numeric suffix.
func (m *Module) findOrCreateAuthor(user *models.User) (*models.Author, error) {
	var author models.Author
	if err := m.db.Where("email = ?", user.Email).First(&author).Error; err == nil {
		return &author, nil
	}

	base := user.Email
	if i := strings.IndexByte(base, '@'); i > 0 {
		base = base[:i]
	}
	username := base
	for counter := 1; ; counter++ {
		var taken models.Author
		if err := m.db.Where("username = ?", username).First(&taken).Error; err != nil {
			break
		}
		username = base + strconv.Itoa(counter)
	}

	avatar := ""
	if user.ProfileImageID != "" {
		avatar = "/api/v1/users/" + user.Email + "/profile-image"
	}

	author = models.Author{
		Name:     user.Name,
		Username: username,
		Email:    user.Email,
		Avatar:   avatar,
		JoinedAt: user.CreatedAt,
	}
	if err := m.db.Create(&author).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

// loadOwned fetches the comment and verifies the caller wrote it.
func (m *Module) loadOwned(c *gin.Context) (*models.Comment, bool) {
	id, err := strconv.ParseUint(c.Param("commentId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return nil, false
	}

	var comment models.Comment
	if err := m.db.First(&comment, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return nil, false
	}

	author := m.authorFor(&comment)
	if author == nil || !strings.EqualFold(author.Email, auth.CallerEmail(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author of this comment"})
		return nil, false
	}
	return &comment, true
}

func (m *Module) updateComment(c *gin.Context) {
	comment, ok := m.loadOwned(c)
	if !ok {
		return
	}

	var req dto.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	comment.Content = strings.TrimSpace(req.Content)
	if err := m.db.Save(comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update comment"})
		return
	}

	c.JSON(http.StatusOK, dto.CommentFromModel(comment, m.authorFor(comment)))
}

func (m *Module) deleteComment(c *gin.Context) {
	comment, ok := m.loadOwned(c)
	if !ok {
		return
	}

	m.db.Delete(comment)
	m.db.Model(&models.Post{}).Where("id = ?", comment.PostID).
		UpdateColumn("comments_count", gorm.Expr("MAX(comments_count - 1, 0)"))
	m.cache.InvalidatePrefix("/api/v1/posts")

	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}

func (m *Module) likeComment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("commentId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	}

	var comment models.Comment
	if err := m.db.First(&comment, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	}

	m.db.Model(&comment).UpdateColumn("likes", gorm.Expr("likes + 1"))
	m.db.First(&comment, comment.ID)

	c.JSON(http.StatusOK, gin.H{"likes": comment.Likes})
}
