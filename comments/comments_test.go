package comments

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

	"github.com/iabdinur/blog/auth"
	"github.com/iabdinur/blog/cache"
	"github.com/iabdinur/blog/dto"
	"github.com/iabdinur/blog/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)
	err = db.AutoMigrate(
		&models.Author{}, &models.Post{}, &models.Comment{}, &models.User{},
	)
	assert.NoError(t, err)
	return db
}

func setupTestRouter(db *gorm.DB) (*gin.Engine, *auth.TokenIssuer) {
	gin.SetMode(gin.TestMode)
	issuer := auth.NewTokenIssuer("test-secret-key-for-signing-tokens", time.Hour)
	module := NewModule(db, cache.NewCache(time.Minute), issuer)

	router := gin.New()
	module.RegisterRoutes(router.Group("/api/v1"))
	return router, issuer
}

func createPublishedPost(t *testing.T, db *gorm.DB, slug string) models.Post {
	author := models.Author{Name: "Site Author", Username: "site-" + slug, Email: slug + "@example.com", JoinedAt: time.Now()}
	assert.NoError(t, db.Create(&author).Error)

	now := time.Now()
	post := models.Post{
		Title: "Post " + slug, Slug: slug, Content: "long enough content",
		AuthorID: author.ID, IsPublished: true, PublishedAt: &now,
	}
	assert.NoError(t, db.Create(&post).Error)
	return post
}

func createTestUser(t *testing.T, db *gorm.DB, name, email string) models.User {
	user := models.User{Name: name, Email: email, Password: "x", UserType: "REA"}
	assert.NoError(t, db.Create(&user).Error)
	return user
}

func bearerFor(t *testing.T, issuer *auth.TokenIssuer, email string) string {
	token, err := issuer.Issue(email, "tester", []string{"ROLE_USER"})
	assert.NoError(t, err)
	return "Bearer " + token
}

func doJSON(router *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	buf := bytes.NewBuffer(nil)
	if body != nil {
		raw, _ := json.Marshal(body)
		buf = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListCommentsTree(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)
	post := createPublishedPost(t, db, "threaded")

	author := models.Author{Name: "C", Username: "commenter", Email: "c@example.com", JoinedAt: time.Now()}
	assert.NoError(t, db.Create(&author).Error)

	top := models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "top level"}
	assert.NoError(t, db.Create(&top).Error)
	reply := models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "a reply", ParentID: &top.ID}
	assert.NoError(t, db.Create(&reply).Error)
	// A reply to the reply never shows up in the serialized tree.
	deep := models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "too deep", ParentID: &reply.ID}
	assert.NoError(t, db.Create(&deep).Error)

	w := doJSON(router, "GET", "/api/v1/posts/threaded/comments", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var tree []dto.Comment
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &tree))
	assert.Len(t, tree, 1)
	assert.Equal(t, "top level", tree[0].Content)
	assert.Len(t, tree[0].Replies, 1)
	assert.Equal(t, "a reply", tree[0].Replies[0].Content)
	assert.Empty(t, tree[0].Replies[0].Replies)
}

func TestListCommentsUnknownPost(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)

	w := doJSON(router, "GET", "/api/v1/posts/nope/comments", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestCreateCommentCreatesAuthorProfile(t *testing.T) {
	db := setupTestDB(t)
	router, issuer := setupTestRouter(db)
	post := createPublishedPost(t, db, "fresh")
	createTestUser(t, db, "New Reader", "reader@example.com")

	w := doJSON(router, "POST", "/api/v1/posts/fresh/comments",
		dto.CreateCommentRequest{Content: "first!"}, bearerFor(t, issuer, "reader@example.com"))
	assert.Equal(t, http.StatusCreated, w.Code)

	var created dto.Comment
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "first!", created.Content)
	assert.Equal(t, "reader", created.Author.Username)

	var reloaded models.Post
	db.First(&reloaded, post.ID)
	assert.Equal(t, 1, reloaded.CommentsCount)
}

func TestCreateCommentUniquesUsername(t *testing.T) {
	db := setupTestDB(t)
	router, issuer := setupTestRouter(db)
	createPublishedPost(t, db, "busy")
	createTestUser(t, db, "Second Reader", "reader@other.com")

	// An author already squats the derived username.
	taken := models.Author{Name: "X", Username: "reader", Email: "x@example.com", JoinedAt: time.Now()}
	assert.NoError(t, db.Create(&taken).Error)

	w := doJSON(router, "POST", "/api/v1/posts/busy/comments",
		dto.CreateCommentRequest{Content: "hello"}, bearerFor(t, issuer, "reader@other.com"))
	assert.Equal(t, http.StatusCreated, w.Code)

	var created dto.Comment
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "reader1", created.Author.Username)
}

func TestCreateCommentRejectsForeignParent(t *testing.T) {
	db := setupTestDB(t)
	router, issuer := setupTestRouter(db)
	createPublishedPost(t, db, "one")
	otherPost := createPublishedPost(t, db, "two")
	user := createTestUser(t, db, "Reader", "reader@example.com")

	author := models.Author{Name: user.Name, Username: "reader", Email: user.Email, JoinedAt: time.Now()}
	assert.NoError(t, db.Create(&author).Error)
	foreign := models.Comment{PostID: otherPost.ID, AuthorID: author.ID, Content: "elsewhere"}
	assert.NoError(t, db.Create(&foreign).Error)

	w := doJSON(router, "POST", "/api/v1/posts/one/comments",
		dto.CreateCommentRequest{Content: "reply", ParentID: "1"},
		bearerFor(t, issuer, "reader@example.com"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "parentId")
}

func TestUpdateAndDeleteCommentOwnership(t *testing.T) {
	db := setupTestDB(t)
	router, issuer := setupTestRouter(db)
	post := createPublishedPost(t, db, "owned")
	createTestUser(t, db, "Owner", "owner@example.com")
	createTestUser(t, db, "Intruder", "intruder@example.com")

	w := doJSON(router, "POST", "/api/v1/posts/owned/comments",
		dto.CreateCommentRequest{Content: "mine"}, bearerFor(t, issuer, "owner@example.com"))
	assert.Equal(t, http.StatusCreated, w.Code)
	var created dto.Comment
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	path := "/api/v1/posts/owned/comments/" + created.ID

	w = doJSON(router, "PUT", path, dto.UpdateCommentRequest{Content: "hijacked"},
		bearerFor(t, issuer, "intruder@example.com"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, "PUT", path, dto.UpdateCommentRequest{Content: "edited"},
		bearerFor(t, issuer, "owner@example.com"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "edited")

	w = doJSON(router, "DELETE", path, nil, bearerFor(t, issuer, "intruder@example.com"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, "DELETE", path, nil, bearerFor(t, issuer, "owner@example.com"))
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Post
	db.First(&reloaded, post.ID)
	assert.Equal(t, 0, reloaded.CommentsCount)

	// Deleting again is a 404, and the counter never goes negative.
	w = doJSON(router, "DELETE", path, nil, bearerFor(t, issuer, "owner@example.com"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	db.First(&reloaded, post.ID)
	assert.Equal(t, 0, reloaded.CommentsCount)
}

func TestLikeComment(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(db)
	post := createPublishedPost(t, db, "liked")

	author := models.Author{Name: "C", Username: "c", Email: "c@x.com", JoinedAt: time.Now()}
	assert.NoError(t, db.Create(&author).Error)
	comment := models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "nice"}
	assert.NoError(t, db.Create(&comment).Error)

	w := doJSON(router, "POST", "/api/v1/posts/liked/comments/1/like", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Comment
	db.First(&reloaded, comment.ID)
	assert.Equal(t, 1, reloaded.Likes)
}
