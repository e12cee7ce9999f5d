// Package dto holds the JSON shapes of the public API. IDs are serialized
// as strings and timestamps as naive ISO-like strings, matching what the
// web client parses.
package dto

import (
	"strconv"
	"time"

	"github.com/iabdinur/blog/models"
)

// timestampLayout is a zone-less ISO-like format. The client regex-parses
// these strings component by component, so no offset may ever be appended.
const timestampLayout = "2006-01-02T15:04:05"

func formatTime(t time.Time) string {
	return t.Format(timestampLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

type Author struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Username       string            `json:"username"`
	Email          string            `json:"email"`
	Bio            string            `json:"bio"`
	Avatar         string            `json:"avatar"`
	CoverImage     string            `json:"coverImage"`
	Location       string            `json:"location"`
	Website        string            `json:"website"`
	SocialLinks    map[string]string `json:"socialLinks"`
	FollowersCount int               `json:"followersCount"`
	FollowingCount int               `json:"followingCount"`
	PostsCount     int               `json:"postsCount"`
	JoinedAt       string            `json:"joinedAt"`
}

func AuthorFromModel(a *models.Author) *Author {
	if a == nil {
		return nil
	}
	return &Author{
		ID:         itoa(a.ID),
		Name:       a.Name,
		Username:   a.Username,
		Email:      a.Email,
		Bio:        a.Bio,
		Avatar:     a.Avatar,
		CoverImage: a.CoverImage,
		Location:   a.Location,
		Website:    a.Website,
		SocialLinks: map[string]string{
			"twitter":  a.Twitter,
			"github":   a.Github,
			"linkedin": a.Linkedin,
		},
		FollowersCount: a.FollowersCount,
		FollowingCount: a.FollowingCount,
		PostsCount:     a.PostsCount,
		JoinedAt:       formatTime(a.JoinedAt),
	}
}

type Tag struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	PostsCount  int    `json:"postsCount"`
}

func TagFromModel(t *models.Tag) Tag {
	return Tag{
		ID:          itoa(t.ID),
		Name:        t.Name,
		Slug:        t.Slug,
		Description: t.Description,
		PostsCount:  t.PostsCount,
	}
}

type Post struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Slug          string  `json:"slug"`
	Content       string  `json:"content"`
	Excerpt       string  `json:"excerpt"`
	CoverImage    string  `json:"coverImage"`
	PublishedAt   string  `json:"publishedAt,omitempty"`
	ScheduledAt   string  `json:"scheduledAt,omitempty"`
	UpdatedAt     string  `json:"updatedAt"`
	Author        *Author `json:"author"`
	Tags          []Tag   `json:"tags"`
	ReadingTime   *int    `json:"readingTime,omitempty"`
	Views         int64   `json:"views"`
	Likes         int64   `json:"likes"`
	CommentsCount int     `json:"commentsCount"`
	IsPublished   bool    `json:"isPublished"`
}

// PostFromModel converts a post plus its loaded relations. ScheduledAt is
// echoed verbatim: it is an opaque naive local timestamp owned by the
// client.
func PostFromModel(p *models.Post, author *models.Author, tags []models.Tag) Post {
	tagDTOs := make([]Tag, 0, len(tags))
	for i := range tags {
		tagDTOs = append(tagDTOs, TagFromModel(&tags[i]))
	}
	return Post{
		ID:            itoa(p.ID),
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		Excerpt:       p.Excerpt,
		CoverImage:    p.CoverImage,
		PublishedAt:   formatTimePtr(p.PublishedAt),
		ScheduledAt:   p.ScheduledAt,
		UpdatedAt:     formatTime(p.UpdatedAt),
		Author:        AuthorFromModel(author),
		Tags:          tagDTOs,
		ReadingTime:   p.ReadingTime,
		Views:         p.Views,
		Likes:         p.Likes,
		CommentsCount: p.CommentsCount,
		IsPublished:   p.IsPublished,
	}
}

type PostList struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    *Author   `json:"author"`
	PostID    string    `json:"postId"`
	ParentID  string    `json:"parentId,omitempty"`
	Replies   []Comment `json:"replies"`
	Likes     int       `json:"likes"`
	CreatedAt string    `json:"createdAt"`
}

func CommentFromModel(c *models.Comment, author *models.Author) Comment {
	parentID := ""
	if c.ParentID != nil {
		parentID = itoa(*c.ParentID)
	}
	return Comment{
		ID:        itoa(c.ID),
		Content:   c.Content,
		Author:    AuthorFromModel(author),
		PostID:    itoa(c.PostID),
		ParentID:  parentID,
		Replies:   []Comment{},
		Likes:     c.Likes,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	UserType       string `json:"userType"`
	ProfileImageID string `json:"profileImageId"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func UserFromModel(u *models.User) User {
	return User{
		ID:             itoa(u.ID),
		Name:           u.Name,
		Email:          u.Email,
		UserType:       u.UserType,
		ProfileImageID: u.ProfileImageID,
		CreatedAt:      formatTime(u.CreatedAt),
		UpdatedAt:      formatTime(u.UpdatedAt),
	}
}

// LoginResponse carries the bearer token in the JSON body. This is the one
// token-delivery contract of the API; nothing is sent through response
// headers.
type LoginResponse struct {
	Token  string  `json:"token"`
	User   User    `json:"user"`
	Author *Author `json:"author"`
}

type NewsletterSubscription struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Status       string                 `json:"status"`
	SubscribedAt string                 `json:"subscribedAt"`
	Preferences  map[string]interface{} `json:"preferences"`
}

type SearchResponse struct {
	Posts   []Post   `json:"posts"`
	Authors []Author `json:"authors"`
	Tags    []Tag    `json:"tags"`
	Total   int      `json:"total"`
}

// Request bodies.

type CreatePostRequest struct {
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	CoverImage  string   `json:"coverImage"`
	AuthorID    string   `json:"authorId"`
	TagIDs      []string `json:"tagIds"`
	IsPublished *bool    `json:"isPublished"`
	ReadingTime *int     `json:"readingTime"`
	ScheduledAt string   `json:"scheduledAt"`
}

type CreateAuthorRequest struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Bio        string `json:"bio"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage"`
	Location   string `json:"location"`
	Website    string `json:"website"`
	Twitter    string `json:"twitter"`
	Github     string `json:"github"`
	Linkedin   string `json:"linkedin"`
}

type CreateTagRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
}

type UpdateCommentRequest struct {
	Content string `json:"content"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type SendCodeRequest struct {
	Email string `json:"email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type SubscribeNewsletterRequest struct {
	Email string `json:"email"`
}

type UpdateNewsletterPreferencesRequest struct {
	Preferences map[string]interface{} `json:"preferences"`
}

// Frequency returns the requested frequency, defaulting to weekly.
func (r UpdateNewsletterPreferencesRequest) Frequency() string {
	if freq, ok := r.Preferences["frequency"].(string); ok && freq != "" {
		return freq
	}
	return "weekly"
}

// Categories returns the requested categories, defaulting to none.
func (r UpdateNewsletterPreferencesRequest) Categories() []string {
	raw, ok := r.Preferences["categories"].([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
