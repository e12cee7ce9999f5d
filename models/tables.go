package models

import "time"

type Post struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string     `gorm:"not null" json:"title"`
	Slug          string     `gorm:"unique;not null;index" json:"slug"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	Excerpt       string     `gorm:"type:text" json:"excerpt"`
	CoverImage    string     `gorm:"type:text" json:"cover_image"`
	AuthorID      uint       `gorm:"not null;index" json:"author_id"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	ScheduledAt   string     `gorm:"type:text" json:"scheduled_at,omitempty"` // opaque naive local timestamp, never parsed as a zoned date
	IsPublished   bool       `gorm:"not null;default:false;index" json:"is_published"`
	Views         int64      `gorm:"not null;default:0" json:"views"`
	Likes         int64      `gorm:"not null;default:0" json:"likes"`
	CommentsCount int        `gorm:"not null;default:0" json:"comments_count"`
	ReadingTime   *int       `json:"reading_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Author struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	Username       string    `gorm:"unique;not null;index" json:"username"`
	Email          string    `gorm:"not null;index" json:"email"`
	Bio            string    `gorm:"type:text" json:"bio"`
	Avatar         string    `gorm:"type:text" json:"avatar"`
	CoverImage     string    `gorm:"type:text" json:"cover_image"`
	Location       string    `json:"location"`
	Website        string    `json:"website"`
	Twitter        string    `json:"twitter"`
	Github         string    `json:"github"`
	Linkedin       string    `json:"linkedin"`
	FollowersCount int       `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int       `gorm:"not null;default:0" json:"following_count"`
	PostsCount     int       `gorm:"not null;default:0" json:"posts_count"`
	JoinedAt       time.Time `json:"joined_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Tag struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Slug        string    `gorm:"unique;not null;index" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	PostsCount  int       `gorm:"not null;default:0" json:"posts_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PostTag struct {
	ID     uint `gorm:"primaryKey;autoIncrement"`
	PostID uint `gorm:"not null;index" json:"post_id"`
	TagID  uint `gorm:"not null;index" json:"tag_id"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"` // one level of reply nesting
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a login identity; an Author profile is linked to it by email.
type User struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	Email          string    `gorm:"unique;not null;index" json:"email"`
	Password       string    `gorm:"not null" json:"-"` // bcrypt hash, never serialized
	UserType       string    `gorm:"not null;default:'REA'" json:"user_type"`
	ProfileImageID string    `json:"profile_image_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type NewsletterSubscription struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email          string     `gorm:"unique;not null;index" json:"email"`
	Status         string     `gorm:"not null" json:"status"`    // active, pending, unsubscribed
	Frequency      string     `gorm:"not null" json:"frequency"` // daily, weekly, monthly
	Categories     string     `gorm:"type:text" json:"-"`        // JSON-encoded list
	SubscribedAt   time.Time  `json:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type VerificationCode struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string    `gorm:"not null;index" json:"email"`
	HashedCode string    `gorm:"not null" json:"-"`
	Attempts   int       `gorm:"not null;default:0" json:"attempts"`
	IsUsed     bool      `gorm:"not null;default:false" json:"is_used"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// SentEmail is an audit row for every outbound email.
type SentEmail struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Recipient string    `gorm:"not null;index" json:"recipient"`
	Subject   string    `gorm:"not null" json:"subject"`
	Kind      string    `gorm:"not null" json:"kind"`   // verification_code, post_notification
	Status    string    `gorm:"not null" json:"status"` // sent, failed, skipped
	SentAt    time.Time `json:"sent_at"`
}

// PostVisit is a raw analytics event recorded alongside the view counter.
type PostVisit struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	PostID    uint      `gorm:"not null;index"`
	IP        string    `gorm:"not null;index"`
	Browser   string    `json:"browser"`
	CreatedAt time.Time `gorm:"index"`
}
