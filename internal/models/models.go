package models

import (
	"time"

	"github.com/CoderLord25/ZenSocial/internal/identity"
)

type User struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	ZenID     string    `gorm:"column:zenid" json:"zenid"`
	Wallet    *string   `gorm:"column:wallet" json:"wallet,omitempty"`
	Username  string    `gorm:"column:username" json:"username"`
	Bio       string    `gorm:"column:bio" json:"bio"`
	Avatar    string    `gorm:"column:avatar" json:"avatar"`
	Cover     string    `gorm:"column:cover" json:"cover"`
	Followers int64     `gorm:"column:followers" json:"followers"`
	Following int64     `gorm:"column:following" json:"following"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string { return "users" }

// DisplayName falls back to a shortened ZenID when no username is set.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return identity.Short(u.ZenID)
}

type Post struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	UserID    int64     `gorm:"column:user_id" json:"-"`
	Content   string    `gorm:"column:content" json:"content"`
	Media     string    `gorm:"column:media" json:"media"`
	Likes     int64     `gorm:"column:likes" json:"likes"`
	Comments  int64     `gorm:"column:comments" json:"comments"`
	Shares    int64     `gorm:"column:shares" json:"shares"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`

	// Author fields, filled by joins
	ZenID    string `gorm:"column:zenid;->" json:"zenid"`
	Username string `gorm:"column:username;->" json:"username"`
	Avatar   string `gorm:"column:avatar;->" json:"avatar"`

	CommentList []Comment `gorm:"-" json:"comment_list,omitempty"`
}

func (Post) TableName() string { return "posts" }

type Comment struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	PostID    int64     `gorm:"column:post_id" json:"post_id"`
	UserID    int64     `gorm:"column:user_id" json:"-"`
	Content   string    `gorm:"column:content" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`

	Username string `gorm:"column:username;->" json:"username"`
	ZenID    string `gorm:"column:zenid;->" json:"-"`
}

func (Comment) TableName() string { return "comments" }

type PostLike struct {
	PostID int64 `gorm:"column:post_id;primaryKey"`
	UserID int64 `gorm:"column:user_id;primaryKey"`
}

func (PostLike) TableName() string { return "post_likes" }

type PostRepost struct {
	PostID int64 `gorm:"column:post_id;primaryKey"`
	UserID int64 `gorm:"column:user_id;primaryKey"`
}

func (PostRepost) TableName() string { return "post_reposts" }

// EarningsRecord is a per-post reward snapshot written when the dashboard is viewed.
type EarningsRecord struct {
	ID          int64     `gorm:"column:id;primaryKey" json:"-"`
	PostID      int64     `gorm:"column:post_id" json:"post_id"`
	UserID      int64     `gorm:"column:user_id" json:"-"`
	Likes       int64     `gorm:"column:likes" json:"likes"`
	Comments    int64     `gorm:"column:comments" json:"comments"`
	Reposts     int64     `gorm:"column:reposts" json:"reposts"`
	AmountCents int64     `gorm:"column:amount_cents" json:"amount_cents"`
	ComputedAt  time.Time `gorm:"column:computed_at" json:"computed_at"`
}

func (EarningsRecord) TableName() string { return "earnings" }

type Session struct {
	Token     string    `gorm:"column:token;primaryKey"`
	ZenID     string    `gorm:"column:zenid"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Session) TableName() string { return "sessions" }

type Notification struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	UserID    int64     `gorm:"column:user_id" json:"-"`
	ActorID   string    `gorm:"column:actor_zenid" json:"actor"`
	Kind      string    `gorm:"column:kind" json:"kind"`
	PostID    int64     `gorm:"column:post_id" json:"post_id"`
	Read      bool      `gorm:"column:read" json:"read"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// ToggleState is the edge state reported after a like or repost toggle.
type ToggleState string

const (
	Liked      ToggleState = "liked"
	Unliked    ToggleState = "unliked"
	Reposted   ToggleState = "reposted"
	Unreposted ToggleState = "unreposted"
)

// ProfileUpdate carries optional profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	Username *string
	Bio      *string
	Avatar   *string
	Cover    *string
}
