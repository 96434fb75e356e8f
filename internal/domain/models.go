// Package domain defines the persistence models for chat conversations,
// messages, and blog posts. These types are mapped with GORM and also form
// the JSON wire shapes of the public API, so field tags mirror the keys the
// dashboard and chat widget consume (camelCase, matching the original site).
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Message roles. The first message of any conversation must carry RoleUser;
// an admin can only reply into an existing conversation.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Conversation statuses. StatusClosed is part of the declared shape but no
// operation currently transitions to it (see DESIGN.md).
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Conversation aggregates one chat session between a site visitor and the
// admin inbox.
//
// Fields:
//   - ID: client-generated session identifier, acts as the primary key.
//     It is supplied by the chat widget on first contact and not validated
//     for collisions.
//   - UserName: display name; defaults to "Guest " + the first four
//     characters of the session id, and is overwritten whenever a non-empty
//     name is later supplied (anonymous → identified upgrade, last write wins).
//   - UserCreatedAt / UserPlan: optional self-reported account metadata
//     (epoch milliseconds / plan identifier); never cleared once set.
//   - Messages: append-only ordered history (timestamp ascending).
//   - LastMessageAt: epoch milliseconds of the newest message; indexed as
//     the inbox sort key (descending).
//   - UnreadCount: user-authored messages not yet seen by the admin; reset
//     to zero only by an explicit read.
//   - Status: "active" or "closed".
type Conversation struct {
	ID            string    `json:"id"                      gorm:"type:varchar(64);primaryKey"`
	UserName      string    `json:"userName"                gorm:"type:varchar(255);not null"`
	UserCreatedAt *int64    `json:"userCreatedAt,omitempty"`
	UserPlan      string    `json:"userPlan,omitempty"      gorm:"type:varchar(64)"`
	Messages      []Message `json:"messages"                gorm:"foreignKey:ConversationID;references:ID"`
	LastMessageAt int64     `json:"lastMessageAt"           gorm:"not null;index:idx_conv_last_message"`
	UnreadCount   int       `json:"unreadCount"             gorm:"not null;default:0"`
	Status        string    `json:"status"                  gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','closed')"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single utterance within a conversation, authored either by
// the visitor ("user") or the support side ("admin").
//
// Fields:
//   - ID: UUID assigned at creation, immutable.
//   - ConversationID: foreign key to the owning conversation (indexed
//     together with Timestamp for ordered reads).
//   - Role: "user" or "admin" (enforced by DB constraint).
//   - Content: non-empty text.
//   - Timestamp: creation time in epoch milliseconds; append order and
//     display order coincide.
type Message struct {
	ID             string `json:"id"        gorm:"type:char(36);primaryKey"`
	ConversationID string `json:"-"         gorm:"type:varchar(64);not null;index:idx_conv_msgs,priority:1"`
	Role           string `json:"role"      gorm:"type:varchar(16);not null;check:role IN ('user','admin')"`
	Content        string `json:"content"   gorm:"type:text;not null"`
	Timestamp      int64  `json:"timestamp" gorm:"not null;index:idx_conv_msgs,priority:2"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// LocalizedText carries the three site locales for a blog field. It is
// stored as a JSON column and serialized with the locale keys the frontend
// expects.
type LocalizedText struct {
	EN   string `json:"en"`
	ZhTW string `json:"zh-TW"`
	ZhCN string `json:"zh-CN"`
}

// Value implements driver.Valuer so GORM persists the struct as JSON.
func (t LocalizedText) Value() (driver.Value, error) {
	b, err := json.Marshal(t)
	return string(b), err
}

// Scan implements sql.Scanner for reading the JSON column back.
func (t *LocalizedText) Scan(src any) error {
	return scanJSON(src, t)
}

// Get returns the text for locale, falling back to English when the locale
// is unknown or its translation is empty.
func (t LocalizedText) Get(locale string) string {
	switch locale {
	case "zh-TW":
		if t.ZhTW != "" {
			return t.ZhTW
		}
	case "zh-CN":
		if t.ZhCN != "" {
			return t.ZhCN
		}
	}
	return t.EN
}

// PostSEO is the optional search-engine metadata block of a blog post.
type PostSEO struct {
	Title       LocalizedText `json:"title"`
	Description LocalizedText `json:"description"`
	Keywords    LocalizedText `json:"keywords"`
}

// Value implements driver.Valuer.
func (s PostSEO) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

// Scan implements sql.Scanner.
func (s *PostSEO) Scan(src any) error {
	return scanJSON(src, s)
}

// StringList is a []string persisted as a JSON column (used for post tags).
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// BlogPost is one entry of the marketing-site blog. The slug doubles as the
// primary key and the public URL segment; localized title/excerpt/content
// follow the site's three locales.
//
// Fields:
//   - Slug: URL identifier, immutable after creation (renames are rejected
//     at the API layer).
//   - Title / Excerpt / Content: localized text blocks.
//   - SEO: optional metadata block.
//   - Date: publication date, "YYYY-MM-DD".
//   - Author: display author, defaults to "Admin".
//   - Image: optional cover image URL.
//   - Tags: free-form labels.
type BlogPost struct {
	Slug      string        `json:"slug"            gorm:"type:varchar(128);primaryKey"`
	Title     LocalizedText `json:"title"           gorm:"type:text;not null"`
	Excerpt   LocalizedText `json:"excerpt"         gorm:"type:text;not null"`
	Content   LocalizedText `json:"content"         gorm:"type:text;not null"`
	SEO       *PostSEO      `json:"seo,omitempty"   gorm:"type:text"`
	Date      string        `json:"date"            gorm:"type:varchar(10);not null"`
	Author    string        `json:"author"          gorm:"type:varchar(128);not null;default:'Admin'"`
	Image     string        `json:"image,omitempty" gorm:"type:varchar(512)"`
	Tags      StringList    `json:"tags"            gorm:"type:text"`
	CreatedAt time.Time     `json:"-"               gorm:"index"`
	UpdatedAt time.Time     `json:"-"`
}

// TableName returns the database table name for BlogPost.
func (BlogPost) TableName() string { return "blog_posts" }

// NowMillis returns the current wall-clock time in epoch milliseconds, the
// unit used for message timestamps and inbox ordering.
func NowMillis() int64 { return time.Now().UnixMilli() }

// scanJSON decodes a TEXT/BLOB column into dst, tolerating NULL.
func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported column type for JSON scan")
	}
}
