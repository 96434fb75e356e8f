// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation and Message models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. The invariants of the chat store
// (user-only initiation, unread accounting, append ordering) are enforced
// one level up in services.ChatService.
//
// Error semantics:
//   - When a conversation is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Ordering:
//   - Messages are always read in append order (timestamp ASC, id ASC).
//   - Conversation listings are keyed for the admin inbox
//     (last_message_at DESC) with conversation id ASC as the tie-break.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hkg945/edgeflow/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// messageOrder applies the canonical message ordering to a preload query.
func messageOrder(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp ASC, id ASC")
}

// CreateConversation inserts a new conversation row. The caller supplies the
// fully seeded aggregate (id, default name, metadata, status); this function
// only persists it.
func CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetConversation fetches a single conversation by its session id, with the
// full message history preloaded in append order. Returns ErrNotFound when
// the id has never been seen.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Preload("Messages", messageOrder).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	if c.Messages == nil {
		c.Messages = []domain.Message{}
	}
	return &c, nil
}

// ListConversations returns every conversation ordered by last_message_at
// descending (most recently active first), ties broken by id ascending.
// Message histories are preloaded so the admin inbox renders previews and
// counts without extra round trips. No pagination: the inbox shows all.
func ListConversations(ctx context.Context, db *gorm.DB) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Preload("Messages", messageOrder).
		Order("last_message_at DESC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Messages == nil {
			out[i].Messages = []domain.Message{}
		}
	}
	return out, err
}

// AppendMessage inserts a message row with a fresh UUID. The caller owns the
// surrounding transaction and conversation bookkeeping (last_message_at,
// unread_count).
func AppendMessage(db *gorm.DB, conversationID, role, content string, timestamp int64) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      timestamp,
	}
	return m, db.Create(m).Error
}

// TouchConversation advances last_message_at and, when fromUser is true,
// increments unread_count. Returns ErrNotFound when no row was updated.
func TouchConversation(db *gorm.DB, id string, lastMessageAt int64, fromUser bool) error {
	updates := map[string]any{"last_message_at": lastMessageAt}
	if fromUser {
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	}
	res := db.Model(&domain.Conversation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateConversationIdentity overwrites the display name and applies the
// update-if-present rule to the optional metadata. Called only when a
// non-empty userName accompanied the message (Guest → real name upgrade;
// repeated calls are last-write-wins).
func UpdateConversationIdentity(db *gorm.DB, id, userName string, userCreatedAt *int64, userPlan string) error {
	updates := map[string]any{"user_name": userName}
	if userCreatedAt != nil {
		updates["user_created_at"] = *userCreatedAt
	}
	if userPlan != "" {
		updates["user_plan"] = userPlan
	}
	return db.Model(&domain.Conversation{}).Where("id = ?", id).Updates(updates).Error
}

// MarkConversationRead zeroes unread_count for the conversation. Missing ids
// are a silent no-op, matching the read endpoint's semantics.
func MarkConversationRead(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("unread_count", 0).Error
}

// CountConversations returns the total number of conversations.
func CountConversations(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Conversation{}).Count(&total).Error
	return total, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&total).Error
	return total, err
}
