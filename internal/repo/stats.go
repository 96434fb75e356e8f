// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/hkg945/edgeflow/internal/domain"
)

// ConversationsStats returns aggregate metadata for the admin inbox: the
// total number of conversations, the greatest last_message_at among them,
// and the sum of unread counts. Together these change whenever the inbox
// listing would change, so they make a cheap weak-ETag fingerprint that the
// 5-second list poll can 304 against.
//
// When there are no conversations all values are zero.
func ConversationsStats(ctx context.Context, db *gorm.DB) (count int64, maxLastMessageAt int64, unreadTotal int64, err error) {
	var row struct {
		N      int64
		MaxTS  *int64
		Unread *int64
	}
	err = db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Select("COUNT(*) AS n, MAX(last_message_at) AS max_ts, SUM(unread_count) AS unread").
		Scan(&row).Error
	if err != nil {
		return 0, 0, 0, err
	}
	count = row.N
	if row.MaxTS != nil {
		maxLastMessageAt = *row.MaxTS
	}
	if row.Unread != nil {
		unreadTotal = *row.Unread
	}
	return count, maxLastMessageAt, unreadTotal, nil
}
