// Admin inbox HTTP handlers.
//
// This file exposes the REST endpoints consumed by the dashboard inbox:
//   - GET  /admin/chat/conversations       (list, 5s poll, weak ETag support)
//   - GET  /admin/chat/conversations/{id}  (detail, 3s poll; marks read)
//   - POST /admin/chat/reply               (append an admin message)
//
// Fetching a conversation detail zeroes its unread counter before the read,
// so the returned snapshot and the next list poll both reflect the read.
// Replying to a session id the store has never seen is rejected with 401:
// only visitors open conversations.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/hkg945/edgeflow/internal/domain"
	"github.com/hkg945/edgeflow/internal/repo"
	"github.com/hkg945/edgeflow/internal/services"
)

//
// DTOs
//

// ReplyRequest is the JSON payload of POST /admin/chat/reply.
type ReplyRequest struct {
	// ConversationID identifies the conversation being answered.
	ConversationID string `json:"conversationId" binding:"required,min=1" example:"sess-7f3a9c12"`
	// Content is the reply text. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"Yes, the divergence scanner ships with pro."`
}

// ListConversationsResponse wraps the admin inbox listing.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

//
// Handlers
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List all conversations
// @Description Returns every conversation ordered by most recent activity. Supports
// @Description weak ETag via If-None-Match and may return 304, keeping the 5-second
// @Description inbox poll cheap.
// @Tags        Admin
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"conversations:3:1700000000000:2\")
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag  "Weak ETag for current inbox state"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/chat/conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort). The aggregate changes whenever the
	// listing would: new conversations, new messages, or reads.
	if db := discoverDB(h.chatSvc); db != nil {
		count, maxTS, unread, err := repo.ConversationsStats(ctx, db)
		if err == nil {
			etag := fmt.Sprintf(`W/"conversations:%d:%d:%d"`, count, maxTS, unread)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.chatSvc.List(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: items})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Fetch one conversation (marks it read)
// @Description Returns the full conversation and zeroes its unread counter as a
// @Description side effect of the fetch.
// @Tags        Admin
// @Produce     json
//
// @Param       id  path  string  true  "Conversation id"  example(sess-7f3a9c12)
//
// @Success     200  {object}  domain.Conversation
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/chat/conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	conv, err := h.chatSvc.Get(c.Request.Context(), id, true)
	if err != nil {
		switch err {
		case services.ErrConversationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		case services.ErrEmptySessionID:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, conv)
}

// Reply godoc
// @ID          adminReply
// @Summary     Reply to a conversation
// @Description Appends an admin message to an existing conversation. Replies never
// @Description open conversations: an unknown id is rejected with 401.
// @Description Supports idempotency via the Idempotency-Key header.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.ReplyRequest  true  "Reply payload"
//
// @Success     200  {object}  domain.Conversation     "Post-append conversation"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Conversation does not exist"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/chat/reply [post]
func (h *Handlers) Reply(c *gin.Context) {
	ctx := c.Request.Context()

	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversationId and content required")
		return
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxContentRunes(h.chatSvc)
	if conversationID == "" || content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversationId and content required")
		return
	}
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}

	// Idempotency (replay path).
	idemKey := idempotencyKey(c)
	if idemKey != "" {
		if db := discoverDB(h.chatSvc); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, conversationID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if conv, err2 := h.chatSvc.History(ctx, conversationID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, conv)
					return
				}
			}
		}
	}

	conv, err := h.chatSvc.Append(ctx, services.AppendInput{
		ConversationID: conversationID,
		Role:           domain.RoleAdmin,
		Content:        content,
	})
	if err != nil {
		mapAppendError(c, err, maxRunes, ErrCodeReplyFailed)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && len(conv.Messages) > 0 {
		if db := discoverDB(h.chatSvc); db != nil {
			lastID := conv.Messages[len(conv.Messages)-1].ID
			_, _ = repo.CreateIdempotency(ctx, db, conversationID, idemKey, lastID, http.StatusOK, 24*time.Hour)
		}
	}

	ok(c, http.StatusOK, conv)
}
