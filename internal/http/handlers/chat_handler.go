// Widget chat HTTP handlers.
//
// This file exposes the REST endpoints consumed by the embedded chat widget:
//   - GET  /chat/history?sessionId=...   (poll the conversation, 3s cadence)
//   - POST /chat/send                    (append a user message)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The history endpoint keeps the
// site's asymmetric wire shape: a known session returns the full conversation
// object, an unknown one returns {"messages": []} with 200 so a fresh widget
// can poll before first contact without error handling.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// send exists for (session, key), the handler returns the current conversation
// without appending again and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hkg945/edgeflow/internal/domain"
	"github.com/hkg945/edgeflow/internal/http/middleware"
	"github.com/hkg945/edgeflow/internal/repo"
	"github.com/hkg945/edgeflow/internal/search"
	"github.com/hkg945/edgeflow/internal/services"
)

//
// Service contracts (context-aware)
//

// ChatService defines conversation store operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// Append persists one message, creating the conversation on a visitor's
	// first contact, and returns the post-append aggregate.
	Append(ctx context.Context, in services.AppendInput) (*domain.Conversation, error)
	// History returns the conversation for a session id.
	History(ctx context.Context, id string) (*domain.Conversation, error)
	// List returns all conversations, most recently active first.
	List(ctx context.Context) ([]domain.Conversation, error)
	// Get returns one conversation, optionally zeroing its unread counter
	// before the fetch.
	Get(ctx context.Context, id string, markRead bool) (*domain.Conversation, error)
	// MarkRead zeroes the unread counter (silent no-op on unknown ids).
	MarkRead(ctx context.Context, id string) error
}

// BlogService defines blog catalogue operations consumed by HTTP handlers.
type BlogService interface {
	// Create validates and inserts a new post.
	Create(ctx context.Context, p *domain.BlogPost) (*domain.BlogPost, error)
	// Get fetches a post by slug.
	Get(ctx context.Context, slug string) (*domain.BlogPost, error)
	// ListPage returns a page of posts and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.BlogPost, int64, error)
	// Update overwrites the mutable fields of the post at slug.
	Update(ctx context.Context, slug string, p *domain.BlogPost) (*domain.BlogPost, error)
	// Delete removes the post at slug.
	Delete(ctx context.Context, slug string) error
	// Search ranks post paragraphs against a query.
	Search(ctx context.Context, query, locale string, k int) ([]search.Snippet, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for the chat store and the blog catalogue.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	chatSvc ChatService
	blogSvc BlogService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(chatSvc ChatService, blogSvc BlogService) *Handlers {
	return &Handlers{chatSvc: chatSvc, blogSvc: blogSvc}
}

//
// DTOs
//

// SendMessageRequest is the JSON payload of POST /chat/send.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer, which also enforces a
// maximum rune count.
type SendMessageRequest struct {
	// SessionID is the widget-generated conversation id.
	SessionID string `json:"sessionId" binding:"required,min=1" example:"sess-7f3a9c12"`
	// Content is the message text. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"Does the pro plan include the divergence scanner?"`
	// UserName optionally identifies the visitor; a non-empty value replaces
	// the stored display name.
	UserName string `json:"userName,omitempty" example:"Alice"`
	// UserCreatedAt optionally carries the visitor's account creation time
	// (epoch milliseconds).
	UserCreatedAt *int64 `json:"userCreatedAt,omitempty" example:"1700000000000"`
	// UserPlan optionally carries the visitor's self-reported plan.
	UserPlan string `json:"userPlan,omitempty" example:"pro"`
}

// emptyHistory is the wire shape returned for session ids the store has never
// seen.
type emptyHistory struct {
	Messages []domain.Message `json:"messages"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxContentRunes inspects the concrete ChatService for a configured
// message-length limit. If unavailable, it returns a conservative fallback.
func discoverMaxContentRunes(chatSvc ChatService) int {
	const fallback = 4000
	if cs, ok := chatSvc.(*services.ChatService); ok {
		if cs.MaxContentRunes > 0 {
			return cs.MaxContentRunes
		}
	}
	return fallback
}

// discoverDB returns the GORM handle behind the concrete ChatService, when
// available, for best-effort features (ETags, idempotency records).
func discoverDB(chatSvc ChatService) *gorm.DB {
	if cs, ok := chatSvc.(*services.ChatService); ok {
		return cs.DB
	}
	return nil
}

// idempotencyKey extracts an idempotency key if the upstream middleware has
// validated/stashed it, falling back to the raw header when the middleware is
// not mounted (tests).
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}

// mapAppendError translates service append errors into HTTP failures. The
// failCode is used for unexpected errors only.
func mapAppendError(c *gin.Context, err error, maxRunes int, failCode string) {
	switch err {
	case services.ErrEmptySessionID:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId required")
	case services.ErrEmptyContent:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
	case services.ErrContentTooLong:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
	case services.ErrInvalidRole:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid role")
	case services.ErrAdminInitiate:
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "conversation does not exist")
	default:
		fail(c, http.StatusInternalServerError, failCode, err.Error())
	}
}

//
// Handlers
//

// ChatHistory godoc
// @ID          chatHistory
// @Summary     Poll a conversation
// @Description Returns the full conversation for a session id. Unknown session ids
// @Description return `{"messages": []}` with 200 so a fresh widget can poll before
// @Description first contact.
// @Tags        Chat
// @Produce     json
//
// @Param       sessionId  query  string  true  "Widget session id"  example(sess-7f3a9c12)
//
// @Success     200  {object}  domain.Conversation
// @Failure     400  {object}  handlers.ErrorResponse  "Missing sessionId"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/history [get]
func (h *Handlers) ChatHistory(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	if sessionID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId required")
		return
	}

	conv, err := h.chatSvc.History(c.Request.Context(), sessionID)
	if err != nil {
		if err == services.ErrConversationNotFound {
			ok(c, http.StatusOK, emptyHistory{Messages: []domain.Message{}})
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, conv)
}

// ChatSend godoc
// @ID          chatSend
// @Summary     Send a message from the widget
// @Description Appends a user message, creating the conversation on first contact.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SendMessageRequest  true  "Message payload"
//
// @Success     200  {object}  domain.Conversation           "Post-append conversation"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /chat/send [post]
func (h *Handlers) ChatSend(c *gin.Context) {
	ctx := c.Request.Context()

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId and content required")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxContentRunes(h.chatSvc)
	if sessionID == "" || content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId and content required")
		return
	}
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}

	// Idempotency (replay path) – serve the stored result without appending.
	idemKey := idempotencyKey(c)
	if idemKey != "" {
		if db := discoverDB(h.chatSvc); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, sessionID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if conv, err2 := h.chatSvc.History(ctx, sessionID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, conv)
					return
				}
			}
		}
	}

	conv, err := h.chatSvc.Append(ctx, services.AppendInput{
		ConversationID: sessionID,
		Role:           domain.RoleUser,
		Content:        content,
		UserName:       req.UserName,
		UserCreatedAt:  req.UserCreatedAt,
		UserPlan:       req.UserPlan,
	})
	if err != nil {
		mapAppendError(c, err, maxRunes, ErrCodeSendFailed)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && len(conv.Messages) > 0 {
		if db := discoverDB(h.chatSvc); db != nil {
			lastID := conv.Messages[len(conv.Messages)-1].ID
			_, _ = repo.CreateIdempotency(ctx, db, sessionID, idemKey, lastID, http.StatusOK, 24*time.Hour)
		}
	}

	ok(c, http.StatusOK, conv)
}
