// Package services – ChatService
//
// This file implements the ChatService, which owns the conversation store
// semantics shared by the public chat widget and the admin inbox. It enforces
// the store's invariants: only visitors open conversations, unread counters
// track user-authored messages exactly, message history is strictly
// append-ordered, and identity upgrades (guest → named user) are last write
// wins.
//
// Service-level errors (e.g., ErrConversationNotFound, ErrAdminInitiate) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the conversation/session identifier and the message role where
// applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/hkg945/edgeflow/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConversationRepo defines the repository contract required by ChatService.
// Implementations are responsible for persistence of conversation aggregates.
type ConversationRepo interface {
	// CreateConversation inserts a fully seeded conversation row.
	CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error

	// GetConversation fetches a conversation with its ordered history.
	GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error)

	// ListConversations returns all conversations, most recently active first.
	ListConversations(ctx context.Context, db *gorm.DB) ([]domain.Conversation, error)

	// AppendMessage inserts one message row.
	AppendMessage(db *gorm.DB, conversationID, role, content string, timestamp int64) (*domain.Message, error)

	// TouchConversation advances last_message_at and bumps the unread
	// counter for user-authored messages.
	TouchConversation(db *gorm.DB, id string, lastMessageAt int64, fromUser bool) error

	// UpdateConversationIdentity applies a name/metadata upgrade.
	UpdateConversationIdentity(db *gorm.DB, id, userName string, userCreatedAt *int64, userPlan string) error

	// MarkConversationRead zeroes the unread counter (no-op on missing ids).
	MarkConversationRead(ctx context.Context, db *gorm.DB, id string) error
}

// AppendInput carries everything a single inbound message may supply. The
// identity fields are only meaningful for user-authored messages; admin
// replies leave them empty.
type AppendInput struct {
	ConversationID string
	Role           string
	Content        string

	// Optional self-reported identity accompanying a user message.
	UserName      string
	UserCreatedAt *int64
	UserPlan      string
}

// ChatService provides conversation-level operations: appending messages from
// either side, reading histories, and the admin inbox views. All writes to a
// conversation run inside a single transaction so the message row and the
// conversation bookkeeping never diverge.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the conversation repository used by this service.
	Repo ConversationRepo

	// MaxContentRunes caps message bodies by rune length (0 = unlimited).
	MaxContentRunes int
}

// NewChatService constructs a ChatService with a sane default message cap.
func NewChatService(db *gorm.DB, r ConversationRepo) *ChatService {
	return &ChatService{
		DB:              db,
		Repo:            r,
		MaxContentRunes: 4000,
	}
}

// Append validates and persists one message, creating the conversation on a
// visitor's first contact. Admin replies into an unknown session id fail with
// ErrAdminInitiate and leave no trace. The returned conversation is the full
// post-append aggregate.
func (s *ChatService) Append(ctx context.Context, in AppendInput) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("conversation.id", in.ConversationID),
			attribute.String("message.role", in.Role),
		),
	)
	defer span.End()

	id := strings.TrimSpace(in.ConversationID)
	if id == "" {
		return nil, ErrEmptySessionID
	}
	if in.Role != domain.RoleUser && in.Role != domain.RoleAdmin {
		return nil, ErrInvalidRole
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}
	userName := strings.TrimSpace(in.UserName)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := s.Repo.GetConversation(ctx, tx, id)
		switch {
		case err == nil:
			// Identity upgrade: a non-empty name overwrites whatever is
			// stored (last write wins), and only then is the optional
			// metadata applied.
			if in.Role == domain.RoleUser && userName != "" {
				if uerr := s.Repo.UpdateConversationIdentity(tx, id, userName, in.UserCreatedAt, in.UserPlan); uerr != nil {
					return uerr
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if in.Role == domain.RoleAdmin {
				return ErrAdminInitiate
			}
			fresh := &domain.Conversation{
				ID:            id,
				UserName:      userName,
				UserCreatedAt: in.UserCreatedAt,
				UserPlan:      in.UserPlan,
				Status:        domain.StatusActive,
			}
			if fresh.UserName == "" {
				fresh.UserName = guestName(id)
			}
			if cerr := s.Repo.CreateConversation(ctx, tx, fresh); cerr != nil {
				return cerr
			}
			conv = fresh
		default:
			return err
		}

		// Timestamps are epoch millis; two appends inside the same
		// millisecond must still read back in arrival order, so the clock
		// never moves backwards relative to the conversation.
		ts := domain.NowMillis()
		if ts <= conv.LastMessageAt {
			ts = conv.LastMessageAt + 1
		}

		if _, err := s.Repo.AppendMessage(tx, id, in.Role, content, ts); err != nil {
			return err
		}
		return s.Repo.TouchConversation(tx, id, ts, in.Role == domain.RoleUser)
	})
	if err != nil {
		return nil, err
	}

	return s.Repo.GetConversation(ctx, s.DB, id)
}

// History returns the conversation for a session id, or
// ErrConversationNotFound when the id has never been seen. Handlers decide
// how an unknown session renders on the wire.
func (s *ChatService) History(ctx context.Context, id string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(attribute.String("conversation.id", id)),
	)
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptySessionID
	}
	conv, err := s.Repo.GetConversation(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// List returns every conversation ordered for the admin inbox (most recently
// active first).
func (s *ChatService) List(ctx context.Context) ([]domain.Conversation, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return s.Repo.ListConversations(ctx, s.DB)
}

// Get returns one conversation for the admin detail view. When markRead is
// set, the unread counter is zeroed before the fetch so the returned snapshot
// already reflects the read.
func (s *ChatService) Get(ctx context.Context, id string, markRead bool) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("conversation.id", id),
			attribute.Bool("mark_read", markRead),
		),
	)
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptySessionID
	}
	if markRead {
		if err := s.Repo.MarkConversationRead(ctx, s.DB, id); err != nil {
			return nil, err
		}
	}
	conv, err := s.Repo.GetConversation(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// MarkRead zeroes the unread counter for a conversation. Unknown ids are a
// silent no-op, mirroring the read endpoint's semantics.
func (s *ChatService) MarkRead(ctx context.Context, id string) error {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(attribute.String("conversation.id", id)),
	)
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptySessionID
	}
	return s.Repo.MarkConversationRead(ctx, s.DB, id)
}

// guestName derives the default display name for an anonymous visitor from
// the session id prefix.
func guestName(id string) string {
	short := id
	if utf8.RuneCountInString(short) > 4 {
		short = string([]rune(short)[:4])
	}
	return "Guest " + short
}
