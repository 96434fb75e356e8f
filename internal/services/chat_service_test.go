package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hkg945/edgeflow/internal/domain"
	"github.com/hkg945/edgeflow/internal/repo"
)

// ----- Shared test plumbing -----

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// convRepoShim adapts the repo package's free functions to ConversationRepo.
type convRepoShim struct{}

func (convRepoShim) CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	return repo.CreateConversation(ctx, db, c)
}
func (convRepoShim) GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	return repo.GetConversation(ctx, db, id)
}
func (convRepoShim) ListConversations(ctx context.Context, db *gorm.DB) ([]domain.Conversation, error) {
	return repo.ListConversations(ctx, db)
}
func (convRepoShim) AppendMessage(db *gorm.DB, conversationID, role, content string, timestamp int64) (*domain.Message, error) {
	return repo.AppendMessage(db, conversationID, role, content, timestamp)
}
func (convRepoShim) TouchConversation(db *gorm.DB, id string, lastMessageAt int64, fromUser bool) error {
	return repo.TouchConversation(db, id, lastMessageAt, fromUser)
}
func (convRepoShim) UpdateConversationIdentity(db *gorm.DB, id, userName string, userCreatedAt *int64, userPlan string) error {
	return repo.UpdateConversationIdentity(db, id, userName, userCreatedAt, userPlan)
}
func (convRepoShim) MarkConversationRead(ctx context.Context, db *gorm.DB, id string) error {
	return repo.MarkConversationRead(ctx, db, id)
}

func newChatService(t *testing.T) *ChatService {
	t.Helper()
	return NewChatService(newServiceDB(t), convRepoShim{})
}

// ----- Construction & validation -----

func TestNewChatService_Defaults(t *testing.T) {
	s := NewChatService(nil, convRepoShim{})
	if s.MaxContentRunes != 4000 {
		t.Fatalf("MaxContentRunes default = 4000, got %d", s.MaxContentRunes)
	}
}

func TestAppend_Validation(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, AppendInput{Role: domain.RoleUser, Content: "hi"}); !errors.Is(err, ErrEmptySessionID) {
		t.Fatalf("missing session id: got %v", err)
	}
	if _, err := s.Append(ctx, AppendInput{ConversationID: "abc", Role: "bot", Content: "hi"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role: got %v", err)
	}
	if _, err := s.Append(ctx, AppendInput{ConversationID: "abc", Role: domain.RoleUser, Content: "   "}); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank content: got %v", err)
	}

	s.MaxContentRunes = 3
	if _, err := s.Append(ctx, AppendInput{ConversationID: "abc", Role: domain.RoleUser, Content: "hello"}); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("over cap: got %v", err)
	}
}

// ----- First contact -----

func TestAppend_FirstUserMessageCreatesConversation(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	conv, err := s.Append(ctx, AppendInput{ConversationID: "abc123", Role: domain.RoleUser, Content: "hello"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if conv.ID != "abc123" {
		t.Fatalf("id = %q", conv.ID)
	}
	if conv.UserName != "Guest abc1" {
		t.Fatalf("guest name = %q, want %q", conv.UserName, "Guest abc1")
	}
	if conv.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", conv.UnreadCount)
	}
	if conv.Status != domain.StatusActive {
		t.Fatalf("status = %q", conv.Status)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Role != domain.RoleUser || conv.Messages[0].Content != "hello" {
		t.Fatalf("messages = %+v", conv.Messages)
	}
	if conv.LastMessageAt != conv.Messages[0].Timestamp {
		t.Fatalf("lastMessageAt %d != message timestamp %d", conv.LastMessageAt, conv.Messages[0].Timestamp)
	}
}

func TestAppend_ShortIDGuestName(t *testing.T) {
	s := newChatService(t)

	conv, err := s.Append(context.Background(), AppendInput{ConversationID: "ab", Role: domain.RoleUser, Content: "hi"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if conv.UserName != "Guest ab" {
		t.Fatalf("guest name = %q", conv.UserName)
	}
}

func TestAppend_FirstContactWithIdentity(t *testing.T) {
	s := newChatService(t)
	created := int64(1700000000000)

	conv, err := s.Append(context.Background(), AppendInput{
		ConversationID: "sess-1",
		Role:           domain.RoleUser,
		Content:        "hi",
		UserName:       "Alice",
		UserCreatedAt:  &created,
		UserPlan:       "pro",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if conv.UserName != "Alice" || conv.UserPlan != "pro" {
		t.Fatalf("identity not seeded: %+v", conv)
	}
	if conv.UserCreatedAt == nil || *conv.UserCreatedAt != created {
		t.Fatalf("userCreatedAt = %v", conv.UserCreatedAt)
	}
}

func TestAppend_AdminCannotInitiate(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	_, err := s.Append(ctx, AppendInput{ConversationID: "ghost", Role: domain.RoleAdmin, Content: "hello?"})
	if !errors.Is(err, ErrAdminInitiate) {
		t.Fatalf("expected ErrAdminInitiate, got %v", err)
	}

	// The failed reply must leave no trace.
	if _, err := s.History(ctx, "ghost"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("conversation materialized after failed admin reply: %v", err)
	}
}

// ----- Ongoing conversation semantics -----

func TestAppend_UnreadAccountingAndOrder(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	for i, txt := range []string{"one", "two", "three"} {
		conv, err := s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleUser, Content: txt})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if conv.UnreadCount != i+1 {
			t.Fatalf("after %d user messages unread = %d", i+1, conv.UnreadCount)
		}
	}

	conv, err := s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleAdmin, Content: "reply"})
	if err != nil {
		t.Fatalf("admin reply: %v", err)
	}
	if conv.UnreadCount != 3 {
		t.Fatalf("admin reply changed unread: %d", conv.UnreadCount)
	}

	want := []string{"one", "two", "three", "reply"}
	if len(conv.Messages) != len(want) {
		t.Fatalf("message count = %d", len(conv.Messages))
	}
	for i, m := range conv.Messages {
		if m.Content != want[i] {
			t.Fatalf("order broken at %d: %q", i, m.Content)
		}
		if i > 0 && m.Timestamp <= conv.Messages[i-1].Timestamp {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
	}
	if conv.LastMessageAt != conv.Messages[3].Timestamp {
		t.Fatalf("lastMessageAt not advanced by admin reply")
	}
}

func TestAppend_IdentityUpgradeLastWriteWins(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("first: %v", err)
	}

	created := int64(42)
	conv, err := s.Append(ctx, AppendInput{
		ConversationID: "sess", Role: domain.RoleUser, Content: "it's me",
		UserName: "Bob", UserCreatedAt: &created, UserPlan: "basic",
	})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if conv.UserName != "Bob" || conv.UserPlan != "basic" || conv.UserCreatedAt == nil {
		t.Fatalf("upgrade not applied: %+v", conv)
	}

	// Later non-empty name overwrites; omitted metadata is retained.
	conv, err = s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleUser, Content: "again", UserName: "Robert"})
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if conv.UserName != "Robert" {
		t.Fatalf("last write should win: %q", conv.UserName)
	}
	if conv.UserPlan != "basic" || conv.UserCreatedAt == nil || *conv.UserCreatedAt != created {
		t.Fatalf("metadata lost on name-only upgrade: %+v", conv)
	}

	// An empty name never downgrades back to Guest.
	conv, err = s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleUser, Content: "and again"})
	if err != nil {
		t.Fatalf("fourth: %v", err)
	}
	if conv.UserName != "Robert" {
		t.Fatalf("empty name overwrote: %q", conv.UserName)
	}
}

// ----- Reads -----

func TestHistory(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	if _, err := s.History(ctx, "nope"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("missing id: got %v", err)
	}
	if _, err := s.History(ctx, "  "); !errors.Is(err, ErrEmptySessionID) {
		t.Fatalf("blank id: got %v", err)
	}

	if _, err := s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	conv, err := s.History(ctx, "sess")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("messages = %+v", conv.Messages)
	}
}

func TestList_OrdersByActivity(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		if _, err := s.Append(ctx, AppendInput{ConversationID: id, Role: domain.RoleUser, Content: "hi"}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct lastMessageAt per conversation
	}
	// Reactivate the oldest.
	if _, err := s.Append(ctx, AppendInput{ConversationID: "first", Role: domain.RoleUser, Content: "still here"}); err != nil {
		t.Fatalf("reactivate: %v", err)
	}

	out, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := make([]string, 0, len(out))
	for _, c := range out {
		got = append(got, c.ID)
	}
	want := []string{"first", "third", "second"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("inbox order = %v, want %v", got, want)
		}
	}
}

func TestGet_MarkReadBeforeFetch(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleUser, Content: "msg"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	conv, err := s.Get(ctx, "sess", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if conv.UnreadCount != 0 {
		t.Fatalf("snapshot should reflect the read, unread = %d", conv.UnreadCount)
	}

	// Without markRead the counter is untouched.
	if _, err := s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleUser, Content: "more"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	conv, err = s.Get(ctx, "sess", false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if conv.UnreadCount != 1 {
		t.Fatalf("peek changed unread: %d", conv.UnreadCount)
	}

	if _, err := s.Get(ctx, "missing", true); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("missing id: got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	s := newChatService(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, AppendInput{ConversationID: "sess", Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.MarkRead(ctx, "sess"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	conv, err := s.History(ctx, "sess")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if conv.UnreadCount != 0 {
		t.Fatalf("unread = %d", conv.UnreadCount)
	}

	// Unknown ids are a silent no-op.
	if err := s.MarkRead(ctx, "missing"); err != nil {
		t.Fatalf("MarkRead missing: %v", err)
	}
	if err := s.MarkRead(ctx, ""); !errors.Is(err, ErrEmptySessionID) {
		t.Fatalf("blank id: got %v", err)
	}
}
