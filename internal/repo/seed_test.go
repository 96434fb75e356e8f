package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hkg945/edgeflow/internal/domain"
)

const chatSeedJSON = `[
  {
    "id": "sess-1",
    "userName": "Guest sess",
    "messages": [
      {"id": "m1", "role": "user", "content": "hello", "timestamp": 1700000000001},
      {"id": "m2", "role": "admin", "content": "hi there", "timestamp": 1700000000002}
    ],
    "lastMessageAt": 1700000000002,
    "unreadCount": 0,
    "status": "active"
  },
  {
    "id": "sess-2",
    "userName": "Alice",
    "userPlan": "pro",
    "messages": [
      {"id": "m3", "role": "user", "content": "pricing?", "timestamp": 1700000000005}
    ],
    "lastMessageAt": 1700000000005,
    "unreadCount": 1
  }
]`

func writeSeedFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return p
}

func TestSeedConversations_PopulatesEmptyTable(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()

	n, err := SeedConversations(ctx, db, writeSeedFile(t, "chats.json", chatSeedJSON))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 2 {
		t.Fatalf("seeded %d conversations; want 2", n)
	}

	got, err := GetConversation(ctx, db, "sess-1")
	if err != nil {
		t.Fatalf("get seeded conversation: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[0].Content != "hello" {
		t.Fatalf("nested messages not seeded: %+v", got.Messages)
	}

	// Missing status defaults to active.
	got2, err := GetConversation(ctx, db, "sess-2")
	if err != nil {
		t.Fatalf("get sess-2: %v", err)
	}
	if got2.Status != domain.StatusActive || got2.UnreadCount != 1 {
		t.Fatalf("unexpected seeded fields: %+v", got2)
	}
}

func TestSeedConversations_SkipsNonEmptyTable(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()
	seedConversation(t, db, "existing", 1, 0)

	n, err := SeedConversations(ctx, db, writeSeedFile(t, "chats.json", chatSeedJSON))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 0 {
		t.Fatalf("seed must be a no-op on non-empty table, inserted %d", n)
	}
}

func TestSeedConversations_MissingFileIsNoop(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	n, err := SeedConversations(context.Background(), db, filepath.Join(t.TempDir(), "absent.json"))
	if err != nil || n != 0 {
		t.Fatalf("missing seed file must be a silent no-op, got n=%d err=%v", n, err)
	}
}

func TestSeedConversations_MalformedFileFails(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	_, err := SeedConversations(context.Background(), db, writeSeedFile(t, "bad.json", "{not json"))
	if err == nil {
		t.Fatalf("expected parse error for malformed seed")
	}
}

func TestSeedPosts_PopulatesAndDefaultsAuthor(t *testing.T) {
	db := newRepoDB(t, &domain.BlogPost{})
	ctx := context.Background()

	seed := `[
	  {"slug": "welcome", "title": {"en": "Welcome"}, "excerpt": {"en": "x"}, "content": {"en": "y"}, "date": "2026-01-01", "tags": ["news"]}
	]`
	n, err := SeedPosts(ctx, db, writeSeedFile(t, "posts.json", seed))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 1 {
		t.Fatalf("seeded %d posts; want 1", n)
	}
	got, err := GetPost(ctx, db, "welcome")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Author != "Admin" {
		t.Fatalf("author default not applied: %q", got.Author)
	}
}
