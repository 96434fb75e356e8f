// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file loads the bundled JSON seed data at process
// startup. The seed files mirror the wire shapes of the API (an array of
// Conversation objects with nested messages, and an array of BlogPost
// objects) and are only ever read, never written back.
package repo

import (
	"context"
	"encoding/json"
	"os"

	"gorm.io/gorm"

	"github.com/hkg945/edgeflow/internal/domain"
)

// SeedConversations populates the conversations table from the JSON array at
// path when the table is empty. A missing file is not an error; a present
// but unparsable file is. Seeding never runs against a non-empty table, so
// restarts with a durable DB keep their data.
func SeedConversations(ctx context.Context, db *gorm.DB, path string) (int, error) {
	n, err := CountConversations(ctx, db)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	var convs []domain.Conversation
	if err := readSeed(path, &convs); err != nil || convs == nil {
		return 0, err
	}

	inserted := 0
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range convs {
			if convs[i].Status == "" {
				convs[i].Status = domain.StatusActive
			}
			if err := tx.Create(&convs[i]).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// SeedPosts populates the blog_posts table from the JSON array at path when
// the table is empty. Same file semantics as SeedConversations.
func SeedPosts(ctx context.Context, db *gorm.DB, path string) (int, error) {
	n, err := CountPosts(ctx, db)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	var posts []domain.BlogPost
	if err := readSeed(path, &posts); err != nil || posts == nil {
		return 0, err
	}

	inserted := 0
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range posts {
			if posts[i].Author == "" {
				posts[i].Author = "Admin"
			}
			if err := tx.Create(&posts[i]).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// readSeed decodes the JSON array at path into dst. A missing or empty path
// leaves dst nil and returns no error.
func readSeed(path string, dst any) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
