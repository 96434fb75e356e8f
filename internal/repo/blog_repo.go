// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the BlogPost
// model. Posts are keyed by slug; listings are newest-first by insertion,
// matching the original catalogue where new posts were prepended.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/hkg945/edgeflow/internal/domain"
)

// ErrDuplicate indicates a primary/unique key collision, e.g. creating a
// blog post whose slug already exists.
var ErrDuplicate = errors.New("duplicate")

// CreatePost inserts a new post. Returns ErrDuplicate when the slug is
// already taken.
func CreatePost(ctx context.Context, db *gorm.DB, p *domain.BlogPost) error {
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetPost fetches a post by slug, or ErrNotFound.
func GetPost(ctx context.Context, db *gorm.DB, slug string) (*domain.BlogPost, error) {
	var p domain.BlogPost
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts returns all posts, newest insertion first (created_at DESC,
// slug ASC tie-break).
func ListPosts(ctx context.Context, db *gorm.DB) ([]domain.BlogPost, error) {
	var out []domain.BlogPost
	err := db.WithContext(ctx).
		Order("created_at DESC, slug ASC").
		Find(&out).Error
	return out, err
}

// CountPosts returns the total number of posts.
func CountPosts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.BlogPost{}).Count(&total).Error
	return total, err
}

// ListPostsPage returns a paginated slice of posts, newest insertion first.
// The caller computes offset and limit (e.g. (page-1)*pageSize).
func ListPostsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.BlogPost, error) {
	var out []domain.BlogPost
	err := db.WithContext(ctx).
		Order("created_at DESC, slug ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdatePost overwrites the mutable fields of the post identified by slug.
// Returns ErrNotFound when the post does not exist.
func UpdatePost(ctx context.Context, db *gorm.DB, p *domain.BlogPost) error {
	res := db.WithContext(ctx).
		Model(&domain.BlogPost{}).
		Where("slug = ?", p.Slug).
		Updates(map[string]any{
			"title":   p.Title,
			"excerpt": p.Excerpt,
			"content": p.Content,
			"seo":     p.SEO,
			"date":    p.Date,
			"author":  p.Author,
			"image":   p.Image,
			"tags":    p.Tags,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeletePost removes the post identified by slug. Returns ErrNotFound when
// no row was deleted.
func DeletePost(ctx context.Context, db *gorm.DB, slug string) error {
	res := db.WithContext(ctx).Where("slug = ?", slug).Delete(&domain.BlogPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint failures across the error
// shapes the pure-Go SQLite driver produces.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
