// Package services – BlogService
//
// This file implements BlogService, the application-level component that owns
// the blog catalogue: slug validation, create/update/delete with the
// slug-immutability rule, paginated listings, and the in-memory search index
// over post bodies. The index is immutable once built; every successful write
// rebuilds it and swaps the reference under a lock, so reads never observe a
// half-built index.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the post slug and pagination/search parameters where applicable.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/hkg945/edgeflow/internal/domain"
	"github.com/hkg945/edgeflow/internal/repo"
	"github.com/hkg945/edgeflow/internal/search"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostRepo defines the repository contract required by BlogService.
type PostRepo interface {
	// CreatePost inserts a post; repo.ErrDuplicate on slug collision.
	CreatePost(ctx context.Context, db *gorm.DB, p *domain.BlogPost) error

	// GetPost fetches a post by slug.
	GetPost(ctx context.Context, db *gorm.DB, slug string) (*domain.BlogPost, error)

	// ListPosts returns all posts, newest insertion first.
	ListPosts(ctx context.Context, db *gorm.DB) ([]domain.BlogPost, error)

	// ListPostsPage returns a page of posts, newest insertion first.
	ListPostsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.BlogPost, error)

	// CountPosts returns the total number of posts for pagination.
	CountPosts(ctx context.Context, db *gorm.DB) (int64, error)

	// UpdatePost overwrites the mutable fields of an existing post.
	UpdatePost(ctx context.Context, db *gorm.DB, p *domain.BlogPost) error

	// DeletePost removes a post by slug.
	DeletePost(ctx context.Context, db *gorm.DB, slug string) error
}

// BlogService provides CRUD and search over the blog catalogue.
type BlogService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the post repository used by this service.
	Repo PostRepo

	// DefaultAuthor is applied when a new post carries no author.
	DefaultAuthor string

	mu  sync.RWMutex
	idx search.Index
}

// NewBlogService constructs a BlogService with defaults matching the site.
func NewBlogService(db *gorm.DB, r PostRepo) *BlogService {
	return &BlogService{
		DB:            db,
		Repo:          r,
		DefaultAuthor: "Admin",
	}
}

// slugRE accepts lowercase kebab-case: letters/digits separated by single
// hyphens.
var slugRE = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// postLocales are the three locales a post body may carry.
var postLocales = []string{"en", "zh-TW", "zh-CN"}

// Create validates and inserts a new post, then rebuilds the search index.
func (s *BlogService) Create(ctx context.Context, p *domain.BlogPost) (*domain.BlogPost, error) {
	tr := otel.Tracer("services/BlogService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("post.slug", p.Slug)),
	)
	defer span.End()

	p.Slug = strings.TrimSpace(p.Slug)
	if !slugRE.MatchString(p.Slug) {
		return nil, ErrInvalidSlug
	}
	if strings.TrimSpace(p.Author) == "" {
		p.Author = s.DefaultAuthor
	}
	if p.Tags == nil {
		p.Tags = domain.StringList{}
	}

	if err := s.Repo.CreatePost(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateSlug
		}
		return nil, err
	}
	if err := s.Reindex(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Get fetches one post by slug.
func (s *BlogService) Get(ctx context.Context, slug string) (*domain.BlogPost, error) {
	tr := otel.Tracer("services/BlogService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("post.slug", slug)),
	)
	defer span.End()

	p, err := s.Repo.GetPost(ctx, s.DB, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns all posts, newest insertion first.
// Prefer ListPage for scalability on large catalogues.
func (s *BlogService) List(ctx context.Context) ([]domain.BlogPost, error) {
	tr := otel.Tracer("services/BlogService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return s.Repo.ListPosts(ctx, s.DB)
}

// ListPage returns a page of posts (paginated, newest insertion first).
// It applies defaults for invalid page/pageSize and returns the total count.
func (s *BlogService) ListPage(ctx context.Context, page, pageSize int) ([]domain.BlogPost, int64, error) {
	tr := otel.Tracer("services/BlogService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountPosts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.BlogPost{}, 0, nil
	}

	items, err := s.Repo.ListPostsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Update overwrites the mutable fields of the post at slug. Renaming the slug
// is rejected; the incoming payload either omits the slug or repeats it.
func (s *BlogService) Update(ctx context.Context, slug string, p *domain.BlogPost) (*domain.BlogPost, error) {
	tr := otel.Tracer("services/BlogService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("post.slug", slug)),
	)
	defer span.End()

	slug = strings.TrimSpace(slug)
	if !slugRE.MatchString(slug) {
		return nil, ErrInvalidSlug
	}
	if incoming := strings.TrimSpace(p.Slug); incoming != "" && incoming != slug {
		return nil, ErrSlugImmutable
	}
	p.Slug = slug
	if strings.TrimSpace(p.Author) == "" {
		p.Author = s.DefaultAuthor
	}
	if p.Tags == nil {
		p.Tags = domain.StringList{}
	}

	if err := s.Repo.UpdatePost(ctx, s.DB, p); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if err := s.Reindex(ctx); err != nil {
		return nil, err
	}
	return s.Repo.GetPost(ctx, s.DB, slug)
}

// Delete removes the post at slug and rebuilds the search index.
func (s *BlogService) Delete(ctx context.Context, slug string) error {
	tr := otel.Tracer("services/BlogService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("post.slug", slug)),
	)
	defer span.End()

	if err := s.Repo.DeletePost(ctx, s.DB, slug); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	return s.Reindex(ctx)
}

// Search ranks post paragraphs against the query, optionally restricted to
// one locale. The index is built lazily on first use.
func (s *BlogService) Search(ctx context.Context, query, locale string, k int) ([]search.Snippet, error) {
	tr := otel.Tracer("services/BlogService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", query),
			attribute.String("locale", locale),
			attribute.Int("k", k),
		),
	)
	defer span.End()

	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()

	if idx == nil {
		if err := s.Reindex(ctx); err != nil {
			return nil, err
		}
		s.mu.RLock()
		idx = s.idx
		s.mu.RUnlock()
	}
	return idx.Search(query, locale, k), nil
}

// Reindex rebuilds the search index from the full catalogue and swaps it in.
func (s *BlogService) Reindex(ctx context.Context) error {
	posts, err := s.Repo.ListPosts(ctx, s.DB)
	if err != nil {
		return err
	}

	docs := make([]search.Document, 0, len(posts)*len(postLocales))
	for i := range posts {
		p := &posts[i]
		for _, loc := range postLocales {
			body := localized(p.Content, loc)
			title := localized(p.Title, loc)
			if body == "" && title == "" {
				continue
			}
			docs = append(docs, search.Document{
				Slug:   p.Slug,
				Locale: loc,
				Title:  title,
				Body:   body,
			})
		}
	}

	idx := search.NewIndex(docs)
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
	return nil
}

// localized returns the exact translation for loc, without the English
// fallback LocalizedText.Get applies: fallback copies would index the same
// English paragraph under three locales.
func localized(t domain.LocalizedText, loc string) string {
	switch loc {
	case "zh-TW":
		return t.ZhTW
	case "zh-CN":
		return t.ZhCN
	default:
		return t.EN
	}
}
