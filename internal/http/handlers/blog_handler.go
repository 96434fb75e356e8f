// Blog HTTP handlers.
//
// This file exposes REST endpoints for the marketing-site blog catalogue:
//   - GET    /blog          (list, paginated, newest first)
//   - POST   /blog          (create)
//   - GET    /blog/{slug}   (read)
//   - PUT    /blog/{slug}   (update; slug renames rejected)
//   - DELETE /blog/{slug}   (delete)
//   - GET    /blog/search   (ranked snippets over localized post bodies)
//
// Posts carry localized title/excerpt/content in the site's three locales.
// The search endpoint accepts any BCP-47 locale tag and matches it to the
// nearest supported one.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/hkg945/edgeflow/internal/domain"
	"github.com/hkg945/edgeflow/internal/search"
	"github.com/hkg945/edgeflow/internal/services"
	"github.com/hkg945/edgeflow/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListPostsResponse wraps a page of posts and pagination information.
type ListPostsResponse struct {
	Posts      []domain.BlogPost `json:"posts"`
	Pagination Pagination        `json:"pagination"`
}

// SearchPostsResponse wraps ranked snippets for a blog search.
type SearchPostsResponse struct {
	Query   string           `json:"query"`
	Locale  string           `json:"locale,omitempty"`
	Results []search.Snippet `json:"results"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// siteLocales are the locales post content is authored in, in matcher
// priority order (English first as the fallback).
var siteLocales = []language.Tag{
	language.MustParse("en"),
	language.MustParse("zh-TW"),
	language.MustParse("zh-CN"),
}

var localeMatcher = language.NewMatcher(siteLocales)

// normalizeLocale maps any BCP-47 tag to the nearest supported site locale
// ("en", "zh-TW", "zh-CN"). An empty input stays empty (search all locales).
func normalizeLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "en"
	}
	_, idx, _ := localeMatcher.Match(tag)
	switch idx {
	case 1:
		return "zh-TW"
	case 2:
		return "zh-CN"
	default:
		return "en"
	}
}

// mapBlogError translates blog service errors into HTTP failures.
func mapBlogError(c *gin.Context, err error) {
	switch err {
	case services.ErrPostNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
	case services.ErrDuplicateSlug:
		fail(c, http.StatusConflict, ErrCodeConflict, "slug already exists")
	case services.ErrInvalidSlug:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slug must be lowercase kebab-case")
	case services.ErrSlugImmutable:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slug cannot be changed")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// ListPosts godoc
// @ID          listPosts
// @Summary     List blog posts (paginated)
// @Description Returns a page of posts, newest first.
// @Tags        Blog
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListPostsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /blog [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.blogSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListPostsResponse{
		Posts: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// CreatePost godoc
// @ID          createPost
// @Summary     Create a blog post
// @Description Creates a post under a new slug. Slugs are lowercase kebab-case and
// @Description act as the public URL segment.
// @Tags        Blog
// @Accept      json
// @Produce     json
//
// @Param       body  body  domain.BlogPost  true  "Post payload"
//
// @Success     201  {object}  domain.BlogPost
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /blog [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	var post domain.BlogPost
	if err := c.ShouldBindJSON(&post); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(post.Title.EN) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required")
		return
	}

	created, err := h.blogSvc.Create(c.Request.Context(), &post)
	if err != nil {
		mapBlogError(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

// GetPost godoc
// @ID          getPost
// @Summary     Fetch one blog post
// @Tags        Blog
// @Produce     json
//
// @Param       slug  path  string  true  "Post slug"  example(understanding-moving-averages)
//
// @Success     200  {object}  domain.BlogPost
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /blog/{slug} [get]
func (h *Handlers) GetPost(c *gin.Context) {
	post, err := h.blogSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		mapBlogError(c, err)
		return
	}
	ok(c, http.StatusOK, post)
}

// UpdatePost godoc
// @ID          updatePost
// @Summary     Update a blog post
// @Description Overwrites the mutable fields of the post. The slug in the payload,
// @Description when present, must match the path: renames are rejected.
// @Tags        Blog
// @Accept      json
// @Produce     json
//
// @Param       slug  path  string           true  "Post slug"
// @Param       body  body  domain.BlogPost  true  "Updated post payload"
//
// @Success     200  {object}  domain.BlogPost
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request / slug rename"
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /blog/{slug} [put]
func (h *Handlers) UpdatePost(c *gin.Context) {
	var post domain.BlogPost
	if err := c.ShouldBindJSON(&post); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	updated, err := h.blogSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("slug")), &post)
	if err != nil {
		mapBlogError(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

// DeletePost godoc
// @ID          deletePost
// @Summary     Delete a blog post
// @Tags        Blog
//
// @Param       slug  path  string  true  "Post slug"
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /blog/{slug} [delete]
func (h *Handlers) DeletePost(c *gin.Context) {
	if err := h.blogSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("slug"))); err != nil {
		mapBlogError(c, err)
		return
	}
	noContent(c)
}

// SearchPosts godoc
// @ID          searchPosts
// @Summary     Search blog posts
// @Description Ranks post paragraphs against the query. The locale parameter accepts
// @Description any BCP-47 tag and is matched to the nearest supported site locale;
// @Description omit it to search all locales.
// @Tags        Blog
// @Produce     json
//
// @Param       q       query  string  true   "Search query"               example(moving average crossover)
// @Param       locale  query  string  false  "Locale filter (BCP-47)"     example(zh-TW)
// @Param       k       query  int     false  "Maximum results"            minimum(1) maximum(20) default(5)
//
// @Success     200  {object}  handlers.SearchPostsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing query"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /blog/search [get]
func (h *Handlers) SearchPosts(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
		return
	}
	locale := normalizeLocale(c.Query("locale"))
	k := utils.AtoiDefault(c.Query("k"), 5)
	if k < 1 {
		k = 1
	}
	if k > 20 {
		k = 20
	}

	hits, err := h.blogSvc.Search(c.Request.Context(), query, locale, k)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if hits == nil {
		hits = []search.Snippet{}
	}
	ok(c, http.StatusOK, SearchPostsResponse{Query: query, Locale: locale, Results: hits})
}
