// Package services defines the business logic for conversations and blog
// posts. This file centralizes common service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Conversation-related errors.
var (
	// ErrConversationNotFound indicates that the requested conversation
	// (session id) has never been seen by the store.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptySessionID is returned when an operation is attempted without
	// a session identifier.
	ErrEmptySessionID = errors.New("session id is empty")

	// ErrEmptyContent is returned when a message body is empty after
	// trimming whitespace.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrContentTooLong is returned when a message body exceeds the
	// configured maximum rune length.
	ErrContentTooLong = errors.New("message content too long")

	// ErrInvalidRole is returned when a message carries a role other than
	// "user" or "admin".
	ErrInvalidRole = errors.New("invalid message role")

	// ErrAdminInitiate is returned when an admin reply targets a session id
	// with no existing conversation. Only visitors open conversations.
	ErrAdminInitiate = errors.New("admin cannot initiate a conversation")
)

// Blog-related errors.
var (
	// ErrPostNotFound indicates that no blog post exists under the slug.
	ErrPostNotFound = errors.New("post not found")

	// ErrDuplicateSlug is returned when creating a post whose slug is
	// already taken.
	ErrDuplicateSlug = errors.New("slug already exists")

	// ErrSlugImmutable is returned when an update attempts to rename a
	// post's slug. Slugs are public URLs and never change.
	ErrSlugImmutable = errors.New("slug cannot be changed")

	// ErrInvalidSlug is returned when a slug is empty or not lowercase
	// kebab-case.
	ErrInvalidSlug = errors.New("invalid slug")
)
