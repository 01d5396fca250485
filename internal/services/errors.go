// Package services defines the business logic for API tokens, sessions,
// transcript chunks, and summaries. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Token-related errors.
var (
	// ErrTokenNameInvalid is returned when a token name is empty after
	// trimming or exceeds the maximum allowed length.
	ErrTokenNameInvalid = errors.New("token name must be 1-100 characters")

	// ErrTokenNotFound indicates that the requested token does not exist or
	// is not accessible to the current user.
	ErrTokenNotFound = errors.New("token not found")
)

// Session-related errors.
var (
	// ErrSessionNotFound indicates that the requested session does not exist
	// or is not accessible to the current user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyTitle is returned when a session create request has a blank title.
	ErrEmptyTitle = errors.New("title is empty")

	// ErrTitleTooLong is returned when a session title exceeds the maximum
	// configured length.
	ErrTitleTooLong = errors.New("title too long")

	// ErrMissingStartTime is returned when a session create request lacks a
	// start time.
	ErrMissingStartTime = errors.New("startTime is required")

	// ErrEmptyPatch is returned when a session update request contains no
	// recognized fields.
	ErrEmptyPatch = errors.New("no updatable fields provided")
)

// Chunk-related errors.
var (
	// ErrEmptyText is returned when a chunk has no text after trimming.
	ErrEmptyText = errors.New("text is empty")

	// ErrTextTooLong is returned when a chunk's text exceeds the maximum
	// configured length.
	ErrTextTooLong = errors.New("text too long")

	// ErrMissingTimestamps is returned when a chunk lacks a start or end time.
	ErrMissingTimestamps = errors.New("startTime and endTime are required")
)

// Summary-related errors.
var (
	// ErrNoTranscript is returned when summarization is requested for a
	// session that has no transcript chunks.
	ErrNoTranscript = errors.New("session has no transcript")

	// ErrUpstreamRateLimited indicates the model gateway rejected the call
	// with a rate-limit response; callers should surface 429.
	ErrUpstreamRateLimited = errors.New("model gateway rate limited")

	// ErrUpstreamPayment indicates the model gateway rejected the call for
	// billing reasons; callers should surface 402.
	ErrUpstreamPayment = errors.New("model gateway requires payment")

	// ErrBadModelOutput indicates the model response could not be decoded
	// into the expected summary structure.
	ErrBadModelOutput = errors.New("model returned unusable output")
)
