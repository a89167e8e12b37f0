package chat

import "errors"

// Terminal run errors. A run either streams answer events or ends with
// exactly one of these; malformed tool arguments are recovered locally and
// never surface.
var (
	// ErrNoResponse indicates the completion service returned nothing usable.
	ErrNoResponse = errors.New("no response")

	// ErrContentModerated indicates the input was flagged by the remote
	// content policy. Not retried.
	ErrContentModerated = errors.New("content moderated")

	// ErrTokenLimitReached indicates the output was truncated by the token
	// budget. Surfaced as a distinct error, not a partial success.
	ErrTokenLimitReached = errors.New("token limit reached")

	// ErrInvalidRequest indicates the inbound conversation is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)
