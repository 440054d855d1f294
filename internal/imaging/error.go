package imaging

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies why an image fetch failed. The kind is assigned at
// the point of failure so callers never inspect message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNotFound covers 404s that survived the retry budget. Spawn
	// attachment URLs expire, so callers usually suppress this one.
	KindNotFound
	KindRateLimited
	KindServerError
	KindTimeout
	KindNetwork
	KindCorrupt
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network error"
	case KindCorrupt:
		return "corrupt payload"
	case KindDecode:
		return "decode failure"
	default:
		return "unknown error"
	}
}

// FetchError is a classified image fetch failure.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error

	// retryAfter carries the server-requested delay on a 429.
	retryAfter time.Duration
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a fetch failure for a missing or
// expired image.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindNotFound
}
