package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Kind classifies attribute fetch failures.
type Kind string

const (
	KindNotFound     Kind = "NotFound"
	KindAccessDenied Kind = "AccessDenied"
	KindTransient    Kind = "Transient"
)

// Attributes are the technical and user supplied properties of one object.
type Attributes struct {
	Container    string
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Fetcher reads object attributes without reading the object body.
type Fetcher interface {
	Head(ctx context.Context, container, key string) (Attributes, error)

	// Scheme is the URI scheme of locators pointing into this store.
	Scheme() string
}

// Writer stores an object along with its user metadata.
type Writer interface {
	Put(ctx context.Context, container, key string, body io.Reader, contentType string, metadata map[string]string) error
}

type Repository interface {
	Fetcher
	Writer
}

type Error struct {
	Kind      Kind
	Container string
	Key       string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s/%s: %v", e.Kind, e.Container, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first blob Error in err's chain, or
// KindTransient when there is none.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindTransient
}
