package catalog

import "github.com/zeebo/errs"

var (
	// ErrMalformedEvent is a notification matching neither known shape.
	ErrMalformedEvent = errs.Class("malformed event")

	// ErrAttributeFetch is a failure reading object attributes from the blob store.
	ErrAttributeFetch = errs.Class("attribute fetch")

	// ErrStoreWrite is a failure upserting a record.
	ErrStoreWrite = errs.Class("store write")

	// ErrStoreRead is a failure querying records.
	ErrStoreRead = errs.Class("store read")

	// ErrBadRequest is a query missing or carrying invalid parameters.
	ErrBadRequest = errs.Class("bad request")
)
