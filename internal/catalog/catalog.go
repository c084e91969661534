package catalog

import (
	"strings"
	"time"

	"github.com/turbolytics/cataloger/internal/blob"
)

/*
The catalog is a record of what has landed in a blob store.

Every record is reachable through two access paths:
  - primary:   sourceSystem / sk     ("{ingestedAt}#{objectKey}")
  - secondary: gsi1pk / gsi1sk       (container, "{ingestedAt}#{sourceSystem}#{objectKey}")

Both sort keys lead with a fixed width UTC timestamp so that byte order is
chronological order.
*/

const (
	// UnknownSourceSystem is used when the object carries no source system metadata.
	UnknownSourceSystem = "unknown"

	// SourceSystemMetadataKey is the user metadata key naming the origin of an object.
	SourceSystemMetadataKey = "sourcesystem"

	// DefaultContentType is recorded when the object has no content type.
	DefaultContentType = "application/octet-stream"

	// KeySeparator joins the parts of composite sort keys.
	KeySeparator = "#"

	// UpperSentinel terminates the upper bound of a secondary range query.
	// It must sort after KeySeparator.
	UpperSentinel = "~"

	// TimestampLayout formats ingestedAt: UTC, second precision, Z suffix.
	TimestampLayout = "2006-01-02T15:04:05Z"
)

type Status string

const (
	StatusIngested Status = "INGESTED"
)

// Record is the normalized description of one ingested object.
type Record struct {
	SourceSystem     string `json:"sourceSystem" dynamodbav:"sourceSystem" bson:"sourceSystem" db:"source_system"`
	SortKey          string `json:"sk" dynamodbav:"sk" bson:"sk" db:"sk"`
	SecondaryPartKey string `json:"gsi1pk" dynamodbav:"gsi1pk" bson:"gsi1pk" db:"gsi1pk"`
	SecondarySortKey string `json:"gsi1sk" dynamodbav:"gsi1sk" bson:"gsi1sk" db:"gsi1sk"`
	Container        string `json:"bucket" dynamodbav:"bucket" bson:"bucket" db:"bucket"`
	ObjectKey        string `json:"objectKey" dynamodbav:"objectKey" bson:"objectKey" db:"object_key"`
	Locator          string `json:"s3Uri" dynamodbav:"s3Uri" bson:"s3Uri" db:"s3_uri"`
	IngestedAt       string `json:"ingestedAt" dynamodbav:"ingestedAt" bson:"ingestedAt" db:"ingested_at"`
	SizeBytes        int64  `json:"sizeBytes" dynamodbav:"sizeBytes" bson:"sizeBytes" db:"size_bytes"`
	ETag             string `json:"etag" dynamodbav:"etag" bson:"etag" db:"etag"`
	ContentType      string `json:"contentType" dynamodbav:"contentType" bson:"contentType" db:"content_type"`
	Status           Status `json:"status" dynamodbav:"status" bson:"status" db:"status"`
}

// NewRecord derives the canonical record for an object. now is used only
// when the blob store did not report a last modified time.
func NewRecord(scheme string, attrs blob.Attributes, now time.Time) Record {
	ts := now
	if !attrs.LastModified.IsZero() {
		ts = attrs.LastModified
	}
	ingestedAt := FormatTimestamp(ts)
	sourceSystem := SourceSystemFromMetadata(attrs.Metadata)

	contentType := attrs.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	return Record{
		SourceSystem:     sourceSystem,
		SortKey:          SortKey(ingestedAt, attrs.Key),
		SecondaryPartKey: attrs.Container,
		SecondarySortKey: SecondarySortKey(ingestedAt, sourceSystem, attrs.Key),
		Container:        attrs.Container,
		ObjectKey:        attrs.Key,
		Locator:          Locator(scheme, attrs.Container, attrs.Key),
		IngestedAt:       ingestedAt,
		SizeBytes:        attrs.Size,
		ETag:             strings.Trim(attrs.ETag, `"`),
		ContentType:      contentType,
		Status:           StatusIngested,
	}
}

// FormatTimestamp renders t in UTC, truncated to the second, with a Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// SourceSystemFromMetadata finds the source system in user metadata. Keys are
// matched case-insensitively since transports canonicalize header names
// differently; an empty value counts as absent.
func SourceSystemFromMetadata(md map[string]string) string {
	for k, v := range md {
		name := strings.ToLower(k)
		name = strings.TrimPrefix(name, "x-amz-meta-")
		if name == SourceSystemMetadataKey && v != "" {
			return v
		}
	}
	return UnknownSourceSystem
}

func SortKey(ingestedAt, objectKey string) string {
	return ingestedAt + KeySeparator + objectKey
}

func SecondarySortKey(ingestedAt, sourceSystem, objectKey string) string {
	return ingestedAt + KeySeparator + sourceSystem + KeySeparator + objectKey
}

// Locator is the canonical URI of an object, e.g. s3://bucket/path/to/key.
func Locator(scheme, container, objectKey string) string {
	return scheme + "://" + container + "/" + objectKey
}
