package event

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/turbolytics/cataloger/internal/catalog"
)

// Kind identifies which notification transport produced a payload.
type Kind string

const (
	KindS3Notification Kind = "s3-notification"
	KindEventBridge    Kind = "eventbridge"
)

// Target is one object referenced by a notification.
type Target struct {
	Container string
	ObjectKey string
}

// EventBridgeEvent is an "Object Created" event delivered through EventBridge.
type EventBridgeEvent struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	DetailType string            `json:"detail-type"`
	Detail     EventBridgeDetail `json:"detail"`
}

type EventBridgeDetail struct {
	Bucket struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key  string `json:"key"`
		Size int64  `json:"size"`
		ETag string `json:"etag"`
	} `json:"object"`
}

// Notification holds exactly one of its variants, selected by Kind.
type Notification struct {
	Kind        Kind
	S3          *events.S3Event
	EventBridge *EventBridgeEvent
}

type probe struct {
	Records json.RawMessage `json:"Records"`
	Detail  json.RawMessage `json:"detail"`
}

// Parse detects the shape of raw. A non empty Records list takes precedence
// over a detail object. Payloads of neither shape return ErrMalformedEvent.
func Parse(raw []byte) (Notification, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return Notification{}, catalog.ErrMalformedEvent.Wrap(err)
	}

	if isNonEmptyList(p.Records) {
		var e events.S3Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return Notification{}, catalog.ErrMalformedEvent.Wrap(err)
		}
		return Notification{Kind: KindS3Notification, S3: &e}, nil
	}

	if isObject(p.Detail) {
		var e EventBridgeEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return Notification{}, catalog.ErrMalformedEvent.Wrap(err)
		}
		return Notification{Kind: KindEventBridge, EventBridge: &e}, nil
	}

	return Notification{}, catalog.ErrMalformedEvent.New("neither Records nor detail present")
}

// Targets returns the distinct objects referenced by n, in order of first
// appearance. Keys are decoded; entries lacking a container or key are skipped.
func (n Notification) Targets() []Target {
	var targets []Target
	seen := make(map[Target]struct{})

	add := func(container, key string) {
		if container == "" || key == "" {
			return
		}
		t := Target{Container: container, ObjectKey: DecodeKey(key)}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}

	switch n.Kind {
	case KindS3Notification:
		for _, r := range n.S3.Records {
			add(r.S3.Bucket.Name, r.S3.Object.Key)
		}
	case KindEventBridge:
		add(n.EventBridge.Detail.Bucket.Name, n.EventBridge.Detail.Object.Key)
	}
	return targets
}

// DecodeKey reverses the form encoding notification transports apply to
// object keys: "+" becomes a space and %XX escapes are decoded. Malformed
// escapes are kept verbatim while the rest of the key is still decoded.
func DecodeKey(key string) string {
	key = strings.ReplaceAll(key, "+", " ")
	if decoded, err := url.PathUnescape(key); err == nil {
		return decoded
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '%' && i+2 < len(key) && isHex(key[i+1]) && isHex(key[i+2]) {
			b.WriteByte(unhex(key[i+1])<<4 | unhex(key[i+2]))
			i += 2
			continue
		}
		b.WriteByte(key[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

func isNonEmptyList(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	return len(items) > 0
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
