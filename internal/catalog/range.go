package catalog

import "time"

// NormalizeBound rewrites an RFC 3339 timestamp into the stored key format so
// that fractional seconds or offsets cannot break byte ordering against
// ingestedAt. Anything else, e.g. a date prefix like "2024-01", is returned
// unchanged and acts as a plain prefix bound.
func NormalizeBound(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return FormatTimestamp(t)
}

// TimeRange returns inclusive secondary sort key bounds covering every record
// whose ingestedAt falls between start and end, whatever follows the
// timestamp in the key.
func TimeRange(start, end string) (lower, upper string) {
	return NormalizeBound(start) + KeySeparator, NormalizeBound(end) + UpperSentinel
}
