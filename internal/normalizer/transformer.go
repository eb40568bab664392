package normalizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transformation errors.
var (
	ErrEmptyCount      = errors.New("empty count")
	ErrInvalidCount    = errors.New("invalid count")
	ErrInvalidDateTime = errors.New("unrecognized timestamp")
)

// dateLayout is the format of the derived date column.
const dateLayout = "2006-01-02"

// timestampLayouts are tried in order when deriving a date.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	time.RubyDate,
	dateLayout,
}

// Transformer converts raw platform field values into record field values.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Count parses a numeric string such as a YouTube statistic.
// Thousands separators are tolerated. The result is never a fabricated zero:
// an empty or unparsable value is an error.
func (t *Transformer) Count(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyCount
	}

	v, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCount, s)
	}

	return &v, nil
}

// Date derives the YYYY-MM-DD calendar date of a timestamp in the timestamp's own offset.
func (t *Transformer) Date(ts string) (string, error) {
	ts = strings.TrimSpace(ts)

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, ts); err == nil {
			return parsed.Format(dateLayout), nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidDateTime, ts)
}
