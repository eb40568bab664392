package pagination

import (
	"strconv"
)

// Links follows the Next token of each page until a page has none.
// An empty page with a Next token does not end the walk. A failed page does,
// because the token for the following page was on the failed response.
func Links[T any]() Rule[T] {
	return linkRule[T]{}
}

type linkRule[T any] struct{}

func (linkRule[T]) Start() string {
	return ""
}

func (linkRule[T]) Advance(_ string, page Page[T]) (string, bool) {
	if page.Next == nil {
		return "", false
	}

	return *page.Next, true
}

func (linkRule[T]) Recover(string) (string, bool) {
	return "", false
}

// MaxID walks a newest-first timeline. The first request carries no cursor; each
// following request asks for items strictly older than the oldest seen so far
// (max_id = oldest - 1). An empty page ends the walk.
func MaxID[T any](id func(T) int64) Rule[T] {
	return maxIDRule[T]{id: id}
}

type maxIDRule[T any] struct {
	id func(T) int64
}

func (maxIDRule[T]) Start() string {
	return ""
}

func (r maxIDRule[T]) Advance(_ string, page Page[T]) (string, bool) {
	if len(page.Items) == 0 {
		return "", false
	}

	oldest := r.id(page.Items[0])
	for _, item := range page.Items[1:] {
		if v := r.id(item); v < oldest {
			oldest = v
		}
	}

	return strconv.FormatInt(oldest-1, 10), true
}

func (maxIDRule[T]) Recover(string) (string, bool) {
	return "", false
}

// Numbered walks 1-based numbered pages until an empty one. A failed page is
// skipped and the walk moves on to the next number.
func Numbered[T any]() Rule[T] {
	return numberedRule[T]{}
}

type numberedRule[T any] struct{}

func (numberedRule[T]) Start() string {
	return "1"
}

func (numberedRule[T]) Advance(cursor string, page Page[T]) (string, bool) {
	if len(page.Items) == 0 {
		return "", false
	}

	return nextNumber(cursor), true
}

func (numberedRule[T]) Recover(cursor string) (string, bool) {
	return nextNumber(cursor), true
}

func nextNumber(cursor string) string {
	n, err := strconv.Atoi(cursor)
	if err != nil {
		n = 0
	}

	return strconv.Itoa(n + 1)
}

// Offset walks an ascending listing where each request continues after the last
// item of the previous page. start is the first cursor (may be empty). An empty page
// ends the walk.
func Offset[T any](start string, key func(T) string) Rule[T] {
	return offsetRule[T]{start: start, key: key}
}

type offsetRule[T any] struct {
	key   func(T) string
	start string
}

func (r offsetRule[T]) Start() string {
	return r.start
}

func (r offsetRule[T]) Advance(_ string, page Page[T]) (string, bool) {
	if len(page.Items) == 0 {
		return "", false
	}

	return r.key(page.Items[len(page.Items)-1]), true
}

func (offsetRule[T]) Recover(string) (string, bool) {
	return "", false
}

// Next returns a pointer to token, or nil when the token is empty. Used by
// APIs that mark the last page with an empty string rather than a missing key.
func Next(token string) *string {
	if token == "" {
		return nil
	}

	return &token
}
