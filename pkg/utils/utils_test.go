package utils

import "testing"

func TestHTTPHelper_BuildHeaders(t *testing.T) {
	h := NewHTTPHelper()

	headers := h.BuildHeaders(map[string]string{"Authorization": "Token abc", "Accept": "text/csv"})

	if got := headers.Get("User-Agent"); got != UserAgent {
		t.Errorf("User-Agent = %s, want %s", got, UserAgent)
	}

	if got := headers.Get("Authorization"); got != "Token abc" {
		t.Errorf("Authorization = %s, want Token abc", got)
	}

	if got := headers.Values("Accept"); len(got) != 1 || got[0] != "text/csv" {
		t.Errorf("Accept = %v, want [text/csv]", got)
	}
}

func TestHTTPHelper_IsValidURL(t *testing.T) {
	h := NewHTTPHelper()

	tests := map[string]bool{
		"https://graph.facebook.com/v19.0/page/feed?after=x": true,
		"http://localhost:8081":                              true,
		"/relative/path":                                     false,
		"ftp://example.org":                                  false,
		"":                                                   false,
	}

	for in, want := range tests {
		if got := h.IsValidURL(in); got != want {
			t.Errorf("IsValidURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStringHelper_TruncateString(t *testing.T) {
	s := NewStringHelper()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer sentence", 10, "a longe..."},
		{"ăîșțâăîșțâăîșțâ", 6, "ăîș..."},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		if got := s.TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestStringHelper_NormalizeWhitespace(t *testing.T) {
	got := NewStringHelper().NormalizeWhitespace("  flood\n\nrelief \t now ")
	if got != "flood relief now" {
		t.Errorf("NormalizeWhitespace = %q", got)
	}
}

func TestStringHelper_SnakeUpper(t *testing.T) {
	got := NewStringHelper().SnakeUpper("twitter-secret")
	if got != "TWITTER_SECRET" {
		t.Errorf("SnakeUpper = %q, want TWITTER_SECRET", got)
	}
}
