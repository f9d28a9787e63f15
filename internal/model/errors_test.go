package model

import (
	"errors"
	"testing"
	"time"
)

func TestAPIError_ErrorReturnsMessageOnly(t *testing.T) {
	if got := ErrNotAuthenticated.Error(); got != "not authenticated" {
		t.Errorf("Error() = %q, want %q", got, "not authenticated")
	}
}

func TestAPIError_ErrorsAs(t *testing.T) {
	var err error = NewInvalidCursorError("abc")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("expected errors.As to match *APIError")
	}
	if apiErr.Code != ErrCodeInvalidCursor {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeInvalidCursor)
	}
	if apiErr.Category != "validation" {
		t.Errorf("Category = %q, want validation", apiErr.Category)
	}
}

func TestParseCursor_RoundTrip(t *testing.T) {
	ts := time.Date(2020, 9, 16, 3, 11, 34, 123_000_000, time.UTC)

	cursor := FormatCursor(ts)
	if cursor != "1600225894123" {
		t.Fatalf("FormatCursor = %q, want %q", cursor, "1600225894123")
	}

	parsed, err := ParseCursor(cursor)
	if err != nil {
		t.Fatalf("ParseCursor returned error: %v", err)
	}
	if !parsed.CreatedAt.Equal(ts) || parsed.ID != 0 {
		t.Errorf("ParseCursor = %+v, want %v without id", parsed, ts)
	}
}

func TestParseCursor_WithID(t *testing.T) {
	parsed, err := ParseCursor("1600225894123:42")
	if err != nil {
		t.Fatalf("ParseCursor returned error: %v", err)
	}
	if parsed.CreatedAt.UnixMilli() != 1600225894123 || parsed.ID != 42 {
		t.Errorf("ParseCursor = %+v", parsed)
	}
	if parsed.String() != "1600225894123:42" {
		t.Errorf("String() = %q", parsed.String())
	}
}

func TestParseCursor_Invalid(t *testing.T) {
	for _, cursor := range []string{"2020-09-16", "1600225894123:", "1600225894123:abc", "1600225894123:0", ":5"} {
		_, err := ParseCursor(cursor)

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeInvalidCursor {
			t.Errorf("ParseCursor(%q): expected invalid cursor error, got %v", cursor, err)
		}
	}
}

func TestPostPage_NextCursor(t *testing.T) {
	empty := &PostPage{}
	if empty.NextCursor() != "" {
		t.Errorf("NextCursor of empty page = %q, want empty", empty.NextCursor())
	}

	page := &PostPage{Posts: []*Post{
		{ID: 9, CreatedAt: time.UnixMilli(1600000001000)},
		{ID: 7, CreatedAt: time.UnixMilli(1600000000000)},
	}}
	if got := page.NextCursor(); got != "1600000000000:7" {
		t.Errorf("NextCursor = %q, want %q", got, "1600000000000:7")
	}
}

func TestPost_TextSnippet(t *testing.T) {
	short := &Post{Text: "短い本文"}
	if got := short.TextSnippet(); got != "短い本文" {
		t.Errorf("TextSnippet() = %q, want unchanged text", got)
	}

	long := &Post{Text: "あいうえおかきくけこさしすせそたちつてとなにぬねのはひふへほまみむめもやゆよらりるれろわをんアイウエオカキクケコ"}
	got := []rune(long.TextSnippet())
	if len(got) != 50 {
		t.Errorf("len(TextSnippet()) = %d, want 50", len(got))
	}
}

func TestSession_Authenticated(t *testing.T) {
	var nilSession *Session
	if nilSession.Authenticated() {
		t.Error("nil session should not be authenticated")
	}
	if (&Session{ID: "s"}).Authenticated() {
		t.Error("session without user should not be authenticated")
	}
	if !(&Session{ID: "s", UserID: 7}).Authenticated() {
		t.Error("session with user should be authenticated")
	}
}
