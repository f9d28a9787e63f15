// Package model はドメインモデルを定義する。
package model

import (
	"strconv"
	"strings"
	"time"
)

// textSnippetLength は一覧表示用スニペットの最大文字数。
const textSnippetLength = 50

// Post はユーザーが投稿した記事を表す。
type Post struct {
	ID        int64
	Title     string
	Text      string
	Points    int
	CreatorID int64
	Creator   *User // INNER JOINで取得した作成者。単体取得時にも設定される
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TextSnippet は本文の先頭50文字を返す。
func (p *Post) TextSnippet() string {
	runes := []rune(p.Text)
	if len(runes) <= textSnippetLength {
		return p.Text
	}
	return string(runes[:textSnippetLength])
}

// PostPage はカーソルベースページネーションの1ページ分の結果。
type PostPage struct {
	Posts   []*Post
	HasMore bool
}

// NextCursor は最後の投稿の位置を "<エポックミリ秒>:<id>" 形式で返す。
// 同一ミリ秒の投稿がページ境界をまたいでも欠落しないよう、idを含める。
// 投稿が空の場合は空文字列を返す。
func (p *PostPage) NextCursor() string {
	if len(p.Posts) == 0 {
		return ""
	}
	last := p.Posts[len(p.Posts)-1]
	return Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.String()
}

// Cursor は投稿一覧のページ位置。
// IDが0の場合はCreatedAtより厳密に古い投稿、そうでなければ
// (CreatedAt, ID) の組で厳密に前にある投稿が次のページになる。
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// IsZero はカーソル未指定（先頭ページ）かを返す。
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero()
}

func (c Cursor) String() string {
	if c.ID == 0 {
		return FormatCursor(c.CreatedAt)
	}
	return FormatCursor(c.CreatedAt) + ":" + strconv.FormatInt(c.ID, 10)
}

// FormatCursor は時刻をエポックミリ秒の10進文字列に変換する。
// createdAt/updatedAtの表現にも使う。
func FormatCursor(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseCursor は "<エポックミリ秒>" または "<エポックミリ秒>:<id>" 形式のカーソルを読み取る。
func ParseCursor(cursor string) (Cursor, error) {
	msPart, idPart, hasID := strings.Cut(cursor, ":")

	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return Cursor{}, NewInvalidCursorError(cursor)
	}
	c := Cursor{CreatedAt: time.UnixMilli(ms)}

	if hasID {
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil || id <= 0 {
			return Cursor{}, NewInvalidCursorError(cursor)
		}
		c.ID = id
	}
	return c, nil
}
