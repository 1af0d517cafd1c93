// Package pagination implements opaque cursor tokens for keyset paging.
// A token encodes the (created_at, id) pair of the last row served; the
// next page resumes strictly before it.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Cursor marks a position in a (created_at DESC, id DESC) ordering.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(cursor Cursor) (string, error) {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	cursor := new(Cursor)
	if err := json.Unmarshal(raw, cursor); err != nil {
		return nil, err
	}
	return cursor, nil
}

// BuildCursorPageInfo inspects a result fetched with limit+1 rows: the
// extra row signals another page, and the cursor of the last served row
// becomes the next token.
func BuildCursorPageInfo[T any](rows []*T, limit int32, cursorOf func(*T) string) *PageInfo {
	if len(rows) == 0 {
		return &PageInfo{}
	}
	info := &PageInfo{}
	if len(rows) > int(limit) {
		info.HasMore = true
		rows = rows[:limit]
	}
	info.NextPageToken = cursorOf(rows[len(rows)-1])
	return info
}
