// Package pagination — непрозрачные курсоры для keyset-пагинации.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidCursor = errors.New("invalid cursor")

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cursor указывает на последнюю отданную строку (по суррогатному id).
type Cursor struct {
	AfterID int64 `json:"after_id"`
}

func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor: пустая строка — начало выборки (nil, nil).
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	if c.AfterID < 0 {
		return nil, fmt.Errorf("%w: negative id", ErrInvalidCursor)
	}
	return &c, nil
}

// AfterID — id из курсора или 0 для первой страницы.
func AfterID(s string) (int64, error) {
	c, err := DecodeCursor(s)
	if err != nil || c == nil {
		return 0, err
	}
	return c.AfterID, nil
}

// Next возвращает курсор следующей страницы, если страница заполнена целиком.
func Next(got, limit int, lastID int64) string {
	if got < limit || limit <= 0 {
		return ""
	}
	s, _ := EncodeCursor(Cursor{AfterID: lastID})
	return s
}

// ClampLimit приводит limit к [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
