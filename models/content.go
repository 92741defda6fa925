package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ContentKind int

const (
	ContentAbsent ContentKind = iota
	ContentPlain
	ContentStructured
)

// Content is a notification body resolved once when the row is ingested:
// either a JSON object, plain text, or nothing at all.
type Content struct {
	Kind   ContentKind
	Text   string
	Fields map[string]any
}

// ParseContent classifies a raw content column. Only JSON objects count as
// structured; anything else that is non-blank is plain text.
func ParseContent(raw *string) Content {
	if raw == nil {
		return Content{Kind: ContentAbsent}
	}
	text := strings.TrimSpace(*raw)
	if text == "" {
		return Content{Kind: ContentAbsent}
	}
	if strings.HasPrefix(text, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(text), &fields); err == nil && fields != nil {
			return Content{Kind: ContentStructured, Text: *raw, Fields: fields}
		}
	}
	return Content{Kind: ContentPlain, Text: *raw}
}

func (c Content) IsAbsent() bool     { return c.Kind == ContentAbsent }
func (c Content) IsPlain() bool      { return c.Kind == ContentPlain }
func (c Content) IsStructured() bool { return c.Kind == ContentStructured }

// LooksLikeJSON reports plain text that starts like an object but failed to parse.
func (c Content) LooksLikeJSON() bool {
	return c.Kind == ContentPlain && strings.HasPrefix(strings.TrimSpace(c.Text), "{")
}

// Field returns a structured field as text, or "" when missing.
func (c Content) Field(name string) string {
	if c.Kind != ContentStructured {
		return ""
	}
	return stringField(c.Fields, name)
}

// Plain returns the text of plain content, or "" for other kinds.
func (c Content) Plain() string {
	if c.Kind != ContentPlain {
		return ""
	}
	return c.Text
}

func stringField(fields map[string]any, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
