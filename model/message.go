package model

import (
	"sort"
	"strings"
	"time"
)

type ChangeKind string

const (
	Added    ChangeKind = "added"
	Modified ChangeKind = "modified"
	Removed  ChangeKind = "removed"
)

// content:
// text, image(data uri). No edit, no delete.

// Message is one document of the shared message collection.
type Message struct {
	ID          string     `json:"id"`                    // remote assigned.
	Text        string     `json:"text"`                  // may be empty when ImageData is set.
	ImageData   string     `json:"imageData,omitempty"`   // data:<mime>;base64,<...>
	SenderID    string     `json:"senderId"`              // account email.
	SenderName  string     `json:"senderName,omitempty"`  // profile snapshot at send time.
	SenderPhoto string     `json:"senderPhoto,omitempty"` // profile snapshot at send time.
	SenderColor string     `json:"senderColor,omitempty"` // profile snapshot at send time.
	CreatedAt   *time.Time `json:"createdAt"`             // server timestamp, nil while pending.
}

// Pending reports whether the server timestamp has not arrived yet.
func (m *Message) Pending() bool {
	return m.CreatedAt == nil
}

// HasContent reports whether m carries text (after trimming) or an image.
func (m *Message) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || m.ImageData != ""
}

func (m *Message) Clone() *Message {
	out := *m
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		out.CreatedAt = &t
	}
	return &out
}

// Change is one classified document change of a snapshot.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Message *Message   `json:"message"`
}

// Less orders by created time asc, pending messages last, ties by id.
func Less(a, b *Message) bool {
	switch {
	case a.CreatedAt == nil && b.CreatedAt == nil:
		return a.ID < b.ID
	case a.CreatedAt == nil:
		return false
	case b.CreatedAt == nil:
		return true
	case a.CreatedAt.Equal(*b.CreatedAt):
		return a.ID < b.ID
	default:
		return a.CreatedAt.Before(*b.CreatedAt)
	}
}

// SortMessages sorts the slice in place by `Less`.
func SortMessages(slice []*Message) {
	sort.SliceStable(slice, func(i, j int) bool {
		return Less(slice[i], slice[j])
	})
}

// CloneMessages deep copies and sorts the given messages, the input is left untouched.
func CloneMessages(slice []*Message) []*Message {
	out := make([]*Message, 0, len(slice))
	for _, m := range slice {
		out = append(out, m.Clone())
	}
	SortMessages(out)
	return out
}
