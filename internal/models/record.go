// Package models defines the core domain entities: scraped records, scrape runs, and incidence reports.
package models

import (
	"errors"
	"fmt"
	"time"
)

// RecordKind distinguishes posts from comments.
type RecordKind string

const (
	KindPost    RecordKind = "post"
	KindComment RecordKind = "comment"
)

// ParseKind accepts the snapshot spelling of a record kind.
func ParseKind(s string) (RecordKind, error) {
	switch RecordKind(s) {
	case KindPost, KindComment:
		return RecordKind(s), nil
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// RawRecord is one scraped post or comment.
// For posts RecordID equals ParentPostID; for comments RecordID is the comment id.
type RawRecord struct {
	RecordID     string     `json:"record_id"`
	ParentPostID string     `json:"post_id"`
	Source       string     `json:"source"`
	Kind         RecordKind `json:"kind"`
	Timestamp    time.Time  `json:"timestamp"`
	Text         string     `json:"text,omitempty"`
	Tickers      []string   `json:"tickers,omitempty"`
}

// CommentID returns the comment id, or "" for posts.
func (r *RawRecord) CommentID() string {
	if r.Kind == KindComment {
		return r.RecordID
	}
	return ""
}

// DedupKey is the identity used to collapse repeated records: comments by
// their own id, posts by their post id. Kinds never collide.
func (r *RawRecord) DedupKey() string {
	if r.Kind == KindComment {
		return string(KindComment) + ":" + r.RecordID
	}
	return string(KindPost) + ":" + r.ParentPostID
}

// Validate checks record field constraints.
func (r *RawRecord) Validate() error {
	if r.ParentPostID == "" {
		return errors.New("post ID must not be empty")
	}
	switch r.Kind {
	case KindPost:
		if r.RecordID != "" && r.RecordID != r.ParentPostID {
			return errors.New("post record ID must equal its post ID")
		}
	case KindComment:
		if r.RecordID == "" {
			return errors.New("comment ID must not be empty")
		}
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	if r.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	return nil
}

// NewPost builds a post record.
func NewPost(postID, source string, ts time.Time, text string) RawRecord {
	return RawRecord{
		RecordID:     postID,
		ParentPostID: postID,
		Source:       source,
		Kind:         KindPost,
		Timestamp:    ts.UTC(),
		Text:         text,
	}
}

// NewComment builds a comment record on postID.
func NewComment(commentID, postID, source string, ts time.Time, text string) RawRecord {
	return RawRecord{
		RecordID:     commentID,
		ParentPostID: postID,
		Source:       source,
		Kind:         KindComment,
		Timestamp:    ts.UTC(),
		Text:         text,
	}
}
