package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/models"
)

// Post is a submission from a subreddit listing.
type Post struct {
	ID         string  `json:"id"`
	Subreddit  string  `json:"subreddit"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

// Comment is a top-level comment on a post.
type Comment struct {
	ID         string  `json:"id"`
	Subreddit  string  `json:"subreddit"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func epoch(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// HotPosts returns up to limit posts from the subreddit's hot listing.
func (c *Client) HotPosts(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var l listing
	if err := c.getJSON(ctx, "/r/"+url.PathEscape(subreddit)+"/hot", q, &l); err != nil {
		return nil, fmt.Errorf("failed to fetch hot posts for r/%s: %w", subreddit, err)
	}

	posts := make([]Post, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var p Post
		if err := json.Unmarshal(child.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// TopComments returns up to limit top-level comments of a post in "best"
// order. "more" placeholders are skipped.
func (c *Client) TopComments(ctx context.Context, postID string, limit int) ([]Comment, error) {
	q := url.Values{}
	q.Set("sort", "best")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("depth", "1")

	// The response is [post listing, comment listing].
	var ls []listing
	if err := c.getJSON(ctx, "/comments/"+url.PathEscape(postID), q, &ls); err != nil {
		return nil, fmt.Errorf("failed to fetch comments for %s: %w", postID, err)
	}
	if len(ls) < 2 {
		return nil, nil
	}

	var comments []Comment
	for _, child := range ls[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var cm Comment
		if err := json.Unmarshal(child.Data, &cm); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %w", err)
		}
		comments = append(comments, cm)
		if len(comments) == limit {
			break
		}
	}
	return comments, nil
}

// Fetch returns the hot posts of a subreddit and their best top-level
// comments as raw records. Failing to load one post's comments drops only
// those comments.
func (c *Client) Fetch(ctx context.Context, subreddit string, postLimit, commentLimit int) ([]models.RawRecord, error) {
	posts, err := c.HotPosts(ctx, subreddit, postLimit)
	if err != nil {
		return nil, err
	}

	var records []models.RawRecord
	for _, p := range posts {
		source := p.Subreddit
		if source == "" {
			source = subreddit
		}
		records = append(records, models.NewPost(p.ID, source, epoch(p.CreatedUTC), postText(p)))

		if commentLimit == 0 {
			continue
		}
		comments, err := c.TopComments(ctx, p.ID, commentLimit)
		if err != nil {
			logger.Warn("Skipping comments of post %s: %v", p.ID, err)
			continue
		}
		for _, cm := range comments {
			csource := cm.Subreddit
			if csource == "" {
				csource = source
			}
			records = append(records, models.NewComment(cm.ID, p.ID, csource, epoch(cm.CreatedUTC), cm.Body))
		}
	}

	logger.Debug("Fetched %d records from r/%s", len(records), subreddit)
	return records, nil
}

func postText(p Post) string {
	if p.Selftext == "" {
		return p.Title
	}
	return p.Title + "\n" + p.Selftext
}
