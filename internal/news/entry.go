// Package news holds the domain type shared by the news source, the formatter
// and the checker.
package news

import "time"

// Entry is one item from a game's news feed. It is immutable once fetched.
type Entry struct {
	ID          string // opaque, unique per news post (Steam "gid")
	Title       string
	Body        string // raw BBCode
	Author      string
	URL         string
	PublishedAt int64 // unix seconds
	FeedName    string
	FeedLabel   string
}

// Published returns PublishedAt as a time.Time.
func (e Entry) Published() time.Time { return time.Unix(e.PublishedAt, 0) }
