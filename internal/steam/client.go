// Package steam fetches news entries from the Steam Web API
// (ISteamNews/GetNewsForApp).
package steam

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"steamwatch/internal/apperr"
	"steamwatch/internal/httpx"
	"steamwatch/internal/news"
	"steamwatch/pkg/logx"
)

const DefaultBaseURL = "https://api.steampowered.com"

type Client struct {
	http    *httpx.Client
	baseURL string
	count   int
	log     logx.Logger
}

// New returns a news client. count is passed to the API as the number of
// items to return; only the first one is consumed.
func New(hc *httpx.Client, baseURL string, count int, log logx.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if count <= 0 {
		count = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{http: hc, baseURL: baseURL, count: count, log: log}
}

type newsResponse struct {
	AppNews *struct {
		AppID     int        `json:"appid"`
		NewsItems []newsItem `json:"newsitems"`
		Count     int        `json:"count"`
	} `json:"appnews"`
}

type newsItem struct {
	GID       string `json:"gid"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Author    string `json:"author"`
	Contents  string `json:"contents"`
	FeedLabel string `json:"feedlabel"`
	Date      int64  `json:"date"`
	FeedName  string `json:"feedname"`
}

// Latest returns the most recent news entry for appID.
func (c *Client) Latest(ctx context.Context, appID string) (news.Entry, error) {
	q := url.Values{}
	q.Set("appid", appID)
	q.Set("count", strconv.Itoa(c.count))
	u := c.baseURL + "/ISteamNews/GetNewsForApp/v2/?" + q.Encode()

	var resp newsResponse
	if err := c.http.GetJSON(ctx, "fetch news", u, nil, &resp); err != nil {
		return news.Entry{}, err
	}
	if resp.AppNews == nil {
		return news.Entry{}, apperr.Missingf("news feed", "appnews object absent")
	}
	if len(resp.AppNews.NewsItems) == 0 {
		return news.Entry{}, apperr.Missingf("news feed", "no news items for app %s", appID)
	}

	it := resp.AppNews.NewsItems[0]
	if strings.TrimSpace(it.GID) == "" {
		return news.Entry{}, apperr.Missingf("news feed", "latest item has no gid")
	}

	e := news.Entry{
		ID:          it.GID,
		Title:       strings.TrimSpace(it.Title),
		Body:        strings.TrimSpace(it.Contents),
		Author:      strings.TrimSpace(it.Author),
		URL:         strings.TrimSpace(it.URL),
		PublishedAt: it.Date,
		FeedName:    it.FeedName,
		FeedLabel:   it.FeedLabel,
	}
	c.log.Debug("latest news fetched", logx.String("app_id", appID), logx.String("gid", e.ID), logx.String("feed", e.FeedName))
	return e, nil
}
