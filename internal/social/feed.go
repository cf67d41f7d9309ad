package social

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"time"
)

// Post is one normalized feed entry.
type Post struct {
	URI       string    `json:"uri"`
	Author    string    `json:"author"`
	Handle    string    `json:"handle"`
	Text      string    `json:"text"`
	Likes     int       `json:"likes"`
	Reposts   int       `json:"reposts"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolveHandle resolves a handle to its DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	query := maps.Clone(c.query)
	query.Set("handle", handle)

	url := fmt.Sprintf("%s/xrpc/com.atproto.identity.resolveHandle?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body struct {
		DID string `json:"did"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding resolve response: %w", err)
	}
	if body.DID == "" {
		return "", fmt.Errorf("empty did for handle %q", handle)
	}
	return body.DID, nil
}

// AuthorFeed retrieves up to limit posts for the given DID, newest first.
func (c *Client) AuthorFeed(ctx context.Context, did string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 25
	}
	query := maps.Clone(c.query)
	query.Set("actor", did)
	query.Set("limit", fmt.Sprintf("%d", limit))

	url := fmt.Sprintf("%s/xrpc/app.bsky.feed.getAuthorFeed?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited")
	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body feedResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding feed response: %w", err)
	}

	posts := make([]Post, 0, len(body.Feed))
	for _, item := range body.Feed {
		p := item.Post
		posts = append(posts, Post{
			URI:       p.URI,
			Author:    p.Author.DisplayName,
			Handle:    p.Author.Handle,
			Text:      p.Record.Text,
			Likes:     p.LikeCount,
			Reposts:   p.RepostCount,
			CreatedAt: p.Record.CreatedAt,
		})
	}
	return posts, nil
}

type feedResponse struct {
	Feed []struct {
		Post struct {
			URI    string `json:"uri"`
			Author struct {
				DID         string `json:"did"`
				Handle      string `json:"handle"`
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Record struct {
				Text      string    `json:"text"`
				CreatedAt time.Time `json:"createdAt"`
			} `json:"record"`
			LikeCount   int `json:"likeCount"`
			RepostCount int `json:"repostCount"`
		} `json:"post"`
	} `json:"feed"`
}
