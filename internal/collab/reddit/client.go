// Package reddit implements the feed and publishing collaborators
// against the Reddit API using script-app (password grant) OAuth.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/scribeops/scribe/internal/collab"
)

const (
	defaultBaseURL = "https://oauth.reddit.com"
	defaultAuthURL = "https://www.reddit.com/api/v1/access_token"

	// Tokens last an hour; refresh a little early.
	tokenSlack = 5 * time.Minute
)

// Config holds the script-app credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string

	// BaseURL and AuthURL are overridable for tests.
	BaseURL string
	AuthURL string
}

// Client talks to the Reddit API. It implements both collab.Feed (new
// questions in a subreddit) and collab.Platform (posting a reply).
type Client struct {
	cfg        Config
	httpClient *http.Client

	// tokenMu serializes token refresh; Poll and Publish run from
	// separate engine goroutines against the same client.
	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

var (
	_ collab.Feed     = (*Client)(nil)
	_ collab.Platform = (*Client)(nil)
)

// New builds a client. UserAgent defaults to a descriptive string naming
// the bot account, per Reddit API rules.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fmt.Sprintf("scribe/1.0 (by u/%s)", cfg.Username)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Poll implements collab.Feed: recent posts in the subreddit named by
// topic, newest first, capped at limit. Posts older than since are
// dropped client-side; Reddit's listing API has no since parameter, so
// overlapping results are expected and the caller deduplicates.
func (c *Client) Poll(ctx context.Context, topic string, since time.Time, limit int) ([]collab.Item, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d", c.cfg.BaseURL, url.PathEscape(topic), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit poll: %w", err)
	}

	var listing listingResponse
	if err := c.do(req, &listing); err != nil {
		return nil, fmt.Errorf("reddit poll: %w", err)
	}

	items := make([]collab.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		postedAt := time.Unix(int64(post.CreatedUTC), 0).UTC()
		if !since.IsZero() && postedAt.Before(since) {
			continue
		}
		items = append(items, collab.Item{
			SourceItemID: post.Name,
			Topic:        topic,
			Title:        post.Title,
			Body:         post.SelfText,
			Author:       post.Author,
			URL:          post.URL,
			PostedAt:     postedAt,
		})
	}
	return items, nil
}

// Publish implements collab.Platform: posts text as a comment on the
// source item and returns the comment's fullname.
func (c *Client) Publish(ctx context.Context, sourceItemID, text string) (string, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", sourceItemID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/comment", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("reddit publish: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out commentResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("reddit publish: %w", err)
	}

	if len(out.JSON.Errors) > 0 {
		// API-level rejection (banned, thread locked, bad content) is
		// not retryable.
		return "", collab.WrapPermanent(fmt.Errorf("reddit rejected comment: %v", out.JSON.Errors))
	}

	things := out.JSON.Data.Things
	if len(things) == 0 || things[0].Data.Name == "" {
		return "", collab.WrapTransient(fmt.Errorf("reddit returned no comment reference"))
	}
	return things[0].Data.Name, nil
}

// do authenticates, sends the request, and decodes the response body,
// classifying HTTP failures as transient or permanent.
func (c *Client) do(req *http.Request, out any) error {
	token, err := c.ensureToken(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return collab.WrapTransient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return collab.WrapPermanent(fmt.Errorf("reddit auth failure: %s", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return collab.WrapTransient(fmt.Errorf("reddit: %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return collab.WrapPermanent(fmt.Errorf("reddit: %s", resp.Status))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return collab.WrapTransient(fmt.Errorf("decode reddit response: %w", err))
	}
	return nil
}

// ensureToken returns a valid access token, fetching one via the
// password grant when the cached token is missing or near expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("reddit token: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", collab.WrapTransient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", collab.WrapPermanent(fmt.Errorf("reddit credentials rejected: %s", resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		return "", collab.WrapTransient(fmt.Errorf("reddit token endpoint: %s", resp.Status))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", collab.WrapTransient(fmt.Errorf("decode token response: %w", err))
	}
	if tok.AccessToken == "" {
		return "", collab.WrapPermanent(fmt.Errorf("reddit returned empty access token"))
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Author     string  `json:"author"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
}

type commentResponse struct {
	JSON struct {
		Errors [][]string `json:"errors"`
		Data   struct {
			Things []struct {
				Data struct {
					Name string `json:"name"`
				} `json:"data"`
			} `json:"things"`
		} `json:"data"`
	} `json:"json"`
}
