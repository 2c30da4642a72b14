package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	AuthURL = "https://www.reddit.com"
	APIURL  = "https://oauth.reddit.com"
)

// ErrNoCredentials is returned when client id, secret or user agent is missing.
var ErrNoCredentials = errors.New("reddit: missing credentials")

// Post is a submission.
type Post struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// Comment is a flattened comment.
type Comment struct {
	ID         string          `json:"id"`
	Subreddit  string          `json:"subreddit"`
	Body       string          `json:"body"`
	Author     string          `json:"author"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

// Credentials for an application-only OAuth token.
type Credentials struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
}

func (c Credentials) valid() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.UserAgent != ""
}

// Client is a minimal read-only Reddit API client.
type Client struct {
	http    *http.Client
	authURL string
	apiURL  string
	creds   Credentials

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewClient creates a Client against the public endpoints.
func NewClient(client *http.Client, creds Credentials) *Client {
	return NewClientWithBaseURLs(client, AuthURL, APIURL, creds)
}

// NewClientWithBaseURLs creates a Client with custom endpoints (for testing).
func NewClientWithBaseURLs(client *http.Client, authURL, apiURL string, creds Credentials) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{http: client, authURL: authURL, apiURL: apiURL, creds: creds, now: time.Now}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if !c.creds.valid() {
		return "", ErrNoCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token request failed: %s", tok.Error)
	}

	c.token = tok.AccessToken
	// refresh a minute early
	c.expires = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	params.Set("raw_json", "1")
	u := fmt.Sprintf("%s%s?%s", c.apiURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// Search returns up to limit newest submissions in subreddit matching query.
func (c *Client) Search(ctx context.Context, subreddit, query string, limit int) ([]Post, error) {
	var posts []Post
	after := ""
	for len(posts) < limit {
		params := url.Values{}
		params.Set("q", query)
		params.Set("sort", "new")
		params.Set("restrict_sr", "1")
		params.Set("limit", strconv.Itoa(min(100, limit-len(posts))))
		if after != "" {
			params.Set("after", after)
		}

		var l listing
		if err := c.get(ctx, "/r/"+url.PathEscape(subreddit)+"/search", params, &l); err != nil {
			return posts, err
		}
		for _, ch := range l.Data.Children {
			if ch.Kind != "t3" {
				continue
			}
			var p Post
			if err := json.Unmarshal(ch.Data, &p); err != nil {
				continue
			}
			posts = append(posts, p)
		}
		after = l.Data.After
		if after == "" || len(l.Data.Children) == 0 {
			break
		}
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// Comments returns the flattened comment tree of a submission. "more" stubs
// are skipped.
func (c *Client) Comments(ctx context.Context, subreddit, postID string) ([]Comment, error) {
	var listings []listing
	path := "/r/" + url.PathEscape(subreddit) + "/comments/" + url.PathEscape(postID)
	if err := c.get(ctx, path, url.Values{}, &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 {
		return nil, nil
	}
	var out []Comment
	flatten(listings[1].Data.Children, &out)
	return out, nil
}

func flatten(children []thing, out *[]Comment) {
	for _, ch := range children {
		if ch.Kind != "t1" {
			continue
		}
		var cm Comment
		if err := json.Unmarshal(ch.Data, &cm); err != nil {
			continue
		}
		replies := cm.Replies
		cm.Replies = nil
		*out = append(*out, cm)

		// replies is "" when empty, a listing otherwise
		if r := bytes.TrimSpace(replies); len(r) > 0 && r[0] == '{' {
			var l listing
			if err := json.Unmarshal(r, &l); err == nil {
				flatten(l.Data.Children, out)
			}
		}
	}
}
