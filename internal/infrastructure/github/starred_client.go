package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"StarWatch/internal/domain"
	"StarWatch/internal/ports"
)

const (
	defaultAPIURL = "https://api.github.com/user/starred"
	apiVersion    = "2022-11-28"
	starAccept    = "application/vnd.github.star+json"
)

// Client pulls pages of a user's starred repositories from the GitHub API.
type Client struct {
	apiURL string
	token  string
	client *http.Client
}

var _ ports.FeedSource = (*Client)(nil)

// NewClient wires an HTTP client; apiURL defaults to the public endpoint.
func NewClient(apiURL, token string, client *http.Client) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{apiURL: apiURL, token: token, client: client}
}

// Name identifies the source inside the feed registry.
func (c *Client) Name() string {
	return "github"
}

// FetchPage requests one page of the feed, newest first. A non-empty etag is
// sent as If-None-Match so the API can answer "nothing new" cheaply.
func (c *Client) FetchPage(ctx context.Context, page, perPage int, etag string) (ports.FeedPage, error) {
	pageURL, err := buildPageURL(c.apiURL, page, perPage)
	if err != nil {
		return ports.FeedPage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ports.FeedPage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", starAccept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.FeedPage{}, fmt.Errorf("fetch starred page %d: %w", page, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return ports.FeedPage{NotModified: true}, nil
	case http.StatusUnauthorized:
		return ports.FeedPage{}, fmt.Errorf("status %s: %w", resp.Status, ports.ErrUnauthorized)
	case http.StatusForbidden:
		return ports.FeedPage{}, fmt.Errorf("status %s: %w", resp.Status, ports.ErrRateLimited)
	case http.StatusOK:
	default:
		return ports.FeedPage{}, fmt.Errorf("github returned %s", resp.Status)
	}

	var entries []starEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return ports.FeedPage{}, fmt.Errorf("decode starred page %d: %w", page, err)
	}

	result := ports.FeedPage{RawCount: len(entries), ETag: resp.Header.Get("ETag")}
	for _, entry := range entries {
		if entry.Repo.FullName == "" || entry.StarredAt.IsZero() {
			continue
		}
		result.Items = append(result.Items, domain.StarredRepo{
			FullName:    entry.Repo.FullName,
			StarredAt:   entry.StarredAt,
			CloneURL:    entry.Repo.CloneURL,
			Description: entry.Repo.Description,
			Language:    entry.Repo.Language,
		})
	}

	return result, nil
}

type starEntry struct {
	StarredAt time.Time `json:"starred_at"`
	Repo      struct {
		FullName    string `json:"full_name"`
		CloneURL    string `json:"clone_url"`
		Description string `json:"description"`
		Language    string `json:"language"`
	} `json:"repo"`
}

func buildPageURL(base string, page, perPage int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("sort", "created")
	query.Set("direction", "desc")
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
