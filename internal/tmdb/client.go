// Package tmdb is a minimal client for the TMDB lookups Couchlog needs:
// resolving a TVDB cross-reference id to a TMDB id, and fetching the
// episode count of a series for progress computation.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const baseURL = "https://api.themoviedb.org/3"

// SeriesDetails is the subset of TMDB series metadata Couchlog uses.
type SeriesDetails struct {
	ID       int64
	Name     string
	Episodes int
}

// Client talks to the TMDB v3 API with a static API key.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New creates a TMDB client.
func New(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tmdb: api key is required")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type findResponse struct {
	TVResults []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"tv_results"`
}

type seriesResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	NumberOfEpisodes int    `json:"number_of_episodes"`
}

// FindByTvdbID resolves a TVDB series id to a TMDB id. Returns 0 with a
// nil error when TMDB has no match for the id.
func (c *Client) FindByTvdbID(ctx context.Context, tvdbID string) (int64, error) {
	if tvdbID == "" {
		return 0, fmt.Errorf("tmdb: tvdb id is required")
	}
	var res findResponse
	if err := c.get(ctx, "/find/"+url.PathEscape(tvdbID), url.Values{"external_source": {"tvdb_id"}}, &res); err != nil {
		return 0, err
	}
	if len(res.TVResults) == 0 {
		return 0, nil
	}
	return res.TVResults[0].ID, nil
}

// Series fetches details for a TMDB series id.
func (c *Client) Series(ctx context.Context, tmdbID int64) (*SeriesDetails, error) {
	if tmdbID == 0 {
		return nil, fmt.Errorf("tmdb: series id is required")
	}
	var res seriesResponse
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", tmdbID), nil, &res); err != nil {
		return nil, err
	}
	return &SeriesDetails{ID: res.ID, Name: res.Name, Episodes: res.NumberOfEpisodes}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("tmdb: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Decode into the zero value so callers see "no match".
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb: %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tmdb: decode %s: %w", path, err)
	}
	return nil
}
