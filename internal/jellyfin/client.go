// Package jellyfin is a minimal client for the parts of the Jellyfin API
// Couchlog consumes: active playback sessions and series provider ids.
package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TicksPerSecond is Jellyfin's playback position unit (100 ns ticks).
const TicksPerSecond = 10_000_000

// Session is one active playback stream as reported by the server.
type Session struct {
	ID         string
	UserID     string
	UserName   string
	NowPlaying *Item
	Position   int64 // ticks
	Paused     bool
}

// Item is the subset of a now-playing item Couchlog cares about.
type Item struct {
	ID       string
	Name     string
	Type     string // "Movie" or "Episode"
	Runtime  int64  // ticks
	SeriesID string
	Series   string
	Season   *int
	Episode  *int
	TmdbID   int64 // 0 when the server has no TMDB provider id
}

// IsMovie reports whether the item is a movie.
func (i *Item) IsMovie() bool { return i != nil && i.Type == "Movie" }

// IsEpisode reports whether the item is a series episode.
func (i *Item) IsEpisode() bool { return i != nil && i.Type == "Episode" }

// ProviderIDs are the cross-reference ids attached to a library item.
type ProviderIDs struct {
	Tmdb int64
	Tvdb string
	Imdb string
}

// Client talks to a single Jellyfin server using a static API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a Jellyfin client. baseURL is the server root, e.g.
// "http://jellyfin:8096".
func New(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("jellyfin: base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("jellyfin: api key is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// wire structs

type sessionResponse struct {
	ID             string `json:"Id"`
	UserID         string `json:"UserId"`
	UserName       string `json:"UserName"`
	NowPlayingItem *struct {
		ID                string            `json:"Id"`
		Name              string            `json:"Name"`
		Type              string            `json:"Type"`
		RunTimeTicks      int64             `json:"RunTimeTicks"`
		SeriesID          string            `json:"SeriesId"`
		SeriesName        string            `json:"SeriesName"`
		ParentIndexNumber *int              `json:"ParentIndexNumber"`
		IndexNumber       *int              `json:"IndexNumber"`
		ProviderIDs       map[string]string `json:"ProviderIds"`
	} `json:"NowPlayingItem"`
	PlayState struct {
		PositionTicks int64 `json:"PositionTicks"`
		IsPaused      bool  `json:"IsPaused"`
	} `json:"PlayState"`
}

type itemResponse struct {
	ProviderIDs map[string]string `json:"ProviderIds"`
}

// ListSessions returns the sessions currently playing something. Idle
// sessions (no now-playing item) are filtered out.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var raw []sessionResponse
	if err := c.get(ctx, "/Sessions", url.Values{"ActiveWithinSeconds": {"60"}}, &raw); err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(raw))
	for _, r := range raw {
		if r.NowPlayingItem == nil {
			continue
		}
		np := r.NowPlayingItem
		// Episode provider ids identify the episode, not the series, so
		// only movies carry a usable direct catalogue id.
		var tmdbID int64
		if np.Type == "Movie" {
			tmdbID = parseProviderID(np.ProviderIDs, "Tmdb")
		}
		sessions = append(sessions, Session{
			ID:       r.ID,
			UserID:   r.UserID,
			UserName: r.UserName,
			Position: r.PlayState.PositionTicks,
			Paused:   r.PlayState.IsPaused,
			NowPlaying: &Item{
				ID:       np.ID,
				Name:     np.Name,
				Type:     np.Type,
				Runtime:  np.RunTimeTicks,
				SeriesID: np.SeriesID,
				Series:   np.SeriesName,
				Season:   np.ParentIndexNumber,
				Episode:  np.IndexNumber,
				TmdbID:   tmdbID,
			},
		})
	}
	return sessions, nil
}

// SeriesProviderIDs fetches the cross-reference ids for a series item.
func (c *Client) SeriesProviderIDs(ctx context.Context, seriesID string) (ProviderIDs, error) {
	if seriesID == "" {
		return ProviderIDs{}, fmt.Errorf("jellyfin: series id is required")
	}
	var item itemResponse
	if err := c.get(ctx, "/Items/"+seriesID, nil, &item); err != nil {
		return ProviderIDs{}, err
	}
	return ProviderIDs{
		Tmdb: parseProviderID(item.ProviderIDs, "Tmdb"),
		Tvdb: providerID(item.ProviderIDs, "Tvdb"),
		Imdb: providerID(item.ProviderIDs, "Imdb"),
	}, nil
}

// Ping verifies the server is reachable and the API key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var info struct {
		ServerName string `json:"ServerName"`
		Version    string `json:"Version"`
	}
	return c.get(ctx, "/System/Info", nil, &info)
}

// get performs an authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("jellyfin: build request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jellyfin: %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("jellyfin: decode %s: %w", path, err)
	}
	return nil
}

// providerID returns the provider id for key, tolerating Jellyfin's
// inconsistent key casing across server versions.
func providerID(ids map[string]string, key string) string {
	if v, ok := ids[key]; ok {
		return v
	}
	for k, v := range ids {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// parseProviderID returns the numeric provider id for key, or 0.
func parseProviderID(ids map[string]string, key string) int64 {
	v := providerID(ids, key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
