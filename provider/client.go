package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bicho/models"

	log "github.com/sirupsen/logrus"
)

const (
	housesPath  = "/deu-no-poste"
	archivePath = "/wp-content/themes/os-bicho365-child/ajax/lottery-results-archive.php"

	// drawsPerDay is how many archive rows are requested per day of history
	drawsPerDay = 100

	// MaxResponseBytes bounds every body read from the provider
	MaxResponseBytes = 16 << 20
)

// Client fetches the house list and draw snapshots from the results provider
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewClient creates a provider client. If client is nil, a default client
// with a 30s timeout is used.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		now:     time.Now,
	}
}

// FetchHouses downloads the results page and lists the houses of its selector
func (c *Client) FetchHouses(ctx context.Context) ([]models.House, error) {
	body, err := c.get(ctx, c.baseURL+housesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch house list: %w", err)
	}

	houses, err := ParseHouses(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse house list: %w", err)
	}

	log.WithField("houses", len(houses)).Debug("Fetched house list from provider")
	return houses, nil
}

// FetchSnapshot downloads the archive of a lottery covering the last days
func (c *Client) FetchSnapshot(ctx context.Context, lottery string, days int) (*models.Snapshot, error) {
	if days <= 0 {
		return nil, models.ErrEmptyRequest
	}

	body, err := c.get(ctx, c.ArchiveURL(lottery, days))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	log.WithFields(log.Fields{
		"lottery": lottery,
		"days":    days,
		"entries": snapshot.EntryCount(),
	}).Debug("Fetched snapshot from provider")

	return &snapshot, nil
}

// RequestedEntries is the archive page size asked for when fetching days of history
func (c *Client) RequestedEntries(days int) int {
	return drawsPerDay * days
}

// ArchiveURL builds the archive request for the last days of a lottery
func (c *Client) ArchiveURL(lottery string, days int) string {
	query := url.Values{}
	query.Set("wp_site_id", "1")
	query.Set("wp_post_id", "323")
	query.Set("data[fields][lottery]", lottery)
	query.Set("data[fields][draw_type]", "")
	query.Set("data[fields][datetime]", c.now().UTC().Format("2006-01-02"))
	query.Add("data[display][]", strconv.Itoa(c.RequestedEntries(days)))
	query.Add("data[display][]", "10")

	return c.baseURL + archivePath + "?" + query.Encode()
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", req.URL.Path, MaxResponseBytes)
	}

	return body, nil
}
