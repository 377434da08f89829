package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/diaria/diaria-assistant/internal/model"
)

// Client fetches activities and reviews from the external planner API.
// Retrying and authentication refresh belong to the upstream service; this
// client only shapes and validates responses.
type Client struct {
	http *resty.Client
}

// NewClient builds a Client against the given base URL. The API key is
// optional for locally proxied planners.
func NewClient(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	if apiKey != "" {
		c.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{http: c}
}

// FetchActivities returns the planner's activity list for a calendar date
// (YYYY-MM-DD). Entries that fail boundary validation are rejected as a
// whole; a malformed payload is an external-source error, not a partial
// result.
func (c *Client) FetchActivities(ctx context.Context, date string) ([]APIActivity, error) {
	var out struct {
		Activities []APIActivity `json:"actividades"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fecha", date).
		SetResult(&out).
		Get("/api/actividades")
	if err != nil {
		return nil, fmt.Errorf("%w: fetch activities: %v", model.ErrExternalSource, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch activities: status %d", model.ErrExternalSource, resp.StatusCode())
	}
	for i := range out.Activities {
		if err := out.Activities[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: activity payload: %v", model.ErrExternalSource, err)
		}
	}
	return out.Activities, nil
}

// FetchReviews returns the per-date reviews payload keyed by collaborator.
// Callers treat a failure here as non-fatal and continue with an empty
// payload.
func (c *Client) FetchReviews(ctx context.Context, date string) (ReviewsPayload, error) {
	var out ReviewsPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fecha", date).
		SetResult(&out).
		Get("/api/revisiones")
	if err != nil {
		return nil, fmt.Errorf("%w: fetch reviews: %v", model.ErrExternalSource, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch reviews: status %d", model.ErrExternalSource, resp.StatusCode())
	}
	if out == nil {
		out = ReviewsPayload{}
	}
	return out, nil
}
