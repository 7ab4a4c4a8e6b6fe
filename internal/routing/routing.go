// Package routing looks up driving distances through the Mappls distance
// matrix API.
package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spigell/crewzy/internal/remote"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultTokenURL    = "https://outpost.mappls.com/api/security/oauth/token"
	defaultDistanceURL = "https://apis.mappls.com/advancedmaps/v1/distance_matrix/driving"
	userAgent          = "spigell/crewzy"
	travelMode         = "driving"
)

// ErrNoRoute is returned when the API answers without a usable distance.
var ErrNoRoute = errors.New("no route")

// Options configures the routing client.
type Options struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	DistanceURL  string
	Timeout      time.Duration
}

// Client fetches driving distances. Bearer tokens come from a client
// credentials exchange and are refreshed by the oauth2 transport.
type Client struct {
	httpClient  *http.Client
	distanceURL string
	timeout     time.Duration
	logger      *zap.Logger
	UserAgent   string
}

type distanceResponse struct {
	ResponseCode int `json:"responseCode"`
	Results      struct {
		Distances [][]float64 `json:"distances"`
		Durations [][]float64 `json:"durations"`
		Code      string      `json:"code"`
	} `json:"results"`
}

// New builds a Client. ctx scopes token fetches for the client's lifetime.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(opts.ClientID) == "" || strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, errors.New("routing client id and secret are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	distanceURL := opts.DistanceURL
	if distanceURL == "" {
		distanceURL = defaultDistanceURL
	}

	cfg := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	return &Client{
		httpClient:  cfg.Client(ctx),
		distanceURL: distanceURL,
		timeout:     opts.Timeout,
		logger:      logger,
		UserAgent:   userAgent,
	}, nil
}

// Distance returns the driving distance in kilometers from origin to
// destination. Both are eLoc tokens or "lon,lat" strings.
func (c *Client) Distance(ctx context.Context, origin, destination string) (float64, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return 0, errors.New("origin and destination are required")
	}

	q := url.Values{}
	q.Set("start_ll", origin)
	q.Set("dest_ll", destination)
	q.Set("mode", travelMode)

	resp, err := remote.Do(ctx, "routing distance", c.timeout, func(ctx context.Context) (*distanceResponse, error) {
		var out distanceResponse
		if err := c.getJSON(ctx, c.distanceURL, q, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return 0, fmt.Errorf("distance %s -> %s: %w", origin, destination, err)
	}

	if len(resp.Results.Distances) == 0 || len(resp.Results.Distances[0]) == 0 {
		return 0, fmt.Errorf("distance %s -> %s: %w", origin, destination, ErrNoRoute)
	}

	meters := resp.Results.Distances[0][0]
	if meters < 0 {
		return 0, fmt.Errorf("distance %s -> %s: %w: negative distance %v", origin, destination, ErrNoRoute, meters)
	}

	c.logger.Debug("driving distance",
		zap.String("origin", origin),
		zap.String("destination", destination),
		zap.Float64("meters", meters),
	)

	return meters / 1000, nil
}
