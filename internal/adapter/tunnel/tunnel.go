package tunnel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jgivc/transmissionbot/internal/entity"
)

const tunnelPath = "/tunnel"

type tunnelResponse struct {
	Tunnel entity.Tunnel `json:"tunnel"`
}

// Client controls the public tunnel exposing the daemon web UI.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.With(slog.String("item", "TunnelClient")),
	}
}

func (c *Client) Start(ctx context.Context) (*entity.Tunnel, error) {
	t, err := c.do(ctx, http.MethodPost, strings.NewReader("{}"))
	if err != nil {
		return nil, err
	}

	c.log.Info("Tunnel started", slog.String("url", t.URL))

	return t, nil
}

func (c *Client) Stop(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodDelete, nil); err != nil {
		return err
	}

	c.log.Info("Tunnel stopped")

	return nil
}

func (c *Client) Status(ctx context.Context) (*entity.Tunnel, error) {
	return c.do(ctx, http.MethodGet, nil)
}

func (c *Client) do(ctx context.Context, method string, body io.Reader) (*entity.Tunnel, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+tunnelPath, body)
	if err != nil {
		return nil, fmt.Errorf("cannot create tunnel request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot %s tunnel: %w", method, err)
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("cannot %s tunnel: unexpected status %s", method, res.Status)
	}

	var tr tunnelResponse
	if err := json.NewDecoder(res.Body).Decode(&tr); err != nil {
		if err == io.EOF {
			return &entity.Tunnel{}, nil
		}

		return nil, fmt.Errorf("cannot decode tunnel response: %w", err)
	}

	return &tr.Tunnel, nil
}
