// Package settlement talks to the external wager-pool service: a pool
// opens when a match starts and resolves when it ends. The service is
// optional; an unconfigured client is nil and the caller skips it.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	base  string
	token string
	hc    *http.Client
	log   *log.Logger
}

// New returns nil when no base URL is configured; settlement is then
// disabled and match flow proceeds without it.
func New(cfg Config, logger *log.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:  base,
		token: cfg.Token,
		hc:    &http.Client{Timeout: timeout},
		log:   logger,
	}
}

type poolOpenBody struct {
	SlotID   string   `json:"slot_id"`
	MatchID  string   `json:"match_id"`
	Entrants []string `json:"entrants"`
}

type poolResolveBody struct {
	SlotID   string `json:"slot_id"`
	WinnerID string `json:"winner_id,omitempty"`
}

// PoolOpen registers a starting match and its entrants.
func (c *Client) PoolOpen(ctx context.Context, slotID, matchID string, entrants []string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, "/v1/pools", poolOpenBody{SlotID: slotID, MatchID: matchID, Entrants: entrants})
}

// PoolResolve settles a finished match. An empty winner voids the pool
// (stakes return to the entrants).
func (c *Client) PoolResolve(ctx context.Context, slotID, matchID, winnerID string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, "/v1/pools/"+matchID+"/resolve", poolResolveBody{SlotID: slotID, WinnerID: winnerID})
}

// post sends one JSON request with up to three attempts. 4xx responses
// are terminal; everything else backs off and retries.
func (c *Client) post(ctx context.Context, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * 250 * time.Millisecond):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return fmt.Errorf("settlement %s: status %d", path, resp.StatusCode)
		default:
			lastErr = fmt.Errorf("settlement %s: status %d", path, resp.StatusCode)
		}
	}
	if c.log != nil {
		c.log.Printf("settlement %s failed after retries: %v", path, lastErr)
	}
	return lastErr
}
