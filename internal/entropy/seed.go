// Package entropy supplies seeds for runs that were not given one.
// Seeds come from random.org when an API key is configured, otherwise from
// crypto/rand. The chosen seed is always reported so a run can be replayed.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

const randomOrgURL = "https://api.random.org/json-rpc/4/invoke"

// Client draws seeds from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: randomOrgURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a non-negative seed from random.org.
func (c *Client) Seed() (int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      1,
			"min":    0,
			"max":    math.MaxInt32,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("random.org: %s", result.Error.Message)
	}
	if len(result.Result.Random.Data) == 0 {
		return 0, fmt.Errorf("random.org: empty result")
	}
	return result.Result.Random.Data[0], nil
}

// Seed returns a non-negative seed from crypto/rand.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Should never happen; fall back to the clock.
		return time.Now().UnixNano() & math.MaxInt64
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}

// SeedFromSource returns a seed from the client if available, or crypto/rand.
func SeedFromSource(c *Client) int64 {
	if c.Enabled() {
		seed, err := c.Seed()
		if err == nil {
			return seed
		}
		slog.Warn("random.org seed failed, using crypto/rand", "error", err)
	}
	return Seed()
}
