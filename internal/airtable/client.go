// Package airtable is a minimal client for the external tabular source API:
// schema discovery, paginated record listing, and single-record writes.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
)

// defaultPageSize is the record page size requested from the source.
const defaultPageSize = 100

// Client calls the tabular source API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a tabular source client.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.airtable.com"
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListTables returns the schema of one base.
func (c *Client) ListTables(ctx context.Context, baseID string) ([]Table, error) {
	endpoint := fmt.Sprintf("%s/v0/meta/bases/%s/tables", c.baseURL, baseID)

	var resp tableListResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	return resp.Tables, nil
}

// ListRecords fetches one page of records. Pass the offset from the previous
// page to continue; an empty offset starts from the beginning.
func (c *Client) ListRecords(ctx context.Context, baseID, tableID, offset string) (*RecordPage, error) {
	endpoint := fmt.Sprintf("%s/v0/%s/%s?pageSize=%d", c.baseURL, baseID, url.PathEscape(tableID), defaultPageSize)
	if offset != "" {
		endpoint += "&offset=" + url.QueryEscape(offset)
	}

	var page RecordPage
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return &page, nil
}

// CreateRecord creates one record in the external table.
func (c *Client) CreateRecord(ctx context.Context, baseID, tableID string, fields map[string]any) (*Record, error) {
	endpoint := fmt.Sprintf("%s/v0/%s/%s", c.baseURL, baseID, url.PathEscape(tableID))

	var record Record
	payload := map[string]any{"fields": fields}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, &record); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	return &record, nil
}

// UpdateRecord updates one record in the external table by id.
func (c *Client) UpdateRecord(ctx context.Context, baseID, tableID, recordID string, fields map[string]any) (*Record, error) {
	endpoint := fmt.Sprintf("%s/v0/%s/%s/%s", c.baseURL, baseID, url.PathEscape(tableID), recordID)

	var record Record
	payload := map[string]any{"fields": fields}
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, payload, &record); err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	return &record, nil
}

// doJSON sends one JSON request and decodes the JSON response.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logx.Debug("Tabular source request: %s %s", method, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tabular source api error: status %d - %s", resp.StatusCode, snippet(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// snippet trims a response body for error messages.
func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
