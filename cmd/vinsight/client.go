package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/vinsight/internal/config"
)

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &apiClient{
		baseURL:    cfg.Server.BaseURL(),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is `vinsight serve` running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

func (c *apiClient) lookup(ctx context.Context, keyType, key string) (map[string]any, error) {
	var out map[string]any
	err := c.getJSON(ctx, "/api/v1/vehicle/"+keyType+"/"+url.PathEscape(key), &out)
	return out, err
}

func (c *apiClient) search(ctx context.Context, query string) (*searchResponse, error) {
	var out searchResponse
	if err := c.getJSON(ctx, "/api/v1/vehicle/search?q="+url.QueryEscape(query), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) refresh(ctx context.Context, id int64) (*refreshResponse, error) {
	var out refreshResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/vehicle/%d/refresh-insights", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type searchResponse struct {
	Query   string `json:"query"`
	Count   int    `json:"count"`
	Results []struct {
		ID            int64  `json:"id"`
		VIN           string `json:"vin"`
		VRM           string `json:"vrm"`
		Make          string `json:"make"`
		Model         string `json:"model"`
		Year          *int   `json:"year"`
		VehicleStatus string `json:"vehicle_status"`
	} `json:"results"`
}

type refreshResponse struct {
	Message   string `json:"message"`
	VehicleID int64  `json:"vehicle_id"`
	VRM       string `json:"vrm"`
}

// serverError is a non-2xx reply carrying the server's error envelope.
type serverError struct {
	Status int
	Detail string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var env struct {
			Detail string `json:"detail"`
		}
		detail := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &env) == nil && env.Detail != "" {
			detail = env.Detail
		}
		return &serverError{Status: resp.StatusCode, Detail: detail}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func isStatus(err error, status int) bool {
	var se *serverError
	return errors.As(err, &se) && se.Status == status
}
