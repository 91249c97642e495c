package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// getJSON fetches path from the server and decodes the body into v.
func (c *commandContext) getJSON(ctx context.Context, path string, v any) error {
	endpoint, err := url.JoinPath(strings.TrimRight(c.server, "/"), path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("contact pulsegate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.ErrorDescription != "" {
				return fmt.Errorf("%s: %s", apiErr.Error, apiErr.ErrorDescription)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, v)
}
