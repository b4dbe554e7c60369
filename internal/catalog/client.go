package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qinyiguo/DMS2.0/internal"
	"github.com/qinyiguo/DMS2.0/internal/config"
	"github.com/qinyiguo/DMS2.0/internal/util"
)

// Client talks to the upstream DMS parts-master API: scroll-paginated part
// listings behind a bearer token, rate limited and retried.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Parts    []map[string]any `json:"parts"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.PartsTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.PartsRateLimitRPS),
	}
}

func (c *Client) GetPartsScrollAll(ctx context.Context) ([]internal.PartRecord, error) {
	return c.getPartsScroll(ctx, map[string]string{})
}

// GetPartsIncremental fetches parts changed within the configured lookback
// window, in hours or days.
func (c *Client) GetPartsIncremental(ctx context.Context, mode string) ([]internal.PartRecord, error) {
	params := map[string]string{}
	switch mode {
	case "day":
		params["day"] = strconv.Itoa(c.cfg.IncrementalLookbackDay)
	case "hour":
		params["hour"] = strconv.Itoa(c.cfg.IncrementalLookbackHrs)
	default:
		return nil, fmt.Errorf("unsupported incremental mode: %s", mode)
	}
	return c.getPartsScroll(ctx, params)
}

func (c *Client) getPartsScroll(ctx context.Context, params map[string]string) ([]internal.PartRecord, error) {
	all := make([]internal.PartRecord, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "parts/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Parts {
			part, err := toPartRecord(raw)
			if err != nil {
				continue
			}
			all = append(all, part)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Parts) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.PartsAPIToken) == "" {
		return nil, errors.New("missing PARTS_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.PartsAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.PartsAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("parts api status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("parts api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("parts api unsuccessful: %s", string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("parts api request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toPartRecord(raw map[string]any) (internal.PartRecord, error) {
	partNo, _ := raw["partNo"].(string)
	partNo = strings.TrimSpace(partNo)
	if partNo == "" {
		return internal.PartRecord{}, errors.New("empty partNo")
	}
	partName, _ := raw["partName"].(string)
	partName = strings.TrimSpace(partName)
	if partName == "" {
		return internal.PartRecord{}, errors.New("empty partName")
	}

	rawJSON, _ := json.Marshal(raw)
	part := internal.PartRecord{
		PartNo:   partNo,
		PartName: partName,
		RawJSON:  string(rawJSON),
	}
	part.Unit = toStringPtr(raw["unit"])
	part.Price = toFloatPtr(raw["price"])
	part.UpdatedAt = toStringPtr(raw["updatedAt"])

	return part, nil
}

func toFloatPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	}
	return nil
}

func toStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}
