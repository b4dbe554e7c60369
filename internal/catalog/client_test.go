package catalog

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/qinyiguo/DMS2.0/internal/config"
)

type roundTripFunc func(req *http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(rt roundTripFunc) *Client {
	cfg := config.Config{
		PartsAPIBaseURL:        "https://dms.example/api",
		PartsAPIToken:          "token-1",
		PartsRateLimitRPS:      100,
		PartsTimeoutMs:         1000,
		IncrementalLookbackHrs: 24,
		IncrementalLookbackDay: 2,
	}
	c := NewClient(cfg)
	c.httpClient = &http.Client{Transport: rt, Timeout: time.Second}
	return c
}

func TestGetPartsScrollAllPaginates(t *testing.T) {
	var calls []string
	c := newTestClient(func(req *http.Request) *http.Response {
		if got := req.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("authorization = %q", got)
		}
		calls = append(calls, req.URL.RawQuery)
		if req.URL.Query().Get("scrollId") == "" {
			return jsonResponse(200, `{"success":true,"data":{"parts":[{"partNo":"P-1","partName":"Filter"}],"scrollId":"s1"}}`)
		}
		return jsonResponse(200, `{"success":true,"data":{"parts":[],"scrollId":null}}`)
	})

	parts, err := c.GetPartsScrollAll(context.Background())
	if err != nil {
		t.Fatalf("GetPartsScrollAll: %v", err)
	}
	if len(parts) != 1 || parts[0].PartNo != "P-1" {
		t.Errorf("parts = %+v", parts)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, want 2 pages", calls)
	}
}

func TestGetPartsScrollSkipsMalformedRecords(t *testing.T) {
	c := newTestClient(func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"success":true,"data":{"parts":[{"partNo":"","partName":"x"},{"partNo":"P-2","partName":"Belt","price":42}]}}`)
	})

	parts, err := c.GetPartsScrollAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || parts[0].PartNo != "P-2" {
		t.Errorf("parts = %+v", parts)
	}
	if parts[0].Price == nil || *parts[0].Price != 42 {
		t.Errorf("price = %v", parts[0].Price)
	}
}

func TestFetchRetriesOnServerError(t *testing.T) {
	attempts := 0
	c := newTestClient(func(req *http.Request) *http.Response {
		attempts++
		if attempts < 3 {
			return jsonResponse(503, `oops`)
		}
		return jsonResponse(200, `{"success":true,"data":{"parts":[]}}`)
	})

	if _, err := c.GetPartsScrollAll(context.Background()); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	c := newTestClient(func(req *http.Request) *http.Response {
		attempts++
		return jsonResponse(401, `nope`)
	})

	if _, err := c.GetPartsScrollAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestGetPartsIncrementalParams(t *testing.T) {
	var query string
	c := newTestClient(func(req *http.Request) *http.Response {
		query = req.URL.RawQuery
		return jsonResponse(200, `{"success":true,"data":{"parts":[]}}`)
	})

	if _, err := c.GetPartsIncremental(context.Background(), "hour"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(query, "hour=24") {
		t.Errorf("query = %q, want hour=24", query)
	}

	if _, err := c.GetPartsIncremental(context.Background(), "nope"); err == nil {
		t.Fatal("unsupported mode should fail")
	}
}

func TestFetchRequiresToken(t *testing.T) {
	c := newTestClient(func(req *http.Request) *http.Response {
		t.Fatal("no request expected without token")
		return nil
	})
	c.cfg.PartsAPIToken = ""

	if _, err := c.GetPartsScrollAll(context.Background()); err == nil {
		t.Fatal("missing token should fail")
	}
}
