package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jeovahfialho/grid-analyzer/internal/config"
	"github.com/jeovahfialho/grid-analyzer/pkg/metrics"
)

const (
	historyPath   = "/stock_position/v1/stock_history_query"
	positionsPath = "/pc/asset/v1/stock_position"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// BrokerClient talks to the broker's portfolio HTTP endpoints with an
// authenticated browser session.
type BrokerClient struct {
	baseURL    string
	userID     string
	fundKey    string
	cookies    []*http.Cookie
	httpClient *http.Client
}

func NewBrokerClient(cfg *config.Config) *BrokerClient {
	timeout := cfg.BrokerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &BrokerClient{
		baseURL: strings.TrimRight(cfg.BrokerBaseURL, "/"),
		userID:  cfg.BrokerUserID,
		fundKey: cfg.BrokerFundKey,
		cookies: ParseCookies(cfg.BrokerCookie),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchHistory downloads the trade history between start and end, both
// formatted YYYYMMDD.
func (c *BrokerClient) FetchHistory(ctx context.Context, start, end string) ([]byte, error) {
	form := url.Values{}
	form.Set("userid", c.userID)
	form.Set("fundkey", c.fundKey)
	form.Set("stock_code", "")
	form.Set("stock_account", "")
	form.Set("start_date", start)
	form.Set("end_date", end)
	form.Set("from_pc", "1")

	return c.post(ctx, "history", historyPath, form)
}

// FetchPositions downloads the current holdings, which carry the
// instrument names.
func (c *BrokerClient) FetchPositions(ctx context.Context) ([]byte, error) {
	form := url.Values{}
	form.Set("userid", c.userID)
	form.Set("user_id", c.userID)
	form.Set("fund_key", c.fundKey)
	form.Set("manual_id", "")
	form.Set("rzrq_fund_key", "")

	return c.post(ctx, "positions", positionsPath, form)
}

func (c *BrokerClient) post(ctx context.Context, endpoint, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", userAgent)
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordBrokerRequest(endpoint, "error")
		return nil, fmt.Errorf("error requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.RecordBrokerRequest(endpoint, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code: %d for URL: %s", resp.StatusCode, req.URL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading %s response: %w", endpoint, err)
	}
	return body, nil
}

// ParseCookies splits a browser "k1=v1; k2=v2" cookie header. Pairs without
// a '=' are ignored.
func ParseCookies(raw string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return cookies
}

// CurrentMonthRange returns the first and last day of now's month as
// YYYYMMDD.
func CurrentMonthRange(now time.Time) (string, string) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, -1)
	return first.Format("20060102"), last.Format("20060102")
}
