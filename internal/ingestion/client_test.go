package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/grid-analyzer/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *BrokerClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewBrokerClient(&config.Config{
		BrokerBaseURL: srv.URL + "/",
		BrokerUserID:  "u-1",
		BrokerFundKey: "fk-9",
		BrokerCookie:  "session=abc; theme=dark",
		BrokerTimeout: 5 * time.Second,
	})
}

func TestBrokerClient_FetchHistory(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, historyPath, r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "u-1", r.PostForm.Get("userid"))
		assert.Equal(t, "fk-9", r.PostForm.Get("fundkey"))
		assert.Equal(t, "20240301", r.PostForm.Get("start_date"))
		assert.Equal(t, "20240331", r.PostForm.Get("end_date"))
		assert.Equal(t, "1", r.PostForm.Get("from_pc"))

		cookie, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "abc", cookie.Value)

		w.Write([]byte(`{"error_code":"0","ex_data":{"list":[]}}`))
	})

	body, err := client.FetchHistory(context.Background(), "20240301", "20240331")
	require.NoError(t, err)
	assert.JSONEq(t, `{"error_code":"0","ex_data":{"list":[]}}`, string(body))
}

func TestBrokerClient_FetchPositions(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, positionsPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "u-1", r.PostForm.Get("user_id"))
		assert.Equal(t, "fk-9", r.PostForm.Get("fund_key"))

		w.Write([]byte(`{"error_code":"0","ex_data":{"position":[{"code":"600000","name":"Pudong Bank"}]}}`))
	})

	body, err := client.FetchPositions(context.Background())
	require.NoError(t, err)

	names, err := ParsePositions(body)
	require.NoError(t, err)
	assert.Equal(t, "Pudong Bank", names["600000"])
}

func TestBrokerClient_HTTPError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.FetchHistory(context.Background(), "20240301", "20240331")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestParseCookies(t *testing.T) {
	cookies := ParseCookies(" a=1; b = two ;broken; c=x=y;")
	require.Len(t, cookies, 3)

	assert.Equal(t, "a", cookies[0].Name)
	assert.Equal(t, "1", cookies[0].Value)
	assert.Equal(t, "b", cookies[1].Name)
	assert.Equal(t, "two", cookies[1].Value)
	assert.Equal(t, "c", cookies[2].Name)
	assert.Equal(t, "x=y", cookies[2].Value)

	assert.Empty(t, ParseCookies(""))
}

func TestCurrentMonthRange(t *testing.T) {
	tests := []struct {
		now        time.Time
		start, end string
	}{
		{time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC), "20240201", "20240229"},
		{time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC), "20231201", "20231231"},
		{time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "20240401", "20240430"},
	}

	for _, tt := range tests {
		start, end := CurrentMonthRange(tt.now)
		assert.Equal(t, tt.start, start)
		assert.Equal(t, tt.end, end)
	}
}
