package itests

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
	"github.com/stretchr/testify/require"

	"CrudAPI/internal/db"
)

var client = &http.Client{Timeout: 5 * time.Second}

// call performs one request and decodes the JSON response, if any.
func call(t *testing.T, method, path string, body any) (int, any) {
	t.Helper()
	if testBaseURL == "" {
		t.Fatal("bootstrap not ready: base URL missing")
	}
	return callAt(t, testBaseURL, method, path, body)
}

// callAt is call against another server.
func callAt(t *testing.T, baseURL, method, path string, body any) (int, any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, baseURL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return resp.StatusCode, nil
	}
	var out any
	require.NoError(t, json.Unmarshal(raw, &out), "body=%s", raw)
	return resp.StatusCode, out
}

func listPath(collection string, params map[string]string) string {
	v := url.Values{}
	for k, s := range params {
		v.Set(k, s)
	}
	if len(v) == 0 {
		return "/" + collection
	}
	return "/" + collection + "?" + v.Encode()
}

func asList(t *testing.T, v any) []map[string]any {
	t.Helper()
	items, ok := v.([]any)
	require.True(t, ok, "expected a JSON list, got %T: %v", v, v)
	out := make([]map[string]any, len(items))
	for i, it := range items {
		out[i] = asObject(t, it)
	}
	return out
}

func asObject(t *testing.T, v any) map[string]any {
	t.Helper()
	obj, ok := v.(map[string]any)
	require.True(t, ok, "expected a JSON object, got %T: %v", v, v)
	return obj
}

func names(items []map[string]any) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = cast.ToString(it["name"])
	}
	return out
}

// idOf reads a seeded row id straight from the database.
func idOf(t *testing.T, table, name string) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var id int64
	err := db.Pool.QueryRow(ctx, `SELECT id FROM `+quoteIdent(table)+` WHERE name = $1`, name).Scan(&id)
	require.NoError(t, err, "%s %q", table, name)
	return id
}
