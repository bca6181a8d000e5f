// Package v1_test contains tests for the API v1 handlers
package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webstats/internal/seeder"
	"webstats/internal/testsupport"
)

type queryResponse struct {
	Rows    []map[string]any `json:"rows"`
	Totals  map[string]any   `json:"totals"`
	Columns []string         `json:"columns"`
	Meta    map[string]any   `json:"meta"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func seedSessions(f *testsupport.Fixture) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.Session(seeder.SessionInput{Visitor: "a", StartedAt: at, Country: "US", DeviceType: "desktop", Views: testsupport.Views("/", "/pricing")})
	f.Session(seeder.SessionInput{Visitor: "b", StartedAt: at.Add(time.Hour), Country: "US", DeviceType: "mobile", Views: testsupport.Views("/")})
	f.Session(seeder.SessionInput{Visitor: "c", StartedAt: at.Add(2 * time.Hour), Country: "DE", DeviceType: "desktop", Views: testsupport.Views("/blog")})
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestQueryAction(t *testing.T) {
	f := testsupport.NewFixture(t)
	seedSessions(f)
	app := testsupport.CreateMinimalTestApp(t, f.DB, "")

	t.Run("groups sessions by country", func(t *testing.T) {
		resp, body := doJSON(t, app, "POST", "/api/v1/query", map[string]any{
			"group_by":   "country",
			"projection": []string{"country_code", "country_name", "sessions"},
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var result queryResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.Equal(t, []string{"country_code", "country_name", "sessions"}, result.Columns)
		require.Len(t, result.Rows, 2)
		assert.Equal(t, "US", result.Rows[0]["country_code"])
		assert.Equal(t, "United States", result.Rows[0]["country_name"])
		assert.Equal(t, float64(2), result.Rows[0]["sessions"])
		assert.Equal(t, float64(3), result.Totals["sessions"])
		assert.Equal(t, "sessions", result.Meta["base"])
		assert.Equal(t, "all_time", result.Meta["range"])
		assert.NotEmpty(t, result.Meta["query_id"])
	})

	t.Run("filters with operators", func(t *testing.T) {
		resp, body := doJSON(t, app, "POST", "/api/v1/query", `{
			"filters": {"device_type": {"in": ["desktop"]}, "country": {"is_not": "DE"}},
			"projection": ["sessions", "views"]
		}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var result queryResponse
		require.NoError(t, json.Unmarshal(body, &result))
		require.Len(t, result.Rows, 1)
		assert.Equal(t, float64(1), result.Rows[0]["sessions"])
		assert.Equal(t, float64(2), result.Rows[0]["views"])
	})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"group_by":`, "INVALID_REQUEST"},
		{"unknown field", `{"groupby": "country"}`, "INVALID_REQUEST"},
		{"unknown filter", `{"filters": {"planet": {"is": "mars"}}}`, "INVALID_FILTER"},
		{"unsupported operator", `{"filters": {"country": {"contains": "U"}}}`, "UNSUPPORTED_OPERATOR"},
		{"bad value", `{"filters": {"session_duration": {"gt": "long"}}}`, "SANITIZATION_FAILED"},
		{"sessions and views requirements", `{"group_by": ["session", "page"]}`, "MISSING_REQUIREMENT"},
		{"unknown group_by", `{"group_by": "planet"}`, "INVALID_GROUP_BY"},
		{"unknown projection", `{"group_by": "country", "projection": ["planet"]}`, "INVALID_PROJECTION"},
		{"bad attribution", `{"attribution": "middle_touch"}`, "INVALID_REQUEST"},
		{"bad preset", `{"date_range": {"preset": "last_century"}}`, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, "POST", "/api/v1/query", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp errorResponse
			require.NoError(t, json.Unmarshal(body, &errResp))
			assert.Equal(t, tt.code, errResp.Code)
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestQueryAPIKey(t *testing.T) {
	f := testsupport.NewFixture(t)
	seedSessions(f)
	app := testsupport.CreateMinimalTestApp(t, f.DB, "s3cret")
	body := `{"projection": ["sessions"]}`

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid key", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			resp, _ := doJSON(t, app, "POST", "/api/v1/query", body, headers)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	t.Run("health stays public", func(t *testing.T) {
		resp, _ := doJSON(t, app, "GET", "/_health", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestBatchAction(t *testing.T) {
	f := testsupport.NewFixture(t)
	seedSessions(f)
	app := testsupport.CreateMinimalTestApp(t, f.DB, "")

	t.Run("runs every query and reports errors per query", func(t *testing.T) {
		resp, body := doJSON(t, app, "POST", "/api/v1/query/batch", `{
			"queries": {
				"by_device": {"group_by": "device_type", "projection": ["device_type", "sessions"]},
				"overall": {"projection": ["visitors", "sessions"]},
				"broken": {"filters": {"planet": {"is": "mars"}}},
				"undecodable": {"limit": "ten"}
			}
		}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var batch struct {
			Results map[string]struct {
				Result *queryResponse  `json:"result"`
				Error  *errorResponse `json:"error"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(body, &batch))
		require.Len(t, batch.Results, 4)

		byDevice := batch.Results["by_device"]
		require.NotNil(t, byDevice.Result)
		assert.Nil(t, byDevice.Error)
		require.Len(t, byDevice.Result.Rows, 2)
		assert.Equal(t, "desktop", byDevice.Result.Rows[0]["device_type"])

		overall := batch.Results["overall"]
		require.NotNil(t, overall.Result)
		assert.Equal(t, float64(3), overall.Result.Rows[0]["visitors"])

		require.NotNil(t, batch.Results["broken"].Error)
		assert.Equal(t, "INVALID_FILTER", batch.Results["broken"].Error.Code)
		require.NotNil(t, batch.Results["undecodable"].Error)
		assert.Equal(t, "INVALID_REQUEST", batch.Results["undecodable"].Error.Code)
	})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"queries":`},
		{"no queries", `{"queries": {}}`},
		{"too many queries", func() string {
			queries := map[string]any{}
			for i := 0; i < 21; i++ {
				queries[string(rune('a'+i))] = map[string]any{}
			}
			data, _ := json.Marshal(map[string]any{"queries": queries})
			return string(data)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, "POST", "/api/v1/query/batch", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp errorResponse
			require.NoError(t, json.Unmarshal(body, &errResp))
			assert.Equal(t, "INVALID_REQUEST", errResp.Code)
		})
	}
}

func TestCatalogAction(t *testing.T) {
	f := testsupport.NewFixture(t)
	app := testsupport.CreateMinimalTestApp(t, f.DB, "")

	resp, body := doJSON(t, app, "GET", "/api/v1/catalog", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var catalog struct {
		Filters []struct {
			Name      string   `json:"name"`
			Type      string   `json:"type"`
			Operators []string `json:"operators"`
		} `json:"filters"`
		GroupBys []struct {
			Name       string   `json:"name"`
			Attributed []string `json:"attributed"`
		} `json:"group_bys"`
		Measures []struct {
			Name string `json:"name"`
		} `json:"measures"`
	}
	require.NoError(t, json.Unmarshal(body, &catalog))

	filters := map[string][]string{}
	for _, fd := range catalog.Filters {
		filters[fd.Name] = fd.Operators
	}
	assert.Equal(t, []string{"is", "is_not", "in", "not_in"}, filters["country"])
	assert.Contains(t, filters, "session_duration")

	var visitorAttributed []string
	for _, g := range catalog.GroupBys {
		if g.Name == "visitor" {
			visitorAttributed = g.Attributed
		}
	}
	assert.Contains(t, visitorAttributed, "country_name")
	assert.NotEmpty(t, catalog.Measures)
}

func TestHealthAction(t *testing.T) {
	f := testsupport.NewFixture(t)
	app := testsupport.CreateMinimalTestApp(t, f.DB, "")

	resp, body := doJSON(t, app, "GET", "/_health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "ok", health["db_status"])
	assert.Equal(t, "ok", health["schema_status"])
}
