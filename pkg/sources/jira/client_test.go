package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-docreport/pkg/model"
	"github.com/benjaminschreck/go-docreport/pkg/sources"
)

type fakeIssue struct {
	Key    string                 `json:"key"`
	Fields map[string]interface{} `json:"fields"`
}

func issue(key, summary, created, severity string) fakeIssue {
	return fakeIssue{Key: key, Fields: map[string]interface{}{
		"summary":           summary,
		"created":           created,
		"customfield_12094": map[string]string{"value": severity},
	}}
}

func newFakeJira(t *testing.T, issues []fakeIssue) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/jira/rest/api/2/search", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer good" {
			json.NewEncoder(w).Encode(map[string]interface{}{"total": 0, "issues": []fakeIssue{}})
			return
		}
		q := req.URL.Query()
		start, _ := strconv.Atoi(q.Get("startAt"))
		max, _ := strconv.Atoi(q.Get("maxResults"))

		page := []fakeIssue{}
		if q.Get("jql") != "" {
			assert.Equal(t, "summary,created,customfield_12094", q.Get("fields"))
			for i := start; i < len(issues) && i < start+max; i++ {
				page = append(page, issues[i])
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"startAt":    start,
			"maxResults": max,
			"total":      len(issues),
			"issues":     page,
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, token string) *Client {
	return New(Config{
		URL:           srv.URL + "/jira",
		Token:         token,
		JQL:           "project = SDK",
		SeverityField: "customfield_12094",
	}, sources.NewHTTPClient(sources.ClientOptions{Logger: zerolog.Nop()}))
}

func TestClient_Issues(t *testing.T) {
	srv := newFakeJira(t, []fakeIssue{
		issue("SDK-1", "Crash on start", "2021-03-07T10:11:12.000+0000", "1 - Blocker"),
		issue("SDK-2", "Audio drift", "2026-10-01T08:00:00.000+0000", "Major"),
	})
	c := newTestClient(t, srv, "good")

	issues, err := c.Issues(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []model.Issue{
		{
			Key:      "SDK-1",
			Summary:  "Crash on start",
			Created:  time.Date(2021, 3, 7, 0, 0, 0, 0, time.UTC),
			Severity: "Blocker",
			URL:      srv.URL + "/jira/browse/SDK-1",
		},
		{
			Key:      "SDK-2",
			Summary:  "Audio drift",
			Created:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			Severity: "Major",
			URL:      srv.URL + "/jira/browse/SDK-2",
		},
	}, issues)
	assert.Equal(t, "07/Mar/21", issues[0].CreatedLabel())
}

func TestClient_IssuesPaging(t *testing.T) {
	var all []fakeIssue
	for i := 0; i < pageSize+5; i++ {
		all = append(all, issue("SDK-"+strconv.Itoa(i), "s", "2026-01-01T00:00:00.000+0000", "Minor"))
	}
	c := newTestClient(t, newFakeJira(t, all), "good")

	issues, err := c.Issues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, pageSize+5)
	assert.Equal(t, "SDK-104", issues[pageSize+4].Key)
}

func TestClient_Validate(t *testing.T) {
	srv := newFakeJira(t, []fakeIssue{issue("SDK-1", "s", "2026-01-01T00:00:00.000+0000", "Minor")})

	assert.NoError(t, newTestClient(t, srv, "good").Validate(context.Background()))
	assert.True(t, errors.Is(newTestClient(t, srv, "bad").Validate(context.Background()), ErrToken))
	assert.True(t, errors.Is(newTestClient(t, srv, "").Validate(context.Background()), ErrToken))
}

func TestLastWord(t *testing.T) {
	tests := map[string]string{
		"2 - Critical": "Critical",
		"Major":        "Major",
		"":             "",
		"  trailing  ": "trailing",
	}
	for in, want := range tests {
		assert.Equal(t, want, lastWord(in), in)
	}
}
