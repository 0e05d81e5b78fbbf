package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-docreport/pkg/model"
	"github.com/benjaminschreck/go-docreport/pkg/sources"
)

const statusPage = `<h1>Status</h1>
<p><span>OtherProject:</span></p>
<ul><li>not ours</li></ul>
<p><strong>Team</strong> <span>StreamingSDK:</span></p>
<ul><li>Fixed  <em>crash</em> on start</li><li>Released 1.2</li></ul>
<p>Planned</p>
<ul><li>Latency tests</li></ul>
<ul><li>ignored third list</li></ul>`

func newFakeConfluence(t *testing.T, pages map[string]string, requested *[]string) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/wiki/rest/api/user/current", func(w http.ResponseWriter, req *http.Request) {
		userType := "known"
		if req.Header.Get("Authorization") != "Bearer good" {
			userType = "anonymous"
		}
		json.NewEncoder(w).Encode(map[string]string{"type": userType})
	})
	r.Get("/wiki/rest/api/content", func(w http.ResponseWriter, req *http.Request) {
		title := req.URL.Query().Get("title")
		assert.Equal(t, "body.storage", req.URL.Query().Get("expand"))
		*requested = append(*requested, title)

		body, ok := pages[title]
		if !ok {
			json.NewEncoder(w).Encode(map[string]interface{}{"size": 0, "results": []interface{}{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"size": 1,
			"results": []interface{}{
				map[string]interface{}{"body": map[string]interface{}{"storage": map[string]string{"value": body}}},
			},
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, token string) *Client {
	return New(Config{
		URL:          srv.URL + "/wiki",
		Token:        token,
		TitlePrefix:  "Status Report - ",
		Marker:       "StreamingSDK:",
		LookbackDays: 7,
	}, sources.NewHTTPClient(sources.ClientOptions{Logger: zerolog.Nop()}))
}

func TestParseTaskLists(t *testing.T) {
	status, err := ParseTaskLists(statusPage, "StreamingSDK:")
	require.NoError(t, err)

	assert.Equal(t, model.TaskStatus{
		Completed: []string{"Fixed crash on start", "Released 1.2"},
		Planned:   []string{"Latency tests"},
	}, status)
}

func TestParseTaskLists_Errors(t *testing.T) {
	_, err := ParseTaskLists(statusPage, "Missing:")
	assert.Error(t, err)

	_, err = ParseTaskLists(`<p><span>StreamingSDK:</span></p><ul><li>one</li></ul>`, "StreamingSDK:")
	assert.Error(t, err)
}

func TestClient_TaskStatusWalksBack(t *testing.T) {
	var requested []string
	srv := newFakeConfluence(t, map[string]string{"Status Report - 2026-10-17": statusPage}, &requested)
	c := newTestClient(srv, "good")

	status, err := c.TaskStatus(context.Background(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"Latency tests"}, status.Planned)
	assert.Equal(t, []string{
		"Status Report - 2026-10-20",
		"Status Report - 2026-10-19",
		"Status Report - 2026-10-18",
		"Status Report - 2026-10-17",
	}, requested)
}

func TestClient_StatusPageMissing(t *testing.T) {
	var requested []string
	srv := newFakeConfluence(t, nil, &requested)
	c := newTestClient(srv, "good")

	_, err := c.StatusPage(context.Background(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	assert.True(t, errors.Is(err, ErrNoStatusPage))
	assert.Len(t, requested, 8)
}

func TestClient_Validate(t *testing.T) {
	var requested []string
	srv := newFakeConfluence(t, nil, &requested)

	assert.NoError(t, newTestClient(srv, "good").Validate(context.Background()))
	assert.True(t, errors.Is(newTestClient(srv, "bad").Validate(context.Background()), ErrToken))
	assert.True(t, errors.Is(newTestClient(srv, "").Validate(context.Background()), ErrToken))
}
