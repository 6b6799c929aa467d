package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gitcg/gitcg-server-go/internal/metrics"
)

func newTestHTTP(t *testing.T, opts ManagerOptions, hash string) (*Manager, *httptest.Server) {
	t.Helper()
	mgr := newTestManager(t, opts)
	srv := httptest.NewServer(NewHTTPHandler(HTTPOptions{
		Manager:           mgr,
		Metrics:           opts.Metrics,
		AdminPasswordHash: hash,
		Logger:            zaptest.NewLogger(t),
	}))
	t.Cleanup(func() {
		srv.Close()
		shutdown(t, mgr)
	})
	return mgr, srv
}

func do(t *testing.T, method, url, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHTTPMatchEndpoints(t *testing.T) {
	_, srv := newTestHTTP(t, ManagerOptions{}, "")

	resp, body := do(t, http.MethodPost, srv.URL+"/matches", `{"decks":["mondstadt","liyue"]}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created MatchInfo
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StatusWaiting, created.Status)

	resp, body = do(t, http.MethodGet, srv.URL+"/matches/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got MatchInfo
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, [2]string{"mondstadt", "liyue"}, got.Decks)

	resp, body = do(t, http.MethodGet, srv.URL+"/matches", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []MatchInfo
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "unknown match", method: http.MethodGet, path: "/matches/nope", want: http.StatusNotFound},
		{name: "unknown deck", method: http.MethodPost, path: "/matches", body: `{"decks":["mondstadt","inazuma"]}`, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/matches", body: `{"decks":["mondstadt","liyue"],"mode":"ranked"}`, want: http.StatusBadRequest},
		{name: "bad seat", method: http.MethodGet, path: "/matches/" + created.ID + "/ws?seat=2", want: http.StatusBadRequest},
		{name: "play unknown match", method: http.MethodGet, path: "/matches/nope/ws?seat=0", want: http.StatusNotFound},
		{name: "no persistence", method: http.MethodGet, path: "/matches/nope/replay", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body, nil)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}
}

func TestHTTPPlayRejectsBotSeat(t *testing.T) {
	mgr, srv := newTestHTTP(t, ManagerOptions{}, "")
	match, err := mgr.CreateMatch(MatchRequest{
		Decks: [2]string{"mondstadt", "liyue"},
		Bots:  [2]bool{false, true},
	})
	require.NoError(t, err)

	resp, _ := do(t, http.MethodGet, srv.URL+"/matches/"+match.ID+"/ws?seat=1", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHTTPAbortRequiresAdmin(t *testing.T) {
	hash, err := HashAdminPassword("hunter2")
	require.NoError(t, err)
	mgr, srv := newTestHTTP(t, ManagerOptions{}, hash)

	match, err := mgr.CreateMatch(MatchRequest{Decks: [2]string{"sumeru", "liyue"}})
	require.NoError(t, err)
	url := srv.URL + "/matches/" + match.ID

	resp, _ := do(t, http.MethodDelete, url, "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, url, "", http.Header{"X-Admin-Password": {"wrong"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, url, "", http.Header{"X-Admin-Password": {"hunter2"}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	waitDone(t, match)
	assert.Equal(t, StatusAborted, match.Info().Status)

	resp, _ = do(t, http.MethodGet, url+"/ws?seat=0", "", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestHTTPReplayOfFinishedMatch(t *testing.T) {
	store := newFakeStore()
	mgr, srv := newTestHTTP(t, ManagerOptions{Store: store}, "")

	match, err := mgr.CreateMatch(MatchRequest{
		Decks: [2]string{"liyue", "sumeru"},
		Bots:  [2]bool{true, true},
		Seed:  21,
	})
	require.NoError(t, err)
	waitDone(t, match)
	require.Eventually(t, func() bool {
		_, ok := store.get(match.ID)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	resp, body := do(t, http.MethodGet, srv.URL+"/matches/"+match.ID+"/replay", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var rp struct {
		MatchID string            `json:"matchId"`
		Frames  []json.RawMessage `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(body, &rp))
	assert.Equal(t, match.ID, rp.MatchID)
	assert.NotEmpty(t, rp.Frames)

	resp, _ = do(t, http.MethodGet, srv.URL+"/matches/other/replay", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPReplayFrame(t *testing.T) {
	store := newFakeStore()
	mgr, srv := newTestHTTP(t, ManagerOptions{Store: store}, "")

	match, err := mgr.CreateMatch(MatchRequest{
		Decks: [2]string{"fontaine", "mondstadt"},
		Bots:  [2]bool{true, true},
		Seed:  5,
	})
	require.NoError(t, err)
	waitDone(t, match)
	require.Eventually(t, func() bool {
		_, ok := store.get(match.ID)
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	url := srv.URL + "/matches/" + match.ID + "/replay"

	type card struct {
		ID           int `json:"id"`
		DefinitionID int `json:"definitionId"`
	}
	var view struct {
		MatchID    string `json:"matchId"`
		Frame      int    `json:"frame"`
		FrameCount int    `json:"frameCount"`
		State      struct {
			Phase       string `json:"phase"`
			RoundNumber int    `json:"roundNumber"`
			Players     [2]struct {
				HandCards []card `json:"handCard"`
			} `json:"player"`
		} `json:"state"`
	}

	resp, body := do(t, http.MethodGet, url+"?frame=0", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, match.ID, view.MatchID)
	assert.Zero(t, view.Frame)
	require.Greater(t, view.FrameCount, 1)
	count := view.FrameCount

	for frame := range count {
		resp, body = do(t, http.MethodGet, url+"?frame="+strconv.Itoa(frame)+"&seat=1", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		require.NoError(t, json.Unmarshal(body, &view))
		assert.Equal(t, frame, view.Frame)
		for _, c := range view.State.Players[0].HandCards {
			assert.Zero(t, c.DefinitionID, "frame %d shows seat 0's hand", frame)
		}
		for _, c := range view.State.Players[1].HandCards {
			assert.NotZero(t, c.DefinitionID, "frame %d hides seat 1's own hand", frame)
		}
	}
	assert.Equal(t, "gameEnd", view.State.Phase)

	tests := []struct {
		query string
		want  int
	}{
		{"?frame=first", http.StatusBadRequest},
		{"?frame=0&seat=2", http.StatusBadRequest},
		{"?frame=0&seat=north", http.StatusBadRequest},
		{"?frame=-1", http.StatusNotFound},
		{"?frame=" + strconv.Itoa(count), http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, _ := do(t, http.MethodGet, url+tt.query, "", nil)
		assert.Equal(t, tt.want, resp.StatusCode, tt.query)
	}
}

func TestHTTPHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	mgr, srv := newTestHTTP(t, ManagerOptions{Metrics: m}, "")

	resp, _ := do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	m.MatchStarted()
	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "gitcg_matches_started_total 1")

	shutdown(t, mgr)
	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
