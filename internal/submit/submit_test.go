package submit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swrfmods/internal/prefs"
)

const goodLink = "https://steamcommunity.com/sharedfiles/filedetails/?id=123"

func relayServer(t *testing.T, upstream string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewRelay(upstream, time.Second, nil).RegisterRoutes(r.Group("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func upstreamServer(t *testing.T, status int, hits *atomic.Int32, lastBody *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		if lastBody != nil {
			lastBody.Store(string(b))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRelayRejectsNonPost(t *testing.T) {
	var hits atomic.Int32
	srv := relayServer(t, upstreamServer(t, http.StatusOK, &hits, nil).URL)

	resp, err := http.Get(srv.URL + Path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Method Not Allowed"}`, string(b))
	assert.Zero(t, hits.Load())
}

func TestRelayForwardsVerbatimAndAlwaysAnswers200(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusInternalServerError} {
		var hits atomic.Int32
		var last atomic.Value
		srv := relayServer(t, upstreamServer(t, status, &hits, &last).URL)

		payload := `{"link": "` + goodLink + `"}`
		resp, err := http.Post(srv.URL+Path, "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, "upstream %d", status)
		assert.JSONEq(t, `{"result":"ok"}`, string(b))
		assert.Equal(t, payload, last.Load())
		assert.EqualValues(t, 1, hits.Load())
	}
}

func TestRelayBadJSONAndUpstreamDown(t *testing.T) {
	var hits atomic.Int32
	up := upstreamServer(t, http.StatusOK, &hits, nil)
	srv := relayServer(t, up.URL)

	resp, err := http.Post(srv.URL+Path, "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	up.Close()
	resp, err = http.Post(srv.URL+Path, "application/json", strings.NewReader(`{"link":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestFormRejectsInvalidLinkWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := relayServer(t, upstreamServer(t, http.StatusOK, &hits, nil).URL)

	f := NewForm(context.Background(), srv.URL, prefs.NewMemory())
	defer f.Close()

	assert.ErrorIs(t, f.Submit(context.Background(), "http://example.com"), ErrInvalidLink)
	assert.Zero(t, hits.Load())
	assert.NoError(t, Validate(goodLink))
}

func TestFormCooldownSurvivesReload(t *testing.T) {
	var hits atomic.Int32
	srv := relayServer(t, upstreamServer(t, http.StatusOK, &hits, nil).URL)
	store := prefs.NewMemory()

	T := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)
	clock := func(at time.Time) Option { return WithClock(func() time.Time { return at }) }

	f := NewForm(context.Background(), srv.URL, store, clock(T))
	require.NoError(t, f.Submit(context.Background(), "  "+goodLink+" "))
	st := f.Status()
	assert.True(t, st.Submitted)
	assert.True(t, st.CoolingDown)
	assert.ErrorIs(t, f.Submit(context.Background(), goodLink), ErrCoolingDown)
	f.Close()
	assert.EqualValues(t, 1, hits.Load())

	reload := NewForm(context.Background(), srv.URL, store, clock(T.Add(30*time.Second)))
	assert.True(t, reload.Status().CoolingDown)
	assert.Equal(t, T.Add(Cooldown), reload.Status().Until)
	reload.Close()

	later := NewForm(context.Background(), srv.URL, store, clock(T.Add(61*time.Second)))
	assert.False(t, later.Status().CoolingDown)
	later.Close()
}

func TestFormFailureDoesNotEngageCooldown(t *testing.T) {
	store := prefs.NewMemory()
	var hits atomic.Int32
	up := upstreamServer(t, http.StatusOK, &hits, nil)
	srv := relayServer(t, up.URL)
	up.Close()

	f := NewForm(context.Background(), srv.URL, store)
	defer f.Close()

	assert.ErrorIs(t, f.Submit(context.Background(), goodLink), ErrSubmitFailed)
	st := f.Status()
	assert.False(t, st.Submitting)
	assert.False(t, st.CoolingDown)
	_, ok := prefs.LastSubmit(context.Background(), store)
	assert.False(t, ok)

	dead := NewForm(context.Background(), "http://127.0.0.1:1", store)
	defer dead.Close()
	assert.ErrorIs(t, dead.Submit(context.Background(), goodLink), ErrSubmitFailed)
}

func TestFormCooldownExpires(t *testing.T) {
	var hits atomic.Int32
	srv := relayServer(t, upstreamServer(t, http.StatusOK, &hits, nil).URL)

	f := NewForm(context.Background(), srv.URL, prefs.NewMemory(), WithCooldown(50*time.Millisecond))
	defer f.Close()

	require.NoError(t, f.Submit(context.Background(), goodLink))
	assert.True(t, f.Status().CoolingDown)
	require.Eventually(t, func() bool { return !f.Status().CoolingDown }, time.Second, 10*time.Millisecond)
	require.NoError(t, f.Submit(context.Background(), goodLink))
}

func TestFormCloseEndsCooldown(t *testing.T) {
	var hits atomic.Int32
	srv := relayServer(t, upstreamServer(t, http.StatusOK, &hits, nil).URL)
	store := prefs.NewMemory()

	f := NewForm(context.Background(), srv.URL, store)
	require.NoError(t, f.Submit(context.Background(), goodLink))
	require.True(t, f.Status().CoolingDown)

	f.Close()
	st := f.Status()
	assert.False(t, st.CoolingDown)
	assert.True(t, st.Until.IsZero())
	assert.True(t, st.Submitted)

	_, ok := prefs.LastSubmit(context.Background(), store)
	assert.True(t, ok)
}
