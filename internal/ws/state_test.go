package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/oceanfft/internal/config"
	diag "github.com/coreman2200/oceanfft/internal/diagnostics"
	"github.com/coreman2200/oceanfft/internal/ocean"
	"github.com/coreman2200/oceanfft/internal/sim"
	"github.com/coreman2200/oceanfft/internal/texture"
)

func newServer(t *testing.T) (*State, *httptest.Server) {
	t.Helper()
	p := ocean.DefaultCascadeParameters()
	p.Size = 16
	c, err := ocean.NewCascade(p, ocean.WithSeed(9))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.SetCascade(p)
	st := NewState(sim.NewEngine(c), cfg)
	st.ConfigPath = filepath.Join(t.TempDir(), "ocean.yaml")

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", st.HandleFramesWS)
	mux.HandleFunc("/diag", st.HandleDiagWS)
	mux.HandleFunc("/control", st.HandleControlWS)
	mux.HandleFunc("/health", st.HandleHealth)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return st, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func registered(st *State, set func(*State) int, n int) func() bool {
	return func() bool {
		st.mu.RLock()
		defer st.mu.RUnlock()
		return set(st) == n
	}
}

func TestEncodeHeights(t *testing.T) {
	a := texture.NewArena(0)
	tex, err := a.Create("disp", 2, 2, 1)
	require.NoError(t, err)
	copy(tex.Level(0), []mgl32.Vec4{{9, 0.5, 9, 0}, {0, -1.25, 0, 0}, {0, 3, 0, 0}, {0, 0, 0, 0}})

	b := EncodeHeights(tex, 0)
	assert.Len(t, b, 8)
	assert.Equal(t, []float32{0.5, -1.25, 3, 0}, DecodeHeights(b))
}

func TestControlChangesAndPersists(t *testing.T) {
	st, srv := newServer(t)
	conn := dial(t, srv, "/control")

	require.NoError(t, conn.WriteJSON(map[string]any{"wind_speed": 12.5, "swell": 0.1}))
	var got ocean.CascadeParameters
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 12.5, got.WindSpeed)
	assert.Equal(t, 0.1, got.Swell)
	assert.Equal(t, 12.5, st.Cascade.Surface(2).Parameters().WindSpeed)

	saved, err := config.Load(st.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, 12.5, saved.Cascade.WindSpeed)
	assert.Equal(t, 16, saved.Cascade.Size)
}

func TestControlRejectionIsDiagnosed(t *testing.T) {
	st, srv := newServer(t)
	d := dial(t, srv, "/diag")
	require.Eventually(t, registered(st, func(s *State) int { return len(s.diagClients) }, 1), time.Second, 5*time.Millisecond)

	conn := dial(t, srv, "/control")
	require.NoError(t, conn.WriteJSON(map[string]any{"size": 100}))
	var got ocean.CascadeParameters
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 16, got.Size, "rejected change leaves parameters alone")

	var dg diag.Diagnostic
	require.NoError(t, d.ReadJSON(&dg))
	assert.Equal(t, diag.CodeConfigRejected, dg.Code)
	assert.Equal(t, "control", dg.Evidence["source"])
}

func TestFramesStreamCoarsestMip(t *testing.T) {
	st, srv := newServer(t)
	conn := dial(t, srv, "/ws")

	var params ocean.CascadeParameters
	require.NoError(t, conn.ReadJSON(&params))
	assert.Equal(t, 16, params.Size)
	require.Eventually(t, registered(st, func(s *State) int { return len(s.clients) }, 1), time.Second, 5*time.Millisecond)

	st.Engine.OnFrame = st.PublishFrame
	require.NoError(t, st.Engine.Step(context.Background(), 1, 33*time.Millisecond))

	var f frameMsg
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, uint64(1), f.FrameID)
	require.Len(t, f.Cascades, ocean.Cascades)
	for _, c := range f.Cascades {
		assert.Equal(t, 3, c.Level)
		assert.Equal(t, 2, c.W)
		assert.Len(t, c.Heights, 2*c.W*c.H)
		assert.LessOrEqual(t, c.Min, c.Max)
	}
}

func TestHealth(t *testing.T) {
	st, srv := newServer(t)
	require.NoError(t, st.Engine.Step(context.Background(), 1, 33*time.Millisecond))
	st.PublishFrame(sim.Frame{ID: 1, T: 1, Cascade: st.Cascade})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1.0, body["frame_id"])
	assert.Equal(t, 16.0, body["size"])
	assert.Equal(t, []any{"ready", "ready", "ready"}, body["states"])
}

func TestPushDiagFromSeveralGoroutines(t *testing.T) {
	st, srv := newServer(t)
	d := dial(t, srv, "/diag")
	require.Eventually(t, registered(st, func(s *State) int { return len(s.diagClients) }, 1), time.Second, 5*time.Millisecond)

	const each = 200
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				st.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.CodeWeatherSegment, Summary: "tick"})
			}
		}()
	}

	for i := 0; i < 2*each; i++ {
		var dg diag.Diagnostic
		require.NoError(t, d.ReadJSON(&dg), "message %d", i)
		require.Equal(t, diag.CodeWeatherSegment, dg.Code)
	}
	wg.Wait()
}

func TestHealthWhileStepping(t *testing.T) {
	st, srv := newServer(t)
	st.Engine.OnFrame = st.PublishFrame

	done := make(chan error, 1)
	go func() {
		for i := 1; i <= 20; i++ {
			if err := st.Engine.Step(context.Background(), float64(i), 33*time.Millisecond); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	get := func() map[string]any {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}
	for i := 0; i < 10; i++ {
		get()
	}
	require.NoError(t, <-done)

	body := get()
	assert.Equal(t, 20.0, body["frame_id"])
	last, ok := body["last"].(map[string]any)
	require.True(t, ok)
	assert.Greater(t, last["passes"].(float64), 0.0)
}
