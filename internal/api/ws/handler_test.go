package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livedemo/internal/livedemo"
	"github.com/GriffinCanCode/livedemo/internal/sandbox"
	"github.com/GriffinCanCode/livedemo/tests/helpers/testutil"
)

const buttonCode = `var h = require("react").createElement;
exports.default = function App() { return h("button", {className: "btn"}, "Remote"); };`

func relays(*demo.Demo) (bridge.Frame, error) {
	return bridge.NewRelay(nil), nil
}

func setupServer(t *testing.T, frames livedemo.FrameFactory, demos ...*demo.Demo) (*httptest.Server, *livedemo.Catalogue, *monitoring.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	cat := livedemo.NewCatalogue(demos, livedemo.Options{Wait: -1, Metrics: metrics}, frames)

	router := gin.New()
	router.GET("/api/demos/:id/frame", NewHandler(cat, metrics, nil).HandleFrame)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		_ = cat.CloseAll()
		srv.Close()
	})
	return srv, cat, metrics
}

func frameURL(srv *httptest.Server, demoID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/demos/" + demoID + "/frame"
}

func framedDemo(t *testing.T, demoID string) *demo.Demo {
	d := testutil.CreateTestDemo(t, demoID, buttonCode)
	d.Iframe = true
	return d
}

func TestHandleFrameRunsDemoInPeer(t *testing.T) {
	d := framedDemo(t, "framed")
	srv, cat, metrics := setupServer(t, relays, d)

	host, err := bridge.NewLocalFrame(bridge.LocalConfig{
		ID:      d.ID.String(),
		Asset:   d.Asset,
		Context: d.Context,
		Sandbox: sandbox.DefaultConfig(),
	})
	require.NoError(t, err)
	defer host.Close()

	conn, _, err := websocket.DefaultDialer.Dial(frameURL(srv, "framed"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- bridge.Serve(ctx, conn, host) }()

	require.Eventually(t, func() bool {
		ctrl, ok := cat.Get(d.ID)
		if !ok {
			return false
		}
		st := ctrl.State()
		return st.Phase == livedemo.PhaseIdle && st.Outcome == livedemo.PhaseCommitted && st.Err == nil
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, `<button class="btn">Remote</button>`, host.HTML())
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.FrameConnections))

	frame, ok := cat.Frame(d.ID)
	require.True(t, ok)
	assert.NotEmpty(t, frame.(*bridge.Relay).Peer())

	cancel()
	<-served
	require.Eventually(t, func() bool {
		return promtest.ToFloat64(metrics.FrameConnections) == 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestHandleFrameRejects(t *testing.T) {
	local := func(d *demo.Demo) (bridge.Frame, error) {
		return bridge.NewLocalFrame(bridge.LocalConfig{ID: d.ID.String(), Asset: d.Asset, Context: d.Context})
	}

	tests := []struct {
		name   string
		frames livedemo.FrameFactory
		demo   *demo.Demo
		path   string
		want   int
	}{
		{
			name:   "unknown demo",
			frames: relays,
			demo:   framedDemo(t, "framed"),
			path:   "missing",
			want:   http.StatusNotFound,
		},
		{
			name:   "same-document demo",
			frames: relays,
			demo:   testutil.CreateTestDemo(t, "inline", buttonCode),
			path:   "inline",
			want:   http.StatusConflict,
		},
		{
			name:   "in-process frame",
			frames: local,
			demo:   framedDemo(t, "framed"),
			path:   "framed",
			want:   http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := setupServer(t, tt.frames, tt.demo)

			_, resp, err := websocket.DefaultDialer.Dial(frameURL(srv, tt.path), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
