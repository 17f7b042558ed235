package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/livedemo"
	"github.com/GriffinCanCode/livedemo/tests/helpers/testutil"
)

const buttonCode = `
const React = require("react");
exports.default = function App() {
	return React.createElement("button", { className: "btn", onClick: function () {} }, "Click");
};
`

func setupRouter(t *testing.T, demos ...*demo.Demo) (*gin.Engine, *livedemo.Catalogue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat := livedemo.NewCatalogue(demos, livedemo.Options{Wait: -1}, func(*demo.Demo) (bridge.Frame, error) {
		return bridge.NewRelay(nil), nil
	})
	t.Cleanup(func() { _ = cat.CloseAll() })

	h := NewHandlers(cat, nil)
	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	api := router.Group("/api")
	api.GET("/demos", h.ListDemos)
	api.GET("/demos/:id", h.GetDemo)
	api.POST("/demos/:id/source", h.SetSource)
	api.DELETE("/demos/:id", h.CloseDemo)
	return router, cat
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateBody {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st stateBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	return st
}

// settled polls the demo until its last task has finished
func settled(t *testing.T, router *gin.Engine, path string) stateBody {
	t.Helper()
	var st stateBody
	require.Eventually(t, func() bool {
		st = decodeState(t, do(router, "GET", path, ""))
		return st.Phase == livedemo.PhaseIdle && st.Outcome != ""
	}, 5*time.Second, 5*time.Millisecond)
	return st
}

func TestRootAndHealth(t *testing.T) {
	router, cat := setupRouter(t, testutil.CreateTestDemo(t, "basic", buttonCode))

	w := do(router, "GET", "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"online","service":"livedemo","version":"`+Version+`"}`, w.Body.String())

	w = do(router, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","demos":1,"open":0}`, w.Body.String())

	_, err := cat.Open("basic")
	require.NoError(t, err)
	w = do(router, "GET", "/health", "")
	assert.JSONEq(t, `{"status":"healthy","demos":1,"open":1}`, w.Body.String())
}

func TestListDemos(t *testing.T) {
	framed := testutil.CreateTestDemo(t, "framed", buttonCode)
	framed.Iframe = true
	router, _ := setupRouter(t, testutil.CreateTestDemo(t, "basic", buttonCode), framed)

	w := do(router, "GET", "/api/demos", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Demos []demoSummary `json:"demos"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Demos, 2)
	assert.Equal(t, demoSummary{ID: "basic", Title: "Test Demo", Entry: testutil.EntryFile}, body.Demos[0])
	assert.Equal(t, "framed", body.Demos[1].ID)
	assert.True(t, body.Demos[1].Iframe)
}

func TestGetDemoRendersSanitisedMarkup(t *testing.T) {
	router, _ := setupRouter(t, testutil.CreateTestDemo(t, "basic", buttonCode))

	st := settled(t, router, "/api/demos/basic")
	assert.Nil(t, st.Error)
	assert.False(t, st.Loading)
	assert.Equal(t, livedemo.PhaseCommitted, st.Outcome)
	assert.NotEmpty(t, st.Token)
	assert.Equal(t, `<button class="btn">Click</button>`, st.HTML)
}

func TestGetDemoRevalidatesWithETag(t *testing.T) {
	router, _ := setupRouter(t, testutil.CreateTestDemo(t, "basic", buttonCode))
	settled(t, router, "/api/demos/basic")

	first := do(router, "GET", "/api/demos/basic", "")
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest("GET", "/api/demos/basic", nil)
	req.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	req.Header.Set("If-None-Match", `"stale"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, etag, w.Header().Get("ETag"))
}

func TestSetSource(t *testing.T) {
	router, _ := setupRouter(t, testutil.CreateTestDemo(t, "basic", buttonCode))
	settled(t, router, "/api/demos/basic")

	edit, err := json.Marshal(map[string]string{
		testutil.EntryFile: strings.Replace(buttonCode, `"Click"`, `"Edited"`, 1),
	})
	require.NoError(t, err)

	w := do(router, "POST", "/api/demos/basic/source", string(edit))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.JSONEq(t, `{"accepted":true,"demo_id":"basic","files":1}`, w.Body.String())

	require.Eventually(t, func() bool {
		st := decodeState(t, do(router, "GET", "/api/demos/basic", ""))
		return strings.Contains(st.HTML, "Edited")
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSetSourceErrorKeepsMarkup(t *testing.T) {
	router, _ := setupRouter(t, testutil.CreateTestDemo(t, "basic", buttonCode))
	good := settled(t, router, "/api/demos/basic")

	w := do(router, "POST", "/api/demos/basic/source", `{"index.jsx":"require(\"left-pad\")"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var st stateBody
	require.Eventually(t, func() bool {
		st = decodeState(t, do(router, "GET", "/api/demos/basic", ""))
		return st.Error != nil
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, livedemo.KindModuleNotFound, st.Error.Kind)
	assert.Contains(t, st.Error.Message, "left-pad")
	assert.Equal(t, livedemo.PhaseFailed, st.Outcome)
	assert.Equal(t, good.HTML, st.HTML)
}

func TestSetSourceRejectsBadInput(t *testing.T) {
	router, _ := setupRouter(t, testutil.CreateTestDemo(t, "basic", buttonCode))

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "malformed json", path: "/api/demos/basic/source", body: `{"index.jsx":`, want: http.StatusBadRequest},
		{name: "wrong shape", path: "/api/demos/basic/source", body: `["index.jsx"]`, want: http.StatusBadRequest},
		{name: "empty source", path: "/api/demos/basic/source", body: `{}`, want: http.StatusBadRequest},
		{name: "path traversal", path: "/api/demos/basic/source", body: `{"../index.jsx":"x"}`, want: http.StatusBadRequest},
		{name: "unknown demo", path: "/api/demos/nope/source", body: `{"index.jsx":"x"}`, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, "POST", tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestGetUnknownDemo(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, "GET", "/api/demos/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"unknown demo","demo_id":"missing"}`, w.Body.String())
}

func TestIframeDemoWithoutPeerReportsTransportError(t *testing.T) {
	framed := testutil.CreateTestDemo(t, "framed", buttonCode)
	framed.Iframe = true
	router, _ := setupRouter(t, framed)

	st := settled(t, router, "/api/demos/framed")
	require.NotNil(t, st.Error)
	assert.Equal(t, livedemo.KindTransport, st.Error.Kind)
	assert.Equal(t, bridge.ErrDetached.Error(), st.Error.Message)
	assert.Empty(t, st.HTML)
}

func TestCloseDemo(t *testing.T) {
	router, cat := setupRouter(t, testutil.CreateTestDemo(t, "basic", buttonCode))
	settled(t, router, "/api/demos/basic")

	w := do(router, "DELETE", "/api/demos/basic", "")
	assert.Equal(t, http.StatusOK, w.Code)
	_, open := cat.Get("basic")
	assert.False(t, open)

	w = do(router, "DELETE", "/api/demos/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewPolicy(t *testing.T) {
	p := PreviewPolicy()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "script stripped",
			in:   `<div id="d"><script>alert(1)</script><p>hi</p></div>`,
			want: `<div id="d"><p>hi</p></div>`,
		},
		{
			name: "event handlers stripped",
			in:   `<button class="btn" onclick="steal()">Go</button>`,
			want: `<button class="btn">Go</button>`,
		},
		{
			name: "canvas anchor kept",
			in:   `<div data-live-canvas="chart"></div>`,
			want: `<div data-live-canvas="chart"></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Sanitize(tt.in))
		})
	}
}

func TestToErrorBody(t *testing.T) {
	remote := &bridge.RemoteError{Name: "SyntaxError", Message: "Unexpected token", Stack: "at 1:1"}
	body := toErrorBody(remote)
	assert.Equal(t, &errorBody{
		Kind:    livedemo.KindFrame,
		Message: "Unexpected token",
		Name:    "SyntaxError",
		Stack:   "at 1:1",
	}, body)

	body = toErrorBody(bridge.ErrTimeout)
	assert.Equal(t, livedemo.KindTimeout, body.Kind)
	assert.Empty(t, body.Name)
}
