package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livedemo/internal/bridge"
	"github.com/GriffinCanCode/livedemo/internal/domain/demo"
	"github.com/GriffinCanCode/livedemo/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livedemo/internal/livedemo"
	"github.com/GriffinCanCode/livedemo/internal/logging"
	"github.com/GriffinCanCode/livedemo/internal/shared/id"
	"github.com/GriffinCanCode/livedemo/internal/shared/utils"
)

// Version is reported by the root endpoint
const Version = "0.1.0"

// maxSourceBytes bounds one edit payload
const maxSourceBytes = 1 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	catalogue *livedemo.Catalogue
	sanitizer *bluemonday.Policy
	hasher    *utils.Hasher
	logger    *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(catalogue *livedemo.Catalogue, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		catalogue: catalogue,
		sanitizer: PreviewPolicy(),
		hasher:    utils.DefaultHasher(),
		logger:    logger,
	}
}

// PreviewPolicy allows the markup demos render, including the mount anchor
// and canvas data attributes, and strips everything that could run script.
func PreviewPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	p.AllowDataAttributes()
	p.AllowElements("button", "label", "fieldset", "legend")
	p.AllowAttrs("type").Matching(bluemonday.SpaceSeparatedTokens).OnElements("button")
	p.AllowAttrs("disabled").OnElements("button", "fieldset")
	return p
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "livedemo",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"demos":  len(h.catalogue.List()),
		"open":   h.catalogue.OpenCount(),
	})
}

type demoSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Entry  string `json:"entry,omitempty"`
	Iframe bool   `json:"iframe"`
	Open   bool   `json:"open"`
}

// ListDemos lists every demo in the catalogue
func (h *Handlers) ListDemos(c *gin.Context) {
	demos := h.catalogue.List()
	out := make([]demoSummary, 0, len(demos))
	for _, d := range demos {
		_, open := h.catalogue.Get(d.ID)
		entry, _ := d.Asset.EntryFile()
		out = append(out, demoSummary{
			ID:     d.ID.String(),
			Title:  d.Title,
			Entry:  entry,
			Iframe: d.Iframe,
			Open:   open,
		})
	}
	c.JSON(http.StatusOK, gin.H{"demos": out})
}

type errorBody struct {
	Kind    livedemo.ErrorKind `json:"kind"`
	Message string             `json:"message"`
	Name    string             `json:"name,omitempty"`
	Stack   string             `json:"stack,omitempty"`
}

type stateBody struct {
	ID      string         `json:"id"`
	HTML    string         `json:"html"`
	Loading bool           `json:"loading"`
	Error   *errorBody     `json:"error"`
	Phase   livedemo.Phase `json:"phase"`
	Outcome livedemo.Phase `json:"outcome,omitempty"`
	Token   string         `json:"token,omitempty"`
}

// GetDemo opens the demo on first use and reports its current state
func (h *Handlers) GetDemo(c *gin.Context) {
	ctrl, ok := h.open(c)
	if !ok {
		return
	}

	st := ctrl.State()
	body := stateBody{
		ID:      ctrl.Demo().ID.String(),
		HTML:    h.sanitizer.Sanitize(ctrl.HTML()),
		Loading: st.Loading,
		Phase:   st.Phase,
		Outcome: st.Outcome,
	}
	if !st.Token.IsZero() {
		body.Token = st.Token.String()
	}
	if st.Err != nil {
		body.Error = toErrorBody(st.Err)
	}

	// Pollers revalidate with If-None-Match while nothing changes
	if digest, err := h.hasher.HashJSON(body); err == nil {
		etag := utils.ETag(digest)
		c.Header("ETag", etag)
		c.Header("Cache-Control", "no-cache")
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

// SetSource schedules an edit. The body maps file paths to source text.
func (h *Handlers) SetSource(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSourceBytes)

	var src demo.Source
	if err := c.ShouldBindJSON(&src); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source: " + err.Error()})
		return
	}
	if err := utils.ValidateFiles(src); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctrl, ok := h.open(c)
	if !ok {
		return
	}
	if err := ctrl.SetSource(src); err != nil {
		if errors.Is(err, livedemo.ErrClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"accepted": true,
		"demo_id":  ctrl.Demo().ID.String(),
		"files":    len(src),
	})
}

// CloseDemo discards the demo's controller and frame
func (h *Handlers) CloseDemo(c *gin.Context) {
	demoID := id.DemoID(c.Param("id"))
	if _, ok := h.catalogue.Demo(demoID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown demo", "demo_id": demoID.String()})
		return
	}
	if err := h.catalogue.Close(demoID); err != nil {
		h.logger.Warn("close demo", zap.String("demo", demoID.String()), zap.Error(err), tracing.Field(c.Request.Context()))
	}
	c.JSON(http.StatusOK, gin.H{"closed": true, "demo_id": demoID.String()})
}

func (h *Handlers) open(c *gin.Context) (*livedemo.Controller, bool) {
	demoID := id.DemoID(c.Param("id"))
	ctrl, err := h.catalogue.Open(demoID)
	switch {
	case err == nil:
		return ctrl, true
	case errors.Is(err, livedemo.ErrUnknownDemo):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown demo", "demo_id": demoID.String()})
	default:
		h.logger.Error("open demo", zap.String("demo", demoID.String()), zap.Error(err), tracing.Field(c.Request.Context()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	return nil, false
}

func toErrorBody(err error) *errorBody {
	body := &errorBody{
		Kind:    livedemo.Classify(err),
		Message: err.Error(),
	}
	var remote *bridge.RemoteError
	if errors.As(err, &remote) {
		body.Name = remote.Name
		body.Message = remote.Message
		body.Stack = remote.Stack
	}
	return body
}
