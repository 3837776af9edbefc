package submit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBody = 64 << 10

// Relay forwards submissions to the upstream form endpoint. The upstream
// body is always answered with 200, whatever status the upstream returned.
type Relay struct {
	Upstream string
	Client   *http.Client
	Logger   *zap.Logger
}

func NewRelay(upstream string, timeout time.Duration, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		Upstream: upstream,
		Client:   &http.Client{Timeout: timeout},
		Logger:   logger.Named("relay"),
	}
}

func (r *Relay) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Any("/submit", r.handle)
}

func (r *Relay) handle(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method Not Allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, r.Upstream, bytes.NewReader(body))
	if err != nil {
		r.Logger.Error("build upstream request", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		r.Logger.Warn("upstream request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
		return
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		r.Logger.Warn("read upstream body", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
		return
	}
	if resp.StatusCode >= http.StatusBadRequest {
		r.Logger.Warn("upstream returned error status", zap.Int("status", resp.StatusCode))
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	c.Data(http.StatusOK, ct, out)
}
