package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swrfmods/internal/prefs"
	"swrfmods/internal/visitor"
	"swrfmods/pkg/models"
)

// SavedSets hands out the saved set of a visitor.
type SavedSets interface {
	Store(ctx context.Context, visitorID string) (*prefs.SavedStore, error)
}

type Handler struct {
	Loader *Loader
	Prefs  prefs.Backend
	Saved  SavedSets
	Logger *zap.Logger
}

func NewHandler(loader *Loader, backend prefs.Backend, saved SavedSets, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Loader: loader, Prefs: backend, Saved: saved, Logger: logger.Named("catalog")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/eras", h.eras)
	rg.GET("/eras/:era/mods", h.eraMods)
	rg.GET("/mods/:id", h.getByID)
}

func (h *Handler) eras(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": Eras})
}

// GET /api/eras/:era/mods?type=&q=&sort=&view=
func (h *Handler) eraMods(c *gin.Context) {
	ctx := c.Request.Context()
	visitorID := visitor.MustGetVisitor(c)

	var storage prefs.Storage
	if h.Prefs != nil && visitorID != "" {
		storage = h.Prefs.For(visitorID)
	}

	era := strings.ToLower(c.Param("era"))
	page := NewPage(ctx, era, h.Loader, storage, h.Logger)
	defer page.Close()

	page.Query = Query{
		Type:   c.DefaultQuery("type", AllTypes),
		Search: c.Query("q"),
		Sort:   SortOption(c.DefaultQuery("sort", string(SortSubsDesc))),
	}
	page.View = ParseViewMode(c.Query("view"))

	if err := page.Load(); err != nil {
		if errors.Is(err, ErrUnknownEra) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown era"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
		return
	}

	items := page.Cards(h.isSaved(c))

	c.JSON(http.StatusOK, gin.H{
		"era":   page.Era,
		"view":  page.View,
		"type":  page.Query.Type,
		"q":     page.Query.Search,
		"sort":  page.Query.Sort,
		"types": page.Types(),
		"total": len(items),
		"items": items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id := models.ModID(strings.TrimSpace(c.Param("id")))
	for _, m := range Annotate(h.Loader.Load(c.Request.Context())) {
		if m.ID != id {
			continue
		}
		cards := BuildCards([]models.Mod{m}, ViewList, h.isSaved(c))
		c.JSON(http.StatusOK, cards[0])
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

// isSaved loads the caller's saved set. A visitor minted on this request
// has nothing saved, so no store is loaded for it.
func (h *Handler) isSaved(c *gin.Context) func(models.ModID) bool {
	visitorID := visitor.MustGetVisitor(c)
	if h.Saved == nil || visitorID == "" || visitor.IsNew(c) {
		return nil
	}
	store, err := h.Saved.Store(c.Request.Context(), visitorID)
	if err != nil {
		h.Logger.Warn("load saved set", zap.Error(err))
		return nil
	}
	return store.Has
}
