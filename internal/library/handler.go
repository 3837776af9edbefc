package library

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"swrfmods/internal/catalog"
	"swrfmods/internal/prefs"
	"swrfmods/internal/visitor"
	"swrfmods/pkg/models"
)

type Handler struct {
	Service *Service
	Loader  *catalog.Loader
}

func NewHandler(svc *Service, loader *catalog.Loader) *Handler {
	return &Handler{Service: svc, Loader: loader}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/saved", h.list)
	rg.POST("/saved/:id/toggle", h.toggle)
	rg.DELETE("/saved/:id", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()
	visitorID := visitor.MustGetVisitor(c)

	store, err := h.Service.Store(ctx, visitorID)
	if err != nil {
		h.Service.Logger.Error("load saved set", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saved lookup failed"})
		return
	}

	items := SavedCards(h.Loader.Load(ctx), store)
	lastEra := prefs.LastVisitedEra(ctx, h.Service.Prefs.For(visitorID))

	c.JSON(http.StatusOK, gin.H{
		"last_era": lastEra,
		"back_to":  "/era/" + lastEra,
		"total":    len(items),
		"items":    items,
	})
}

func (h *Handler) toggle(c *gin.Context) {
	id := models.ModID(strings.TrimSpace(c.Param("id")))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	saved, ids, err := h.Service.Toggle(c.Request.Context(), visitor.MustGetVisitor(c), id)
	if err != nil {
		h.Service.Logger.Error("toggle saved", zap.String("mod_id", string(id)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"saved":     saved,
		"saved_ids": ids,
	})
}

func (h *Handler) remove(c *gin.Context) {
	id := models.ModID(strings.TrimSpace(c.Param("id")))

	removed, ids, err := h.Service.Remove(c.Request.Context(), visitor.MustGetVisitor(c), id)
	if err != nil {
		h.Service.Logger.Error("unsave", zap.String("mod_id", string(id)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted", "saved_ids": ids})
}
