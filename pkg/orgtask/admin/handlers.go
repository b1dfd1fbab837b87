// Package admin exposes staff-only maintenance endpoints that work on the
// unfiltered surface: listing soft-deleted rows, restoring them and purging
// them for good.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/httputil"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

// Handler handles staff maintenance requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// resourceModel maps a URL resource segment to its model.
func resourceModel(resource string) (interface{}, bool) {
	switch resource {
	case "users":
		return &[]models.User{}, true
	case "orgs":
		return &[]models.Organization{}, true
	case "departs":
		return &[]models.Department{}, true
	case "tags":
		return &[]models.Tag{}, true
	case "tasks":
		return &[]models.Task{}, true
	case "roles":
		return &[]models.Role{}, true
	}
	return nil, false
}

func singleModel(resource string) (interface{}, bool) {
	switch resource {
	case "users":
		return &models.User{}, true
	case "orgs":
		return &models.Organization{}, true
	case "departs":
		return &models.Department{}, true
	case "tags":
		return &models.Tag{}, true
	case "tasks":
		return &models.Task{}, true
	case "roles":
		return &models.Role{}, true
	}
	return nil, false
}

// ListDeleted returns the soft-deleted rows of a resource
// @Summary List soft-deleted rows
// @Tags admin
// @Produce json
// @Param resource path string true "Resource" Enums(users, orgs, departs, tags, tasks, roles)
// @Success 200 {array} object
// @Failure 404 {object} map[string]string "Unknown resource"
// @Security BearerAuth
// @Router /admin/{resource}/deleted [get]
func (h *Handler) ListDeleted(c *gin.Context) {
	dest, ok := resourceModel(c.Param("resource"))
	if !ok {
		httputil.NotFound(c, "Unknown resource")
		return
	}
	if err := h.db.Unscoped().Where("is_deleted <> 0").Find(dest).Error; err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to list deleted rows")
		return
	}
	c.JSON(http.StatusOK, dest)
}

// Restore clears the deletion flag of a single row. Related rows deleted in
// the same cascade are not restored with it.
// @Summary Restore a soft-deleted row
// @Tags admin
// @Param resource path string true "Resource" Enums(users, orgs, departs, tags, tasks, roles)
// @Param id path string true "Row ID"
// @Success 204
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /admin/{resource}/{id}/restore [post]
func (h *Handler) Restore(c *gin.Context) {
	model, ok := singleModel(c.Param("resource"))
	if !ok {
		httputil.NotFound(c, "Unknown resource")
		return
	}
	res := h.db.Unscoped().Model(model).
		Where("id = ? AND is_deleted <> 0", c.Param("id")).
		Updates(map[string]interface{}{"is_deleted": 0, "deleted_at": nil})
	if res.Error != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to restore row")
		return
	}
	if res.RowsAffected == 0 {
		httputil.NotFound(c, "Ressource not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// Purge removes a row physically, whether soft-deleted or live
// @Summary Hard-delete a row
// @Tags admin
// @Param resource path string true "Resource" Enums(users, orgs, departs, tags, tasks, roles)
// @Param id path string true "Row ID"
// @Success 204
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /admin/{resource}/{id} [delete]
func (h *Handler) Purge(c *gin.Context) {
	model, ok := singleModel(c.Param("resource"))
	if !ok {
		httputil.NotFound(c, "Unknown resource")
		return
	}
	res := h.db.Unscoped().Where("id = ?", c.Param("id")).Delete(model)
	if res.Error != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to purge row")
		return
	}
	if res.RowsAffected == 0 {
		httputil.NotFound(c, "Ressource not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers admin routes; the group must already carry the
// staff middleware
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:resource/deleted", h.ListDeleted)
	rg.POST("/:resource/:id/restore", h.Restore)
	rg.DELETE("/:resource/:id", h.Purge)
}
