package tasks

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/access"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/httputil"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/orgs"
)

// UpdateStatusRequest carries the new lifecycle state for a task.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus moves a task through its lifecycle. Assignees may call this
// even without the general mutation right.
// @Summary Update a task's status
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} TaskResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tasks/{id}/update-status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	user, _ := auth.GetUser(c)

	g, err := h.loadGraph(c.Param("id"))
	if err != nil || !g.visible(user.ID) {
		httputil.NotFound(c, "Task can't be found")
		return
	}
	if !g.canMutate(user.ID) && !g.isAssignee(user.ID) {
		httputil.Forbidden(c)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}
	status := models.TaskStatus(req.Status)
	if !models.ValidStatus(status) {
		errs := httputil.FieldErrors{}
		errs.Add("status", "Invalid status")
		httputil.Invalid(c, errs)
		return
	}

	if err := h.db.Model(g.task).Update("status", status).Error; err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update status")
		return
	}
	c.JSON(http.StatusOK, taskResponse(g.task))
}

// BulkDelete soft-deletes several tasks with their subtask trees
// @Summary Bulk-delete tasks
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body orgs.BulkDeleteRequest true "Task ids"
// @Success 200 {object} map[string][]string "Partial success diff"
// @Success 204 "All deleted"
// @Failure 404 {object} map[string]string "Nothing deletable"
// @Security BearerAuth
// @Router /tasks/bulk-delete [delete]
func (h *Handler) BulkDelete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var req orgs.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var found []models.Task
	h.db.Where("id IN ?", req.IDs).Find(&found)

	foundIDs := make(map[string]bool, len(found))
	var owned []uuid.UUID
	var deleted []string
	for i := range found {
		foundIDs[found[i].ID.String()] = true
		g, err := h.loadGraph(found[i].ID.String())
		if err != nil || !g.canMutate(user.ID) {
			httputil.NotFound(c, "Ressource not found")
			return
		}
		owned = append(owned, g.task.ID)
		deleted = append(deleted, g.task.ID.String())
	}

	var notFound []string
	for _, id := range req.IDs {
		if !foundIDs[id] {
			notFound = append(notFound, id)
		}
	}
	if len(owned) == 0 {
		httputil.NotFound(c, "Ressource not found")
		return
	}

	if err := h.engine.DeleteTasks(owned); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete tasks")
		return
	}

	if len(notFound) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	httputil.BulkDeleted(c, deleted, notFound)
}

// ChangeOwners replaces the task's co-owner list; reserved to the creation
// lineage or the dedicated permission
// @Summary Change task co-owners
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body orgs.ChangeOwnersRequest true "New co-owner ids"
// @Success 204
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tasks/{id}/owners [patch]
func (h *Handler) ChangeOwners(c *gin.Context) {
	user, _ := auth.GetUser(c)

	g, err := h.loadGraph(c.Param("id"))
	if err != nil || !g.visible(user.ID) {
		httputil.NotFound(c, "Task can't be found")
		return
	}
	orgSubject := access.ForOrg(g.org)
	if !access.IsObjectOrgOrDepartCreator(access.ForTask(g.task), &orgSubject, g.departSubject(), user.ID) &&
		!h.checker.HasPermission(user, g.org, access.CanChangeRessourcesOwners) {
		httputil.Forbidden(c)
		return
	}

	var req orgs.ChangeOwnersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var owners []models.User
	if len(req.UserIDs) > 0 {
		h.db.Where("id IN ?", req.UserIDs).Find(&owners)
		if len(owners) != len(req.UserIDs) {
			errs := httputil.FieldErrors{}
			errs.Add("user_ids", "Some users could not be found")
			httputil.Invalid(c, errs)
			return
		}
	}

	if err := h.db.Model(g.task).Association("CanBeAccessedBy").Replace(owners); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update owners")
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers task routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.DELETE("/bulk-delete", h.BulkDelete)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/update-status", h.UpdateStatus)
	rg.PATCH("/:id/owners", h.ChangeOwners)
}
