package orgs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/access"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/httputil"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

// ChangeOwnersRequest carries the new co-owner list for a resource.
type ChangeOwnersRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}

// ChangeOwners replaces the organization's co-owner list; only the creator
// may delegate
// @Summary Change organization co-owners
// @Tags orgs
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param request body ChangeOwnersRequest true "New co-owner ids"
// @Success 204
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id}/owners [patch]
func (h *Handler) ChangeOwners(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, err := loadOrg(h.db, c.Param("id"))
	if err != nil || !canRead(org, user.ID) {
		httputil.NotFound(c, "Organization can't be found")
		return
	}
	if !access.HasCreatorAccess(access.ForOrg(org), user.ID) {
		httputil.Forbidden(c)
		return
	}

	var req ChangeOwnersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	owners := fetchUsers(h.db, req.UserIDs, "user_ids", errs)
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	if err := h.db.Model(org).Association("CanBeAccessedBy").Replace(owners); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update owners")
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveMembersRequest carries the member ids to detach from an organization.
type RemoveMembersRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1"`
}

// RemoveMembers detaches members from the organization and from every
// department of the organization they belong to
// @Summary Remove organization members
// @Tags orgs
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param request body RemoveMembersRequest true "Member ids"
// @Success 204
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id}/members/remove [post]
func (h *Handler) RemoveMembers(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, err := loadOrg(h.db, c.Param("id"))
	if err != nil || !canRead(org, user.ID) {
		httputil.NotFound(c, "Organization can't be found")
		return
	}
	if !access.HasAccess(access.ForOrg(org), user.ID) {
		httputil.Forbidden(c)
		return
	}

	var req RemoveMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var targets []models.User
	h.db.Where("id IN ?", req.UserIDs).Find(&targets)
	if len(targets) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(org).Association("Members").Delete(targets); err != nil {
			return err
		}
		var departs []models.Department
		if err := tx.Where("org_id = ?", org.ID).Find(&departs).Error; err != nil {
			return err
		}
		for i := range departs {
			if err := tx.Model(&departs[i]).Association("Members").Delete(targets); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to remove members")
		return
	}
	c.Status(http.StatusNoContent)
}
