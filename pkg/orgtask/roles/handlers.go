package roles

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/access"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/httputil"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/mailer"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/orgs"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/softdelete"
)

// Handler handles role requests
type Handler struct {
	db      *gorm.DB
	engine  *softdelete.Engine
	checker *access.Checker
	mail    mailer.Mailer
}

// NewHandler creates a new roles handler
func NewHandler(db *gorm.DB, mail mailer.Mailer) *Handler {
	return &Handler{
		db:      db,
		engine:  softdelete.NewEngine(db),
		checker: access.NewChecker(db),
		mail:    mail,
	}
}

// RoleResponse represents a role in API responses
type RoleResponse struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Org             string           `json:"org"`
	Perms           []string         `json:"perms"`
	Users           []orgs.UserBrief `json:"users"`
	CreatedBy       *orgs.UserBrief  `json:"created_by"`
	CanBeAccessedBy []orgs.UserBrief `json:"can_be_accessed_by"`
	CreatedAt       string           `json:"created_at"`
}

func brief(u *models.User) orgs.UserBrief {
	return orgs.UserBrief{ID: u.ID.String(), Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func briefList(users []models.User) []orgs.UserBrief {
	out := make([]orgs.UserBrief, len(users))
	for i := range users {
		out[i] = brief(&users[i])
	}
	return out
}

func roleResponse(r *models.Role) RoleResponse {
	perms := r.GetPerms()
	if perms == nil {
		perms = []string{}
	}
	resp := RoleResponse{
		ID:              r.ID.String(),
		Name:            r.Name,
		Description:     r.Description,
		Org:             r.OrgID.String(),
		Perms:           perms,
		Users:           briefList(r.Users),
		CanBeAccessedBy: briefList(r.CanBeAccessedBy),
		CreatedAt:       r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.CreatedBy != nil {
		b := brief(r.CreatedBy)
		resp.CreatedBy = &b
	}
	return resp
}

// CreateRoleRequest represents the request to create a role
type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Org         string   `json:"org" binding:"required"`
	Users       []string `json:"users"`
	Perms       []string `json:"perms"`
}

// UpdateRoleRequest represents the request to update a role
type UpdateRoleRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Users       *[]string `json:"users"`
	Perms       *[]string `json:"perms"`
}

func memberIDs(users []models.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func (h *Handler) loadRole(id string) (*models.Role, *models.Organization, error) {
	var role models.Role
	err := h.db.Preload("CreatedBy").Preload("Users").Preload("CanBeAccessedBy").
		First(&role, "id = ?", id).Error
	if err != nil {
		return nil, nil, err
	}
	var org models.Organization
	err = h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", role.OrgID).Error
	if err != nil {
		return nil, nil, err
	}
	return &role, &org, nil
}

// visible is the role read predicate: a channel through the organization,
// the role itself, or being bound to the role.
func visible(role *models.Role, org *models.Organization, userID uuid.UUID) bool {
	return access.HasAccess(access.ForRole(role), userID) ||
		access.HasAccess(access.ForOrg(org), userID) ||
		access.IsMember(memberIDs(org.Members), userID) ||
		access.IsMember(memberIDs(role.Users), userID)
}

func canMutate(role *models.Role, org *models.Organization, userID uuid.UUID) bool {
	return access.CanAccessOrgOrObj(access.ForRole(role), access.ForOrg(org), userID)
}

func nameTaken(db *gorm.DB, name string, orgID, excludeID uuid.UUID) bool {
	q := db.Model(&models.Role{}).Where("name = ? AND org_id = ?", name, orgID)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	q.Count(&count)
	return count > 0
}

// validatePerms checks every label against the registry and the creator-only
// tier for the acting user.
func (h *Handler) validatePerms(perms []string, org *models.Organization, user *models.User, errs httputil.FieldErrors) []string {
	if len(perms) == 0 {
		return nil
	}
	labels := access.NormalizeLabels(perms)
	_, unknown := access.PermissionsExist(labels)
	if len(unknown) > 0 {
		errs.Add("perms", "Some permissions do not exist")
		return nil
	}
	if !h.checker.CanAddCreatorLevelPerms(labels, org, user) {
		errs.Add("perms", "Only the organization creator can grant these permissions")
		return nil
	}
	return labels
}

// validateUsers resolves role users and enforces the cross-scope rule.
func (h *Handler) validateUsers(ids []string, org *models.Organization, errs httputil.FieldErrors) []models.User {
	if len(ids) == 0 {
		return nil
	}
	var users []models.User
	if err := h.db.Preload("CanBeAccessedBy").Where("id IN ?", ids).Find(&users).Error; err != nil || len(users) != len(ids) {
		errs.Add("users", "Some users could not be found")
		return nil
	}
	ownerID := org.CreatedByID
	if org.OwnerID != nil {
		ownerID = org.OwnerID
	}
	if ownerID != nil && !access.HasAccessAll(access.ForUsers(users), *ownerID) {
		errs.Add("users", "The org owner need to have a full access over users")
	}
	return users
}

func syncOrgMembers(tx *gorm.DB, org *models.Organization, users []models.User) ([]models.User, error) {
	missing := org.MissingMembers(users)
	if len(missing) == 0 {
		return nil, nil
	}
	if err := tx.Model(org).Association("Members").Append(missing); err != nil {
		return nil, err
	}
	return missing, nil
}

func (h *Handler) notifyInvited(org *models.Organization, invited []models.User) {
	for _, u := range invited {
		u := u
		mailer.Dispatch(func() error {
			return h.mail.SendInvitation(u.Email, u.FullName(), org.Name)
		})
	}
}

// List returns the roles the actor may see across organizations
// @Summary List roles
// @Tags roles
// @Produce json
// @Success 200 {array} RoleResponse
// @Security BearerAuth
// @Router /roles [get]
func (h *Handler) List(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var orgIDs []uuid.UUID
	h.db.Model(&models.Organization{}).
		Joins("LEFT JOIN organization_access oa ON oa.organization_id = organizations.id AND oa.user_id = ?", user.ID).
		Joins("LEFT JOIN organization_members om ON om.organization_id = organizations.id AND om.user_id = ?", user.ID).
		Where("organizations.owner_id = ? OR organizations.created_by_id = ? OR oa.user_id IS NOT NULL OR om.user_id IS NOT NULL",
			user.ID, user.ID).
		Distinct().Pluck("organizations.id", &orgIDs)

	q := h.db.Preload("CreatedBy").Preload("Users").Preload("CanBeAccessedBy").
		Joins("LEFT JOIN role_access ra ON ra.role_id = roles.id AND ra.user_id = ?", user.ID).
		Joins("LEFT JOIN role_users ru ON ru.role_id = roles.id AND ru.user_id = ?", user.ID)
	cond := "roles.created_by_id = ? OR ra.user_id IS NOT NULL OR ru.user_id IS NOT NULL"
	args := []interface{}{user.ID}
	if len(orgIDs) > 0 {
		cond += " OR roles.org_id IN ?"
		args = append(args, orgIDs)
	}

	var roleList []models.Role
	q.Where(cond, args...).Distinct("roles.*").Order("roles.created_at").Find(&roleList)

	resp := make([]RoleResponse, len(roleList))
	for i := range roleList {
		resp[i] = roleResponse(&roleList[i])
	}
	c.JSON(http.StatusOK, resp)
}

// Create creates a role carrying permissions in the named organization
// @Summary Create a role
// @Tags roles
// @Accept json
// @Produce json
// @Param request body CreateRoleRequest true "Role details"
// @Success 201 {object} RoleResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Security BearerAuth
// @Router /roles [post]
func (h *Handler) Create(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	var org models.Organization
	err := h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", req.Org).Error
	if err != nil || !access.HasAccess(access.ForOrg(&org), user.ID) {
		errs.Add("org", "Organization can't be found or you don't have access to it")
		httputil.Invalid(c, errs)
		return
	}

	labels := h.validatePerms(req.Perms, &org, user, errs)
	users := h.validateUsers(req.Users, &org, errs)
	if errs.Empty() && nameTaken(h.db, req.Name, org.ID, uuid.Nil) {
		errs.Add("name", "A role with that name already exists in this organization")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	role := models.Role{
		Name:        req.Name,
		Description: req.Description,
		OrgID:       org.ID,
		CreatedByID: &user.ID,
	}
	role.SetPerms(labels)

	var invited []models.User
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		if len(users) > 0 {
			if err := tx.Model(&role).Association("Users").Append(users); err != nil {
				return err
			}
			var err error
			invited, err = syncOrgMembers(tx, &org, users)
			return err
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to create role")
		return
	}

	h.notifyInvited(&org, invited)

	created, _, err := h.loadRole(role.ID.String())
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to load role")
		return
	}
	c.JSON(http.StatusCreated, roleResponse(created))
}

// Get returns a role visible to the actor
// @Summary Get a role
// @Tags roles
// @Produce json
// @Param id path string true "Role ID"
// @Success 200 {object} RoleResponse
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /roles/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user, _ := auth.GetUser(c)

	role, org, err := h.loadRole(c.Param("id"))
	if err != nil || !visible(role, org, user.ID) {
		httputil.NotFound(c, "Role can't be found")
		return
	}
	c.JSON(http.StatusOK, roleResponse(role))
}

// Update updates a role; permission changes re-run the creator-tier check
// @Summary Update a role
// @Tags roles
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param request body UpdateRoleRequest true "Updated fields"
// @Success 200 {object} RoleResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /roles/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	user, _ := auth.GetUser(c)

	role, org, err := h.loadRole(c.Param("id"))
	if err != nil || !visible(role, org, user.ID) {
		httputil.NotFound(c, "Role can't be found")
		return
	}
	if !canMutate(role, org, user.ID) {
		httputil.Forbidden(c)
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	var labels []string
	if req.Perms != nil {
		labels = h.validatePerms(*req.Perms, org, user, errs)
	}
	var users []models.User
	if req.Users != nil {
		users = h.validateUsers(*req.Users, org, errs)
	}
	if req.Name != nil && *req.Name != role.Name &&
		nameTaken(h.db, *req.Name, org.ID, role.ID) {
		errs.Add("name", "A role with that name already exists in this organization")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	var invited []models.User
	err = h.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Perms != nil {
			role.SetPerms(labels)
			updates["perms"] = role.Perms
		}
		if len(updates) > 0 {
			if err := tx.Model(role).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Users != nil {
			if err := tx.Model(role).Association("Users").Replace(users); err != nil {
				return err
			}
			var err error
			invited, err = syncOrgMembers(tx, org, users)
			return err
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update role")
		return
	}

	h.notifyInvited(org, invited)

	updated, _, err := h.loadRole(role.ID.String())
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to load role")
		return
	}
	c.JSON(http.StatusOK, roleResponse(updated))
}

// Delete soft-deletes a role; the permissions it carried stop granting
// @Summary Delete a role
// @Tags roles
// @Param id path string true "Role ID"
// @Success 204
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /roles/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	role, org, err := h.loadRole(c.Param("id"))
	if err != nil || !visible(role, org, user.ID) {
		httputil.NotFound(c, "Role can't be found")
		return
	}
	if !canMutate(role, org, user.ID) {
		httputil.Forbidden(c)
		return
	}

	if err := h.engine.DeleteRoles([]uuid.UUID{role.ID}); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete role")
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkDelete soft-deletes several roles
// @Summary Bulk-delete roles
// @Tags roles
// @Accept json
// @Produce json
// @Param request body orgs.BulkDeleteRequest true "Role ids"
// @Success 200 {object} map[string][]string "Partial success diff"
// @Success 204 "All deleted"
// @Failure 404 {object} map[string]string "Nothing deletable"
// @Security BearerAuth
// @Router /roles/bulk-delete [delete]
func (h *Handler) BulkDelete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var req orgs.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var found []models.Role
	h.db.Where("id IN ?", req.IDs).Find(&found)

	foundIDs := make(map[string]bool, len(found))
	var owned []uuid.UUID
	var deleted []string
	for i := range found {
		foundIDs[found[i].ID.String()] = true
		role, org, err := h.loadRole(found[i].ID.String())
		if err != nil || !canMutate(role, org, user.ID) {
			httputil.NotFound(c, "Ressource not found")
			return
		}
		owned = append(owned, role.ID)
		deleted = append(deleted, role.ID.String())
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

	if err := h.engine.DeleteRoles(owned); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete roles")
		return
	}

	if len(notFound) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	httputil.BulkDeleted(c, deleted, notFound)
}

// ChangeOwners replaces the role's co-owner list
// @Summary Change role co-owners
// @Tags roles
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param request body orgs.ChangeOwnersRequest true "New co-owner ids"
// @Success 204
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /roles/{id}/owners [patch]
func (h *Handler) ChangeOwners(c *gin.Context) {
	user, _ := auth.GetUser(c)

	role, org, err := h.loadRole(c.Param("id"))
	if err != nil || !visible(role, org, user.ID) {
		httputil.NotFound(c, "Role can't be found")
		return
	}
	orgSubject := access.ForOrg(org)
	if !access.IsObjectOrgOrDepartCreator(access.ForRole(role), &orgSubject, nil, user.ID) &&
		!h.checker.HasPermission(user, org, access.CanChangeRessourcesOwners) {
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

	if err := h.db.Model(role).Association("CanBeAccessedBy").Replace(owners); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update owners")
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers role routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.DELETE("/bulk-delete", h.BulkDelete)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/owners", h.ChangeOwners)
}
