package departs

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

// Handler handles department requests, always scoped under an organization
type Handler struct {
	db      *gorm.DB
	engine  *softdelete.Engine
	checker *access.Checker
	mail    mailer.Mailer
}

// NewHandler creates a new departments handler
func NewHandler(db *gorm.DB, mail mailer.Mailer) *Handler {
	return &Handler{
		db:      db,
		engine:  softdelete.NewEngine(db),
		checker: access.NewChecker(db),
		mail:    mail,
	}
}

// DepartResponse represents a department in API responses
type DepartResponse struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Org             string           `json:"org"`
	CreatedBy       *orgs.UserBrief  `json:"created_by"`
	Members         []orgs.UserBrief `json:"members"`
	CanBeAccessedBy []orgs.UserBrief `json:"can_be_accessed_by"`
	CreatedAt       string           `json:"created_at"`
}

func departResponse(d *models.Department) DepartResponse {
	resp := DepartResponse{
		ID:              d.ID.String(),
		Name:            d.Name,
		Description:     d.Description,
		Org:             d.OrgID.String(),
		Members:         briefList(d.Members),
		CanBeAccessedBy: briefList(d.CanBeAccessedBy),
		CreatedAt:       d.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if d.CreatedBy != nil {
		b := brief(d.CreatedBy)
		resp.CreatedBy = &b
	}
	return resp
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

// CreateDepartRequest represents the request to create a department
type CreateDepartRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

// UpdateDepartRequest represents the request to update a department
type UpdateDepartRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Members     *[]string `json:"members"`
}

func memberIDs(users []models.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// loadOrg fetches the parent organization with its authorization graph.
func (h *Handler) loadOrg(c *gin.Context) (*models.Organization, bool) {
	var org models.Organization
	err := h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", c.Param("id")).Error
	if err != nil {
		httputil.NotFound(c, "Organization can't be found")
		return nil, false
	}
	return &org, true
}

func (h *Handler) loadDepart(org *models.Organization, id string) (*models.Department, error) {
	var depart models.Department
	err := h.db.Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&depart, "id = ? AND org_id = ?", id, org.ID).Error
	if err != nil {
		return nil, err
	}
	return &depart, nil
}

func orgVisible(org *models.Organization, userID uuid.UUID) bool {
	return access.HasAccess(access.ForOrg(org), userID) ||
		access.IsMember(memberIDs(org.Members), userID)
}

func departVisible(org *models.Organization, d *models.Department, userID uuid.UUID) bool {
	return orgVisible(org, userID) ||
		access.HasAccess(access.ForDepartment(d), userID) ||
		access.IsMember(memberIDs(d.Members), userID)
}

// canMutate is the department write predicate: access to the department or
// to its organization. Membership alone reads but never writes.
func canMutate(org *models.Organization, d *models.Department, userID uuid.UUID) bool {
	return access.CanAccessOrgOrObj(access.ForDepartment(d), access.ForOrg(org), userID)
}

// validateMembers resolves member ids and checks that the organization side
// keeps transitive access over every user pulled in.
func (h *Handler) validateMembers(org *models.Organization, ids []string, errs httputil.FieldErrors) []models.User {
	if len(ids) == 0 {
		return nil
	}
	var users []models.User
	if err := h.db.Preload("CanBeAccessedBy").Where("id IN ?", ids).Find(&users).Error; err != nil {
		errs.Add("members", "Failed to resolve users")
		return nil
	}
	if len(users) != len(ids) {
		errs.Add("members", "Some users could not be found")
		return nil
	}
	ownerID := org.CreatedByID
	if org.OwnerID != nil {
		ownerID = org.OwnerID
	}
	if ownerID != nil && !access.HasAccessAll(access.ForUsers(users), *ownerID) {
		errs.Add("members", "The org owner need to have a full access over users")
	}
	return users
}

// syncOrgMembers adds department members missing from the organization's
// member set and returns the users that were newly attached to the org.
func syncOrgMembers(tx *gorm.DB, org *models.Organization, members []models.User) ([]models.User, error) {
	missing := org.MissingMembers(members)
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

func nameTaken(db *gorm.DB, name string, orgID, excludeID uuid.UUID) bool {
	q := db.Model(&models.Department{}).Where("name = ? AND org_id = ?", name, orgID)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	q.Count(&count)
	return count > 0
}

// List returns the organization's departments the actor may see
// @Summary List departments
// @Tags departs
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {array} DepartResponse
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id}/departs [get]
func (h *Handler) List(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, ok := h.loadOrg(c)
	if !ok {
		return
	}

	var departList []models.Department
	h.db.Preload("CreatedBy").Preload("Members").Preload("CanBeAccessedBy").
		Where("org_id = ?", org.ID).Order("created_at").
		Find(&departList)

	full := orgVisible(org, user.ID)
	resp := []DepartResponse{}
	for i := range departList {
		d := &departList[i]
		if full || departVisible(org, d, user.ID) {
			resp = append(resp, departResponse(d))
		}
	}
	if !full && len(resp) == 0 {
		httputil.NotFound(c, "Organization can't be found")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Create creates a department in the organization
// @Summary Create a department
// @Tags departs
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param request body CreateDepartRequest true "Department details"
// @Success 201 {object} DepartResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id}/departs [post]
func (h *Handler) Create(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, ok := h.loadOrg(c)
	if !ok {
		return
	}
	if !orgVisible(org, user.ID) {
		httputil.NotFound(c, "Organization can't be found")
		return
	}
	if !access.HasAccess(access.ForOrg(org), user.ID) &&
		!h.checker.HasPermission(user, org, access.CanCreateDepart) {
		httputil.Forbidden(c)
		return
	}

	var req CreateDepartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	members := h.validateMembers(org, req.Members, errs)
	if errs.Empty() && nameTaken(h.db, req.Name, org.ID, uuid.Nil) {
		errs.Add("name", "A department with that name already exists in this organization")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	depart := models.Department{
		Name:        req.Name,
		Description: req.Description,
		OrgID:       org.ID,
		CreatedByID: &user.ID,
	}
	var invited []models.User
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&depart).Error; err != nil {
			return err
		}
		if len(members) > 0 {
			if err := tx.Model(&depart).Association("Members").Append(members); err != nil {
				return err
			}
			var err error
			invited, err = syncOrgMembers(tx, org, members)
			return err
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to create department")
		return
	}

	h.notifyInvited(org, invited)

	created, err := h.loadDepart(org, depart.ID.String())
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to load department")
		return
	}
	c.JSON(http.StatusCreated, departResponse(created))
}

// Get returns a department visible to the actor
// @Summary Get a department
// @Tags departs
// @Produce json
// @Param id path string true "Organization ID"
// @Param depart_id path string true "Department ID"
// @Success 200 {object} DepartResponse
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id}/departs/{depart_id} [get]
func (h *Handler) Get(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, ok := h.loadOrg(c)
	if !ok {
		return
	}
	depart, err := h.loadDepart(org, c.Param("depart_id"))
	if err != nil || !departVisible(org, depart, user.ID) {
		httputil.NotFound(c, "Department can't be found")
		return
	}
	c.JSON(http.StatusOK, departResponse(depart))
}

// Update updates a department
// @Summary Update a department
// @Tags departs
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param depart_id path string true "Department ID"
// @Param request body UpdateDepartRequest true "Updated fields"
// @Success 200 {object} DepartResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id}/departs/{depart_id} [patch]
func (h *Handler) Update(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, ok := h.loadOrg(c)
	if !ok {
		return
	}
	depart, err := h.loadDepart(org, c.Param("depart_id"))
	if err != nil || !departVisible(org, depart, user.ID) {
		httputil.NotFound(c, "Department can't be found")
		return
	}
	if !canMutate(org, depart, user.ID) {
		httputil.Forbidden(c)
		return
	}

	var req UpdateDepartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	if req.Name != nil && *req.Name != depart.Name &&
		nameTaken(h.db, *req.Name, org.ID, depart.ID) {
		errs.Add("name", "A department with that name already exists in this organization")
	}
	var newMembers []models.User
	if req.Members != nil {
		newMembers = h.validateMembers(org, *req.Members, errs)
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
		if len(updates) > 0 {
			if err := tx.Model(depart).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Members != nil {
			if err := tx.Model(depart).Association("Members").Replace(newMembers); err != nil {
				return err
			}
			var err error
			invited, err = syncOrgMembers(tx, org, newMembers)
			return err
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update department")
		return
	}

	h.notifyInvited(org, invited)

	updated, err := h.loadDepart(org, depart.ID.String())
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to load department")
		return
	}
	c.JSON(http.StatusOK, departResponse(updated))
}

// Delete soft-deletes a department; its tasks survive detached
// @Summary Delete a department
// @Tags departs
// @Param id path string true "Organization ID"
// @Param depart_id path string true "Department ID"
// @Success 204
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id}/departs/{depart_id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, ok := h.loadOrg(c)
	if !ok {
		return
	}
	depart, err := h.loadDepart(org, c.Param("depart_id"))
	if err != nil || !departVisible(org, depart, user.ID) {
		httputil.NotFound(c, "Department can't be found")
		return
	}
	if !canMutate(org, depart, user.ID) {
		httputil.Forbidden(c)
		return
	}

	if err := h.engine.DeleteDepartments([]uuid.UUID{depart.ID}); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete department")
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkDelete soft-deletes several departments of the organization
// @Summary Bulk-delete departments
// @Tags departs
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param request body orgs.BulkDeleteRequest true "Department ids"
// @Success 200 {object} map[string][]string "Partial success diff"
// @Success 204 "All deleted"
// @Failure 404 {object} map[string]string "Nothing deletable"
// @Security BearerAuth
// @Router /orgs/{id}/departs/bulk-delete [delete]
func (h *Handler) BulkDelete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, ok := h.loadOrg(c)
	if !ok {
		return
	}

	var req orgs.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var found []models.Department
	h.db.Preload("CreatedBy").Preload("Members").Preload("CanBeAccessedBy").
		Where("id IN ? AND org_id = ?", req.IDs, org.ID).Find(&found)

	foundIDs := make(map[string]bool, len(found))
	var owned []uuid.UUID
	var deleted []string
	for i := range found {
		d := &found[i]
		foundIDs[d.ID.String()] = true
		if !canMutate(org, d, user.ID) {
			httputil.NotFound(c, "Ressource not found")
			return
		}
		owned = append(owned, d.ID)
		deleted = append(deleted, d.ID.String())
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

	if err := h.engine.DeleteDepartments(owned); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete departments")
		return
	}

	if len(notFound) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	httputil.BulkDeleted(c, deleted, notFound)
}

// ChangeOwners replaces the department's co-owner list
// @Summary Change department co-owners
// @Tags departs
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param depart_id path string true "Department ID"
// @Param request body orgs.ChangeOwnersRequest true "New co-owner ids"
// @Success 204
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id}/departs/{depart_id}/owners [patch]
func (h *Handler) ChangeOwners(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, ok := h.loadOrg(c)
	if !ok {
		return
	}
	depart, err := h.loadDepart(org, c.Param("depart_id"))
	if err != nil || !departVisible(org, depart, user.ID) {
		httputil.NotFound(c, "Department can't be found")
		return
	}
	orgSubject := access.ForOrg(org)
	if !access.IsObjectOrgOrDepartCreator(access.ForDepartment(depart), &orgSubject, nil, user.ID) &&
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

	if err := h.db.Model(depart).Association("CanBeAccessedBy").Replace(owners); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update owners")
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers department routes under the organization group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/departs", h.List)
	rg.POST("/:id/departs", h.Create)
	rg.DELETE("/:id/departs/bulk-delete", h.BulkDelete)
	rg.GET("/:id/departs/:depart_id", h.Get)
	rg.PUT("/:id/departs/:depart_id", h.Update)
	rg.PATCH("/:id/departs/:depart_id", h.Update)
	rg.DELETE("/:id/departs/:depart_id", h.Delete)
	rg.PATCH("/:id/departs/:depart_id/owners", h.ChangeOwners)
}
