package orgs

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
	"github.com/Romulad/orgs-task-api/pkg/orgtask/softdelete"
)

// Handler handles organization requests
type Handler struct {
	db     *gorm.DB
	engine *softdelete.Engine
	mail   mailer.Mailer
}

// NewHandler creates a new organizations handler
func NewHandler(db *gorm.DB, mail mailer.Mailer) *Handler {
	return &Handler{db: db, engine: softdelete.NewEngine(db), mail: mail}
}

// UserBrief is the compact user shape embedded in resource responses.
type UserBrief struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func briefs(users []models.User) []UserBrief {
	out := make([]UserBrief, len(users))
	for i, u := range users {
		out[i] = UserBrief{ID: u.ID.String(), Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
	}
	return out
}

// OrgResponse represents an organization in API responses
type OrgResponse struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Owner           *UserBrief  `json:"owner"`
	CreatedBy       *UserBrief  `json:"created_by"`
	Members         []UserBrief `json:"members"`
	CanBeAccessedBy []UserBrief `json:"can_be_accessed_by"`
	CreatedAt       string      `json:"created_at"`
}

func orgResponse(o *models.Organization) OrgResponse {
	resp := OrgResponse{
		ID:              o.ID.String(),
		Name:            o.Name,
		Description:     o.Description,
		Members:         briefs(o.Members),
		CanBeAccessedBy: briefs(o.CanBeAccessedBy),
		CreatedAt:       o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if o.Owner != nil {
		b := briefs([]models.User{*o.Owner})[0]
		resp.Owner = &b
	}
	if o.CreatedBy != nil {
		b := briefs([]models.User{*o.CreatedBy})[0]
		resp.CreatedBy = &b
	}
	return resp
}

// CreateOrgRequest represents the request to create an organization
type CreateOrgRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	Members     []string `json:"members"`
}

// UpdateOrgRequest represents the request to update an organization.
// Pointer fields distinguish "absent" from "set to empty".
type UpdateOrgRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Owner       *string   `json:"owner"`
	Members     *[]string `json:"members"`
}

// loadOrg fetches a live organization with the full authorization graph.
func loadOrg(db *gorm.DB, id string) (*models.Organization, error) {
	var org models.Organization
	err := db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func memberIDs(users []models.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// canRead is the organization visibility predicate: full access or plain
// membership.
func canRead(org *models.Organization, userID uuid.UUID) bool {
	return access.HasAccess(access.ForOrg(org), userID) ||
		access.IsMember(memberIDs(org.Members), userID)
}

// fetchUsers resolves user ids to live rows, collecting a field error for
// ids that reference no live user.
func fetchUsers(db *gorm.DB, ids []string, field string, errs httputil.FieldErrors) []models.User {
	if len(ids) == 0 {
		return nil
	}
	var users []models.User
	if err := db.Preload("CanBeAccessedBy").Where("id IN ?", ids).Find(&users).Error; err != nil {
		errs.Add(field, "Failed to resolve users")
		return nil
	}
	if len(users) != len(ids) {
		errs.Add(field, "Some users could not be found")
		return nil
	}
	return users
}

// nameTaken probes the live surface for a same-named sibling.
func nameTaken(db *gorm.DB, name string, ownerID *uuid.UUID, excludeID uuid.UUID) bool {
	q := db.Model(&models.Organization{}).Where("name = ?", name)
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	} else {
		q = q.Where("owner_id IS NULL")
	}
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	q.Count(&count)
	return count > 0
}

// notifyNewMembers dispatches invitation events after the transaction that
// added the members has committed.
func (h *Handler) notifyNewMembers(org *models.Organization, added []models.User) {
	for _, u := range added {
		u := u
		mailer.Dispatch(func() error {
			return h.mail.SendInvitation(u.Email, u.FullName(), org.Name)
		})
	}
}

// List returns the organizations the actor owns, created, co-owns or is a
// member of
// @Summary List organizations
// @Tags orgs
// @Produce json
// @Success 200 {array} OrgResponse
// @Security BearerAuth
// @Router /orgs [get]
func (h *Handler) List(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var orgIDs []uuid.UUID
	h.db.Model(&models.Organization{}).
		Joins("LEFT JOIN organization_access oa ON oa.organization_id = organizations.id AND oa.user_id = ?", user.ID).
		Joins("LEFT JOIN organization_members om ON om.organization_id = organizations.id AND om.user_id = ?", user.ID).
		Where("organizations.owner_id = ? OR organizations.created_by_id = ? OR oa.user_id IS NOT NULL OR om.user_id IS NOT NULL",
			user.ID, user.ID).
		Distinct().Order("organizations.created_at").
		Pluck("organizations.id", &orgIDs)

	var orgList []models.Organization
	if len(orgIDs) > 0 {
		h.db.Preload("Owner").Preload("CreatedBy").
			Preload("Members").Preload("CanBeAccessedBy").
			Where("id IN ?", orgIDs).Order("created_at").
			Find(&orgList)
	}

	resp := make([]OrgResponse, len(orgList))
	for i := range orgList {
		resp[i] = orgResponse(&orgList[i])
	}
	c.JSON(http.StatusOK, resp)
}

// Create creates an organization owned by the actor unless another owner is
// named
// @Summary Create an organization
// @Tags orgs
// @Accept json
// @Produce json
// @Param request body CreateOrgRequest true "Organization details"
// @Success 201 {object} OrgResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Security BearerAuth
// @Router /orgs [post]
func (h *Handler) Create(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}

	owner := user
	if req.Owner != "" && req.Owner != user.ID.String() {
		owners := fetchUsers(h.db, []string{req.Owner}, "owner", errs)
		if len(owners) == 1 {
			owner = &owners[0]
			if !access.HasAccess(access.ForUser(owner), user.ID) {
				errs.Add("owner", "You need to have access to the owner user")
			}
		}
	}

	members := fetchUsers(h.db, req.Members, "members", errs)
	if len(members) > 0 && owner != nil {
		if !access.HasAccessAll(access.ForUsers(members), owner.ID) {
			errs.Add("members", "The org owner need to have a full access over users")
		}
	}

	if errs.Empty() && nameTaken(h.db, req.Name, &owner.ID, uuid.Nil) {
		errs.Add("name", "An organization with that name already exists for this owner")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	org := models.Organization{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     &owner.ID,
		CreatedByID: &user.ID,
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		if len(members) > 0 {
			return tx.Model(&org).Association("Members").Append(members)
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to create organization")
		return
	}

	h.notifyNewMembers(&org, members)

	created, err := loadOrg(h.db, org.ID.String())
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to load organization")
		return
	}
	c.JSON(http.StatusCreated, orgResponse(created))
}

// Get returns an organization visible to the actor
// @Summary Get an organization
// @Tags orgs
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} OrgResponse
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user, _ := auth.GetUser(c)

	org, err := loadOrg(h.db, c.Param("id"))
	if err != nil || !canRead(org, user.ID) {
		httputil.NotFound(c, "Organization can't be found")
		return
	}
	c.JSON(http.StatusOK, orgResponse(org))
}

// Update updates an organization; plain membership is not enough
// @Summary Update an organization
// @Tags orgs
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param request body UpdateOrgRequest true "Updated fields"
// @Success 200 {object} OrgResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
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

	var req UpdateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}

	newOwnerID := org.OwnerID
	var newOwner *models.User
	if req.Owner != nil && (org.OwnerID == nil || *req.Owner != org.OwnerID.String()) {
		owners := fetchUsers(h.db, []string{*req.Owner}, "owner", errs)
		if len(owners) == 1 {
			newOwner = &owners[0]
			newOwnerID = &newOwner.ID
			if !access.HasAccess(access.ForUser(newOwner), user.ID) {
				errs.Add("owner", "You need to have access to the owner user")
			}
		}
	}

	newName := org.Name
	if req.Name != nil {
		newName = *req.Name
	}
	// A value equal to the current one is accepted without a probe.
	if (newName != org.Name || (newOwnerID != org.OwnerID)) &&
		nameTaken(h.db, newName, newOwnerID, org.ID) {
		errs.Add("name", "An organization with that name already exists for this owner")
	}

	var newMembers []models.User
	var addedMembers []models.User
	if req.Members != nil {
		newMembers = fetchUsers(h.db, *req.Members, "members", errs)
		ownerForCheck := org.Owner
		if newOwner != nil {
			ownerForCheck = newOwner
		}
		if errs.Empty() && ownerForCheck != nil &&
			!access.HasAccessAll(access.ForUsers(newMembers), ownerForCheck.ID) {
			errs.Add("members", "The org owner need to have a full access over users")
		}
		addedMembers = org.MissingMembers(newMembers)
	}

	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if newOwner != nil {
			updates["owner_id"] = newOwner.ID
		}
		if len(updates) > 0 {
			if err := tx.Model(org).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Members != nil {
			if err := tx.Model(org).Association("Members").Replace(newMembers); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update organization")
		return
	}

	h.notifyNewMembers(org, addedMembers)

	updated, err := loadOrg(h.db, org.ID.String())
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to load organization")
		return
	}
	c.JSON(http.StatusOK, orgResponse(updated))
}

// Delete soft-deletes an organization and everything it owns
// @Summary Delete an organization
// @Tags orgs
// @Param id path string true "Organization ID"
// @Success 204
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /orgs/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
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

	if err := h.engine.DeleteOrgs([]uuid.UUID{org.ID}); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete organization")
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkDeleteRequest carries the ids for a bulk delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// BulkDelete soft-deletes several organizations; the operation is refused
// outright when any id points at an organization the actor may not delete
// @Summary Bulk-delete organizations
// @Tags orgs
// @Accept json
// @Produce json
// @Param request body BulkDeleteRequest true "Organization ids"
// @Success 200 {object} map[string][]string "Partial success diff"
// @Success 204 "All deleted"
// @Failure 404 {object} map[string]string "Nothing deletable"
// @Security BearerAuth
// @Router /orgs/bulk-delete [delete]
func (h *Handler) BulkDelete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var found []models.Organization
	h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		Where("id IN ?", req.IDs).Find(&found)

	foundIDs := make(map[string]bool, len(found))
	var owned []uuid.UUID
	var deleted []string
	for i := range found {
		org := &found[i]
		foundIDs[org.ID.String()] = true
		if !access.HasAccess(access.ForOrg(org), user.ID) {
			// Whole operation fails; existence is not disclosed.
			httputil.NotFound(c, "Ressource not found")
			return
		}
		owned = append(owned, org.ID)
		deleted = append(deleted, org.ID.String())
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

	if err := h.engine.DeleteOrgs(owned); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete organizations")
		return
	}

	if len(notFound) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	httputil.BulkDeleted(c, deleted, notFound)
}

// RegisterRoutes registers organization routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.DELETE("/bulk-delete", h.BulkDelete)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/owners", h.ChangeOwners)
	rg.POST("/:id/members/remove", h.RemoveMembers)
}
