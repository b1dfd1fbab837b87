package tags

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/access"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/httputil"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/orgs"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/softdelete"
)

// Handler handles tag requests
type Handler struct {
	db      *gorm.DB
	engine  *softdelete.Engine
	checker *access.Checker
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, engine: softdelete.NewEngine(db), checker: access.NewChecker(db)}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Org             string           `json:"org"`
	CreatedBy       *orgs.UserBrief  `json:"created_by"`
	CanBeAccessedBy []orgs.UserBrief `json:"can_be_accessed_by"`
	CreatedAt       string           `json:"created_at"`
}

func tagResponse(t *models.Tag) TagResponse {
	resp := TagResponse{
		ID:          t.ID.String(),
		Name:        t.Name,
		Description: t.Description,
		Org:         t.OrgID.String(),
		CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if t.CreatedBy != nil {
		resp.CreatedBy = &orgs.UserBrief{
			ID: t.CreatedBy.ID.String(), Email: t.CreatedBy.Email,
			FirstName: t.CreatedBy.FirstName, LastName: t.CreatedBy.LastName,
		}
	}
	resp.CanBeAccessedBy = make([]orgs.UserBrief, len(t.CanBeAccessedBy))
	for i, u := range t.CanBeAccessedBy {
		resp.CanBeAccessedBy[i] = orgs.UserBrief{
			ID: u.ID.String(), Email: u.Email, FirstName: u.FirstName, LastName: u.LastName,
		}
	}
	return resp
}

// CreateTagRequest represents the request to create a tag
type CreateTagRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Org         string `json:"org" binding:"required"`
}

// UpdateTagRequest represents the request to update a tag. The parent
// organization is fixed at creation.
type UpdateTagRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func memberIDs(users []models.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// visibleOrgIDs returns the ids of every organization the actor has a
// channel to, membership included.
func visibleOrgIDs(db *gorm.DB, userID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	db.Model(&models.Organization{}).
		Joins("LEFT JOIN organization_access oa ON oa.organization_id = organizations.id AND oa.user_id = ?", userID).
		Joins("LEFT JOIN organization_members om ON om.organization_id = organizations.id AND om.user_id = ?", userID).
		Where("organizations.owner_id = ? OR organizations.created_by_id = ? OR oa.user_id IS NOT NULL OR om.user_id IS NOT NULL",
			userID, userID).
		Distinct().Pluck("organizations.id", &ids)
	return ids
}

func (h *Handler) loadTag(id string) (*models.Tag, *models.Organization, error) {
	var tag models.Tag
	err := h.db.Preload("CreatedBy").Preload("CanBeAccessedBy").
		First(&tag, "id = ?", id).Error
	if err != nil {
		return nil, nil, err
	}
	var org models.Organization
	err = h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", tag.OrgID).Error
	if err != nil {
		return nil, nil, err
	}
	return &tag, &org, nil
}

func visible(tag *models.Tag, org *models.Organization, userID uuid.UUID) bool {
	return access.HasAccess(access.ForTag(tag), userID) ||
		access.HasAccess(access.ForOrg(org), userID) ||
		access.IsMember(memberIDs(org.Members), userID)
}

func nameTaken(db *gorm.DB, name string, orgID, excludeID uuid.UUID) bool {
	q := db.Model(&models.Tag{}).Where("name = ? AND org_id = ?", name, orgID)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	q.Count(&count)
	return count > 0
}

// List returns the tags the actor may see across organizations
// @Summary List tags
// @Tags tags
// @Produce json
// @Success 200 {array} TagResponse
// @Security BearerAuth
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	user, _ := auth.GetUser(c)

	orgIDs := visibleOrgIDs(h.db, user.ID)

	q := h.db.Preload("CreatedBy").Preload("CanBeAccessedBy").
		Joins("LEFT JOIN tag_access ta ON ta.tag_id = tags.id AND ta.user_id = ?", user.ID)
	if len(orgIDs) > 0 {
		q = q.Where("tags.org_id IN ? OR tags.created_by_id = ? OR ta.user_id IS NOT NULL", orgIDs, user.ID)
	} else {
		q = q.Where("tags.created_by_id = ? OR ta.user_id IS NOT NULL", user.ID)
	}

	var tagList []models.Tag
	q.Distinct("tags.*").Order("tags.created_at").Find(&tagList)

	resp := make([]TagResponse, len(tagList))
	for i := range tagList {
		resp[i] = tagResponse(&tagList[i])
	}
	c.JSON(http.StatusOK, resp)
}

// Create creates a tag in the named organization
// @Summary Create a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param request body CreateTagRequest true "Tag details"
// @Success 201 {object} TagResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Security BearerAuth
// @Router /tags [post]
func (h *Handler) Create(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	var org models.Organization
	err := h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", req.Org).Error
	if err != nil {
		errs.Add("org", "Organization can't be found or you don't have access to it")
		httputil.Invalid(c, errs)
		return
	}
	if !access.HasAccess(access.ForOrg(&org), user.ID) &&
		!h.checker.HasPermission(user, &org, access.CanCreateTag) {
		errs.Add("org", "Organization can't be found or you don't have access to it")
	}
	if errs.Empty() && nameTaken(h.db, req.Name, org.ID, uuid.Nil) {
		errs.Add("name", "A tag with that name already exists in this organization")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	tag := models.Tag{
		Name:        req.Name,
		Description: req.Description,
		OrgID:       org.ID,
		CreatedByID: &user.ID,
	}
	if err := h.db.Create(&tag).Error; err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to create tag")
		return
	}
	tag.CreatedBy = user
	c.JSON(http.StatusCreated, tagResponse(&tag))
}

// Get returns a tag visible to the actor
// @Summary Get a tag
// @Tags tags
// @Produce json
// @Param id path string true "Tag ID"
// @Success 200 {object} TagResponse
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tags/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user, _ := auth.GetUser(c)

	tag, org, err := h.loadTag(c.Param("id"))
	if err != nil || !visible(tag, org, user.ID) {
		httputil.NotFound(c, "Tag can't be found")
		return
	}
	c.JSON(http.StatusOK, tagResponse(tag))
}

// Update updates a tag
// @Summary Update a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param id path string true "Tag ID"
// @Param request body UpdateTagRequest true "Updated fields"
// @Success 200 {object} TagResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tags/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	user, _ := auth.GetUser(c)

	tag, org, err := h.loadTag(c.Param("id"))
	if err != nil || !visible(tag, org, user.ID) {
		httputil.NotFound(c, "Tag can't be found")
		return
	}
	if !access.CanAccessOrgOrObj(access.ForTag(tag), access.ForOrg(org), user.ID) {
		httputil.Forbidden(c)
		return
	}

	var req UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	if req.Name != nil && *req.Name != tag.Name &&
		nameTaken(h.db, *req.Name, org.ID, tag.ID) {
		errs := httputil.FieldErrors{}
		errs.Add("name", "A tag with that name already exists in this organization")
		httputil.Invalid(c, errs)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) > 0 {
		if err := h.db.Model(tag).Updates(updates).Error; err != nil {
			httputil.Detail(c, http.StatusInternalServerError, "Failed to update tag")
			return
		}
	}
	c.JSON(http.StatusOK, tagResponse(tag))
}

// Delete soft-deletes a tag; tasks keep running without it
// @Summary Delete a tag
// @Tags tags
// @Param id path string true "Tag ID"
// @Success 204
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tags/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	tag, org, err := h.loadTag(c.Param("id"))
	if err != nil || !visible(tag, org, user.ID) {
		httputil.NotFound(c, "Tag can't be found")
		return
	}
	if !access.CanAccessOrgOrObj(access.ForTag(tag), access.ForOrg(org), user.ID) {
		httputil.Forbidden(c)
		return
	}

	if err := h.engine.DeleteTags([]uuid.UUID{tag.ID}); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete tag")
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkDelete soft-deletes several tags
// @Summary Bulk-delete tags
// @Tags tags
// @Accept json
// @Produce json
// @Param request body orgs.BulkDeleteRequest true "Tag ids"
// @Success 200 {object} map[string][]string "Partial success diff"
// @Success 204 "All deleted"
// @Failure 404 {object} map[string]string "Nothing deletable"
// @Security BearerAuth
// @Router /tags/bulk-delete [delete]
func (h *Handler) BulkDelete(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var req orgs.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var found []models.Tag
	h.db.Preload("CreatedBy").Preload("CanBeAccessedBy").
		Where("id IN ?", req.IDs).Find(&found)

	orgCache := map[uuid.UUID]*models.Organization{}
	loadOrgCached := func(id uuid.UUID) *models.Organization {
		if org, ok := orgCache[id]; ok {
			return org
		}
		var org models.Organization
		if err := h.db.Preload("Owner").Preload("CreatedBy").
			Preload("Members").Preload("CanBeAccessedBy").
			First(&org, "id = ?", id).Error; err != nil {
			return nil
		}
		orgCache[id] = &org
		return &org
	}

	foundIDs := make(map[string]bool, len(found))
	var owned []uuid.UUID
	var deleted []string
	for i := range found {
		tag := &found[i]
		foundIDs[tag.ID.String()] = true
		org := loadOrgCached(tag.OrgID)
		if org == nil || !access.CanAccessOrgOrObj(access.ForTag(tag), access.ForOrg(org), user.ID) {
			httputil.NotFound(c, "Ressource not found")
			return
		}
		owned = append(owned, tag.ID)
		deleted = append(deleted, tag.ID.String())
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

	if err := h.engine.DeleteTags(owned); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete tags")
		return
	}

	if len(notFound) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	httputil.BulkDeleted(c, deleted, notFound)
}

// ChangeOwners replaces the tag's co-owner list
// @Summary Change tag co-owners
// @Tags tags
// @Accept json
// @Produce json
// @Param id path string true "Tag ID"
// @Param request body orgs.ChangeOwnersRequest true "New co-owner ids"
// @Success 204
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /tags/{id}/owners [patch]
func (h *Handler) ChangeOwners(c *gin.Context) {
	user, _ := auth.GetUser(c)

	tag, org, err := h.loadTag(c.Param("id"))
	if err != nil || !visible(tag, org, user.ID) {
		httputil.NotFound(c, "Tag can't be found")
		return
	}
	orgSubject := access.ForOrg(org)
	if !access.IsObjectOrgOrDepartCreator(access.ForTag(tag), &orgSubject, nil, user.ID) &&
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

	if err := h.db.Model(tag).Association("CanBeAccessedBy").Replace(owners); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update owners")
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers tag routes
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
