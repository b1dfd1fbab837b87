package users

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

// Handler handles user account requests
type Handler struct {
	db      *gorm.DB
	engine  *softdelete.Engine
	baseURL string
	mail    mailer.Mailer
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB, baseURL string, mail mailer.Mailer) *Handler {
	return &Handler{db: db, engine: softdelete.NewEngine(db), baseURL: baseURL, mail: mail}
}

// UserDetail represents a user in API responses
type UserDetail struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	FirstName       string           `json:"first_name"`
	LastName        string           `json:"last_name"`
	IsActive        bool             `json:"is_active"`
	CreatedBy       *orgs.UserBrief  `json:"created_by"`
	CanBeAccessedBy []orgs.UserBrief `json:"can_be_accessed_by"`
	CreatedAt       string           `json:"created_at"`
}

func brief(u *models.User) orgs.UserBrief {
	return orgs.UserBrief{ID: u.ID.String(), Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func userDetail(u *models.User) UserDetail {
	resp := UserDetail{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if u.CreatedBy != nil {
		b := brief(u.CreatedBy)
		resp.CreatedBy = &b
	}
	resp.CanBeAccessedBy = make([]orgs.UserBrief, len(u.CanBeAccessedBy))
	for i := range u.CanBeAccessedBy {
		resp.CanBeAccessedBy[i] = brief(&u.CanBeAccessedBy[i])
	}
	return resp
}

// CreateUserRequest represents the request to provision an account for
// someone else
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
}

// UpdateUserRequest represents the request to update an account
type UpdateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (h *Handler) loadUser(id string) (*models.User, error) {
	var user models.User
	err := h.db.Preload("CreatedBy").Preload("CanBeAccessedBy").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns the accounts the actor created or was granted access to,
// excluding the actor itself
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} UserDetail
// @Security BearerAuth
// @Router /users [get]
func (h *Handler) List(c *gin.Context) {
	user, _ := auth.GetUser(c)

	var userList []models.User
	h.db.Preload("CreatedBy").Preload("CanBeAccessedBy").
		Joins("LEFT JOIN user_access ua ON ua.user_id = users.id AND ua.accessor_id = ?", user.ID).
		Where("users.id <> ? AND (users.created_by_id = ? OR ua.accessor_id IS NOT NULL)", user.ID, user.ID).
		Distinct("users.*").Order("users.created_at").
		Find(&userList)

	resp := make([]UserDetail, len(userList))
	for i := range userList {
		resp[i] = userDetail(&userList[i])
	}
	c.JSON(http.StatusOK, resp)
}

// Create provisions an account on someone's behalf. The account stays
// inactive until its owner follows the emailed activation link.
// @Summary Create a user
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "Account details"
// @Success 201 {object} UserDetail
// @Failure 400 {object} map[string][]string "Validation error"
// @Security BearerAuth
// @Router /users [post]
func (h *Handler) Create(c *gin.Context) {
	actor, _ := auth.GetUser(c)

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	if err := auth.ValidatePassword(req.Password); err != nil {
		errs.Add("password", err.Error())
	}
	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		errs.Add("email", "A user with that email already exists.")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hashed,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     false,
		CreatedByID:  &actor.ID,
	}
	if err := h.db.Create(&user).Error; err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	link := auth.ActivationURL(h.baseURL, &user)
	mailer.Dispatch(func() error {
		return h.mail.SendActivation(user.Email, user.FullName(), link)
	})

	user.CreatedBy = actor
	c.JSON(http.StatusCreated, userDetail(&user))
}

// Me returns the acting principal
// @Summary Get the current user
// @Tags users
// @Produce json
// @Success 200 {object} UserDetail
// @Security BearerAuth
// @Router /users/me [get]
func (h *Handler) Me(c *gin.Context) {
	actor, _ := auth.GetUser(c)
	user, err := h.loadUser(actor.ID.String())
	if err != nil {
		httputil.NotFound(c, "User can't be found")
		return
	}
	c.JSON(http.StatusOK, userDetail(user))
}

// Get returns a user visible to the actor
// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} UserDetail
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	actor, _ := auth.GetUser(c)

	user, err := h.loadUser(c.Param("id"))
	if err != nil || !access.HasAccess(access.ForUser(user), actor.ID) {
		httputil.NotFound(c, "User can't be found")
		return
	}
	c.JSON(http.StatusOK, userDetail(user))
}

// Update updates an account the actor has access to
// @Summary Update a user
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Updated fields"
// @Success 200 {object} UserDetail
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /users/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	actor, _ := auth.GetUser(c)

	user, err := h.loadUser(c.Param("id"))
	if err != nil || !access.HasAccess(access.ForUser(user), actor.ID) {
		httputil.NotFound(c, "User can't be found")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	if req.Email != nil && *req.Email != user.Email {
		var existing models.User
		if err := h.db.Where("email = ? AND id <> ?", *req.Email, user.ID).First(&existing).Error; err == nil {
			errs.Add("email", "A user with that email already exists.")
		}
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if len(updates) > 0 {
		if err := h.db.Model(user).Updates(updates).Error; err != nil {
			httputil.Detail(c, http.StatusInternalServerError, "Failed to update user")
			return
		}
	}
	c.JSON(http.StatusOK, userDetail(user))
}

// Delete soft-deletes an account; only the account itself or its creator may
// @Summary Delete a user
// @Tags users
// @Param id path string true "User ID"
// @Success 204
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /users/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	actor, _ := auth.GetUser(c)

	user, err := h.loadUser(c.Param("id"))
	if err != nil || !access.HasAccess(access.ForUser(user), actor.ID) {
		httputil.NotFound(c, "User can't be found")
		return
	}
	if !access.HasCreatorAccess(access.ForUser(user), actor.ID) {
		httputil.Forbidden(c)
		return
	}

	if err := h.engine.DeleteUsers([]uuid.UUID{user.ID}); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

// BulkDelete soft-deletes several accounts
// @Summary Bulk-delete users
// @Tags users
// @Accept json
// @Produce json
// @Param request body orgs.BulkDeleteRequest true "User ids"
// @Success 200 {object} map[string][]string "Partial success diff"
// @Success 204 "All deleted"
// @Failure 404 {object} map[string]string "Nothing deletable"
// @Security BearerAuth
// @Router /users/bulk-delete [delete]
func (h *Handler) BulkDelete(c *gin.Context) {
	actor, _ := auth.GetUser(c)

	var req orgs.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var found []models.User
	h.db.Preload("CanBeAccessedBy").Where("id IN ?", req.IDs).Find(&found)

	foundIDs := make(map[string]bool, len(found))
	var owned []uuid.UUID
	var deleted []string
	for i := range found {
		u := &found[i]
		foundIDs[u.ID.String()] = true
		if !access.HasCreatorAccess(access.ForUser(u), actor.ID) {
			httputil.NotFound(c, "Ressource not found")
			return
		}
		owned = append(owned, u.ID)
		deleted = append(deleted, u.ID.String())
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

	if err := h.engine.DeleteUsers(owned); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to delete users")
		return
	}

	if len(notFound) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	httputil.BulkDeleted(c, deleted, notFound)
}

// ChangePasswordRequest carries a password change for an accessible account.
// The actor proves their identity with their own current password.
type ChangePasswordRequest struct {
	Password           string `json:"password" binding:"required"`
	NewPassword        string `json:"new_password" binding:"required"`
	ConfirmNewPassword string `json:"confirm_new_password" binding:"required"`
}

// ChangePassword changes the password of an account the actor has access to
// @Summary Change a user's password
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body ChangePasswordRequest true "Password change"
// @Success 204
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /users/{id}/change-password [post]
func (h *Handler) ChangePassword(c *gin.Context) {
	actor, _ := auth.GetUser(c)

	user, err := h.loadUser(c.Param("id"))
	if err != nil || !access.HasAccess(access.ForUser(user), actor.ID) {
		httputil.NotFound(c, "User can't be found")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	if !auth.CheckPassword(req.Password, actor.PasswordHash) {
		errs.Add("password", "Invalid password")
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		errs.Add("new_password", err.Error())
	}
	if req.NewPassword != req.ConfirmNewPassword {
		errs.Add("confirm_new_password", "Passwords do not match")
	}
	if auth.CheckPassword(req.NewPassword, user.PasswordHash) {
		errs.Add("new_password", "New password must be different from the current one")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to process password")
		return
	}
	if err := h.db.Model(user).Update("password_hash", hashed).Error; err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to change password")
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangeOwners replaces the account's access list; only the account itself
// or its creator may delegate
// @Summary Change user co-owners
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body orgs.ChangeOwnersRequest true "New co-owner ids"
// @Success 204
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /users/{id}/owners [patch]
func (h *Handler) ChangeOwners(c *gin.Context) {
	actor, _ := auth.GetUser(c)

	user, err := h.loadUser(c.Param("id"))
	if err != nil || !access.HasAccess(access.ForUser(user), actor.ID) {
		httputil.NotFound(c, "User can't be found")
		return
	}
	if !access.HasCreatorAccess(access.ForUser(user), actor.ID) {
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

	if err := h.db.Model(user).Association("CanBeAccessedBy").Replace(owners); err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to update owners")
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers user routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/me", h.Me)
	rg.DELETE("/bulk-delete", h.BulkDelete)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/change-password", h.ChangePassword)
	rg.PATCH("/:id/owners", h.ChangeOwners)
}
