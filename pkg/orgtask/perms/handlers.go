package perms

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/access"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/httputil"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/mailer"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

// Handler handles direct permission grants
type Handler struct {
	db      *gorm.DB
	checker *access.Checker
	mail    mailer.Mailer
}

// NewHandler creates a new permissions handler
func NewHandler(db *gorm.DB, mail mailer.Mailer) *Handler {
	return &Handler{db: db, checker: access.NewChecker(db), mail: mail}
}

// GrantRequest represents a bulk grant or revoke of permissions
type GrantRequest struct {
	Org     string   `json:"org" binding:"required"`
	UserIDs []string `json:"user_ids" binding:"required,min=1"`
	Perms   []string `json:"perms" binding:"required,min=1"`
}

// resolve validates the organization, the acting user's rights and the
// target users. All failures surface as 400 field errors; nothing about the
// organization is disclosed to actors without access to it.
func (h *Handler) resolve(c *gin.Context, req *GrantRequest) (*models.Organization, []models.User, []string, bool) {
	user, _ := auth.GetUser(c)

	errs := httputil.FieldErrors{}
	var org models.Organization
	err := h.db.Preload("Owner").Preload("CreatedBy").
		Preload("Members").Preload("CanBeAccessedBy").
		First(&org, "id = ?", req.Org).Error
	if err != nil || !access.HasAccess(access.ForOrg(&org), user.ID) {
		errs.Add("org", "Organization can't be found or you don't have access to it")
		httputil.Invalid(c, errs)
		return nil, nil, nil, false
	}

	labels := access.NormalizeLabels(req.Perms)
	if !h.checker.CanAddCreatorLevelPerms(labels, &org, user) {
		errs.Add("perms", "Only the organization creator can grant these permissions")
	}

	var users []models.User
	if err := h.db.Preload("CanBeAccessedBy").Where("id IN ?", req.UserIDs).Find(&users).Error; err != nil || len(users) != len(req.UserIDs) {
		errs.Add("user_ids", "Some users could not be found")
	} else {
		ownerID := org.CreatedByID
		if org.OwnerID != nil {
			ownerID = org.OwnerID
		}
		if ownerID != nil && !access.HasAccessAll(access.ForUsers(users), *ownerID) {
			errs.Add("user_ids", "The org owner need to have a full access over users")
		}
	}

	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return nil, nil, nil, false
	}
	return &org, users, labels, true
}

// List returns the permission registry
// @Summary List available permissions
// @Tags perms
// @Produce json
// @Success 200 {array} access.PermInfo
// @Security BearerAuth
// @Router /perms [get]
func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, access.PermData(access.AllPerms()))
}

// Add grants permissions to users in an organization. Unknown labels are
// reported, never stored.
// @Summary Grant permissions
// @Tags perms
// @Accept json
// @Produce json
// @Param request body GrantRequest true "Grant details"
// @Success 200 {object} map[string][]string "added / not_found labels"
// @Failure 400 {object} map[string][]string "Validation error"
// @Security BearerAuth
// @Router /perms/add [post]
func (h *Handler) Add(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	org, users, labels, ok := h.resolve(c, &req)
	if !ok {
		return
	}

	added, notFound, err := h.checker.AddPermissionsToUsers(users, org, labels)
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to add permissions")
		return
	}

	// Granted users who were not members yet join the organization.
	invited := org.MissingMembers(users)
	if len(invited) > 0 {
		if err := h.db.Model(org).Association("Members").Append(invited); err == nil {
			for _, u := range invited {
				u := u
				mailer.Dispatch(func() error {
					return h.mail.SendInvitation(u.Email, u.FullName(), org.Name)
				})
			}
		}
	}

	if added == nil {
		added = []string{}
	}
	if notFound == nil {
		notFound = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "not_found": notFound})
}

// Remove revokes permissions from users in an organization
// @Summary Revoke permissions
// @Tags perms
// @Accept json
// @Produce json
// @Param request body GrantRequest true "Revoke details"
// @Success 200 {object} map[string][]string "removed / not_found labels"
// @Failure 400 {object} map[string][]string "Validation error"
// @Security BearerAuth
// @Router /perms/remove [post]
func (h *Handler) Remove(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	org, users, labels, ok := h.resolve(c, &req)
	if !ok {
		return
	}

	removed, notFound, err := h.checker.RemovePermissionsFromUsers(users, org, labels)
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to remove permissions")
		return
	}

	if removed == nil {
		removed = []string{}
	}
	if notFound == nil {
		notFound = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed, "not_found": notFound})
}

// RegisterRoutes registers permission routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/add", h.Add)
	rg.POST("/remove", h.Remove)
}
