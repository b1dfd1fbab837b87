package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/httputil"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/mailer"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

// Handler handles authentication requests
type Handler struct {
	db      *gorm.DB
	baseURL string
	mail    mailer.Mailer
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, baseURL string, mail mailer.Mailer) *Handler {
	return &Handler{db: db, baseURL: baseURL, mail: mail}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse represents user data in auth responses
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
	}
}

// Register handles account creation
// @Summary Register a new account
// @Description Create an account; the account stays inactive until the emailed activation link is followed
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} UserResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	if err := ValidatePassword(req.Password); err != nil {
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

	hashed, err := HashPassword(req.Password)
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
	}
	if err := h.db.Create(&user).Error; err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	link := ActivationURL(h.baseURL, &user)
	mailer.Dispatch(func() error {
		return h.mail.SendActivation(user.Email, user.FullName(), link)
	})

	c.JSON(http.StatusCreated, userResponse(&user))
}

// Login handles user login
// @Summary Login
// @Description Authenticate with email and password to receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string][]string "Validation error"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		httputil.Detail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !CheckPassword(req.Password, user.PasswordHash) {
		httputil.Detail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !user.IsActive {
		httputil.Detail(c, http.StatusUnauthorized, "Account is not activated")
		return
	}

	now := time.Now()
	h.db.Model(&user).Update("last_login", now)

	token, err := GenerateToken(user.ID, user.Email)
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: userResponse(&user)})
}

// Activate flips a registered account to active when the emailed token is
// valid for the account's current state.
// @Summary Activate an account
// @Tags auth
// @Produce json
// @Param uidb64 path string true "URL-safe base64 email"
// @Param token path string true "Activation token"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Invalid or expired link"
// @Router /auth/activate/{uidb64}/{token} [get]
func (h *Handler) Activate(c *gin.Context) {
	email, err := DecodeEmail(c.Param("uidb64"))
	if err != nil {
		httputil.Detail(c, http.StatusBadRequest, "Invalid activation link")
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		httputil.Detail(c, http.StatusBadRequest, "Invalid activation link")
		return
	}
	if user.IsActive {
		c.JSON(http.StatusOK, gin.H{"detail": "Account already activated"})
		return
	}
	if !CheckUserToken(&user, c.Param("token")) {
		httputil.Detail(c, http.StatusBadRequest, "Invalid or expired activation link")
		return
	}

	if err := h.db.Model(&user).Update("is_active", true).Error; err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to activate account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Account activated"})
}

// ForgotPasswordRequest carries the email to send a reset link to.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword mails a reset link. The response never discloses whether
// the account exists.
// @Summary Request a password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} map[string]string
// @Router /auth/forgot-password [post]
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	var user models.User
	if err := h.db.Where("email = ? AND is_active = ?", req.Email, true).First(&user).Error; err == nil {
		link := PasswordResetURL(h.baseURL, &user)
		mailer.Dispatch(func() error {
			return h.mail.SendPasswordReset(user.Email, user.FullName(), link)
		})
	}

	c.JSON(http.StatusOK, gin.H{"detail": "If the email exists, a reset link has been sent"})
}

// ResetPasswordRequest carries the new password for a reset confirm.
type ResetPasswordRequest struct {
	NewPassword        string `json:"new_password" binding:"required"`
	ConfirmNewPassword string `json:"confirm_new_password" binding:"required"`
}

// ResetPassword applies a password reset when the emailed token is valid.
// @Summary Confirm a password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param uidb64 path string true "URL-safe base64 email"
// @Param token path string true "Reset token"
// @Param request body ResetPasswordRequest true "New password"
// @Success 204
// @Failure 400 {object} map[string][]string "Validation error"
// @Router /auth/reset-password/{uidb64}/{token} [post]
func (h *Handler) ResetPassword(c *gin.Context) {
	email, err := DecodeEmail(c.Param("uidb64"))
	if err != nil {
		httputil.Detail(c, http.StatusBadRequest, "Invalid reset link")
		return
	}
	var user models.User
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		httputil.Detail(c, http.StatusBadRequest, "Invalid reset link")
		return
	}
	if !CheckUserToken(&user, c.Param("token")) {
		httputil.Detail(c, http.StatusBadRequest, "Invalid or expired reset link")
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BindError(c, err)
		return
	}

	errs := httputil.FieldErrors{}
	if err := ValidatePassword(req.NewPassword); err != nil {
		errs.Add("new_password", err.Error())
	}
	if req.NewPassword != req.ConfirmNewPassword {
		errs.Add("confirm_new_password", "Passwords do not match")
	}
	if CheckPassword(req.NewPassword, user.PasswordHash) {
		errs.Add("new_password", "New password must be different from the current one")
	}
	if !errs.Empty() {
		httputil.Invalid(c, errs)
		return
	}

	hashed, err := HashPassword(req.NewPassword)
	if err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to process password")
		return
	}
	if err := h.db.Model(&user).Update("password_hash", hashed).Error; err != nil {
		httputil.Detail(c, http.StatusInternalServerError, "Failed to reset password")
		return
	}

	mailer.Dispatch(func() error {
		return h.mail.SendPasswordResetDone(user.Email, user.FullName())
	})

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.GET("/activate/:uidb64/:token", h.Activate)
	rg.POST("/forgot-password", h.ForgotPassword)
	rg.POST("/reset-password/:uidb64/:token", h.ResetPassword)
}
