package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/mailer"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, "http://localhost:8080", mailer.LogMailer{})
	handler.RegisterRoutes(r.Group("/auth"))
	return r
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		valid    bool
	}{
		{"Short1@", false},         // too short
		{"12345678901", false},     // all numeric
		{"lowercase1@", false},     // no upper
		{"NoDigits@@", false},      // no digit
		{"NoSpecial11", false},     // no special char
		{"GoodPass1@", true},
		{"Another.Pass2", true},
		{"With/Slash3", true},
		{"With_Under4", true},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		if tc.valid && err != nil {
			t.Errorf("Expected %q to pass, got %v", tc.password, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("Expected %q to fail", tc.password)
		}
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("GoodPass1@")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !CheckPassword("GoodPass1@", hash) {
		t.Error("Expected the password to match its hash")
	}
	if CheckPassword("WrongPass1@", hash) {
		t.Error("Expected a wrong password to fail")
	}
}

func TestUserTokenRoundTrip(t *testing.T) {
	user := &models.User{Email: "a@example.com", PasswordHash: "hash"}
	token := MakeUserToken(user)
	if !CheckUserToken(user, token) {
		t.Error("Expected a fresh token to verify")
	}
	if CheckUserToken(user, "garbage") {
		t.Error("Expected garbage to fail")
	}
	if CheckUserToken(user, "-onlydigest") {
		t.Error("Expected a malformed token to fail")
	}
}

func TestUserTokenDiesOnStateChange(t *testing.T) {
	user := &models.User{Email: "a@example.com", PasswordHash: "hash"}
	token := MakeUserToken(user)

	user.PasswordHash = "other"
	if CheckUserToken(user, token) {
		t.Error("Expected the token to die on a password change")
	}

	user.PasswordHash = "hash"
	now := time.Now()
	user.LastLogin = &now
	if CheckUserToken(user, token) {
		t.Error("Expected the token to die on a login")
	}

	user.LastLogin = nil
	user.IsActive = true
	if CheckUserToken(user, token) {
		t.Error("Expected the token to die on activation")
	}
}

func TestEmailEncoding(t *testing.T) {
	encoded := EncodeEmail("user+tag@example.com")
	decoded, err := DecodeEmail(encoded)
	if err != nil || decoded != "user+tag@example.com" {
		t.Errorf("Expected round trip, got %q, %v", decoded, err)
	}
	if _, err := DecodeEmail("!!not-base64!!"); err == nil {
		t.Error("Expected invalid encoding to fail")
	}
}

func TestRegisterActivateLoginFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := postJSON(router, "/auth/register", RegisterRequest{
		Email:     "new@example.com",
		Password:  "GoodPass1@",
		FirstName: "New",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	// The account can't log in before activation.
	resp = postJSON(router, "/auth/login", LoginRequest{
		Email: "new@example.com", Password: "GoodPass1@",
	})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 before activation, got %d", resp.Code)
	}

	var user models.User
	db.Where("email = ?", "new@example.com").First(&user)
	link := "/auth/activate/" + EncodeEmail(user.Email) + "/" + MakeUserToken(&user)
	req, _ := http.NewRequest("GET", link, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected activation to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	resp = postJSON(router, "/auth/login", LoginRequest{
		Email: "new@example.com", Password: "GoodPass1@",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200 after activation, got %d: %s", resp.Code, resp.Body.String())
	}
	var auth AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &auth)
	if auth.Token == "" {
		t.Error("Expected a JWT in the login response")
	}
	if !auth.User.IsActive {
		t.Error("Expected the user to be active")
	}
}

func TestRegisterRejectsWeakPasswordAndDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := postJSON(router, "/auth/register", RegisterRequest{
		Email: "a@example.com", Password: "weak", FirstName: "A",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a weak password, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "password") {
		t.Errorf("Expected a password field error, got %s", resp.Body.String())
	}

	postJSON(router, "/auth/register", RegisterRequest{
		Email: "a@example.com", Password: "GoodPass1@", FirstName: "A",
	})
	resp = postJSON(router, "/auth/register", RegisterRequest{
		Email: "a@example.com", Password: "GoodPass1@", FirstName: "A",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a duplicate email, got %d", resp.Code)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	hash, _ := HashPassword("GoodPass1@")
	user := models.User{Email: "a@example.com", PasswordHash: hash, FirstName: "A", IsActive: true}
	db.Create(&user)

	// The response never discloses account existence.
	resp := postJSON(router, "/auth/forgot-password", ForgotPasswordRequest{Email: "nobody@example.com"})
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 for unknown email, got %d", resp.Code)
	}

	link := "/auth/reset-password/" + EncodeEmail(user.Email) + "/" + MakeUserToken(&user)
	resp = postJSON(router, link, ResetPasswordRequest{
		NewPassword: "FreshPass2@", ConfirmNewPassword: "FreshPass2@",
	})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated models.User
	db.First(&updated, "id = ?", user.ID)
	if !CheckPassword("FreshPass2@", updated.PasswordHash) {
		t.Error("Expected the new password to be stored")
	}

	// The consumed token no longer verifies against the new state.
	resp = postJSON(router, link, ResetPasswordRequest{
		NewPassword: "ThirdPass3@", ConfirmNewPassword: "ThirdPass3@",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected a consumed link to fail with 400, got %d", resp.Code)
	}
}

func TestResetPasswordRejectsSameAndMismatched(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	hash, _ := HashPassword("GoodPass1@")
	user := models.User{Email: "a@example.com", PasswordHash: hash, FirstName: "A", IsActive: true}
	db.Create(&user)

	link := "/auth/reset-password/" + EncodeEmail(user.Email) + "/" + MakeUserToken(&user)
	resp := postJSON(router, link, ResetPasswordRequest{
		NewPassword: "GoodPass1@", ConfirmNewPassword: "GoodPass1@",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected reuse of the current password to fail, got %d", resp.Code)
	}

	resp = postJSON(router, link, ResetPasswordRequest{
		NewPassword: "FreshPass2@", ConfirmNewPassword: "OtherPass3@",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected mismatched confirmation to fail, got %d", resp.Code)
	}
}

func TestAuthMiddlewareRejectsDeletedAndInactive(t *testing.T) {
	db := setupTestDB(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(db), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	user := models.User{Email: "a@example.com", FirstName: "A", IsActive: true}
	db.Create(&user)
	token, _ := GenerateToken(user.ID, user.Email)

	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for a live user, got %d", resp.Code)
	}

	db.Model(&user).Update("is_active", false)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for a deactivated user, got %d", resp.Code)
	}

	db.Model(&user).Update("is_active", true)
	db.Delete(&user)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for a deleted user, got %d", resp.Code)
	}
}
