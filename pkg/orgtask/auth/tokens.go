package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

// Account-activation and password-reset links carry a deterministic one-time
// token. The hash input covers the user id, password hash, last-login
// timestamp, email and active flag, so the token dies as soon as any of them
// changes: logging in, changing the password or activating the account all
// invalidate outstanding links.

// tokenTTL is how long an emailed link stays valid.
const tokenTTL = 72 * time.Hour

func userState(u *models.User, ts int64) string {
	lastLogin := ""
	if u.LastLogin != nil {
		lastLogin = strconv.FormatInt(u.LastLogin.Unix(), 10)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%t|%d",
		u.ID, u.PasswordHash, lastLogin, u.Email, u.IsActive, ts)
}

func tokenDigest(u *models.User, ts int64) string {
	mac := hmac.New(sha256.New, getJWTSecret())
	mac.Write([]byte(userState(u, ts)))
	return hex.EncodeToString(mac.Sum(nil))[:20]
}

// MakeUserToken builds a token for the user's current state.
func MakeUserToken(u *models.User) string {
	ts := time.Now().Unix()
	return strconv.FormatInt(ts, 36) + "-" + tokenDigest(u, ts)
}

// CheckUserToken reports whether the token matches the user's current state
// and has not expired.
func CheckUserToken(u *models.User, token string) bool {
	sep := strings.IndexByte(token, '-')
	if sep <= 0 || sep == len(token)-1 {
		return false
	}
	ts, err := strconv.ParseInt(token[:sep], 36, 64)
	if err != nil {
		return false
	}
	if !hmac.Equal([]byte(tokenDigest(u, ts)), []byte(token[sep+1:])) {
		return false
	}
	return time.Since(time.Unix(ts, 0)) <= tokenTTL
}

// EncodeEmail returns the URL-safe base64 form of an email used in
// activation and reset URLs.
func EncodeEmail(email string) string {
	return base64.URLEncoding.EncodeToString([]byte(email))
}

// DecodeEmail reverses EncodeEmail.
func DecodeEmail(encoded string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ActivationURL builds the account-activation link for the user.
func ActivationURL(baseURL string, u *models.User) string {
	return fmt.Sprintf("%s/auth/activate/%s/%s/", baseURL, EncodeEmail(u.Email), MakeUserToken(u))
}

// PasswordResetURL builds the password-reset link for the user.
func PasswordResetURL(baseURL string, u *models.User) string {
	return fmt.Sprintf("%s/auth/reset-password/%s/%s/", baseURL, EncodeEmail(u.Email), MakeUserToken(u))
}
