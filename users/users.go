// Package users implements login identities: registration, password and
// verification-code auth, profile updates and profile images.
package users

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/iabdinur/blog/auth"
	"github.com/iabdinur/blog/dto"
	"github.com/iabdinur/blog/email"
	"github.com/iabdinur/blog/models"
	"github.com/iabdinur/blog/storage"
)

const (
	codeExpiry       = 10 * time.Minute
	maxCodesPerHour  = 3
	maxCodeAttempts  = 5
	minPasswordChars = 8
)

type Module struct {
	db     *gorm.DB
	issuer *auth.TokenIssuer
	mailer email.Mailer
	images *storage.ImageStore
}

func NewModule(db *gorm.DB, issuer *auth.TokenIssuer, mailer email.Mailer, images *storage.ImageStore) *Module {
	return &Module{db: db, issuer: issuer, mailer: mailer, images: images}
}

func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	authRequired := auth.RequireAuth(m.issuer)

	api.POST("/auth/login", m.login)
	api.POST("/users", m.register)
	api.POST("/users/send-code", m.sendCode)
	api.POST("/users/verify-code", m.verifyCode)
	api.GET("/users/:email", m.getUser)
	api.PUT("/users/:email", authRequired, m.updateUser)
	api.PUT("/users/:email/password", authRequired, m.changePassword)
	api.POST("/users/:email/profile-image", authRequired, m.uploadProfileImage)
	api.GET("/users/:email/profile-image", m.getProfileImage)
	api.DELETE("/users/:email/profile-image", authRequired, m.deleteProfileImage)
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// loginResponse builds the token plus user and optional author profile.
func (m *Module) loginResponse(user *models.User) (dto.LoginResponse, error) {
	roles := []string{"ROLE_USER"}
	username := user.Email
	if i := strings.IndexByte(username, '@'); i > 0 {
		username = username[:i]
	}

	var authorDTO *dto.Author
	var author models.Author
	if err := m.db.Where("email = ?", user.Email).First(&author).Error; err == nil {
		roles = append(roles, "ROLE_AUTHOR")
		username = author.Username
		authorDTO = dto.AuthorFromModel(&author)
	}

	token, err := m.issuer.Issue(user.Email, username, roles)
	if err != nil {
		return dto.LoginResponse{}, err
	}
	return dto.LoginResponse{Token: token, User: dto.UserFromModel(user), Author: authorDTO}, nil
}

func (m *Module) login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var user models.User
	if err := m.db.Where("email = ?", strings.TrimSpace(req.Email)).First(&user).Error; err != nil ||
		!checkPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	resp, err := m.loginResponse(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (m *Module) register(c *gin.Context) {
	var req dto.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Name == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
		return
	case len(req.Password) < minPasswordChars:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("password must be at least %d characters", minPasswordChars)})
		return
	}

	var existing models.User
	if err := m.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
		return
	}

	user := models.User{Name: req.Name, Email: req.Email, Password: hash, UserType: "REA"}
	if err := m.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
		return
	}

	c.JSON(http.StatusCreated, dto.UserFromModel(&user))
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// sendCode emails a one-time login code. Unknown emails get the same 200 as
// known ones so the endpoint cannot be used to probe for accounts.
func (m *Module) sendCode(c *gin.Context) {
	var req dto.SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	emailAddr := strings.TrimSpace(req.Email)

	ok := gin.H{"message": "if the account exists, a code has been sent"}

	var user models.User
	if err := m.db.Where("email = ?", emailAddr).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, ok)
		return
	}

	var recent int64
	m.db.Model(&models.VerificationCode{}).
		Where("email = ? AND created_at > ?", emailAddr, time.Now().Add(-time.Hour)).
		Count(&recent)
	if recent >= maxCodesPerHour {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many codes requested, try again later"})
		return
	}

	code, err := randomCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate code"})
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate code"})
		return
	}

	// A fresh code supersedes every outstanding one.
	m.db.Model(&models.VerificationCode{}).
		Where("email = ? AND is_used = ?", emailAddr, false).
		Update("is_used", true)

	record := models.VerificationCode{
		Email:      emailAddr,
		HashedCode: string(hashed),
		ExpiresAt:  time.Now().Add(codeExpiry),
	}
	if err := m.db.Create(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store code"})
		return
	}

	if err := m.mailer.SendVerificationCode(emailAddr, code, int(codeExpiry.Minutes())); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send code"})
		return
	}

	c.JSON(http.StatusOK, ok)
}

func (m *Module) verifyCode(c *gin.Context) {
	var req dto.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and code are required"})
		return
	}
	emailAddr := strings.TrimSpace(req.Email)

	var record models.VerificationCode
	err := m.db.
		Where("email = ? AND is_used = ? AND expires_at > ?", emailAddr, false, time.Now()).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		return
	}

	if record.Attempts >= maxCodeAttempts {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, request a new code"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(record.HashedCode), []byte(req.Code)) != nil {
		m.db.Model(&record).Update("attempts", record.Attempts+1)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		return
	}

	m.db.Model(&record).Update("is_used", true)

	var user models.User
	if err := m.db.Where("email = ?", emailAddr).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		return
	}

	resp, err := m.loginResponse(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (m *Module) getUser(c *gin.Context) {
	var user models.User
	if err := m.db.Where("email = ?", c.Param("email")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, dto.UserFromModel(&user))
}

// loadSelf fetches the user addressed by the path and verifies it is the
// caller's own account.
func (m *Module) loadSelf(c *gin.Context) (*models.User, bool) {
	var user models.User
	if err := m.db.Where("email = ?", c.Param("email")).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil, false
	}
	if !strings.EqualFold(user.Email, auth.CallerEmail(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your account"})
		return nil, false
	}
	return &user, true
}

func (m *Module) updateUser(c *gin.Context) {
	user, ok := m.loadSelf(c)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if newEmail := strings.TrimSpace(req.Email); newEmail != "" && !strings.EqualFold(newEmail, user.Email) {
		var conflict models.User
		if err := m.db.Where("email = ?", newEmail).First(&conflict).Error; err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
			return
		}
		user.Email = newEmail
	}

	if err := m.db.Save(user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update user"})
		return
	}
	c.JSON(http.StatusOK, dto.UserFromModel(user))
}

func (m *Module) changePassword(c *gin.Context) {
	user, ok := m.loadSelf(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !checkPasswordHash(req.CurrentPassword, user.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current password is incorrect"})
		return
	}
	if len(req.NewPassword) < minPasswordChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("password must be at least %d characters", minPasswordChars)})
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not change password"})
		return
	}
	user.Password = hash
	if err := m.db.Save(user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not change password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (m *Module) uploadProfileImage(c *gin.Context) {
	user, ok := m.loadSelf(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	key, err := m.images.SaveProfileImage(header.Filename, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store image"})
		return
	}

	if user.ProfileImageID != "" {
		_ = m.images.Delete(user.ProfileImageID)
	}
	user.ProfileImageID = key
	if err := m.db.Save(user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store image"})
		return
	}

	c.JSON(http.StatusOK, dto.UserFromModel(user))
}

func (m *Module) getProfileImage(c *gin.Context) {
	var user models.User
	if err := m.db.Where("email = ?", c.Param("email")).First(&user).Error; err != nil || user.ProfileImageID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile image not found"})
		return
	}

	data, contentType, err := m.images.Open(user.ProfileImageID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile image not found"})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

func (m *Module) deleteProfileImage(c *gin.Context) {
	user, ok := m.loadSelf(c)
	if !ok {
		return
	}
	if user.ProfileImageID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile image not found"})
		return
	}

	_ = m.images.Delete(user.ProfileImageID)
	user.ProfileImageID = ""
	if err := m.db.Save(user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "profile image deleted"})
}
