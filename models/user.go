package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
)

var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrAccountLocked = errors.New("account temporarily locked")

type User struct {
	ID               int        `gorm:"primary_key" json:"id"`
	Email            string     `gorm:"size:100;not null;uniqueIndex" json:"email" binding:"required,email"`
	Name             string     `gorm:"size:100;not null" json:"name" binding:"required"`
	PasswordHash     string     `gorm:"size:100;not null" json:"-"`
	Role             UserRole   `gorm:"size:10;not null;default:staff" json:"role"`
	IsActive         *bool      `gorm:"not null;default:true" json:"is_active"`
	FailedLoginCount int        `gorm:"not null;default:0" json:"-"`
	LockedUntil      *time.Time `json:"-"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Email    string   `json:"email" binding:"required,email"`
	Name     string   `json:"name" binding:"required"`
	Password string   `json:"password" binding:"required,min=8"`
	Role     UserRole `json:"role"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	if err := utils.ValidateUnique[User](ctx, "email", input.Email, 0); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleStaff
	}

	user := User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hash),
		Role:         role,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, errors.New("email already registered")
		}
		return nil, err
	}

	RecordAction(ctx, AuditInput{
		Action:     AuditActionCreate,
		Resource:   "user",
		ResourceId: user.ID,
		Details:    map[string]interface{}{"email": user.Email, "role": user.Role},
	})

	return &user, nil
}

// Login authenticates a user and issues a JWT. Every attempt leaves a LOGIN
// audit row: failures carry status=failed, which is what the brute-force
// lockout and the compliance report's critical-event count key on. After the
// configured number of consecutive failures the account locks for a window.
func Login(ctx context.Context, email string, password string) (string, *User, error) {
	db := config.GetDB()
	if db == nil {
		return "", nil, ErrDBNotInitialized
	}

	recordFailure := func(userId int, reason string) {
		RecordAction(ctx, AuditInput{
			Action:       AuditActionLogin,
			Resource:     "user",
			ResourceId:   userId,
			Status:       AuditStatusFailed,
			ErrorMessage: reason,
			Details:      map[string]interface{}{"email": email},
		})
	}

	var user User
	if err := db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		recordFailure(0, "unknown email")
		return "", nil, ErrInvalidCredentials
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		recordFailure(user.ID, "account locked")
		return "", nil, ErrAccountLocked
	}

	if err := utils.ComparePassword(user.PasswordHash, password); err != nil {
		user.FailedLoginCount++
		updates := map[string]interface{}{"FailedLoginCount": user.FailedLoginCount}
		if user.FailedLoginCount >= config.FailedLoginLockThreshold() {
			lockedUntil := time.Now().Add(config.FailedLoginLockDuration())
			updates["LockedUntil"] = &lockedUntil
			updates["FailedLoginCount"] = 0
		}
		if uerr := db.WithContext(ctx).Model(&user).Updates(updates).Error; uerr != nil {
			config.LogError(config.GetLogger(), "user.go", "Login", "update failed login count", user.ID, uerr)
		}
		recordFailure(user.ID, "wrong password")
		return "", nil, ErrInvalidCredentials
	}

	if uerr := db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"FailedLoginCount": 0,
		"LockedUntil":      nil,
	}).Error; uerr != nil {
		config.LogError(config.GetLogger(), "user.go", "Login", "reset failed login count", user.ID, uerr)
	}

	token, err := utils.JwtGenerate(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		return "", nil, err
	}

	// Audit with the authenticated identity, not whatever was in the request context.
	authedCtx := utils.SetUserIdInContext(ctx, user.ID)
	authedCtx = utils.SetUserEmailInContext(authedCtx, user.Email)
	authedCtx = utils.SetUserNameInContext(authedCtx, user.Name)
	RecordAction(authedCtx, AuditInput{
		Action:     AuditActionLogin,
		Resource:   "user",
		ResourceId: user.ID,
	})

	return token, &user, nil
}

// Logout only records the event; JWTs are stateless.
func Logout(ctx context.Context) {
	userId, _ := utils.GetUserIdFromContext(ctx)
	RecordAction(ctx, AuditInput{
		Action:     AuditActionLogout,
		Resource:   "user",
		ResourceId: userId,
	})
}
