package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-storefront/config"
	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

// MinPasswordLength applies to password changes
const MinPasswordLength = 6

// UserController handles user-related requests
type UserController struct {
	Users        storage.Collection[models.User]
	EmailService *utils.EmailService
	Auth         config.AuthConfig
	Logger       *slog.Logger
}

// NewUserController creates a new UserController with EmailService
func NewUserController(users storage.Collection[models.User], emailService *utils.EmailService, auth config.AuthConfig, logger *slog.Logger) *UserController {
	return &UserController{
		Users:        users,
		EmailService: emailService,
		Auth:         auth,
		Logger:       loggerOrDefault(logger),
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, "Invalid input", http.StatusBadRequest)
		return
	}
	email := models.NormalizeEmail(req.Email)
	if strings.TrimSpace(req.Name) == "" || email == "" || req.Password == "" {
		utils.RespondError(w, "Name, email and password are required", http.StatusBadRequest)
		return
	}

	// Check if user already exists
	_, err := uc.Users.FindOne(r.Context(), storage.Query{"email": email})
	switch {
	case err == nil:
		utils.RespondError(w, "User already exists", http.StatusBadRequest)
		return
	case !errors.Is(err, storage.ErrNotFound):
		uc.Logger.Error("registration lookup failed", "error", err)
		utils.RespondError(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.RespondError(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	user, err := uc.Users.Create(r.Context(), models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: hashedPassword,
		IsAdmin:  uc.Auth.AdminEmail != "" && email == models.NormalizeEmail(uc.Auth.AdminEmail),
	})
	if errors.Is(err, storage.ErrDuplicate) {
		utils.RespondError(w, "User already exists", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondStoreError(w, uc.Logger, err, "User not found", "Registration failed")
		return
	}

	if uc.EmailService != nil {
		created := *user
		uc.EmailService.SendAsync(created.Email, func() error {
			return uc.EmailService.SendWelcomeEmail(created)
		})
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Login handles user login
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, "Invalid input", http.StatusBadRequest)
		return
	}

	user, err := uc.Users.FindOne(r.Context(), storage.Query{"email": models.NormalizeEmail(req.Email)})
	if errors.Is(err, storage.ErrNotFound) {
		utils.RespondError(w, "Invalid credentials", http.StatusBadRequest)
		return
	}
	if err != nil {
		uc.Logger.Error("login lookup failed", "error", err)
		utils.RespondError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		utils.RespondError(w, "Invalid credentials", http.StatusBadRequest)
		return
	}

	token, err := utils.GenerateJWT(user.ID, user.IsAdmin)
	if err != nil {
		utils.RespondError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user.Public(),
	})
}

// EnsureAdmin creates the configured admin account when it does not exist yet.
// It reports whether the admin exists afterwards.
func (uc *UserController) EnsureAdmin(ctx context.Context) (bool, error) {
	email := models.NormalizeEmail(uc.Auth.AdminEmail)
	if email == "" {
		return false, nil
	}
	_, err := uc.Users.FindOne(ctx, storage.Query{"email": email})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if uc.Auth.AdminPassword == "" {
		return false, nil
	}

	hashedPassword, err := utils.HashPassword(uc.Auth.AdminPassword)
	if err != nil {
		return false, err
	}
	name := uc.Auth.AdminName
	if name == "" {
		name = "Admin User"
	}
	_, err = uc.Users.Create(ctx, models.User{Name: name, Email: email, Password: hashedPassword, IsAdmin: true})
	if err != nil && !errors.Is(err, storage.ErrDuplicate) {
		return false, err
	}
	uc.Logger.Info("admin user created", "email", email)
	return true, nil
}

// CheckAdmin bootstraps the admin account and reports whether it exists
func (uc *UserController) CheckAdmin(w http.ResponseWriter, r *http.Request) {
	exists, err := uc.EnsureAdmin(r.Context())
	if err != nil {
		uc.Logger.Error("admin check failed", "error", err)
		utils.RespondError(w, "Failed to check admin status", http.StatusInternalServerError)
		return
	}
	if !exists {
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Admin user could not be verified",
			"exists":  false,
		})
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Admin user exists",
		"adminEmail": models.NormalizeEmail(uc.Auth.AdminEmail),
		"exists":     true,
	})
}

// GetProfile returns the caller's user record without the password
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		utils.RespondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := uc.Users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		respondStoreError(w, uc.Logger, err, "User not found", "Error fetching profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, user.Public())
}

// ChangePassword replaces the caller's password after checking the current one
func (uc *UserController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		utils.RespondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, "Invalid input", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < MinPasswordLength {
		utils.RespondError(w, "Password must be at least 6 characters", http.StatusBadRequest)
		return
	}

	user, err := uc.Users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		respondStoreError(w, uc.Logger, err, "User not found", "Error updating password")
		return
	}
	if !utils.CheckPassword(user.Password, req.CurrentPassword) {
		utils.RespondError(w, "Current password is incorrect", http.StatusBadRequest)
		return
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.RespondError(w, "Error updating password", http.StatusInternalServerError)
		return
	}
	if _, err := uc.Users.FindByIDAndUpdate(r.Context(), user.ID, storage.Patch{"password": hashedPassword}); err != nil {
		respondStoreError(w, uc.Logger, err, "User not found", "Error updating password")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}
