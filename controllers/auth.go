package controllers

import (
	"strings"
	"time"

	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/middleware"
	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/utils"

	"github.com/gofiber/fiber/v2"
)

type AuthController struct{}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates a user and returns a JWT token
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var user models.User
	if err := database.DB.Where("username = ? AND is_active = ?", req.Username, true).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if err := utils.CheckPassword(req.Password, user.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	token, err := middleware.GenerateToken(&user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	middleware.LogActivity(user.ID, "LOGIN", "auth", user.ID, fiber.Map{
		"username": user.Username,
		"role":     user.Role,
	}, c)

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user": fiber.Map{
			"id":          user.ID,
			"username":    user.Username,
			"email":       user.Email,
			"role":        user.Role,
			"employee_id": user.EmployeeID,
			"full_name":   user.FullName(),
		},
	})
}

// Logout revokes the current JWT until its natural expiry
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing authorization header"})
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid authorization header format"})
	}

	if err := middleware.BlacklistToken(tokenString, 24*time.Hour); err != nil {
		middleware.LogActivity(0, "LOGOUT", "auth", 0, fiber.Map{"error": err.Error()}, c)
	}

	if user, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(user.ID, "LOGOUT", "auth", user.ID, fiber.Map{"username": user.Username}, c)
	}

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// Me returns the current authenticated user's profile
func (ac *AuthController) Me(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	database.DB.Preload("Organizations").First(user, user.ID)

	return c.JSON(fiber.Map{"user": user})
}
