package controllers

import (
	"errors"

	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/middleware"
	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/services"
	"github.com/eldertek/pg-pointage-sub001/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserController struct{}

var validate = validator.New()

// CreateUserRequest represents the user creation request body
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Password  string `json:"password" validate:"required,min=6"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role" validate:"required"`
}

// CreateUser creates a new user with a freshly issued employee ID
func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if !utils.IsValidRole(req.Role) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid role",
		})
	}

	var existing models.User
	if err := database.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Username already exists",
		})
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	var user models.User
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		employeeID, err := services.NextEmployeeID(tx)
		if err != nil {
			return err
		}
		user = models.User{
			Username:   req.Username,
			Password:   hashed,
			Email:      req.Email,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Phone:      req.Phone,
			Role:       req.Role,
			EmployeeID: employeeID,
			IsActive:   true,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		var domainErr *services.DomainError
		if errors.As(err, &domainErr) {
			return c.Status(services.HTTPStatus(domainErr.Kind)).JSON(fiber.Map{
				"error": domainErr.Message,
				"kind":  domainErr.Kind,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create user",
		})
	}

	if actor, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(actor.ID, "CREATE", "users", user.ID, fiber.Map{
			"username":    user.Username,
			"employee_id": user.EmployeeID,
		}, c)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    user,
	})
}

// GetUsers lists users, optionally filtered by role or active status
func (uc *UserController) GetUsers(c *fiber.Ctx) error {
	query := database.DB.Model(&models.User{})

	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var users []models.User
	if err := query.Order("employee_id ASC").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch users",
		})
	}

	return c.JSON(fiber.Map{"users": users, "total": len(users)})
}

// GetUser returns a single user by ID
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var user models.User
	if err := database.DB.Preload("Organizations").First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	return c.JSON(fiber.Map{"user": user})
}

// DeactivateUser disables a user account without deleting it
func (uc *UserController) DeactivateUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	if err := database.DB.Model(&user).Update("is_active", false).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate user"})
	}

	if actor, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(actor.ID, "DEACTIVATE", "users", user.ID, fiber.Map{
			"username": user.Username,
		}, c)
	}

	return c.JSON(fiber.Map{"message": "User deactivated"})
}
