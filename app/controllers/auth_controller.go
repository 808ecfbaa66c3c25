package controllers

import (
	"errors"
	"time"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/erpeaz/siteboard/app/repository"
	"github.com/erpeaz/siteboard/internal/pkg/token"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates a new dashboard account.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(req.Email); err == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Email already in use")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("register lookup failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Registration failed")
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	if err := repo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errorJSON(c, fiber.StatusBadRequest, "Email already in use")
		}
		log.Errorf("register create failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Registration failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "User registered successfully"})
}

// HandleLogin verifies credentials and issues a bearer token.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid credentials")
		}
		log.Errorf("login lookup failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Login failed")
	}
	if !user.CheckPassword(req.Password) {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid credentials")
	}
	if user.Status != models.STATUS_ACTIVE {
		return errorJSON(c, fiber.StatusForbidden, "Account disabled")
	}

	tok, err := token.Issue(user.ID, user.Role)
	if err != nil {
		log.Errorf("token issue failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Login failed")
	}

	if err := repo.UpdateLastLogin(user.ID, time.Now()); err != nil {
		log.Warnf("failed to update last login for user %d: %v", user.ID, err)
	}

	return c.JSON(fiber.Map{"token": tok})
}
