package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/erpeaz/siteboard/app/repository"
	"github.com/erpeaz/siteboard/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

type expenseRequest struct {
	Amount *float64 `json:"amount"`
	Kind   string   `json:"kind"`
	Note   string   `json:"note"`
	Date   string   `json:"date"`
}

// HandleListExpenses lists a site's expenses, newest first.
func HandleListExpenses(c *fiber.Ctx) error {
	items, err := repository.GetGlobalFactory().GetExpenseRepository().ListBySite(c.Params("siteId"))
	if err != nil {
		log.Errorf("expense list failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to fetch expenses")
	}
	return c.JSON(fiber.Map{"data": items})
}

// HandleCreateExpense records a new expense against a site.
func HandleCreateExpense(c *fiber.Ctx) error {
	var req expenseRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Amount == nil || *req.Amount < 0 {
		return errorJSON(c, fiber.StatusBadRequest, "amount is required")
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := parseStartAt(req.Date)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "date must be a date (YYYY-MM-DD or RFC3339)")
		}
		date = parsed
	}

	userID, _ := c.Locals(middleware.ContextUserID).(uint)
	expense := models.Expense{
		SiteID:    c.Params("siteId"),
		Amount:    *req.Amount,
		Kind:      req.Kind,
		Note:      req.Note,
		Date:      date,
		CreatedBy: userID,
	}
	if err := validate.Struct(expense); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid kind")
	}

	if err := repository.GetGlobalFactory().GetExpenseRepository().Create(&expense); err != nil {
		log.Errorf("expense create failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to create expense")
	}
	return c.Status(fiber.StatusCreated).JSON(expense)
}

// HandleUpdateExpense patches fields of an existing expense.
func HandleUpdateExpense(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("expenseId"), 10, 64)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid expense id")
	}

	repo := repository.GetGlobalFactory().GetExpenseRepository()
	expense, err := repo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Not found")
		}
		log.Errorf("expense fetch failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to update expense")
	}

	var req expenseRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Amount != nil {
		expense.Amount = *req.Amount
	}
	if req.Kind != "" {
		expense.Kind = req.Kind
	}
	if req.Note != "" {
		expense.Note = req.Note
	}
	if req.Date != "" {
		parsed, err := parseStartAt(req.Date)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "date must be a date (YYYY-MM-DD or RFC3339)")
		}
		expense.Date = parsed
	}
	if err := validate.Struct(*expense); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid expense payload")
	}

	if err := repo.Update(expense); err != nil {
		log.Errorf("expense update failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to update expense")
	}
	return c.JSON(expense)
}

// HandleDeleteExpense removes an expense.
func HandleDeleteExpense(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("expenseId"), 10, 64)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid expense id")
	}

	if err := repository.GetGlobalFactory().GetExpenseRepository().Delete(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Not found")
		}
		log.Errorf("expense delete failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to delete expense")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleExpenseSummary totals a site's expenses per kind.
func HandleExpenseSummary(c *fiber.Ctx) error {
	summary, err := repository.GetGlobalFactory().GetExpenseRepository().SummaryBySite(c.Params("siteId"))
	if err != nil {
		log.Errorf("expense summary failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to summarize expenses")
	}
	return c.JSON(summary)
}
