package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/erpeaz/siteboard/app/repository"
	"github.com/erpeaz/siteboard/internal/pkg/subscription"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type initSubscriptionRequest struct {
	PlanKey string `json:"plan_key" validate:"required"`
	StartAt string `json:"start_at" validate:"required"`
}

type renewSubscriptionRequest struct {
	Action string `json:"action" validate:"required"`
	Months int    `json:"months"`
	Actor  string `json:"actor"`
}

func subscriptionService() *subscription.Service {
	return subscription.NewService(repository.GetGlobalFactory().GetSubscriptionRepository())
}

// HandleGetSubscription returns the subscription record for a site.
func HandleGetSubscription(c *fiber.Ctx) error {
	sub, err := subscriptionService().Get(c.UserContext(), c.Params("siteId"))
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNotFound):
			return errorJSON(c, fiber.StatusNotFound, "Subscription not found")
		case errors.Is(err, subscription.ErrValidation):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		default:
			log.Errorf("subscription fetch failed: %v", err)
			return errorJSON(c, fiber.StatusInternalServerError, "Failed to fetch subscription")
		}
	}
	return c.JSON(sub)
}

// HandleInitSubscription initializes the subscription for a site once.
func HandleInitSubscription(c *fiber.Ctx) error {
	var req initSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "plan_key and start_at are required")
	}

	startAt, err := parseStartAt(req.StartAt)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "start_at must be a date (YYYY-MM-DD or RFC3339)")
	}

	sub, err := subscriptionService().Init(c.UserContext(), c.Params("siteId"), req.PlanKey, startAt)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrConflict):
			return errorJSON(c, fiber.StatusConflict, "Already initialized")
		case errors.Is(err, subscription.ErrValidation):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		default:
			log.Errorf("subscription init failed: %v", err)
			return errorJSON(c, fiber.StatusInternalServerError, "Failed to initialize subscription")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// HandleRenewSubscription extends the current subscription term.
func HandleRenewSubscription(c *fiber.Ctx) error {
	var req renewSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Action != "renew" {
		return errorJSON(c, fiber.StatusBadRequest, "Unsupported action")
	}

	sub, err := subscriptionService().Renew(c.UserContext(), c.Params("siteId"), req.Months, req.Actor)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNotFound):
			return errorJSON(c, fiber.StatusNotFound, "Subscription not found")
		case errors.Is(err, subscription.ErrValidation):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		default:
			log.Errorf("subscription renew failed: %v", err)
			return errorJSON(c, fiber.StatusInternalServerError, "Failed to renew subscription")
		}
	}
	return c.JSON(sub)
}

func parseStartAt(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unparseable date")
}
