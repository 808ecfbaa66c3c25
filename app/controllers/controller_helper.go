package controllers

import (
	"strings"
	"time"

	"github.com/erpeaz/siteboard/internal/pkg/notify"
	"github.com/erpeaz/siteboard/internal/pkg/reconcile"
	"github.com/erpeaz/siteboard/internal/pkg/upstream"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Shared collaborators installed once at startup by the router setup.
var (
	upstreamClient *upstream.Client
	notifyHub      *notify.Hub
	reconcileJob   *reconcile.Job
)

// Setup installs the controllers' shared collaborators.
func Setup(client *upstream.Client, hub *notify.Hub, job *reconcile.Job) {
	upstreamClient = client
	notifyHub = hub
	reconcileJob = job
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	code := "error"
	switch status {
	case fiber.StatusBadRequest:
		code = "bad_request"
	case fiber.StatusUnauthorized:
		code = "unauthorized"
	case fiber.StatusForbidden:
		code = "forbidden"
	case fiber.StatusNotFound:
		code = "not_found"
	case fiber.StatusConflict:
		code = "conflict"
	case fiber.StatusBadGateway:
		code = "upstream_unavailable"
	case fiber.StatusInternalServerError:
		code = "internal_server_error"
	}
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// parseDateQuery reads an optional YYYY-MM-DD (or RFC3339) query parameter.
func parseDateQuery(c *fiber.Ctx, name string) *time.Time {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
