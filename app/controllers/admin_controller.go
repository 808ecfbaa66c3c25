package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// HandleForceReconcile triggers one reconcile tick outside the schedule. An
// already-running tick makes this a no-op (the job skips overlapping runs).
func HandleForceReconcile(c *fiber.Ctx) error {
	if reconcileJob == nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Reconcile job not configured")
	}

	if err := reconcileJob.RunTick(c.UserContext()); err != nil {
		log.Errorf("manual reconcile failed: %v", err)
		return errorJSON(c, fiber.StatusBadGateway, "Reconcile failed: "+err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "message": "Reconcile tick completed"})
}
