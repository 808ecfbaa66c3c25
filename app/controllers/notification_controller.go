package controllers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/erpeaz/siteboard/app/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
)

const ssePingInterval = 25 * time.Second

// HandleListNotifications lists notifications, newest first.
func HandleListNotifications(c *fiber.Ctx) error {
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	items, err := repository.GetGlobalFactory().GetNotificationRepository().List(unreadOnly, limit)
	if err != nil {
		log.Errorf("notification list failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to fetch notifications")
	}
	return c.JSON(fiber.Map{"data": items})
}

// HandleCreateNotification creates a notification manually (used by other
// dashboard tooling) and fans it out like job-emitted ones.
func HandleCreateNotification(c *fiber.Ctx) error {
	var n models.Notification
	if err := c.BodyParser(&n); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	n.ID = 0
	n.Read = false
	if err := validate.Struct(n); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if err := repository.GetGlobalFactory().GetNotificationRepository().Create(&n); err != nil {
		log.Errorf("notification create failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to create notification")
	}
	if notifyHub != nil {
		notifyHub.Publish(n)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": n})
}

// HandleMarkNotificationRead flips one notification to read.
func HandleMarkNotificationRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid notification id")
	}

	n, err := repository.GetGlobalFactory().GetNotificationRepository().MarkRead(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Notification not found")
		}
		log.Errorf("notification mark read failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to update notification")
	}
	return c.JSON(fiber.Map{"data": n})
}

// HandleMarkAllNotificationsRead flips every unread notification to read.
func HandleMarkAllNotificationsRead(c *fiber.Ctx) error {
	if err := repository.GetGlobalFactory().GetNotificationRepository().MarkAllRead(); err != nil {
		log.Errorf("notification mark all read failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to update notifications")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleNotificationStream pushes newly created notifications over SSE. The
// stream carries only events created while connected; clients fetch the
// unread backlog when they (re)connect.
func HandleNotificationStream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	hub := notifyHub
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		id, ch := hub.Subscribe()
		defer hub.Unsubscribe(id)

		fmt.Fprint(w, "event: ping\ndata: \"connected\"\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case n, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(n)
				if err != nil {
					log.Errorf("failed to encode notification %d for stream: %v", n.ID, err)
					continue
				}
				fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					// Client went away.
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, "event: ping\ndata: {}\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}
