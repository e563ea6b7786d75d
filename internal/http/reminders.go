package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"github.com/jmehdipour/reminder-gateway/internal/service/reminders"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type createReq struct {
	Title        string `json:"title"`
	PrimaryPhone string `json:"primary_phone"`
	BackupPhone  string `json:"backup_phone"`
	ScheduledAt  string `json:"scheduled_at"`
}

func createReminderHandler(svc *reminders.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		m, err := svc.Create(c.Request().Context(), reminders.CreateInput{
			Title:        req.Title,
			PrimaryPhone: req.PrimaryPhone,
			BackupPhone:  req.BackupPhone,
			ScheduledAt:  req.ScheduledAt,
		})
		if err != nil {
			switch {
			case errors.Is(err, reminders.ErrMissingFields),
				errors.Is(err, reminders.ErrBadPrimary),
				errors.Is(err, reminders.ErrBadBackup),
				errors.Is(err, reminders.ErrBadScheduledAt):
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}
			log.Errorf("create reminder failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}

		return c.JSON(http.StatusCreated, m)
	}
}

func listRemindersHandler(svc *reminders.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		out, err := svc.List(c.Request().Context())
		if err != nil {
			log.Errorf("list reminders failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return c.JSON(http.StatusOK, out)
	}
}

func callNowHandler(svc *reminders.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if id == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "reminder id is required"})
		}

		err := svc.CallNow(c.Request().Context(), id)
		switch {
		case err == nil:
			return c.JSON(http.StatusOK, map[string]any{"success": true, "id": id})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "reminder not found"})
		case errors.Is(err, repository.ErrAlreadyCalling):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "reminder is already being called"})
		default:
			log.Errorf("call-now failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
	}
}
