package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/JackBungart/perceptive-crm/internal/crm"
	"github.com/JackBungart/perceptive-crm/internal/model"
)

func createScheduleHandler(svc *crm.ScheduleService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in crm.ScheduleInput
		if err := c.Bind(&in); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		sc, err := svc.Create(c.Request().Context(), in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusCreated, scheduleView(*sc))
	}
}

func getScheduleHandler(svc *crm.ScheduleService) echo.HandlerFunc {
	return func(c echo.Context) error {
		sc, err := svc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, scheduleView(*sc))
	}
}

func listSchedulesHandler(svc *crm.ScheduleService) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pagination(c)

		var contactID int64
		if v := c.QueryParam("contact_id"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				contactID = n
			}
		}

		var st model.ScheduleStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			tmp := model.ScheduleStatus(raw)
			if tmp.Valid() {
				st = tmp
			}
		}

		rows, err := svc.List(c.Request().Context(), contactID, st, limit, offset)
		if err != nil {
			return serviceError(c, err)
		}
		out := make([]map[string]any, 0, len(rows))
		for _, sc := range rows {
			out = append(out, scheduleView(sc))
		}
		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(out),
			"results": out,
		})
	}
}

func cancelScheduleHandler(svc *crm.ScheduleService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.Cancel(c.Request().Context(), c.Param("id")); err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"id": c.Param("id"), "status": model.ScheduleCancelled})
	}
}

func scheduleView(s model.Schedule) map[string]any {
	v := map[string]any{
		"id":            s.ID,
		"contact_id":    s.ContactID,
		"channel":       s.Channel,
		"subject":       s.Subject,
		"body":          s.Body,
		"send_at":       s.SendAt,
		"recurrence":    s.Recurrence,
		"status":        s.Status,
		"attempt_count": s.AttemptCount,
		"created_at":    s.CreatedAt,
		"updated_at":    s.UpdatedAt,
	}
	if s.EndDate != nil {
		v["end_date"] = s.EndDate.Format("2006-01-02")
	}
	if s.LastAttemptAt != nil {
		v["last_attempt_at"] = s.LastAttemptAt
	}
	return v
}
