package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/JackBungart/perceptive-crm/internal/repository"
)

func listDeliveriesHandler(chRepo repository.CHDeliveriesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		contactID, err := strconv.ParseInt(c.QueryParam("contact_id"), 10, 64)
		if err != nil || contactID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "contact_id required"})
		}

		limit, offset := pagination(c)

		outcome := strings.TrimSpace(c.QueryParam("outcome"))
		if outcome != "" && outcome != "sent" && outcome != "failed" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid outcome"})
		}

		rows, err := chRepo.ListByContact(c.Request().Context(), contactID, outcome, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
