package http

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/JackBungart/perceptive-crm/internal/crm"
	"github.com/JackBungart/perceptive-crm/internal/model"
)

func serviceError(c echo.Context, err error) error {
	switch {
	case crm.IsValidation(err):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, crm.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, crm.ErrDuplicateEmail):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, crm.ErrTerminalState):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Errorf("request failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func createContactHandler(svc *crm.ContactService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in crm.ContactInput
		if err := c.Bind(&in); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		contact, err := svc.Create(c.Request().Context(), in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusCreated, contactView(*contact))
	}
}

func getContactHandler(svc *crm.ContactService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad id"})
		}
		contact, err := svc.Get(c.Request().Context(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, contactView(*contact))
	}
}

func listContactsHandler(svc *crm.ContactService) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pagination(c)
		contacts, err := svc.List(c.Request().Context(), limit, offset)
		if err != nil {
			return serviceError(c, err)
		}
		out := make([]map[string]any, 0, len(contacts))
		for _, ct := range contacts {
			out = append(out, contactView(ct))
		}
		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(out),
			"results": out,
		})
	}
}

func updatePipelineHandler(svc *crm.ContactService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad id"})
		}
		var p model.Pipeline
		if err := c.Bind(&p); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		contact, err := svc.UpdatePipeline(c.Request().Context(), id, p)
		if err != nil {
			return serviceError(c, err)
		}
		// read-your-writes: the response carries the regenerated summary
		return c.JSON(http.StatusOK, contactView(*contact))
	}
}

func regenerateSummaryHandler(svc *crm.ContactService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad id"})
		}
		text, err := svc.RegenerateSummary(c.Request().Context(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"contact_id": id, "summary_text": text})
	}
}

func contactView(c model.Contact) map[string]any {
	return map[string]any{
		"id":               c.ID,
		"first_name":       c.FirstName,
		"last_name":        c.LastName,
		"email":            c.Email,
		"phone":            c.Phone,
		"company":          c.Company,
		"notes":            c.Notes,
		"potential_amount": c.PotentialAmount,
		"accepted_amount":  c.AcceptedAmount,
		"billed_amount":    c.BilledAmount,
		"received_amount":  c.ReceivedAmount,
		"rating":           c.Rating,
		"summary_text":     c.SummaryText,
		"created_at":       c.CreatedAt,
		"updated_at":       c.UpdatedAt,
	}
}

func pagination(c echo.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
