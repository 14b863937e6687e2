package accesslog

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/apperrors"
	"github.com/medvault/medvault/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/consent/patient/:patientId/access-logs", h.ListForPatient,
		auth.RequireRole(auth.RolePatient, auth.RoleAdmin))
}

func (h *Handler) ListForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return apperrors.ErrValidation.WithMessage("invalid patient id")
	}

	r, ok := auth.RequestorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if r.Role == auth.RolePatient && r.ID != patientID {
		return apperrors.ErrForbidden.WithMessage("patients may only view their own access history")
	}

	p := pagination.FromContext(c)
	entries, total, err := h.svc.QueryForPatient(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p.Limit, p.Offset))
}
