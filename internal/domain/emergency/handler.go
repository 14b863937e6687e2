package emergency

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/apperrors"
)

type Handler struct {
	gate *Gate
}

func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/consent/emergency", h.Invoke,
		auth.RequireRole(auth.RoleDoctor, auth.RoleHospitalAdmin))
}

type invokeRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Reason    string    `json:"reason"`
}

func (h *Handler) Invoke(c echo.Context) error {
	var req invokeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrValidation.WithMessage("invalid request body").WithInternal(err)
	}
	r, ok := auth.RequestorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	grant, err := h.gate.Invoke(c.Request().Context(), Invocation{
		RequesterID:   r.ID,
		RequesterRole: r.Role,
		PatientID:     req.PatientID,
		Reason:        req.Reason,
		IPAddress:     c.RealIP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, grant)
}
