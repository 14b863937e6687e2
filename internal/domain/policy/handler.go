package policy

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/domain/consent"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/apperrors"
)

type Handler struct {
	evaluator *Evaluator
}

func NewHandler(evaluator *Evaluator) *Handler {
	return &Handler{evaluator: evaluator}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/consent/decide", h.Decide)
}

type decideRequest struct {
	PatientID uuid.UUID     `json:"patient_id"`
	Requested consent.Scope `json:"requested"`
}

func (h *Handler) Decide(c echo.Context) error {
	var req decideRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrValidation.WithMessage("invalid request body").WithInternal(err)
	}
	r, ok := auth.RequestorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	decision, err := h.evaluator.Decide(c.Request().Context(), Request{
		RequesterID:   r.ID,
		RequesterRole: r.Role,
		PatientID:     req.PatientID,
		Requested:     req.Requested,
		IPAddress:     c.RealIP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision)
}
