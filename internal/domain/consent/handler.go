package consent

import (
	"net/http"
	"time"

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
	manage := auth.RequireRole(auth.RolePatient, auth.RoleAdmin)
	api.POST("/consent/grant", h.Grant, manage)
	api.POST("/consent/grant-full", h.GrantFull, manage)
	api.POST("/consent/:consentId/revoke", h.Revoke, manage)
	api.GET("/consent/check", h.Check)
	api.GET("/consent/patient/:patientId", h.ListForPatient)
}

type grantRequest struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	GrantedTo     uuid.UUID  `json:"granted_to"`
	GrantedToType string     `json:"granted_to_type"`
	Scope         Scope      `json:"scope"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

type grantFullRequest struct {
	PatientID    uuid.UUID `json:"patient_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	ProviderType string    `json:"provider_type"`
}

type checkResponse struct {
	HasAccess bool  `json:"has_access"`
	Scope     Scope `json:"scope"`
}

// requirePatientSelf lets a patient act only on their own record; other
// roles pass through (the route middleware has already gated them).
func requirePatientSelf(c echo.Context, patientID uuid.UUID) error {
	r, ok := auth.RequestorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if r.Role == auth.RolePatient && r.ID != patientID {
		return apperrors.ErrForbidden.WithMessage("patients may only manage their own consent")
	}
	return nil
}

func (h *Handler) Grant(c echo.Context) error {
	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrValidation.WithMessage("invalid request body").WithInternal(err)
	}
	if err := requirePatientSelf(c, req.PatientID); err != nil {
		return err
	}

	consent, err := h.svc.Grant(c.Request().Context(),
		req.PatientID, req.GrantedTo, req.GrantedToType, req.Scope, req.ExpiresAt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, consent)
}

func (h *Handler) GrantFull(c echo.Context) error {
	var req grantFullRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrValidation.WithMessage("invalid request body").WithInternal(err)
	}
	if err := requirePatientSelf(c, req.PatientID); err != nil {
		return err
	}

	consent, err := h.svc.GrantFull(c.Request().Context(),
		req.PatientID, req.ProviderID, req.ProviderType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, consent)
}

func (h *Handler) Revoke(c echo.Context) error {
	consentID, err := uuid.Parse(c.Param("consentId"))
	if err != nil {
		return apperrors.ErrValidation.WithMessage("invalid consent id")
	}
	r, ok := auth.RequestorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	existing, err := h.svc.Get(c.Request().Context(), consentID)
	if err != nil {
		return err
	}
	if err := requirePatientSelf(c, existing.PatientID); err != nil {
		return err
	}

	consent, err := h.svc.Revoke(c.Request().Context(), consentID, r.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, consent)
}

func (h *Handler) Check(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return apperrors.ErrValidation.WithMessage("patient_id query parameter is required")
	}
	providerID, err := uuid.Parse(c.QueryParam("provider_id"))
	if err != nil {
		return apperrors.ErrValidation.WithMessage("provider_id query parameter is required")
	}

	scope, ok, err := h.svc.ResolveEffective(c.Request().Context(), patientID, providerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, checkResponse{HasAccess: ok, Scope: scope})
}

func (h *Handler) ListForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return apperrors.ErrValidation.WithMessage("invalid patient id")
	}
	if err := requirePatientSelf(c, patientID); err != nil {
		return err
	}

	p := pagination.FromContext(c)
	consents, total, err := h.svc.ListForPatient(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(consents, total, p.Limit, p.Offset))
}
