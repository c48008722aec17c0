package submitter

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/m4a/m4a/internal/platform/auth"
	"github.com/m4a/m4a/internal/platform/middleware"
	"github.com/m4a/m4a/internal/protocol"
	"github.com/m4a/m4a/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/submitters", h.CreateSubmitter)
	api.GET("/submitters/:address", h.GetSubmitter)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:index", h.GetPatient)
	api.PUT("/patients/:index/active", h.SetPatientFlag)
}

func (h *Handler) CreateSubmitter(c echo.Context) error {
	sub, err := h.svc.CreateSubmitter(c.Request().Context(), auth.Caller(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (h *Handler) GetSubmitter(c echo.Context) error {
	sub, err := h.svc.GetSubmitter(c.Request().Context(), protocol.Address(c.Param("address")))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), auth.Caller(c), req.FirstName, req.LastName)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	patients, err := h.svc.ListPatients(c.Request().Context(), auth.Caller(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(patients, pagination.FromContext(c)))
}

func (h *Handler) patientIndex(c echo.Context) (uint32, error) {
	v, err := strconv.ParseUint(c.Param("index"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid index")
	}
	return uint32(v), nil
}

func (h *Handler) GetPatient(c echo.Context) error {
	index, err := h.patientIndex(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), auth.Caller(c), index)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SetPatientFlag(c echo.Context) error {
	index, err := h.patientIndex(c)
	if err != nil {
		return err
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.SetPatientFlag(c.Request().Context(), auth.Caller(c), index, req.Active)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}
