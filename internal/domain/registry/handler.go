package registry

import (
	"net/http"

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
	api.POST("/owner", h.InitializeOwner)
	api.PUT("/owner", h.TransferOwnership)
	api.GET("/owner", h.GetOwner)
	api.POST("/processors", h.RegisterProcessor)
	api.GET("/processors", h.ListProcessors)
	api.GET("/processors/:address", h.GetProcessor)
	api.PUT("/processors/:address/active", h.SetProcessorActive)
	api.PUT("/processors/:address/admin", h.SetProcessorAdmin)
}

func (h *Handler) InitializeOwner(c echo.Context) error {
	if err := h.svc.InitializeOwner(c.Request().Context(), auth.Caller(c)); err != nil {
		return middleware.HTTPError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) TransferOwnership(c echo.Context) error {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.svc.TransferOwnership(c.Request().Context(), auth.Caller(c), protocol.Address(req.Address))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) GetOwner(c echo.Context) error {
	owner, err := h.svc.GetOwner(c.Request().Context())
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, owner)
}

func (h *Handler) RegisterProcessor(c echo.Context) error {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	proc, err := h.svc.RegisterProcessor(c.Request().Context(), auth.Caller(c), protocol.Address(req.Address))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, proc)
}

func (h *Handler) ListProcessors(c echo.Context) error {
	procs, err := h.svc.ListProcessors(c.Request().Context())
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(procs, pagination.FromContext(c)))
}

func (h *Handler) GetProcessor(c echo.Context) error {
	proc, err := h.svc.GetProcessor(c.Request().Context(), protocol.Address(c.Param("address")))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, proc)
}

func (h *Handler) SetProcessorActive(c echo.Context) error {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	proc, err := h.svc.SetProcessorActive(c.Request().Context(), auth.Caller(c),
		protocol.Address(c.Param("address")), req.Active)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, proc)
}

func (h *Handler) SetProcessorAdmin(c echo.Context) error {
	var req struct {
		Admin bool `json:"admin"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	proc, err := h.svc.SetProcessorAdmin(c.Request().Context(), auth.Caller(c),
		protocol.Address(c.Param("address")), req.Admin)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, proc)
}
