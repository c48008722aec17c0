package directory

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/m4a/m4a/internal/platform/auth"
	"github.com/m4a/m4a/internal/platform/middleware"
	"github.com/m4a/m4a/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/states", h.CreateStateAccount)
	api.GET("/states/:country/:state", h.GetStateAccount)
	api.POST("/states/:country/:state/hospitals", h.CreateHospital)
	api.GET("/states/:country/:state/hospitals", h.ListHospitals)
	api.GET("/states/:country/:state/hospitals/:index", h.GetHospital)
	api.PUT("/states/:country/:state/hospitals/:index", h.EditHospital)
	api.POST("/insurers", h.CreateInsuranceCompany)
	api.GET("/insurers/:index", h.GetInsuranceCompany)
	api.PUT("/insurers/:index", h.EditInsuranceCompany)
}

func paramU32(c echo.Context, name string) (uint32, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint32(v), nil
}

type hospitalRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

func (h *Handler) CreateStateAccount(c echo.Context) error {
	var req struct {
		Country uint32 `json:"country"`
		State   uint32 `json:"state"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sa, err := h.svc.CreateStateAccount(c.Request().Context(), auth.Caller(c), req.Country, req.State)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, sa)
}

func (h *Handler) GetStateAccount(c echo.Context) error {
	country, err := paramU32(c, "country")
	if err != nil {
		return err
	}
	state, err := paramU32(c, "state")
	if err != nil {
		return err
	}
	sa, err := h.svc.GetStateAccount(c.Request().Context(), country, state)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sa)
}

func (h *Handler) CreateHospital(c echo.Context) error {
	country, err := paramU32(c, "country")
	if err != nil {
		return err
	}
	state, err := paramU32(c, "state")
	if err != nil {
		return err
	}
	var req hospitalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hosp, err := h.svc.CreateHospital(c.Request().Context(), auth.Caller(c),
		country, state, req.Name, req.Address, req.City)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, hosp)
}

func (h *Handler) ListHospitals(c echo.Context) error {
	country, err := paramU32(c, "country")
	if err != nil {
		return err
	}
	state, err := paramU32(c, "state")
	if err != nil {
		return err
	}
	hospitals, err := h.svc.ListHospitals(c.Request().Context(), country, state)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(hospitals, pagination.FromContext(c)))
}

func (h *Handler) GetHospital(c echo.Context) error {
	country, err := paramU32(c, "country")
	if err != nil {
		return err
	}
	state, err := paramU32(c, "state")
	if err != nil {
		return err
	}
	index, err := paramU32(c, "index")
	if err != nil {
		return err
	}
	hosp, err := h.svc.GetHospital(c.Request().Context(), country, state, index)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) EditHospital(c echo.Context) error {
	country, err := paramU32(c, "country")
	if err != nil {
		return err
	}
	state, err := paramU32(c, "state")
	if err != nil {
		return err
	}
	index, err := paramU32(c, "index")
	if err != nil {
		return err
	}
	var req hospitalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hosp, err := h.svc.EditHospital(c.Request().Context(), auth.Caller(c),
		country, state, index, req.Name, req.Address, req.City)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) CreateInsuranceCompany(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ic, err := h.svc.CreateInsuranceCompany(c.Request().Context(), auth.Caller(c), req.Name)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, ic)
}

func (h *Handler) GetInsuranceCompany(c echo.Context) error {
	index, err := paramU32(c, "index")
	if err != nil {
		return err
	}
	ic, err := h.svc.GetInsuranceCompany(c.Request().Context(), index)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, ic)
}

func (h *Handler) EditInsuranceCompany(c echo.Context) error {
	index, err := paramU32(c, "index")
	if err != nil {
		return err
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ic, err := h.svc.EditInsuranceCompany(c.Request().Context(), auth.Caller(c), index, req.Name)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, ic)
}
