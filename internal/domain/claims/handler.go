package claims

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
	api.POST("/claims", h.Submit)
	api.GET("/claims", h.ListLiveClaims)
	api.GET("/claims/:owner", h.GetClaim)
	api.POST("/claims/:owner/assign", h.Assign)
	api.POST("/claims/:owner/reassign", h.Reassign)
	api.POST("/claims/:owner/unassign", h.Unassign)
	api.POST("/claims/:owner/max-deny-pending", h.MaxDenyPending)
	api.POST("/claims/:owner/max-deny-in-progress", h.MaxDenyInProgress)
	api.POST("/claims/:owner/records/patient", h.CreatePatientRecord)
	api.POST("/claims/:owner/records/hospital-insurance", h.CreateHospitalAndInsuranceCompanyRecords)
	api.POST("/claims/:owner/approve", h.Approve)
	api.POST("/claims/:owner/deny", h.Deny)
	api.PUT("/claims/:owner/hospital-index", h.UpdateClaimHospitalIndex)
	api.PUT("/claims/:owner/insurance-index", h.UpdateClaimInsuranceCompanyIndex)

	api.GET("/processed-claims/:owner", h.ListProcessedClaims)
	api.GET("/processed-claims/:owner/:seq", h.GetProcessedClaim)
	api.POST("/processed-claims/:seq/appeal", h.Appeal)
	api.POST("/processed-claims/:owner/:seq/undeny", h.Undeny)
	api.POST("/processed-claims/:owner/:seq/deny-appeal", h.DenyAppealed)
	api.POST("/processed-claims/:owner/:seq/revoke", h.RevokeApproval)
	api.PUT("/processed-claims/:owner/:seq", h.Edit)

	api.GET("/stats", h.GetStats)
	api.GET("/queue/gate", h.GetGate)
	api.PUT("/queue/gate", h.SetGate)
	api.POST("/queue/denial-hammer", h.DropDenialHammer)
}

func owner(c echo.Context) protocol.Address {
	return protocol.Address(c.Param("owner"))
}

func seqParam(c echo.Context) (uint64, error) {
	v, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid seq")
	}
	return v, nil
}

func (h *Handler) Submit(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.Submit(c.Request().Context(), auth.Caller(c), sub)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) ListLiveClaims(c echo.Context) error {
	out, err := h.svc.ListLiveClaims(c.Request().Context())
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(out, pagination.FromContext(c)))
}

func (h *Handler) GetClaim(c echo.Context) error {
	cl, err := h.svc.GetClaim(c.Request().Context(), owner(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Assign(c echo.Context) error {
	cl, err := h.svc.Assign(c.Request().Context(), auth.Caller(c), owner(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Reassign(c echo.Context) error {
	var req struct {
		Processor string `json:"processor"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.Reassign(c.Request().Context(), auth.Caller(c), owner(c), protocol.Address(req.Processor))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Unassign(c echo.Context) error {
	cl, err := h.svc.Unassign(c.Request().Context(), auth.Caller(c), owner(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) MaxDenyPending(c echo.Context) error {
	if err := h.svc.MaxDenyPending(c.Request().Context(), auth.Caller(c), owner(c)); err != nil {
		return middleware.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MaxDenyInProgress(c echo.Context) error {
	if err := h.svc.MaxDenyInProgress(c.Request().Context(), auth.Caller(c), owner(c)); err != nil {
		return middleware.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreatePatientRecord(c echo.Context) error {
	cl, err := h.svc.CreatePatientRecord(c.Request().Context(), auth.Caller(c), owner(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) CreateHospitalAndInsuranceCompanyRecords(c echo.Context) error {
	cl, err := h.svc.CreateHospitalAndInsuranceCompanyRecords(c.Request().Context(), auth.Caller(c), owner(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) Approve(c echo.Context) error {
	var req struct {
		Edits *Edits `json:"edits"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var (
		pc  ProcessedClaim
		err error
	)
	if req.Edits != nil {
		pc, err = h.svc.ApproveWithEdits(c.Request().Context(), auth.Caller(c), owner(c), *req.Edits)
	} else {
		pc, err = h.svc.Approve(c.Request().Context(), auth.Caller(c), owner(c))
	}
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) Deny(c echo.Context) error {
	var req struct {
		Reason              string `json:"reason"`
		CreatePatientRecord bool   `json:"create_patient_record"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var (
		pc  ProcessedClaim
		err error
	)
	if req.CreatePatientRecord {
		pc, err = h.svc.CreatePatientRecordAndDenyClaim(c.Request().Context(), auth.Caller(c), owner(c), req.Reason)
	} else {
		pc, err = h.svc.DenyWithAllRecords(c.Request().Context(), auth.Caller(c), owner(c), req.Reason)
	}
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) UpdateClaimHospitalIndex(c echo.Context) error {
	var req struct {
		Index uint32 `json:"index"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.UpdateClaimHospitalIndex(c.Request().Context(), auth.Caller(c), owner(c), req.Index)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) UpdateClaimInsuranceCompanyIndex(c echo.Context) error {
	var req struct {
		Index uint32 `json:"index"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.UpdateClaimInsuranceCompanyIndex(c.Request().Context(), auth.Caller(c), owner(c), req.Index)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListProcessedClaims(c echo.Context) error {
	out, err := h.svc.ListProcessedClaims(c.Request().Context(), owner(c))
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(out, pagination.FromContext(c)))
}

func (h *Handler) GetProcessedClaim(c echo.Context) error {
	seq, err := seqParam(c)
	if err != nil {
		return err
	}
	pc, err := h.svc.GetProcessedClaim(c.Request().Context(), owner(c), seq)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

// Appeal acts on the caller's own processed claim, so the route carries only
// the sequence number.
func (h *Handler) Appeal(c echo.Context) error {
	seq, err := seqParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason     string `json:"reason"`
		AllRecords bool   `json:"all_records"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var pc ProcessedClaim
	if req.AllRecords {
		pc, err = h.svc.AppealAllRecords(c.Request().Context(), auth.Caller(c), seq, req.Reason)
	} else {
		pc, err = h.svc.AppealOnlyPatientRecord(c.Request().Context(), auth.Caller(c), seq, req.Reason)
	}
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) Undeny(c echo.Context) error {
	seq, err := seqParam(c)
	if err != nil {
		return err
	}
	var req struct {
		CreateRecords bool `json:"create_records"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var pc ProcessedClaim
	if req.CreateRecords {
		pc, err = h.svc.UndenyAndCreateHospitalAndInsuranceCompanyRecords(c.Request().Context(), auth.Caller(c), owner(c), seq)
	} else {
		pc, err = h.svc.UndenyWithAllRecords(c.Request().Context(), auth.Caller(c), owner(c), seq)
	}
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) DenyAppealed(c echo.Context) error {
	seq, err := seqParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason     string `json:"reason"`
		AllRecords bool   `json:"all_records"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var pc ProcessedClaim
	if req.AllRecords {
		pc, err = h.svc.DenyAppealedAllRecords(c.Request().Context(), auth.Caller(c), owner(c), seq, req.Reason)
	} else {
		pc, err = h.svc.DenyAppealedOnlyPatientRecord(c.Request().Context(), auth.Caller(c), owner(c), seq, req.Reason)
	}
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) RevokeApproval(c echo.Context) error {
	seq, err := seqParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pc, err := h.svc.RevokeApproval(c.Request().Context(), auth.Caller(c), owner(c), seq, req.Reason)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) Edit(c echo.Context) error {
	seq, err := seqParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Edits      Edits `json:"edits"`
		AllRecords bool  `json:"all_records"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var pc ProcessedClaim
	if req.AllRecords {
		pc, err = h.svc.EditProcessedClaimAndAllRecords(c.Request().Context(), auth.Caller(c), owner(c), seq, req.Edits)
	} else {
		pc, err = h.svc.EditProcessedClaimAndPatientRecord(c.Request().Context(), auth.Caller(c), owner(c), seq, req.Edits)
	}
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.GetStats(c.Request().Context())
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) GetGate(c echo.Context) error {
	g, err := h.svc.GetGate(c.Request().Context())
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) SetGate(c echo.Context) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g, err := h.svc.SetGate(c.Request().Context(), auth.Caller(c), req.Enabled)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) DropDenialHammer(c echo.Context) error {
	var req struct {
		Owners []string `json:"owners"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	owners := make([]protocol.Address, len(req.Owners))
	for i, o := range req.Owners {
		owners[i] = protocol.Address(o)
	}
	removed, err := h.svc.DropDenialHammer(c.Request().Context(), auth.Caller(c), owners)
	if err != nil {
		return middleware.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}
