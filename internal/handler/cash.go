package handler

import (
	"net/http"
	"strconv"

	"gymadmin/internal/apierror"
	"gymadmin/internal/dto"
	"gymadmin/internal/middleware"
	"gymadmin/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CashHandler struct{ svc service.CashService }

func NewCashHandler(svc service.CashService) *CashHandler { return &CashHandler{svc: svc} }

// Open opens a new till session. 409 when one is already open.
func (h *CashHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operatorID, err := middleware.OperatorID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID de operador inválido"))
		return
	}

	resp, err := h.svc.Open(c.Request.Context(), operatorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetActive returns the currently open session, 404 when none exists.
func (h *CashHandler) GetActive(c *gin.Context) {
	resp, err := h.svc.GetActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, apierror.New("Sin sesión de caja activa"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AppendMovement records an immutable cash-affecting event in the ledger.
// Origin systems (POS, membership billing, manual entry) all enter here.
func (h *CashHandler) AppendMovement(c *gin.Context) {
	var req dto.AppendMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operatorID, err := middleware.OperatorID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID de operador inválido"))
		return
	}

	resp, err := h.svc.Append(c.Request.Context(), operatorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListMovements returns a session's ledger in insertion order.
func (h *CashHandler) ListMovements(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID inválido"))
		return
	}
	resp, err := h.svc.ListMovements(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetBreakdown serves the live or historical per-method/per-category totals.
func (h *CashHandler) GetBreakdown(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID inválido"))
		return
	}
	resp, err := h.svc.GetBreakdown(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetReport returns the session with its breakdown (detail view).
func (h *CashHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID inválido"))
		return
	}
	resp, err := h.svc.GetReport(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close reconciles the operator's count against the ledger and closes the
// session. Terminal: a second close always fails.
func (h *CashHandler) Close(c *gin.Context) {
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operatorID, err := middleware.OperatorID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID de operador inválido"))
		return
	}

	resp, err := h.svc.Close(c.Request.Context(), operatorID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns a paginated list of sessions, newest first.
func (h *CashHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	sessions, total, err := h.svc.History(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions, "total": total, "page": page, "limit": limit})
}
