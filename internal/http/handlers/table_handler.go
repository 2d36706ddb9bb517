// Table HTTP handlers.
//
// This file exposes REST endpoints for table resources:
//   - GET    /tables              (list by date or code, ETag support)
//   - GET    /tables/{code}       (detail: first table with the code)
//   - POST   /tables              (open a table, Idempotency-Key aware)
//   - DELETE /tables?code=1234    (delete every table with the code)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/services"
)

//
// DTOs
//

// CreateTableRequest is the JSON payload for opening a table.
type CreateTableRequest struct {
	// Code is the 4-digit table code chosen by the client.
	Code int `json:"code" binding:"required" example:"4821"`
	// Date is the business day (YYYY/MM/DD); empty means today.
	Date string `json:"date" example:"2024/05/01"`
}

// ListTablesResponse wraps a list of tables.
type ListTablesResponse struct {
	Tables []domain.Table `json:"tables"`
}

// DeleteTablesResponse reports how many tables a delete removed.
type DeleteTablesResponse struct {
	Deleted int `json:"deleted" example:"1"`
}

//
// Helpers
//

// tableFilter builds the list filter from ?date=, ?day=today|yesterday and
// ?code=. A malformed code is reported through ok=false.
func (h *Handlers) tableFilter(c *gin.Context) (f domain.TableFilter, ok bool) {
	f.Date = strings.TrimSpace(c.Query("date"))
	switch strings.ToLower(strings.TrimSpace(c.Query("day"))) {
	case "today":
		f.Date = h.tables.Today()
	case "yesterday":
		f.Date = h.tables.Yesterday()
	}
	if raw := strings.TrimSpace(c.Query("code")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, false
		}
		f.Code = n
	}
	return f, true
}

// tableError maps service errors to the error envelope.
func tableError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrTableNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "table not found")
	case errors.Is(err, services.ErrInvalidTableCode), errors.Is(err, services.ErrInvalidDate):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// Handlers
//

// ListTables godoc
// @ID          listTables
// @Summary     List tables
// @Description Returns tables filtered by date or code in storage order. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Tables
// @Produce     json
//
// @Param       date           query   string  false "Business day (YYYY/MM/DD)"    example(2024/05/01)
// @Param       day            query   string  false "Shortcut for date"            Enums(today, yesterday)
// @Param       code           query   int     false "Table code"                   minimum(1000) maximum(9999)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"tables:2024/05/01:0:3:12\")
//
// @Success     200  {object} handlers.ListTablesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tables [get]
func (h *Handlers) ListTables(c *gin.Context) {
	ctx := c.Request.Context()
	f, valid := h.tableFilter(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code must be a number")
		return
	}

	// ETag pre-check (best effort).
	if st, ok := h.tables.(tableStats); ok {
		if count, maxID, err := st.Stats(ctx, f); err == nil {
			if notModified(c, fmt.Sprintf(`W/"tables:%s:%d:%d:%d"`, f.Date, f.Code, count, maxID)) {
				return
			}
		}
	}

	tables, err := h.tables.List(ctx, f)
	if err != nil {
		tableError(c, err, ErrCodeListFailed)
		return
	}
	if tables == nil {
		tables = []domain.Table{}
	}
	ok(c, http.StatusOK, ListTablesResponse{Tables: tables})
}

// GetTable godoc
// @ID          getTable
// @Summary     Get a table by code
// @Description Returns the first table carrying the code.
// @Tags        Tables
// @Produce     json
//
// @Param       code  path  int  true  "Table code"  minimum(1000) maximum(9999)
//
// @Success     200  {object} domain.Table
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Table not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tables/{code} [get]
func (h *Handlers) GetTable(c *gin.Context) {
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code must be a number")
		return
	}
	t, err := h.tables.GetByCode(c.Request.Context(), code)
	if err != nil {
		tableError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, t)
}

// CreateTable godoc
// @ID          createTable
// @Summary     Open a table
// @Description Inserts a table with a client-chosen code. Codes are not unique; the client retries against its own list. A repeated Idempotency-Key returns the table created the first time.
// @Tags        Tables
// @Accept      json
// @Produce     json
//
// @Param       X-Client-ID      header  string  false "Client identity"   example(pos-1)
// @Param       Idempotency-Key  header  string  false "Replay protection" example(4b7c0e58-2f6b-4a7f-9b0c-8d5c5b0f1d1e)
// @Param       body             body    handlers.CreateTableRequest  true  "Table payload"
//
// @Success     201  {object} domain.Table
// @Success     200  {object} domain.Table "Replayed"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tables [post]
func (h *Handlers) CreateTable(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if replay(c, h.idem, domain.CollectionTables, h.tables.Get, func(t *domain.Table) any { return t }) {
		return
	}

	t, err := h.tables.Create(ctx, req.Code, strings.TrimSpace(req.Date))
	if err != nil {
		tableError(c, err, ErrCodeCreateFailed)
		return
	}

	remember(c, h.idem, domain.CollectionTables, t.ID)
	ok(c, http.StatusCreated, t)
}

// DeleteTables godoc
// @ID          deleteTables
// @Summary     Delete tables by code
// @Description Removes every table carrying the code. Deleting nothing is not an error.
// @Tags        Tables
// @Produce     json
//
// @Param       code  query  int  true  "Table code"  minimum(1000) maximum(9999)
//
// @Success     200  {object} handlers.DeleteTablesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tables [delete]
func (h *Handlers) DeleteTables(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("code"))
	if raw == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code query parameter required")
		return
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code must be a number")
		return
	}
	n, err := h.tables.DeleteByCode(c.Request.Context(), code)
	if err != nil {
		tableError(c, err, ErrCodeDeleteFailed)
		return
	}
	ok(c, http.StatusOK, DeleteTablesResponse{Deleted: n})
}
