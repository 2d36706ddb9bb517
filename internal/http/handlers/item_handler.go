// Item and category HTTP handlers.
//
// This file exposes REST endpoints for the menu:
//   - GET    /items               (list or ranked search, ETag support)
//   - GET    /items/{id}          (detail)
//   - POST   /items               (create, 409 on duplicate code)
//   - PUT    /items/{id}          (update)
//   - DELETE /items/{id}          (delete)
//   - GET    /items/export        (xlsx download)
//   - GET    /categories          (read-only list)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/export"
	"github.com/tbourn/go-restaurant-backend/internal/http/middleware"
	"github.com/tbourn/go-restaurant-backend/internal/services"
	"github.com/tbourn/go-restaurant-backend/internal/utils"
)

//
// DTOs
//

// ItemRequest is the JSON payload for creating or updating an item.
// The read-side category join is not accepted.
type ItemRequest struct {
	Code       string `json:"code"        binding:"required,max=32"  example:"P01"`
	Name       string `json:"name"        binding:"required,max=255" example:"Pho bo"`
	Price      *int64 `json:"price"       binding:"required,min=0"   example:"45"`
	CategoryID *int64 `json:"category_id" binding:"required"         example:"1"`
}

func (r ItemRequest) input() domain.ItemInput {
	in := domain.ItemInput{Code: r.Code, Name: r.Name, CategoryID: r.CategoryID}
	if r.Price != nil {
		in.Price = *r.Price
	}
	return in
}

// ItemView is an item with its display price.
type ItemView struct {
	domain.Item
	// PriceLabel is Price in full currency units, localized.
	PriceLabel string `json:"price_label" example:"45.000 ₫"`
}

// ListItemsResponse wraps a list of items.
type ListItemsResponse struct {
	Items []ItemView `json:"items"`
}

// ListCategoriesResponse wraps the categories.
type ListCategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

//
// Helpers
//

func (h *Handlers) view(it domain.Item) ItemView {
	return ItemView{
		Item:       it,
		PriceLabel: h.printer.Sprintf("%d ₫", it.Price*export.PriceUnit),
	}
}

func (h *Handlers) views(items []domain.Item) []ItemView {
	out := make([]ItemView, len(items))
	for i, it := range items {
		out[i] = h.view(it)
	}
	return out
}

// itemError maps service errors to the error envelope.
func itemError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrItemNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "item not found")
	case errors.Is(err, services.ErrDuplicateItemCode):
		fail(c, http.StatusConflict, ErrCodeConflict, MsgCodeExists)
	case services.IsValidation(err):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

func itemID(c *gin.Context) (int64, bool) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item id must be a positive integer")
	}
	return id, valid
}

//
// Handlers
//

// ListItems godoc
// @ID          listItems
// @Summary     List menu items
// @Description Returns the menu with categories joined. With q, items are ranked by relevance to the query. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Items
// @Produce     json
//
// @Param       category       query   string  false "Category code"               example(food)
// @Param       q              query   string  false "Search text"                 example(pho)
// @Param       limit          query   int     false "Max ranked results"          minimum(1) maximum(200) default(50)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListItemsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /items [get]
func (h *Handlers) ListItems(c *gin.Context) {
	ctx := c.Request.Context()
	category := strings.TrimSpace(c.Query("category"))
	q := strings.TrimSpace(c.Query("q"))
	limit := utils.Clamp(utils.AtoiDefault(c.Query("limit"), h.searchLimit), 1, 200)

	// ETag pre-check (best effort).
	if st, ok := h.items.(itemStats); ok {
		if count, last, err := st.Stats(ctx); err == nil {
			if notModified(c, fmt.Sprintf(`W/"items:%s:%s:%d:%d:%s"`, category, q, limit, count, last)) {
				return
			}
		}
	}

	items, err := h.items.Search(ctx, q, category, limit)
	if err != nil {
		itemError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListItemsResponse{Items: h.views(items)})
}

// GetItem godoc
// @ID          getItem
// @Summary     Get an item
// @Tags        Items
// @Produce     json
//
// @Param       id  path  int  true  "Item ID"  minimum(1)
//
// @Success     200  {object} handlers.ItemView
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Item not found"
// @Router      /items/{id} [get]
func (h *Handlers) GetItem(c *gin.Context) {
	id, valid := itemID(c)
	if !valid {
		return
	}
	it, err := h.items.Get(c.Request.Context(), id)
	if err != nil {
		itemError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, h.view(*it))
}

// CreateItem godoc
// @ID          createItem
// @Summary     Create an item
// @Description Inserts a menu item. Item codes are unique; a duplicate returns 409 with "Code already exists!".
// @Tags        Items
// @Accept      json
// @Produce     json
//
// @Param       X-Client-ID      header  string  false "Client identity"
// @Param       Idempotency-Key  header  string  false "Replay protection"
// @Param       body             body    handlers.ItemRequest  true  "Item payload"
//
// @Success     201  {object} handlers.ItemView
// @Success     200  {object} handlers.ItemView "Replayed"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Code already exists"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /items [post]
func (h *Handlers) CreateItem(c *gin.Context) {
	ctx := c.Request.Context()

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code, name, price and category_id are required")
		return
	}

	if replay(c, h.idem, domain.CollectionItems, h.items.Get, func(it *domain.Item) any { return h.view(*it) }) {
		return
	}

	it, err := h.items.Create(ctx, req.input())
	if err != nil {
		itemError(c, err, ErrCodeCreateFailed)
		return
	}

	remember(c, h.idem, domain.CollectionItems, it.ID)
	ok(c, http.StatusCreated, h.view(*it))
}

// UpdateItem godoc
// @ID          updateItem
// @Summary     Update an item
// @Description Overwrites code, name, price and category of an item.
// @Tags        Items
// @Accept      json
// @Produce     json
//
// @Param       id    path  int                    true  "Item ID"  minimum(1)
// @Param       body  body  handlers.ItemRequest   true  "Item payload"
//
// @Success     200  {object} handlers.ItemView
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Item not found"
// @Failure     409  {object} handlers.ErrorResponse "Code already exists"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /items/{id} [put]
func (h *Handlers) UpdateItem(c *gin.Context) {
	id, valid := itemID(c)
	if !valid {
		return
	}
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code, name, price and category_id are required")
		return
	}
	it, err := h.items.Update(c.Request.Context(), id, req.input())
	if err != nil {
		itemError(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, h.view(*it))
}

// DeleteItem godoc
// @ID          deleteItem
// @Summary     Delete an item
// @Tags        Items
//
// @Param       id  path  int  true  "Item ID"  minimum(1)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Item not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /items/{id} [delete]
func (h *Handlers) DeleteItem(c *gin.Context) {
	id, valid := itemID(c)
	if !valid {
		return
	}
	if err := h.items.Delete(c.Request.Context(), id); err != nil {
		itemError(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// ExportItems godoc
// @ID          exportItems
// @Summary     Export the menu as xlsx
// @Tags        Items
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//
// @Param       category  query  string  false "Category code"
//
// @Success     200  {file}   file
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /items/export [get]
func (h *Handlers) ExportItems(c *gin.Context) {
	items, err := h.items.Search(c.Request.Context(), "", strings.TrimSpace(c.Query("category")), 0)
	if err != nil {
		itemError(c, err, ErrCodeExportFailed)
		return
	}
	f, err := export.ItemsWorkbook(items)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("menu_%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Type", export.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("export write failed")
	}
}

// ListCategories godoc
// @ID          listCategories
// @Summary     List categories
// @Tags        Categories
// @Produce     json
//
// @Success     200  {object} handlers.ListCategoriesResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	cats, err := h.categories.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	ok(c, http.StatusOK, ListCategoriesResponse{Categories: cats})
}
