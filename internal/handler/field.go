package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/field-booking/internal/logger"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/repository"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

var (
	defaultOpenTime  = timeslot.At(6, 0)
	defaultCloseTime = timeslot.At(23, 0)
)

// CatalogueCache holds cached public catalogue responses.
type CatalogueCache interface {
	Purge(ctx context.Context) error
}

// FieldHandler is the staff-only field administration API. Every successful
// write purges Cache so the public catalogue reflects it immediately.
type FieldHandler struct {
	Fields FieldStore
	Cache  CatalogueCache
	Log    *logger.Logger
}

// NewFieldHandler accepts a nil cache.
func NewFieldHandler(fields FieldStore, cache CatalogueCache, log *logger.Logger) *FieldHandler {
	if fields == nil {
		panic("nil repository passed to NewFieldHandler")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FieldHandler{Fields: fields, Cache: cache, Log: log}
}

func (h *FieldHandler) purgeCatalogue(c echo.Context) {
	if h.Cache == nil {
		return
	}
	ctx := c.Request().Context()
	if err := h.Cache.Purge(ctx); err != nil {
		h.Log.Warn(ctx, "catalogue cache purge failed", err)
	}
}

type fieldRequest struct {
	Name         *string             `json:"name" validate:"omitempty,min=1,max=100"`
	FieldType    *model.FieldType    `json:"field_type" validate:"omitempty,oneof=5vs5 7vs7 11vs11"`
	Location     *string             `json:"location" validate:"omitempty,min=1,max=255"`
	PricePerHour *decimal.Decimal    `json:"price_per_hour"`
	Description  *string             `json:"description"`
	Image        *string             `json:"image" validate:"omitempty,url"`
	IsActive     *bool               `json:"is_active"`
	OpenTime     *timeslot.TimeOfDay `json:"open_time"`
	CloseTime    *timeslot.TimeOfDay `json:"close_time"`
}

// apply copies the set fields of r onto f and checks the result.
func (r fieldRequest) apply(f *model.Field) map[string]string {
	if r.Name != nil {
		f.Name = strings.TrimSpace(*r.Name)
	}
	if r.FieldType != nil {
		f.FieldType = *r.FieldType
	}
	if r.Location != nil {
		f.Location = strings.TrimSpace(*r.Location)
	}
	if r.PricePerHour != nil {
		f.PricePerHour = *r.PricePerHour
	}
	if r.Description != nil {
		f.Description = r.Description
	}
	if r.Image != nil {
		f.Image = r.Image
	}
	if r.IsActive != nil {
		f.IsActive = *r.IsActive
	}
	if r.OpenTime != nil {
		f.OpenTime = *r.OpenTime
	}
	if r.CloseTime != nil {
		f.CloseTime = *r.CloseTime
	}

	details := map[string]string{}
	if f.Name == "" {
		details["name"] = "is required"
	}
	if !f.FieldType.Valid() {
		details["field_type"] = "must be one of: 5vs5 7vs7 11vs11"
	}
	if f.Location == "" {
		details["location"] = "is required"
	}
	if !f.PricePerHour.IsPositive() {
		details["price_per_hour"] = "must be greater than 0"
	}
	if f.CloseTime <= f.OpenTime {
		details["close_time"] = "must be after open_time"
	}
	return details
}

func invalid(details map[string]string) error {
	return &validationError{msg: "validation failed", details: details}
}

// List handles GET /v1/fields, including inactive fields.
func (h *FieldHandler) List(c echo.Context) error {
	ft := model.FieldType(c.QueryParam("field_type"))
	if ft != "" && !ft.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field_type"})
	}
	fields, err := h.Fields.ListFields(c.Request().Context(), repository.FieldFilter{
		Search:     strings.TrimSpace(c.QueryParam("search")),
		FieldType:  ft,
		ActiveOnly: c.QueryParam("active") == "true",
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toFieldResponses(fields)})
}

// Create handles POST /v1/fields.
func (h *FieldHandler) Create(c echo.Context) error {
	var req fieldRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	f := &model.Field{IsActive: true, OpenTime: defaultOpenTime, CloseTime: defaultCloseTime}
	if details := req.apply(f); len(details) > 0 {
		return writeError(c, h.Log, invalid(details))
	}
	if err := h.Fields.CreateField(c.Request().Context(), f); err != nil {
		return writeError(c, h.Log, err)
	}
	h.purgeCatalogue(c)
	return c.JSON(http.StatusCreated, toFieldResponse(f))
}

// Update handles PUT /v1/fields/:id; omitted properties keep their value.
func (h *FieldHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c, "field")
	}
	var req fieldRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx := c.Request().Context()
	f, err := h.Fields.GetField(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if details := req.apply(f); len(details) > 0 {
		return writeError(c, h.Log, invalid(details))
	}
	if err := h.Fields.UpdateField(ctx, f); err != nil {
		return writeError(c, h.Log, err)
	}
	h.purgeCatalogue(c)
	return c.JSON(http.StatusOK, toFieldResponse(f))
}

// Delete handles DELETE /v1/fields/:id. Fields with booking history are
// kept; deactivate them instead.
func (h *FieldHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badID(c, "field")
	}
	if err := h.Fields.DeleteField(c.Request().Context(), id); err != nil {
		return writeError(c, h.Log, err)
	}
	h.purgeCatalogue(c)
	return c.NoContent(http.StatusNoContent)
}
