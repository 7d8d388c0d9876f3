package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/middleware"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/localnerve/jam-build-recordsdb/internal/utils"
)

// RecordsHandler handles record routes of a collection
type RecordsHandler struct {
	Records *services.RecordService
}

// CreateRecord handles POST /api/collections/:collection/records
// @Summary Create a record
// @Description Validate a flat JSON object against the collection schema and insert it
// @Tags Records
// @Accept json
// @Produce json
// @Param collection path string true "Collection name"
// @Param record body map[string]interface{} true "Field values"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections/{collection}/records [post]
func (h *RecordsHandler) CreateRecord(c *fiber.Ctx) error {
	payload, err := parseObject(c)
	if err != nil {
		return err
	}

	rec, err := h.Records.Create(c.UserContext(), c.Params("collection"), payload, middleware.UserID(c))
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, rec, fiber.StatusCreated)
}

// ListRecords handles GET /api/collections/:collection/records
// @Summary List records
// @Description Filtered, sorted, paginated records of a collection
// @Tags Records
// @Produce json
// @Param collection path string true "Collection name"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 200)" default(20)
// @Param filter query string false "JSON filter object or array: {\"field\":\"f\",\"op\":\"eq\",\"value\":1}"
// @Param sort query string false "Sort field"
// @Param order query string false "asc or desc"
// @Success 200 {object} utils.ListResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /collections/{collection}/records [get]
func (h *RecordsHandler) ListRecords(c *fiber.Ctx) error {
	page, perPage, err := parsePagination(c, DefaultRecordsPerPage)
	if err != nil {
		return err
	}
	filters, err := parseFilters(c)
	if err != nil {
		return err
	}

	result, err := h.Records.List(c.UserContext(), c.Params("collection"), services.ListQuery{
		Page:    page,
		PerPage: perPage,
		Filters: filters,
		Sort:    c.Query("sort"),
		Order:   c.Query("order"),
	})
	if err != nil {
		return err
	}

	return utils.ListResponse(c, result.Items, result.Total, result.Page, result.PerPage)
}

// GetRecord handles GET /api/collections/:collection/records/:id
// @Summary Get a record
// @Tags Records
// @Produce json
// @Param collection path string true "Collection name"
// @Param id path string true "Record ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /collections/{collection}/records/{id} [get]
func (h *RecordsHandler) GetRecord(c *fiber.Ctx) error {
	rec, err := h.Records.Get(c.UserContext(), c.Params("collection"), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, rec, fiber.StatusOK)
}

// UpdateRecord handles PATCH /api/collections/:collection/records/:id
// @Summary Update a record
// @Description Validate and write the provided fields only
// @Tags Records
// @Accept json
// @Produce json
// @Param collection path string true "Collection name"
// @Param id path string true "Record ID"
// @Param record body map[string]interface{} true "Changed field values"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 422 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections/{collection}/records/{id} [patch]
func (h *RecordsHandler) UpdateRecord(c *fiber.Ctx) error {
	payload, err := parseObject(c)
	if err != nil {
		return err
	}

	rec, err := h.Records.Update(c.UserContext(), c.Params("collection"), c.Params("id"), payload)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, rec, fiber.StatusOK)
}

// DeleteRecord handles DELETE /api/collections/:collection/records/:id
// @Summary Delete a record
// @Tags Records
// @Param collection path string true "Collection name"
// @Param id path string true "Record ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections/{collection}/records/{id} [delete]
func (h *RecordsHandler) DeleteRecord(c *fiber.Ctx) error {
	if err := h.Records.Delete(c.UserContext(), c.Params("collection"), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
