package handlers

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
	"github.com/localnerve/jam-build-recordsdb/internal/utils"
)

// CollectionsHandler handles collection schema routes
type CollectionsHandler struct {
	Collections *services.CollectionService
}

func parseCollectionInput(c *fiber.Ctx) (*services.CollectionInput, error) {
	var input services.CollectionInput
	if err := json.Unmarshal(c.Body(), &input); err != nil {
		return nil, types.BadRequest("Request body must be a collection JSON object: %v", err)
	}
	return &input, nil
}

// CreateCollection handles POST /api/collections
// @Summary Create a collection
// @Description Define a collection schema and create its table
// @Tags Collections
// @Accept json
// @Produce json
// @Param collection body services.CollectionInput true "Collection definition"
// @Success 201 {object} models.Collection
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections [post]
func (h *CollectionsHandler) CreateCollection(c *fiber.Ctx) error {
	input, err := parseCollectionInput(c)
	if err != nil {
		return err
	}

	coll, err := h.Collections.Create(c.UserContext(), input)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, coll, fiber.StatusCreated)
}

// ListCollections handles GET /api/collections
// @Summary List collections
// @Description Page through collections, newest first
// @Tags Collections
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 200)" default(30)
// @Param include_system query bool false "Include system collections"
// @Success 200 {object} utils.ListResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /collections [get]
func (h *CollectionsHandler) ListCollections(c *fiber.Ctx) error {
	page, perPage, err := parsePagination(c, DefaultCollectionsPerPage)
	if err != nil {
		return err
	}
	includeSystem, err := queryBool(c, "include_system")
	if err != nil {
		return err
	}

	items, total, err := h.Collections.List(c.UserContext(), page, perPage, includeSystem)
	if err != nil {
		return err
	}

	return utils.ListResponse(c, items, total, page, perPage)
}

// GetCollection handles GET /api/collections/:id
// @Summary Get a collection by id
// @Tags Collections
// @Produce json
// @Param id path string true "Collection ID"
// @Success 200 {object} models.Collection
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /collections/{id} [get]
func (h *CollectionsHandler) GetCollection(c *fiber.Ctx) error {
	coll, err := h.Collections.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, coll, fiber.StatusOK)
}

// GetCollectionByName handles GET /api/collections/by-name/:name
// @Summary Get a collection by name
// @Tags Collections
// @Produce json
// @Param name path string true "Collection name"
// @Success 200 {object} models.Collection
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /collections/by-name/{name} [get]
func (h *CollectionsHandler) GetCollectionByName(c *fiber.Ctx) error {
	coll, err := h.Collections.GetByName(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, coll, fiber.StatusOK)
}

// UpdateCollection handles PATCH /api/collections/:id
// @Summary Update a collection
// @Description Partially update a collection; the table is altered to match
// @Tags Collections
// @Accept json
// @Produce json
// @Param id path string true "Collection ID"
// @Param collection body services.CollectionInput true "Changed members"
// @Success 200 {object} models.Collection
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections/{id} [patch]
func (h *CollectionsHandler) UpdateCollection(c *fiber.Ctx) error {
	input, err := parseCollectionInput(c)
	if err != nil {
		return err
	}

	coll, err := h.Collections.Update(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, coll, fiber.StatusOK)
}

// DeleteCollection handles DELETE /api/collections/:id
// @Summary Delete a collection
// @Description Delete a collection and drop its table
// @Tags Collections
// @Param id path string true "Collection ID"
// @Success 204
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /collections/{id} [delete]
func (h *CollectionsHandler) DeleteCollection(c *fiber.Ctx) error {
	if _, err := h.Collections.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
