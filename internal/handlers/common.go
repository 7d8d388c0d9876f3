// common.go
//
// A schema-driven collections and records service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-recordsdb.
// jam-build-recordsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-recordsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-recordsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
	"github.com/localnerve/jam-build-recordsdb/internal/utils"
)

// Default page sizes
const (
	DefaultCollectionsPerPage = 30
	DefaultRecordsPerPage     = 20
)

// parsePagination reads page and per_page, applying defaults when absent
func parsePagination(c *fiber.Ctx, defaultPerPage int) (int, int, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	perPage, err := queryInt(c, "per_page", defaultPerPage)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, types.BadRequest("page must be >= 1")
	}
	if perPage < 1 || perPage > services.MaxPerPage {
		return 0, 0, types.BadRequest("per_page must be between 1 and %d", services.MaxPerPage)
	}
	return page, perPage, nil
}

func queryInt(c *fiber.Ctx, key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.BadRequest("%s must be an integer", key)
	}
	return value, nil
}

func queryBool(c *fiber.Ctx, key string) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, types.BadRequest("%s must be a boolean", key)
	}
	return value, nil
}

// parseFilters reads the filter query parameter: one JSON filter object or
// an array of them, e.g. filter={"field":"status","op":"eq","value":"open"}
func parseFilters(c *fiber.Ctx) ([]services.Filter, error) {
	raw := strings.TrimSpace(c.Query("filter"))
	if raw == "" {
		return nil, nil
	}
	filters, err := types.ParseFlexList[services.Filter](raw)
	if err != nil {
		return nil, types.BadRequest("filter must be a JSON filter object or array: %v", err)
	}
	for _, f := range filters {
		if f.Field == "" {
			return nil, types.BadRequest("filter requires a field")
		}
	}
	return filters.Slice(), nil
}

// parseObject decodes a JSON object request body
func parseObject(c *fiber.Ctx) (map[string]interface{}, error) {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, types.BadRequest("Request body is required")
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, types.BadRequest("Request body must be a JSON object")
	}
	if payload == nil {
		return nil, types.BadRequest("Request body must be a JSON object")
	}
	return payload, nil
}

// ErrorHandler is the fiber error handler: every error becomes the standard
// error JSON, engine errors keep their status, kind and field messages.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return utils.ErrorFromError(c, err)
}
