// validator.go
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

package validation

import (
	"fmt"

	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
)

// RequiredMessage is reported for a missing required field
const RequiredMessage = "This field is required"

// Validate checks a candidate record payload against a schema field list.
// On create every required field must be present; on update only the
// provided fields are checked. Unknown payload keys are dropped.
// Errors are collected across fields, one message per field.
// The returned values follow schema order.
func Validate(payload map[string]interface{}, defs []fields.Definition, isCreate bool) (*fields.Values, error) {
	validated := fields.NewValues()
	problems := make(map[string]string)

	for i := range defs {
		def := &defs[i]

		raw, present := payload[def.Name]
		if !present {
			if isCreate && def.Validation.Required {
				problems[def.Name] = RequiredMessage
			}
			continue
		}

		if raw == nil {
			if def.Validation.Required {
				problems[def.Name] = RequiredMessage
				continue
			}
			validated.Set(def.Name, fields.NullValue(def.Type))
			continue
		}

		kind, ok := fields.Lookup(def.Type)
		if !ok {
			problems[def.Name] = fmt.Sprintf("Unknown field type '%s'", def.Type)
			continue
		}

		value, err := kind.Check(raw, &def.Validation)
		if err != nil {
			problems[def.Name] = err.Error()
			continue
		}
		validated.Set(def.Name, value)
	}

	if len(problems) > 0 {
		return nil, types.Validation(problems)
	}

	return validated, nil
}
