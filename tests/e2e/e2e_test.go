// e2e_test.go
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

package e2e_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/localnerve/jam-build-recordsdb/internal/database"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/localnerve/jam-build-recordsdb/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestE2EWithFullStack tests the entire service stack
func TestE2EWithFullStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}
	if os.Getenv("DB_IMAGE") == "" {
		t.Skip("DB_IMAGE not set")
	}

	ctx := context.Background()

	tc, err := helpers.CreateAllTestContainers(t)
	require.NoError(t, err)
	defer tc.Terminate(t)

	host, _ := tc.RecordsDBContainer.Host(ctx)
	port, _ := tc.RecordsDBContainer.MappedPort(ctx, "3000")
	baseURL := fmt.Sprintf("http://%s:%s", host, port.Port())

	t.Run("HealthCheck", func(t *testing.T) {
		testHealthCheck(t, tc)
	})

	t.Run("PrometheusMetrics", func(t *testing.T) {
		testPrometheusMetrics(t, baseURL)
	})

	t.Run("SwaggerUI", func(t *testing.T) {
		testSwaggerUI(t, baseURL)
	})

	t.Run("PublicAPIAccess", func(t *testing.T) {
		testPublicAPIAccess(t, baseURL)
	})

	if tc.AuthorizerContainer == nil {
		t.Run("CollectionLifecycle", func(t *testing.T) {
			testCollectionLifecycle(t, baseURL)
		})
	}
}

func testHealthCheck(t *testing.T, tc *helpers.TestContainers) {
	ctx := context.Background()

	// Use the mapped ports on localhost, not internal container names
	cfg := tc.DBConfig(t)

	db, err := database.Connect(ctx, cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer database.Close(db)

	result := services.HealthCheck(ctx, cfg, db, nil)
	assert.Equal(t, "healthy", result.Status, "%+v", result)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "disabled", result.Authorizer)
}

func testPrometheusMetrics(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func testSwaggerUI(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/swagger/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func testPublicAPIAccess(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/api/collections/missing/records")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Unknown collections are a JSON 404
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "not_found", result["type"])
}

func testCollectionLifecycle(t *testing.T, baseURL string) {
	name := fmt.Sprintf("e2e_%d", time.Now().UnixNano())

	collection := map[string]interface{}{
		"name": name,
		"schema": []map[string]interface{}{
			{"name": "title", "type": "text", "validation": map[string]interface{}{"required": true}},
			{"name": "score", "type": "number", "validation": map[string]interface{}{"min": 0}},
		},
	}
	var created map[string]interface{}
	postJSON(t, baseURL+"/api/collections", collection, http.StatusCreated, &created)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	var rec map[string]interface{}
	postJSON(t, baseURL+"/api/collections/"+name+"/records", map[string]interface{}{"title": "first", "score": 3}, http.StatusCreated, &rec)
	assert.Equal(t, "first", rec["title"])

	postJSON(t, baseURL+"/api/collections/"+name+"/records", map[string]interface{}{"score": -1}, http.StatusUnprocessableEntity, nil)

	resp, err := http.Get(baseURL + "/api/collections/" + name + "/records")
	require.NoError(t, err)
	var page map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.EqualValues(t, 1, page["total"])

	req, _ := http.NewRequest(http.MethodDelete, baseURL+"/api/collections/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func postJSON(t *testing.T, url string, body interface{}, status int, target interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	require.Equal(t, status, resp.StatusCode, strings.TrimSpace(string(data)))
	if target != nil {
		require.NoError(t, json.Unmarshal(data, target))
	}
}
