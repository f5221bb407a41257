package trees

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"tree-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *serviceFixture) {
	t.Helper()
	fx := newServiceFixture(t, rawInventory())
	app := fiber.New()
	NewHandler(fx.service).RegisterRoutes(app)
	return app, fx
}

func TestHandleSync(t *testing.T) {
	app, fx := newTestApp(t)
	seed(t, fx.store, "trees", testTree("1", "Oak", 30), testTree("2", "Birch", 12))
	seed(t, fx.store, "trees_tmp", testTree("1", "Oak", 32), testTree("3", "Maple", 8))

	resp, err := app.Test(httptest.NewRequest("POST", "/trees/sync?dry_run=true", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report reconcile.SyncReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, map[string]string{"1": "Oak", "2": "Birch"}, species(t, fx.store, "trees"))

	resp, err = app.Test(httptest.NewRequest("POST", "/trees/sync", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"1": "Oak", "3": "Maple"}, species(t, fx.store, "trees"))
}

func TestHandleSync_SchemaError(t *testing.T) {
	app, fx := newTestApp(t)
	seed(t, fx.store, "trees_tmp", testTree("1", "Oak", 30))

	resp, err := app.Test(httptest.NewRequest("POST", "/trees/sync", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "missing columns")
}

func TestSyncErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&reconcile.SyncFailedError{Stage: "apply_insert", Err: &reconcile.ConstraintViolationError{Op: "insert", Table: "trees", Err: errors.New("dup")}}, fiber.StatusConflict},
		{&reconcile.SyncFailedError{Stage: "begin", Err: &reconcile.ConnectionError{Op: "begin", Err: errors.New("gone")}}, fiber.StatusServiceUnavailable},
		{&reconcile.SchemaError{Source: "trees", Index: -1, Reason: "missing columns"}, fiber.StatusUnprocessableEntity},
		{&reconcile.SyncFailedError{Stage: "read_staging", Err: &reconcile.DuplicateKeyError{Source: "trees_tmp", ID: "1"}}, fiber.StatusUnprocessableEntity},
		{errors.New("unexpected"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, syncErrorStatus(tt.err), tt.err.Error())
	}
}

func TestHandleGetTree(t *testing.T) {
	app, fx := newTestApp(t)
	seed(t, fx.store, "trees", testTree("1", "Oak", 30))
	seed(t, fx.store, "trees_tmp", testTree("2", "Birch", 12))

	tests := []struct {
		name   string
		url    string
		status int
	}{
		{name: "canonical", url: "/trees/1", status: fiber.StatusOK},
		{name: "staging", url: "/trees/2?table=staging", status: fiber.StatusOK},
		{name: "not in canonical", url: "/trees/2", status: fiber.StatusNotFound},
		{name: "unknown table", url: "/trees/1?table=archive", status: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.url, nil), 5000)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/trees/1", nil), 5000)
	require.NoError(t, err)
	var rec reconcile.TreeRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "1", rec.ID)
	assert.Equal(t, "Oak", rec.Attributes[AttrSpecies])
}

func TestHandleListSources(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/trees/sources/city_shape", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Kind  string   `json:"kind"`
		Names []string `json:"names"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"city_shape"}, body.Names)

	resp, err = app.Test(httptest.NewRequest("GET", "/trees/sources/secrets", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestFeature(t *testing.T) {
	fx := newServiceFixture(t, rawInventory())

	f := NewFeature(fx.service)
	assert.Equal(t, "trees", f.Name())
	assert.True(t, f.IsEnabled())
	require.NoError(t, f.Load(fiber.New()))

	assert.False(t, NewFeature(nil).IsEnabled())
}
