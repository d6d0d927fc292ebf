package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicecenter/api/internal/models"
)

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	decodeBody(t, rec, &body)
	return body.Detail
}

func int64Ptr(v int64) *int64 { return &v }

func TestLogin(t *testing.T) {
	env := newTestEnv()
	env.seedUser("admin", models.RoleAdmin, 1)

	form := url.Values{"username": {"admin"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var token models.Token
	decodeBody(t, rec, &token)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "bearer", token.TokenType)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv()
	env.seedUser("admin", models.RoleAdmin, 1)

	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect username or password", detailOf(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestMissingTokenRejected(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/requests", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", detailOf(t, rec))
}

func TestCreateCityDuplicateName(t *testing.T) {
	env := newTestEnv()
	_, token := env.seedUser("admin", models.RoleAdmin, 1)

	rec := env.do(t, http.MethodPost, "/api/cities", token, models.CityPayload{Name: "Almaty"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/cities", token, models.CityPayload{Name: "Almaty"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "City already exists", detailOf(t, rec))

	cities, err := env.store.ListCities(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, cities, 1)
}

func TestCityCreateRequiresAdmin(t *testing.T) {
	env := newTestEnv()
	_, token := env.seedUser("manager", models.RoleManager, 1)

	rec := env.do(t, http.MethodPost, "/api/cities", token, models.CityPayload{Name: "Astana"})

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions", detailOf(t, rec))
}

func TestListCitiesActiveFilter(t *testing.T) {
	env := newTestEnv()
	_, _ = env.store.CreateCity(context.Background(), "Almaty", true)
	_, _ = env.store.CreateCity(context.Background(), "Taraz", false)

	rec := env.do(t, http.MethodGet, "/api/cities", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cities []models.City
	decodeBody(t, rec, &cities)
	assert.Len(t, cities, 1)

	rec = env.do(t, http.MethodGet, "/api/cities?active=false", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &cities)
	assert.Len(t, cities, 2)
}

func TestGlobalProductVisibleInEveryCity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, _ = env.store.CreateProduct(ctx, &models.Product{Name: "Global charger", IsAvailable: true})
	_, _ = env.store.CreateProduct(ctx, &models.Product{Name: "Local screen", IsAvailable: true, CityID: int64Ptr(1)})
	_, _ = env.store.CreateProduct(ctx, &models.Product{Name: "Other screen", IsAvailable: true, CityID: int64Ptr(2)})

	rec := env.do(t, http.MethodGet, "/api/products?city_id=2", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var products []models.Product
	decodeBody(t, rec, &products)
	require.Len(t, products, 2)
	names := []string{products[0].Name, products[1].Name}
	assert.Contains(t, names, "Global charger")
	assert.Contains(t, names, "Other screen")
}

func TestManagerCannotMutateForeignProduct(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("manager", models.RoleManager, 1)
	foreign, _ := env.store.CreateProduct(ctx, &models.Product{Name: "Foreign", IsAvailable: true, CityID: int64Ptr(2)})

	payload := models.ProductPayload{Name: "Renamed", Price: 10, CityID: int64Ptr(2)}
	rec := env.do(t, http.MethodPut, "/api/products/2", token, payload)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions for this product", detailOf(t, rec))

	stored, err := env.store.GetProduct(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, "Foreign", stored.Name)
}

func TestManagerCannotReassignProductToForeignCity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("manager", models.RoleManager, 1)
	own, _ := env.store.CreateProduct(ctx, &models.Product{Name: "Own", IsAvailable: true, CityID: int64Ptr(1)})

	payload := models.ProductPayload{Name: "Own", Price: 10, CityID: int64Ptr(2)}
	rec := env.do(t, http.MethodPut, "/api/products/2", token, payload)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot assign product to another city", detailOf(t, rec))

	stored, err := env.store.GetProduct(ctx, own.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CityID)
	assert.Equal(t, int64(1), *stored.CityID)
}

func TestManagerMayCreateGlobalService(t *testing.T) {
	env := newTestEnv()
	_, token := env.seedUser("manager", models.RoleManager, 1)

	payload := models.ServicePayload{Name: "Diagnostics", Price: 25, EstimatedTime: "1 hour"}
	rec := env.do(t, http.MethodPost, "/api/services", token, payload)

	require.Equal(t, http.StatusOK, rec.Code)
	var created models.Service
	decodeBody(t, rec, &created)
	assert.Nil(t, created.CityID)
	assert.True(t, created.IsAvailable)
}

func TestCreateRequest(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	city, _ := env.store.CreateCity(ctx, "Almaty", true)

	payload := models.RequestPayload{
		Name:    "Aibek",
		Phone:   "+77001234567",
		CityID:  city.ID,
		Message: "Broken screen",
	}
	rec := env.do(t, http.MethodPost, "/api/requests", "", payload)

	require.Equal(t, http.StatusOK, rec.Code)
	var created models.Request
	decodeBody(t, rec, &created)
	assert.Equal(t, models.StatusNew, created.Status)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Equal(t, []int64{created.ID}, env.queue.enqueued)
}

func TestCreateRequestUnknownCity(t *testing.T) {
	env := newTestEnv()

	payload := models.RequestPayload{
		Name:    "Aibek",
		Phone:   "+77001234567",
		CityID:  42,
		Message: "Broken screen",
	}
	rec := env.do(t, http.MethodPost, "/api/requests", "", payload)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "City not found", detailOf(t, rec))
	assert.Empty(t, env.queue.enqueued)
}

func TestCreateRequestInvalidBody(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/requests", "", models.RequestPayload{Name: "Aibek"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.queue.enqueued)
}

func TestUpdateRequestStatusInvalidValue(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("admin", models.RoleAdmin, 1)
	request, _ := env.store.CreateRequest(ctx, &models.Request{Name: "Aibek", Phone: "+77001234567", CityID: 1, Message: "Broken"})

	rec := env.do(t, http.MethodPut, "/api/requests/2", token, models.RequestStatusPayload{Status: "done"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid status. Valid options: new, processing, completed, cancelled", detailOf(t, rec))

	stored, err := env.store.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, stored.Status)
}

func TestUpdateRequestStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("manager", models.RoleManager, 1)
	request, _ := env.store.CreateRequest(ctx, &models.Request{Name: "Aibek", Phone: "+77001234567", CityID: 1, Message: "Broken"})

	rec := env.do(t, http.MethodPut, "/api/requests/2", token, models.RequestStatusPayload{Status: "completed"})

	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Request
	decodeBody(t, rec, &updated)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, request.ID, updated.ID)
}

func TestManagerCannotTouchForeignRequest(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("manager", models.RoleManager, 1)
	_, _ = env.store.CreateRequest(ctx, &models.Request{Name: "Aibek", Phone: "+77001234567", CityID: 2, Message: "Broken"})

	rec := env.do(t, http.MethodGet, "/api/requests/2", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions to view this request", detailOf(t, rec))

	rec = env.do(t, http.MethodPut, "/api/requests/2", token, models.RequestStatusPayload{Status: "completed"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions to update this request", detailOf(t, rec))
}

func TestManagerListRequestsScopedToOwnCity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("manager", models.RoleManager, 1)
	_, _ = env.store.CreateRequest(ctx, &models.Request{Name: "Own", Phone: "+7", CityID: 1, Message: "m"})
	_, _ = env.store.CreateRequest(ctx, &models.Request{Name: "Foreign", Phone: "+7", CityID: 2, Message: "m"})

	// The foreign city filter is ignored for managers
	rec := env.do(t, http.MethodGet, "/api/requests?city_id=2", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var requests []models.Request
	decodeBody(t, rec, &requests)
	require.Len(t, requests, 1)
	assert.Equal(t, "Own", requests[0].Name)
}

func TestAdminListRequestsWithFilters(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("admin", models.RoleAdmin, 1)
	_, _ = env.store.CreateRequest(ctx, &models.Request{Name: "A", Phone: "+7", CityID: 1, Message: "m"})
	second, _ := env.store.CreateRequest(ctx, &models.Request{Name: "B", Phone: "+7", CityID: 2, Message: "m"})
	_, _ = env.store.UpdateRequestStatus(ctx, second.ID, models.StatusCompleted)

	rec := env.do(t, http.MethodGet, "/api/requests?status=completed", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var requests []models.Request
	decodeBody(t, rec, &requests)
	require.Len(t, requests, 1)
	assert.Equal(t, "B", requests[0].Name)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	env := newTestEnv()
	_, token := env.seedUser("admin", models.RoleAdmin, 1)

	payload := models.UserCreatePayload{
		Username: "admin",
		Email:    "other@example.com",
		Password: "password123",
		CityID:   1,
		Role:     "manager",
	}
	rec := env.do(t, http.MethodPost, "/api/users", token, payload)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already registered", detailOf(t, rec))
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	env := newTestEnv()
	_, token := env.seedUser("manager", models.RoleManager, 1)

	payload := models.UserCreatePayload{
		Username: "newbie",
		Email:    "newbie@example.com",
		Password: "password123",
		CityID:   1,
		Role:     "manager",
	}
	rec := env.do(t, http.MethodPost, "/api/users", token, payload)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not enough permissions", detailOf(t, rec))
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	admin, token := env.seedUser("admin", models.RoleAdmin, 1)

	rec := env.do(t, http.MethodDelete, "/api/admin/users/1", token, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot delete yourself", detailOf(t, rec))

	_, err := env.store.GetUser(ctx, admin.ID)
	assert.NoError(t, err)
}

func TestAdminDeleteOtherUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("admin", models.RoleAdmin, 1)
	other, _ := env.seedUser("manager", models.RoleManager, 2)

	rec := env.do(t, http.MethodDelete, "/api/admin/users/2", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully", detailOf(t, rec))

	_, err := env.store.GetUser(ctx, other.ID)
	assert.Error(t, err)
}

func TestAdminUpdateUserKeepsPasswordWhenOmitted(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("admin", models.RoleAdmin, 1)
	manager, _ := env.seedUser("manager", models.RoleManager, 2)

	payload := models.UserUpdatePayload{
		Username: "manager",
		Email:    "manager@example.com",
		CityID:   3,
		Role:     "manager",
	}
	rec := env.do(t, http.MethodPut, "/api/admin/users/2", token, payload)

	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.GetUser(ctx, manager.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.CityID)
	assert.Equal(t, manager.HashedPassword, stored.HashedPassword)
}

func TestAdminUpdateUserEmailConflict(t *testing.T) {
	env := newTestEnv()
	_, token := env.seedUser("admin", models.RoleAdmin, 1)
	env.seedUser("manager", models.RoleManager, 2)

	payload := models.UserUpdatePayload{
		Username: "manager",
		Email:    "admin@example.com",
		CityID:   2,
		Role:     "manager",
	}
	rec := env.do(t, http.MethodPut, "/api/admin/users/2", token, payload)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", detailOf(t, rec))
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, token := env.seedUser("admin", models.RoleAdmin, 1)
	_, _ = env.store.CreateCity(ctx, "Almaty", true)
	first, _ := env.store.CreateRequest(ctx, &models.Request{Name: "A", Phone: "+7", CityID: 1, Message: "m"})
	_, _ = env.store.CreateRequest(ctx, &models.Request{Name: "B", Phone: "+7", CityID: 1, Message: "m"})
	_, _ = env.store.UpdateRequestStatus(ctx, first.ID, models.StatusCompleted)

	rec := env.do(t, http.MethodGet, "/api/admin/stats", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.Stats
	decodeBody(t, rec, &stats)
	assert.Equal(t, int64(2), stats.Total.Requests)
	assert.Equal(t, int64(1), stats.Total.Cities)
	assert.Equal(t, int64(1), stats.Requests.New)
	assert.Equal(t, int64(1), stats.Requests.Completed)
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	env := newTestEnv()
	_, token := env.seedUser("manager", models.RoleManager, 1)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/users"},
		{http.MethodGet, "/api/admin/users/1"},
		{http.MethodDelete, "/api/admin/users/1"},
		{http.MethodGet, "/api/admin/stats"},
	}
	for _, p := range paths {
		rec := env.do(t, p.method, p.path, token, nil)
		assert.Equalf(t, http.StatusForbidden, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestRootWelcome(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "Welcome to Service Center API", body["message"])
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodOptions, "/api/cities", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
