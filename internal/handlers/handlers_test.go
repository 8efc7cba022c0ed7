package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation-backend/internal/cache"
	"github.com/smarttransit/seat-reservation-backend/internal/config"
	"github.com/smarttransit/seat-reservation-backend/internal/database"
	"github.com/smarttransit/seat-reservation-backend/internal/metrics"
	"github.com/smarttransit/seat-reservation-backend/internal/services"
	"github.com/smarttransit/seat-reservation-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type apiTest struct {
	t          *testing.T
	engine     *gin.Engine
	jwtService *jwt.Service
	auth       *services.AuthService
}

func setupAPITest(t *testing.T) *apiTest {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := database.NewMemoryStore()
	m := metrics.New()
	locker := services.NewTripLocker()
	audit := services.NewAuditService(nil, logger)
	jwtService := jwt.NewService("access-secret", "refresh-secret", 15*time.Minute, time.Hour)

	holds := cache.NewMemorySelectionStore()
	reservations := services.NewReservationService(store, store, locker, audit, m, logger, 45)
	reservations.UseSelectionStore(holds)
	selection := services.NewSelectionService(store, holds, reservations, locker, m, logger, 10*time.Minute)
	auth := services.NewAuthService(store, store, jwtService, audit, logger, bcrypt.MinCost)
	cron := services.NewCronService(config.MaintenanceConfig{
		TripCleanupSpec:   "0 0 4 * * *",
		HoldPurgeSpec:     "0 */1 * * * *",
		TripRetentionDays: 30,
	}, store, selection, auth, audit, m, logger)

	router := &Router{
		Auth:        NewAuthHandler(auth, logger),
		Trips:       NewTripHandler(reservations, logger),
		Selection:   NewSelectionHandler(selection, logger),
		Reservation: NewReservationHandler(reservations, services.NewTicketService(reservations), logger),
		Maintenance: NewMaintenanceHandler(cron, logger),
		JWTService:  jwtService,
		Logger:      logger,
		Version:     "test",
	}

	engine := gin.New()
	router.Register(engine)
	return &apiTest{t: t, engine: engine, jwtService: jwtService, auth: auth}
}

func (a *apiTest) token(isAdmin bool) string {
	a.t.Helper()
	token, err := a.jwtService.GenerateAccessToken(uuid.New(), "someone@example.com", isAdmin)
	require.NoError(a.t, err)
	return token
}

func (a *apiTest) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *apiTest) createTrip(adminToken string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/admin/trips", map[string]interface{}{
		"departure_city": "Istanbul",
		"arrival_city":   "Ankara",
		"departure_date": "2030-06-01",
		"departure_time": "09:30",
		"price":          250,
	}, adminToken)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(a.t, w)["id"].(string)
}

func TestHealth(t *testing.T) {
	api := setupAPITest(t)

	w := api.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in-memory", decode(t, w)["database"])
}

func TestAuthFlow(t *testing.T) {
	api := setupAPITest(t)

	register := map[string]string{
		"email":     "rider@example.com",
		"password":  "secret1",
		"full_name": "Rider One",
		"phone":     "555-0101",
	}
	w := api.do(http.MethodPost, "/api/v1/auth/register", register, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	w = api.do(http.MethodPost, "/api/v1/auth/register", register, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EMAIL_TAKEN", decode(t, w)["code"])

	w = api.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "rider@example.com", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, w)["code"])

	w = api.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "rider@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode(t, w)
	access := login["access_token"].(string)
	refresh := login["refresh_token"].(string)

	w = api.do(http.MethodGet, "/api/v1/user/profile", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rider One", decode(t, w)["full_name"])

	w = api.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/api/v1/auth/logout", map[string]string{"refresh_token": refresh}, access)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", decode(t, w)["code"])
}

func TestLoginRateLimited(t *testing.T) {
	api := setupAPITest(t)
	api.auth.UseRateLimiter(services.NewRateLimitService(services.RateLimitConfig{
		MaxEmailFailures: 2,
		EmailWindow:      15 * time.Minute,
	}))

	w := api.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":     "rider@example.com",
		"password":  "secret1",
		"full_name": "Rider One",
		"phone":     "555-0101",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	bad := map[string]string{"email": "rider@example.com", "password": "nope"}
	for i := 0; i < 2; i++ {
		w = api.do(http.MethodPost, "/api/v1/auth/login", bad, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w = api.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "rider@example.com", "password": "secret1"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["code"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestTripEndpoints(t *testing.T) {
	api := setupAPITest(t)
	admin := api.token(true)

	w := api.do(http.MethodPost, "/api/v1/admin/trips", map[string]interface{}{"departure_city": "X"}, api.token(false))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/api/v1/admin/trips", map[string]interface{}{
		"departure_city": "Istanbul",
		"arrival_city":   "Ankara",
		"departure_date": "2030-06-01",
		"departure_time": "9am",
		"price":          250,
	}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decode(t, w)["code"])

	tripID := api.createTrip(admin)

	w = api.do(http.MethodGet, "/api/v1/trips?from=ist&to=ANK", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])
	first := body["trips"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(45), first["available_seats"])
	assert.NotContains(t, first, "seats")

	w = api.do(http.MethodGet, "/api/v1/trips/"+tripID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Len(t, detail["layout"].(map[string]interface{})["rows"], 15)
	assert.Len(t, detail["trip"].(map[string]interface{})["seats"], 45)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/trips/not-a-uuid", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/trips/"+uuid.NewString(), nil, "").Code)

	w = api.do(http.MethodDelete, "/api/v1/admin/trips/"+tripID, nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodDelete, "/api/v1/admin/trips/"+tripID, nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReservationEndpoints(t *testing.T) {
	api := setupAPITest(t)
	tripID := api.createTrip(api.token(true))
	owner := api.token(false)
	stranger := api.token(false)

	path := "/api/v1/trips/" + tripID + "/reservations"

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, path, map[string]interface{}{"seat_numbers": []int{1}, "gender": "male"}, "").Code)

	w := api.do(http.MethodPost, path, map[string]interface{}{"seat_numbers": []int{10, 11}, "gender": "male"}, owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, float64(500), created["total_price"])
	assert.Contains(t, created["summary"], "Route: Istanbul -> Ankara")
	reservationID := created["id"].(string)

	w = api.do(http.MethodPost, path, map[string]interface{}{"seat_numbers": []int{11}, "gender": "male"}, stranger)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SEAT_UNAVAILABLE", decode(t, w)["code"])

	w = api.do(http.MethodPost, path, map[string]interface{}{"seat_numbers": []int{12}, "gender": "female"}, stranger)
	assert.Equal(t, http.StatusCreated, w.Code, "seat 12 has no neighbour")

	w = api.do(http.MethodPost, path, map[string]interface{}{"seat_numbers": []int{1}, "gender": "other"}, stranger)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/reservations", nil, owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = api.do(http.MethodGet, "/api/v1/reservations/"+reservationID, nil, stranger)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/api/v1/reservations/"+reservationID+"/ticket", nil, owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = api.do(http.MethodDelete, "/api/v1/reservations/"+reservationID, nil, stranger)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = api.do(http.MethodDelete, "/api/v1/reservations/"+reservationID, nil, owner)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodDelete, "/api/v1/reservations/"+reservationID, nil, owner)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSelectionEndpoints(t *testing.T) {
	api := setupAPITest(t)
	tripID := api.createTrip(api.token(true))
	alice, bob := api.token(false), api.token(false)
	path := "/api/v1/trips/" + tripID + "/selection"

	w := api.do(http.MethodPost, path, map[string]interface{}{"seat_number": 1, "gender": "female"}, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []interface{}{float64(1)}, decode(t, w)["my_seats"])

	w = api.do(http.MethodPost, path, map[string]interface{}{"seat_number": 2, "gender": "male"}, bob)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "GENDER_CONFLICT", decode(t, w)["code"])

	w = api.do(http.MethodPost, path, map[string]interface{}{"seat_number": 2, "gender": "female"}, alice)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, path, nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["summary"].(map[string]interface{})["selected_seats"])

	w = api.do(http.MethodDelete, path, map[string]interface{}{"seat_numbers": []int{2}}, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{float64(1)}, decode(t, w)["my_seats"])

	w = api.do(http.MethodPost, path+"/checkout", nil, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, float64(250), decode(t, w)["total_price"])

	w = api.do(http.MethodPost, path+"/checkout", nil, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, path, map[string]interface{}{"seat_number": 5, "gender": "male"}, bob)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodDelete, path, nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["my_seats"])
}

func TestMaintenanceEndpoints(t *testing.T) {
	api := setupAPITest(t)
	admin := api.token(true)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/admin/maintenance/status", nil, api.token(false)).Code)

	w := api.do(http.MethodGet, "/api/v1/admin/maintenance/status", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["running"])

	w = api.do(http.MethodPost, "/api/v1/admin/maintenance/cleanup", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["trips_purged"])
}
