package ginserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogshare/internal/app/commands"
	availabilityapp "dogshare/internal/app/handlers/availability"
	rentalapp "dogshare/internal/app/handlers/rentals"
	"dogshare/internal/app/middleware"
	"dogshare/internal/app/queries"
	appavailability "dogshare/internal/app/services/availability"
	apprentals "dogshare/internal/app/services/rentals"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
	"dogshare/internal/domain/shared/daykey"
	"dogshare/internal/infra/obs"
	"dogshare/internal/infra/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type downRepo struct{}

func (downRepo) Get(context.Context, dog.ID) (*domainavailability.DogAvailability, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (downRepo) Save(context.Context, *domainavailability.DogAvailability) error {
	return errors.New("dial tcp: connection refused")
}

func (downRepo) ListWithPatterns(context.Context) ([]*domainavailability.DogAvailability, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newTestRouter(t *testing.T, calendars domainavailability.Repository) *gin.Engine {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 8, 1, 8, 0, 0, 0, time.UTC) }
	box := memory.NewOutbox()
	dogs := memory.NewDogRepository()
	require.NoError(t, dogs.Save(context.Background(), &dog.Dog{ID: "rex", OwnerID: "owner-1", DailyRate: 30, IsAvailable: true}))

	calendar := &appavailability.Service{Calendars: calendars, Outbox: box, Clock: clock}
	rentalSvc := &apprentals.Service{Rentals: memory.NewRentalRepository(), Dogs: dogs, Calendar: calendar, Outbox: box, Clock: clock}

	cmdBus := commands.NewInMemoryBus()
	qryBus := queries.NewInMemoryBus()
	availabilityapp.Module{Service: calendar}.RegisterCommands(cmdBus)
	availabilityapp.Module{Service: calendar}.RegisterQueries(qryBus)
	rentalapp.Module{Service: rentalSvc}.RegisterCommands(cmdBus)
	rentalapp.Module{Service: rentalSvc}.RegisterQueries(qryBus)

	cmds := middleware.ChainCommands(cmdBus,
		middleware.Validation(),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour),
			middleware.SkipErrors(domainavailability.ErrStoreUnavailable, domainavailability.ErrVersionConflict),
			middleware.ReplayErrors(apprentals.ErrDatesUnavailable, rental.ErrInvalidTransition, daykey.ErrRangeTooLong),
		),
	)
	qrys := middleware.ChainQueries(qryBus, middleware.QueryValidation())

	return NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Availability: AvailabilityHandler{Commands: cmds, Queries: qrys},
		Booking:      BookingHandler{Commands: cmds},
		Rental:       RentalHandler{Commands: cmds, Queries: qrys},
		Admin:        AdminHandler{Commands: cmds},
	})
}

func do(t *testing.T, r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAvailabilityRoundTrip(t *testing.T) {
	r := newTestRouter(t, memory.NewAvailabilityRepository())

	rec := do(t, r, http.MethodPut, "/api/v1/dogs/rex/availability",
		`{"owner_id":"owner-1","from":"2024-08-10","to":"2024-08-11","blocked":true,"reason":"vet"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode[map[string][]string](t, rec)
	assert.Equal(t, []string{"2024-08-10", "2024-08-11"}, applied["updated"])

	rec = do(t, r, http.MethodGet, "/api/v1/dogs/rex/availability/check?from=2024-08-09&to=2024-08-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dog_id":"rex","bookable":false}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/v1/dogs/rex/availability/bookable?from=2024-08-09&to=2024-08-12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dog_id":"rex","days":["2024-08-09","2024-08-12"]}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/v1/dogs/rex/calendar?from=2024-08-10&to=2024-08-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason":"vet"`)
}

func TestUnknownDogHasDefaultAvailability(t *testing.T) {
	r := newTestRouter(t, memory.NewAvailabilityRepository())
	rec := do(t, r, http.MethodGet, "/api/v1/dogs/ghost/availability", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dog_id":"ghost","default_available":true,"days":[],"version":0}`, rec.Body.String())
}

func TestBookingHooksProtectBookedDays(t *testing.T) {
	r := newTestRouter(t, memory.NewAvailabilityRepository())

	rec := do(t, r, http.MethodPost, "/api/v1/dogs/rex/bookings", `{"rental_id":"r-1","days":["2024-08-20"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodPut, "/api/v1/dogs/rex/availability",
		`{"owner_id":"owner-1","days":["2024-08-20","2024-08-21"],"available":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	applied := decode[map[string][]string](t, rec)
	assert.Equal(t, []string{"2024-08-20"}, applied["protected"])

	rec = do(t, r, http.MethodDelete, "/api/v1/dogs/rex/bookings", `{"days":["2024-08-20"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodGet, "/api/v1/dogs/rex/availability/check?from=2024-08-20&to=2024-08-20", "")
	assert.JSONEq(t, `{"dog_id":"rex","bookable":true}`, rec.Body.String())
}

func TestRentalLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t, memory.NewAvailabilityRepository())

	rec := do(t, r, http.MethodPost, "/api/v1/rentals",
		`{"dog_id":"rex","renter_id":"renter-1","start_date":"2024-08-05","end_date":"2024-08-06"}`,
		"Idempotency-Key", "req-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	id := created["id"].(string)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, 60.0, created["total_cost"])

	replay := do(t, r, http.MethodPost, "/api/v1/rentals",
		`{"dog_id":"rex","renter_id":"renter-1","start_date":"2024-08-05","end_date":"2024-08-06"}`,
		"Idempotency-Key", "req-1")
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, id, decode[map[string]any](t, replay)["id"])

	rec = do(t, r, http.MethodPost, "/api/v1/rentals/"+id+"/approve", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "active", decode[map[string]any](t, rec)["status"])

	rec = do(t, r, http.MethodPost, "/api/v1/rentals/"+id+"/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	for range 2 {
		rec = do(t, r, http.MethodPost, "/api/v1/rentals",
			`{"dog_id":"rex","renter_id":"renter-2","start_date":"2024-08-06","end_date":"2024-08-07"}`,
			"Idempotency-Key", "req-2")
		assert.Equal(t, http.StatusConflict, rec.Code, "taken dates are a conflict, also on replay")
		assert.JSONEq(t, `{"error":"rentals: requested dates are not available"}`, rec.Body.String())
	}

	rec = do(t, r, http.MethodPost, "/api/v1/rentals/"+id+"/cancel", `{"reason":"plans changed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[map[string]any](t, rec)["status"])

	rec = do(t, r, http.MethodGet, "/api/v1/rentals/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/admin/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completed":0}`, rec.Body.String())
}

func TestStoreOutageFailsClosed(t *testing.T) {
	r := newTestRouter(t, downRepo{})

	rec := do(t, r, http.MethodGet, "/api/v1/dogs/rex/availability/check?from=2024-08-09&to=2024-08-10", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"dates currently unavailable, please retry"}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/v1/dogs/rex/availability/bookable?from=2024-08-09&to=2024-08-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dog_id":"rex","days":[]}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/v1/rentals",
		`{"dog_id":"rex","renter_id":"renter-1","start_date":"2024-08-05","end_date":"2024-08-06"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// recoveringRepo fails reads until healed.
type recoveringRepo struct {
	*memory.AvailabilityRepository
	down bool
}

func (r *recoveringRepo) Get(ctx context.Context, id dog.ID) (*domainavailability.DogAvailability, error) {
	if r.down {
		return nil, errors.New("dial tcp: connection refused")
	}
	return r.AvailabilityRepository.Get(ctx, id)
}

func TestRetryAfterOutageWithSameKeySucceeds(t *testing.T) {
	repo := &recoveringRepo{AvailabilityRepository: memory.NewAvailabilityRepository(), down: true}
	r := newTestRouter(t, repo)
	body := `{"dog_id":"rex","renter_id":"renter-1","start_date":"2024-08-05","end_date":"2024-08-06"}`

	rec := do(t, r, http.MethodPost, "/api/v1/rentals", body, "Idempotency-Key", "retry-1")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"dates currently unavailable, please retry"}`, rec.Body.String())

	repo.down = false
	rec = do(t, r, http.MethodPost, "/api/v1/rentals", body, "Idempotency-Key", "retry-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]any](t, rec)["id"]

	rec = do(t, r, http.MethodPost, "/api/v1/rentals", body, "Idempotency-Key", "retry-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, id, decode[map[string]any](t, rec)["id"])
}

func TestRequestValidation(t *testing.T) {
	r := newTestRouter(t, memory.NewAvailabilityRepository())
	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad day key", http.MethodGet, "/api/v1/dogs/rex/availability/check?from=08-09&to=2024-08-10", "", http.StatusBadRequest},
		{"inverted range", http.MethodGet, "/api/v1/dogs/rex/calendar?from=2024-08-10&to=2024-08-01", "", http.StatusBadRequest},
		{"range too long", http.MethodGet, "/api/v1/dogs/rex/availability/check?from=2024-01-01&to=2025-06-01", "", http.StatusBadRequest},
		{"endless check", http.MethodGet, "/api/v1/dogs/rex/availability/check?from=2024-01-01&to=9999-12-31", "", http.StatusBadRequest},
		{"endless rental", http.MethodPost, "/api/v1/rentals", `{"dog_id":"rex","renter_id":"renter-1","start_date":"2024-08-05","end_date":"9999-12-31"}`, http.StatusBadRequest},
		{"missing owner", http.MethodPut, "/api/v1/dogs/rex/availability", `{"days":["2024-08-10"],"available":true}`, http.StatusBadRequest},
		{"missing default flag", http.MethodPut, "/api/v1/dogs/rex/availability/default", `{"owner_id":"owner-1"}`, http.StatusBadRequest},
		{"bad pattern", http.MethodPut, "/api/v1/dogs/rex/availability/patterns", `{"owner_id":"owner-1","patterns":[{"kind":"weekly"}]}`, http.StatusBadRequest},
		{"missing rental id", http.MethodPost, "/api/v1/dogs/rex/bookings", `{"days":["2024-08-10"]}`, http.StatusBadRequest},
		{"unknown rental", http.MethodGet, "/api/v1/rentals/nope", "", http.StatusNotFound},
		{"unknown dog", http.MethodPost, "/api/v1/rentals", `{"dog_id":"ghost","renter_id":"renter-1","start_date":"2024-08-05","end_date":"2024-08-06"}`, http.StatusNotFound},
		{"owner rents own dog", http.MethodPost, "/api/v1/rentals", `{"dog_id":"rex","renter_id":"owner-1","start_date":"2024-08-05","end_date":"2024-08-06"}`, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestOtherOwnerIsForbidden(t *testing.T) {
	r := newTestRouter(t, memory.NewAvailabilityRepository())
	rec := do(t, r, http.MethodPut, "/api/v1/dogs/rex/availability/default", `{"owner_id":"owner-1","default_available":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, r, http.MethodPut, "/api/v1/dogs/rex/availability/default", `{"owner_id":"someone-else","default_available":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestParseRentalDatesEndOfDay(t *testing.T) {
	start, end, err := parseRentalDates("2024-08-05", "2024-08-06")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 5, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 8, 6, 23, 59, 59, 0, time.UTC), end)

	_, end, err = parseRentalDates("2024-08-05T10:00:00Z", "2024-08-06T09:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 6, 9, 30, 0, 0, time.UTC), end)
}
