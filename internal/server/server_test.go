package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expeditor/internal/bus"
	"expeditor/internal/engine"
	"expeditor/internal/models"
	"expeditor/internal/server"
	"expeditor/internal/timing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	server *server.Server
	engine *engine.Engine
	clock  *timing.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := timing.NewManual(testStart)
	notifier := bus.NewInProcess(zerolog.Nop())
	t.Cleanup(notifier.Close)

	eng := engine.New(engine.Config{
		InstanceID: "test-instance",
		Clock:      clock,
		Notifier:   notifier,
		Logger:     zerolog.Nop(),
	})
	t.Cleanup(eng.Close)

	srv := server.New(eng, nil, notifier, zerolog.Nop())
	t.Cleanup(srv.Close)
	return &fixture{server: srv, engine: eng, clock: clock}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	f.server.Router().ServeHTTP(w, req)
	return w
}

func seedOrder(t *testing.T, f *fixture) models.Order {
	t.Helper()
	created, err := f.engine.CreateOrder(models.Order{
		Number:           "#1001",
		Type:             models.OrderTypeDineIn,
		Priority:         models.PriorityHigh,
		EstimatedMinutes: 15,
		Items: []models.OrderItem{
			{ID: "item-1", Name: "Ribeye", Quantity: 1, Station: models.StationGrill},
			{ID: "item-2", Name: "Caesar", Quantity: 1, Station: models.StationSalad},
		},
	}, "intake")
	require.NoError(t, err)
	return created
}

func TestCreateOrderEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/api/orders", models.Order{
		Number:           "#1001",
		Type:             models.OrderTypeTakeout,
		Priority:         models.PriorityMedium,
		EstimatedMinutes: 20,
		Items:            []models.OrderItem{{Name: "Burger", Quantity: 2, Station: models.StationGrill}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "paid", view["status"])
	assert.Equal(t, float64(20), view["remaining_minutes"])
	assert.Equal(t, "20:00", view["countdown"])
	assert.Equal(t, false, view["overdue"])
}

func TestQueueBoard(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f)
	f.clock.Advance(11 * time.Minute)

	w := f.do(t, "GET", "/api/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, float64(11), views[0]["elapsed_minutes"])
	assert.Equal(t, float64(4), views[0]["remaining_minutes"])
	assert.Equal(t, true, views[0]["urgent"])
	assert.Equal(t, false, views[0]["overdue"])
}

func TestOrderDetailNotFound(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/api/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransitionEndpoints(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f)

	w := f.do(t, "POST", "/api/orders/"+order.ID+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Guard failure surfaces the blocking ids with a conflict status.
	w = f.do(t, "POST", "/api/orders/"+order.ID+"/ready", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	var conflict struct {
		BlockingIDs []string `json:"blocking_ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
	assert.ElementsMatch(t, []string{"item-1", "item-2"}, conflict.BlockingIDs)

	w = f.do(t, "POST", "/api/orders/"+order.ID+"/items/item-1/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, "POST", "/api/orders/"+order.ID+"/items/item-2/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "ready", view["status"], "last item ready promotes the order")

	w = f.do(t, "POST", "/api/orders/"+order.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Completed is terminal: cancel now conflicts.
	w = f.do(t, "POST", "/api/orders/"+order.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, "POST", "/api/orders/missing/start", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestForceReadyEndpointWithActor(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f)

	w := f.do(t, "POST", "/api/orders/"+order.ID+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, "POST", "/api/orders/"+order.ID+"/force-ready", map[string]string{"by": "supervisor"})
	require.Equal(t, http.StatusOK, w.Code)

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "ready", view["status"])
	assert.Equal(t, "supervisor", view["updated_by"])
}

func TestStationBoard(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f)

	w := f.do(t, "GET", "/api/stations/grill/items", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, order.ID, views[0]["order_id"])

	w = f.do(t, "GET", "/api/stations/garage/items", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimerEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/api/timers", engine.TimerSpec{
		Category:        models.TimerCategoryCooking,
		Label:           "ribeye rest",
		DurationSeconds: 600,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["id"].(string)
	assert.Equal(t, "running", created["status"])
	assert.Equal(t, "10:00", created["countdown"])

	f.clock.Advance(125 * time.Second)
	w = f.do(t, "GET", "/api/timers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board, 1)
	assert.Equal(t, "7:55", board[0]["countdown"])

	w = f.do(t, "POST", "/api/timers/"+id+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, "POST", "/api/timers/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, "POST", "/api/timers/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, "DELETE", "/api/timers/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, "DELETE", "/api/timers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOverdueOrderProjection(t *testing.T) {
	f := newFixture(t)
	seedOrder(t, f)
	f.clock.Advance(17*time.Minute + 5*time.Second)

	w := f.do(t, "GET", "/api/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, true, views[0]["overdue"])
	assert.Equal(t, "-2:05", views[0]["countdown"])
}

func TestAuditEndpointWithoutStore(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/api/audit/force-ready", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMenuEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/api/menu", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
