package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"auction-house/internal/bidengine"
	"auction-house/internal/cache"
	model "auction-house/internal/models"
	"auction-house/internal/notify"
	"auction-house/internal/realtime"
	"auction-house/internal/repository"
	"auction-house/internal/scheduler"
	"auction-house/internal/server"
	"auction-house/internal/statemachine"
	"auction-house/services/auction/handler"
)

const testJWTSecret = "integration-secret"

// testEnv is the whole service wired on in-memory collaborators.
type testEnv struct {
	Router   *gin.Engine
	Store    *repository.MemoryStore
	JobStore *scheduler.MemoryJobStore
	Jobs     *scheduler.Scheduler
	Machine  *statemachine.StateMachine
	Engine   *bidengine.Engine
	Hub      *realtime.Hub
}

// SetupTestEnv wires the full stack against in-memory store, cache and queue.
func SetupTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	memCache := cache.NewMemoryCache()
	invalidator := cache.NewInvalidator(memCache)
	hub := realtime.NewHub()

	jobStore := scheduler.NewMemoryJobStore()
	jobs := scheduler.New(jobStore, "integration", 2, 10*time.Millisecond)

	machine := statemachine.New(store, jobs, notify.Noop{}, hub, invalidator)
	for _, name := range []string{scheduler.JobStartAuction, scheduler.JobEndAuction, scheduler.JobUpdateStatus} {
		jobs.RegisterHandler(name, machine.HandleTransitionJob)
	}

	engine := bidengine.NewEngine(store, memCache, invalidator, notify.Noop{}, hub)

	ws := realtime.NewWSHandler(hub, realtime.LocalPresence{Hub: hub}, hub)
	router := server.SetupRouter(testJWTSecret,
		handler.NewAuctionHandler(machine),
		handler.NewBidHandler(engine),
		ws)

	return &testEnv{
		Router:   router,
		Store:    store,
		JobStore: jobStore,
		Jobs:     jobs,
		Machine:  machine,
		Engine:   engine,
		Hub:      hub,
	}
}

// Token signs a bearer token for the given user.
func Token(t *testing.T, sub, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

// ExecuteRequest executes an HTTP request against the env's router.
func ExecuteRequest(t *testing.T, env *testEnv, method, url, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

// ParseData unmarshals the "data" member of a response envelope.
func ParseData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// transitionPayload marshals a lifecycle job payload.
func transitionPayload(t *testing.T, auctionID string, status model.AuctionStatus) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(scheduler.TransitionPayload{AuctionID: auctionID, Status: status})
	require.NoError(t, err)
	return raw
}

// ParseDataList unmarshals a list "data" member.
func ParseDataList(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if resp["data"] == nil {
		return nil
	}
	data, ok := resp["data"].([]any)
	require.True(t, ok, "response has no data list: %s", w.Body.String())
	return data
}
