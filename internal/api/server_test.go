package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"price-predicates/internal/oracle"
	"price-predicates/internal/predicate"
)

const (
	testOracle = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
	testOwner  = "0x1111111111111111111111111111111111111111"
)

type testEnv struct {
	server *Server
	prices *oracle.StaticClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	prices := oracle.NewStatic(decimal.Zero)
	prices.SetPrice(1, testOracle, decimal.NewFromInt(2500))
	directory := oracle.NewDirectory([]oracle.Chain{{
		ID:    1,
		Name:  "ethereum",
		Feeds: []oracle.Feed{{Pair: "ETH/USD", Address: testOracle}},
	}}, prices, zerolog.Nop())

	store := predicate.NewMemoryStore()
	manager := predicate.NewManager(store, prices, directory, zerolog.Nop())
	history := predicate.NewHistory(store, predicate.MaxPageSize)

	return &testEnv{
		server: NewServer(Options{Version: "test"}, manager, history, directory, zerolog.Nop()),
		prices: prices,
	}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind     string   `json:"kind"`
		Messages []string `json:"messages"`
	} `json:"error"`
	Timestamp int64 `json:"timestamp"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, response) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	require.NotZero(t, resp.Timestamp)
	return rec.Code, resp
}

func (e *testEnv) create(t *testing.T) map[string]any {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, "/api/v1/predicates",
		`{"chainId":1,"oracleAddress":"`+testOracle+`","tolerance":1,"ownerAddress":"`+testOwner+`"}`)
	require.Equal(t, http.StatusCreated, code)
	require.True(t, resp.Success)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &rec))
	return rec
}

func TestCreateAndStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := env.create(t)

	require.Equal(t, "ACTIVE", rec["status"])
	require.Equal(t, float64(2500), rec["priceThreshold"])
	require.Equal(t, true, rec["isValid"])

	id := rec["predicateId"].(string)
	code, resp := env.do(t, http.MethodGet, "/api/v1/predicates/"+id, "")
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)
}

func TestCreateValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/v1/predicates", `{"chainId":1,"tolerance":50}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.False(t, resp.Success)
	require.Equal(t, "validation", resp.Error.Kind)
	require.GreaterOrEqual(t, len(resp.Error.Messages), 3)

	code, resp = env.do(t, http.MethodPost, "/api/v1/predicates", `{not json`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "validation", resp.Error.Kind)

	code, resp = env.do(t, http.MethodPost, "/api/v1/predicates",
		`{"chainId":1,"oracleAddress":"`+testOracle+`","tolerance":1,"ownerAddress":"`+testOwner+`","priceThreshold":0}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "invalid_threshold", resp.Error.Kind)
}

func TestValidateFlipsToInvalid(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t)["predicateId"].(string)

	env.prices.SetPrice(1, testOracle, decimal.NewFromInt(2600))
	code, resp := env.do(t, http.MethodPost, "/api/v1/predicates/"+id+"/validate", "")
	require.Equal(t, http.StatusOK, code)

	var v map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	require.Equal(t, false, v["isValid"])
	require.Equal(t, "INVALID", v["status"])
	require.Equal(t, float64(4), v["deviation"])
}

func TestUnknownPredicateIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	code, resp := env.do(t, http.MethodPost, "/api/v1/predicates/pred_missing/validate", "")
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "not_found", resp.Error.Kind)
}

func TestCancelFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t)["predicateId"].(string)
	path := "/api/v1/predicates/" + id + "/cancel"

	code, resp := env.do(t, http.MethodPost, path, `{"ownerAddress":"0x2222222222222222222222222222222222222222"}`)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "unauthorized", resp.Error.Kind)

	code, resp = env.do(t, http.MethodPost, path, `{"ownerAddress":"0X`+strings.ToUpper(testOwner[2:])+`"}`)
	require.Equal(t, http.StatusOK, code, "owner match ignores case")
	require.True(t, resp.Success)

	code, resp = env.do(t, http.MethodPost, path, `{"ownerAddress":"`+testOwner+`"}`)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "invalid_state", resp.Error.Kind)
}

func TestHistoryPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.create(t)
	}

	code, resp := env.do(t, http.MethodGet, "/api/v1/predicates/history/"+testOwner+"?limit=2&page=1", "")
	require.Equal(t, http.StatusOK, code)
	var page []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page, 2)

	code, resp = env.do(t, http.MethodGet, "/api/v1/predicates/history/"+testOwner+"?limit=2&page=5", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, string(resp.Data))

	code, resp = env.do(t, http.MethodGet, "/api/v1/predicates/history/"+testOwner+"?limit=10&page=9223372036854775807", "")
	require.Equal(t, http.StatusOK, code)
	require.True(t, resp.Success)
	require.JSONEq(t, `[]`, string(resp.Data))

	code, resp = env.do(t, http.MethodGet, "/api/v1/predicates/history/"+testOwner+"?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "validation", resp.Error.Kind)
}

func TestAvailableOracles(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodGet, "/api/v1/oracles/1", "")
	require.Equal(t, http.StatusOK, code)
	var quotes []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &quotes))
	require.Len(t, quotes, 1)
	require.Equal(t, testOracle, quotes[0]["address"])
	require.Equal(t, float64(8), quotes[0]["decimals"])

	code, resp = env.do(t, http.MethodGet, "/api/v1/oracles/999", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, string(resp.Data))

	code, _ = env.do(t, http.MethodGet, "/api/v1/oracles/eth", "")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	env.server.SetHealthDetails(func() map[string]any { return map[string]any{"store": "memory"} })

	code, resp := env.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "memory", body["store"])

	code, resp = env.do(t, http.MethodGet, "/api/v1/nope", "")
	require.Equal(t, http.StatusNotFound, code)
	require.False(t, resp.Success)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.create(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "predicated_http_requests_total")
}

func TestStatusForKinds(t *testing.T) {
	cases := map[predicate.Kind]int{
		predicate.KindValidation:        http.StatusBadRequest,
		predicate.KindInvalidThreshold:  http.StatusBadRequest,
		predicate.KindUnauthorized:      http.StatusUnauthorized,
		predicate.KindNotFound:          http.StatusNotFound,
		predicate.KindInvalidState:      http.StatusConflict,
		predicate.KindOracleUnavailable: http.StatusServiceUnavailable,
		predicate.KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		require.Equal(t, want, statusFor(kind), string(kind))
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	env.server.fail(rec, req, errors.New("connection reset by peer"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection reset")
}
