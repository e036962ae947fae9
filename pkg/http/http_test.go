package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinTrain/internal/domain/errs"
	applogger "FinTrain/pkg/logger"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/fail", func(c echo.Context) error {
		return AppErrorResponse(c, errs.Configuration("load checkpoint", "no checkpoint %q", "w"))
	})
}

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := NewServer(applogger.Nop(), []Handler{pingHandler{}, nil}, WithMetrics("/metrics", reg, reg))
	return s, reg
}

func TestServer_RoutesAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	var body APIResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	res.Body.Close()
	assert.Equal(t, http.StatusOK, body.Status)
	assert.Equal(t, "pong", body.Data)

	res, err = http.Get(srv.URL + "/boom")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(raw), `http_requests_total{method="GET",route="/ping",status="200"} 1`)
	assert.Contains(t, string(raw), `route="/boom",status="500"`)
}

func TestAppErrorResponse_MapsFailureKind(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Status int         `json:"status"`
		Data   []*AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_CONFIGURATION", body.Data[0].Code)
	assert.Contains(t, body.Data[0].Message, `no checkpoint "w"`)
}

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errs.ShapeMismatch("align", "more labels"), http.StatusUnprocessableEntity},
		{errs.DataQuality("labels", 3, "zero close"), http.StatusUnprocessableEntity},
		{errs.ResourceUnavailable("device", "cuda"), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", errs.Configuration("x", "y")), http.StatusUnprocessableEntity},
		{io.EOF, http.StatusInternalServerError},
		{NotFoundErrorf("run %s", "r1"), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, FromError(tc.err).Status, tc.err.Error())
	}
}

type limitRequest struct {
	Limit int `query:"limit" default:"10" validate:"gte=1,lte=100"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), httptest.NewRecorder())
	var req limitRequest
	verrs := ReadAndValidateRequest(c, &req)
	require.Len(t, verrs, 1)
	assert.Equal(t, "ERR_LTE", verrs[0].Code)
	assert.Equal(t, "Limit must be at most 100", verrs[0].Message)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	req = limitRequest{}
	assert.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, 10, req.Limit)
}

func TestHub_BroadcastAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(applogger.Nop())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	require.True(t, hub.Broadcast([]byte(`{"kind":"epoch_finished"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `{"kind":"epoch_finished"}`, string(msg))

	cancel()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.False(t, hub.Broadcast([]byte("late")))
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil, "http://localhost:3000")
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}
