package app

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/h02-server/internal/config"
)

const v1Frame = "*HQ,123456789012345,V1,050316,A,2234.0297,N,11405.9101,E,000.0,000,120316,FFFFFBFF#"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("../../configs/example.yaml")
	require.NoError(t, err)
	cfg.TCP.Addr = "127.0.0.1:0"
	cfg.App.InstanceID = "gw-test"
	return cfg
}

func TestOptionalDependenciesDisabled(t *testing.T) {
	cfg := testConfig(t)
	logger := zap.NewNop()

	rc, err := NewRedisClient(cfg.Redis, logger)
	require.NoError(t, err)
	assert.Nil(t, rc)

	up, down := NewIdentityResolvers(rc, cfg.Redis)
	assert.Nil(t, up)
	assert.Nil(t, down)

	nb, err := NewNATS(cfg.NATS, logger)
	require.NoError(t, err)
	assert.Nil(t, nb)
}

func TestWiring_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	logger := zaptest.NewLogger(t)

	reg, appm := NewMetrics()
	gw, sessions := NewGateway(cfg, cfg.InstanceID(), nil, nil, nil, appm, logger)
	tcpSrv := NewTCPServer(cfg.TCP, gw, appm, logger)
	require.NoError(t, tcpSrv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tcpSrv.Shutdown(ctx)
	})

	agg := NewHealthAggregator(tcpSrv, nil, nil)
	h := NewHTTPServer(cfg, reg, agg, gw, nil, logger).Handler()

	conn, err := net.Dial("tcp", tcpSrv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(v1Frame))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('#')
	require.NoError(t, err)
	assert.Equal(t, "*HQ,123456789012345,V1#", reply)

	require.Eventually(t, func() bool { return sessions.Count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(appm.TCPAccepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(appm.FramesTotal.WithLabelValues("V1", "ok")))

	t.Run("管理接口可见设备", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/devices/123456789012345", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("就绪探针", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("指标导出", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "h02_frames_total")
	})
}

func TestStartWebhookDisabled(t *testing.T) {
	assert.Nil(t, StartWebhook(context.Background(), config.WebhookConfig{}, zap.NewNop()))
}
