package healthsrv

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type switchPinger struct {
	down atomic.Bool
}

func (p *switchPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("database is closed")
	}
	return nil
}

func TestHealthServerReportsDependency(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	pinger := &switchPinger{}
	srv := New(pinger, time.Hour)
	go func() { _ = srv.Serve(ctx, lis) }()

	addr := lis.Addr().String()
	checkCtx, checkCancel := context.WithTimeout(ctx, 5*time.Second)
	defer checkCancel()

	status, err := Check(checkCtx, addr, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	pinger.down.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, srv.Probe(ctx))

	status, err = Check(checkCtx, addr, ServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	_, err = Check(checkCtx, addr, "unknown.Service")
	assert.Error(t, err)
}

func TestProbeWithoutPinger(t *testing.T) {
	t.Parallel()
	srv := New(nil, 0)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, srv.Probe(context.Background()))
	assert.Equal(t, defaultProbeInterval, srv.interval)
}
