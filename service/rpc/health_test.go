package rpc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthFollowsChecks(t *testing.T) {
	var down atomic.Bool
	h := NewHealthServer(HealthConfig{Addr: "127.0.0.1:0", Service: "ppsocial", ProbeInterval: time.Hour})
	h.AddCheck("store", func(context.Context) error {
		if down.Load() {
			return errors.New("store down")
		}
		return nil
	})
	addr, err := h.Start()
	require.NoError(t, err)
	t.Cleanup(h.Stop)

	conn, err := grpc.NewClient(addr.String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	cli := grpc_health_v1.NewHealthClient(conn)

	check := func(svc string) grpc_health_v1.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := cli.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: svc})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check("ppsocial"))

	down.Store(true)
	assert.False(t, h.Probe(context.Background()))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check("ppsocial"))

	down.Store(false)
	assert.True(t, h.Probe(context.Background()))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(""))
}
