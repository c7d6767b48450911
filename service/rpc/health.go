package rpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"PPSocial/logger"
	"PPSocial/tools/errs"
	"PPSocial/tools/safe"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultProbeInterval = 10 * time.Second
	probeTimeout         = 2 * time.Second
)

// Check 依赖探活，返回 nil 表示可用
type Check func(ctx context.Context) error

type HealthConfig struct {
	Addr          string        // 监听地址，如 ":50051"
	Service       string        // 对外的服务名；空串状态总是同步维护
	ProbeInterval time.Duration // 探活周期
}

// HealthServer 标准 grpc.health.v1 服务；周期性跑 checks，全部通过才是 SERVING
type HealthServer struct {
	cfg    HealthConfig
	srv    *grpc.Server
	health *health.Server

	mu     sync.Mutex
	checks map[string]Check
	lis    net.Listener

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewHealthServer(cfg HealthConfig) *HealthServer {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	h := &HealthServer{
		cfg:    cfg,
		srv:    srv,
		health: hs,
		checks: map[string]Check{},
		stopCh: make(chan struct{}),
	}
	h.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return h
}

// AddCheck 需在 Start 之前注册
func (h *HealthServer) AddCheck(name string, c Check) {
	h.mu.Lock()
	h.checks[name] = c
	h.mu.Unlock()
}

func (h *HealthServer) setStatus(st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", st)
	if h.cfg.Service != "" {
		h.health.SetServingStatus(h.cfg.Service, st)
	}
}

// Probe 跑一次全部 checks 并更新状态
func (h *HealthServer) Probe(ctx context.Context) bool {
	h.mu.Lock()
	checks := make(map[string]Check, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.Unlock()

	ok := true
	for name, c := range checks {
		cctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := c(cctx)
		cancel()
		if err != nil {
			ok = false
			logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
	}
	if ok {
		h.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	} else {
		h.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return ok
}

// Start 监听并开始服务，返回实际监听地址
func (h *HealthServer) Start() (net.Addr, error) {
	lis, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return nil, errs.WrapMsg(err, "grpc listen", "addr", h.cfg.Addr)
	}
	h.mu.Lock()
	h.lis = lis
	h.mu.Unlock()

	h.Probe(context.Background())
	safe.Go("health-probe", h.probeLoop)
	safe.Go("grpc-serve", func() {
		if err := h.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc serve stopped", zap.Error(err))
		}
	})
	logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	return lis.Addr(), nil
}

func (h *HealthServer) probeLoop() {
	ticker := time.NewTicker(h.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Probe(context.Background())
		case <-h.stopCh:
			return
		}
	}
}

// Stop 先标记 NOT_SERVING 再优雅停止
func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.health.Shutdown()
		h.srv.GracefulStop()
	})
}
