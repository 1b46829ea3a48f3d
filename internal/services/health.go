package services

import (
	"context"
	"sync"
	"time"

	"github.com/imyashkale/mcpgateway/internal/apperror"
	"github.com/imyashkale/mcpgateway/internal/logger"
	"github.com/imyashkale/mcpgateway/internal/mcpclient"
	"github.com/imyashkale/mcpgateway/internal/models"
	"github.com/imyashkale/mcpgateway/internal/queue"
)

// HealthService probes tool servers and records whether they answer.
// Probes run on demand and, when an interval is set, periodically through a
// worker pool.
type HealthService struct {
	servers  *ToolServerService
	dialer   mcpclient.Dialer
	interval time.Duration
	workers  int

	queue  *queue.JobQueue
	pool   *queue.WorkerPool
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewHealthService creates a new HealthService instance
func NewHealthService(servers *ToolServerService, dialer mcpclient.Dialer, interval time.Duration, workers int) *HealthService {
	if workers < 1 {
		workers = 1
	}
	return &HealthService{
		servers:  servers,
		dialer:   dialer,
		interval: interval,
		workers:  workers,
	}
}

// CheckNow probes one server and stores the result. An unreachable server is
// a successful check with status DOWN.
func (h *HealthService) CheckNow(ctx context.Context, serverId string) (*models.HealthCheckResponse, error) {
	server, err := h.servers.Resolve(ctx, serverId)
	if err != nil {
		return nil, err
	}

	status := models.HealthUp
	probeErr := h.probe(ctx, server)
	if probeErr != nil {
		status = models.HealthDown
	}

	checkedAt, err := h.servers.RecordHealth(ctx, serverId, status)
	if err != nil {
		return nil, err
	}

	resp := &models.HealthCheckResponse{
		ServerId:  serverId,
		Status:    status,
		CheckedAt: checkedAt,
	}
	if probeErr != nil {
		resp.Error = apperror.MessageOf(probeErr)
	}

	logger.WithFields(map[string]interface{}{
		"server_id": serverId,
		"status":    status,
	}).Info("Health check completed")

	return resp, nil
}

// probe opens a session, handshakes and pings
func (h *HealthService) probe(ctx context.Context, server *models.ToolServer) error {
	endpoint := mcpclient.Endpoint{URL: server.URL, Transport: server.Transport}
	session, err := h.dialer.Open(ctx, endpoint, server.APIKey)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Handshake(ctx); err != nil {
		return err
	}
	return session.Ping(ctx)
}

// Start launches the periodic prober. It does nothing when the interval is zero.
func (h *HealthService) Start(ctx context.Context) {
	if h.interval <= 0 {
		logger.Info("Periodic health checks disabled")
		return
	}

	ctx, h.cancel = context.WithCancel(ctx)
	h.queue = queue.NewJobQueue(h.workers * 16)
	h.pool = queue.NewWorkerPool(h.queue, h.workers)
	h.done = make(chan struct{})

	h.pool.Start(ctx, func(ctx context.Context, job *queue.HealthProbeJob) error {
		_, err := h.CheckNow(ctx, job.ServerID)
		return err
	})

	go h.schedule(ctx)

	logger.WithFields(map[string]interface{}{
		"interval": h.interval.String(),
		"workers":  h.workers,
	}).Info("Periodic health checks started")
}

func (h *HealthService) schedule(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.enqueueRound(ctx)
		}
	}
}

func (h *HealthService) enqueueRound(ctx context.Context) {
	ids, err := h.servers.ActiveServerIds(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to list tool servers for health checks")
		return
	}

	for _, id := range ids {
		if err := h.queue.Enqueue(&queue.HealthProbeJob{ServerID: id, Reason: "schedule"}); err != nil {
			return
		}
	}
}

// Stop ends the periodic prober and waits for in-flight probes
func (h *HealthService) Stop() {
	h.once.Do(func() {
		if h.cancel == nil {
			return
		}
		h.cancel()
		<-h.done
		h.queue.Close()
		h.pool.Stop()
		logger.Info("Periodic health checks stopped")
	})
}
