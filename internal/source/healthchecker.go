package source

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthPing probes the planner with a lightweight HEAD request.
func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Head("/api/actividades")
	if err != nil {
		return err
	}
	// 405 still proves the planner is up; some deployments reject HEAD.
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("planner returned status %d", resp.StatusCode())
	}
	return nil
}

// PlannerHealthChecker monitors planner reachability via periodic pings.
// Like the store checker it starts unhealthy until the first success.
type PlannerHealthChecker struct {
	client       *Client
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

func NewPlannerHealthChecker(client *Client, log zerolog.Logger, probeTimeout time.Duration) *PlannerHealthChecker {
	hc := &PlannerHealthChecker{client: client, log: log, probeTimeout: probeTimeout}
	hc.healthy.Store(0)
	return hc
}

func (hc *PlannerHealthChecker) Name() string { return "planner" }

func (hc *PlannerHealthChecker) IsHealthy() bool { return hc.healthy.Load() == 1 }

func (hc *PlannerHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		to := hc.probeTimeout
		if to <= 0 {
			to = 2 * time.Second
		}
		checkCtx, cancel := context.WithTimeout(ctx, to)
		defer cancel()

		if err := hc.client.HealthPing(checkCtx); err != nil {
			hc.log.Error().Stack().
				Str("checker", hc.Name()).
				Err(err).
				Msg("planner health check failed")
			hc.healthy.Store(0)
			return
		}
		hc.healthy.Store(1)
	}

	check()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
