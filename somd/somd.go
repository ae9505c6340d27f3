// Package somd assembles the coordinator daemon: coordinator, host monitor, journal and the
// HTTP API, supervised together until the context ends.
package somd

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/scanomatic/som/api"
	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/config"
	"github.com/scanomatic/som/coordinator"
	"github.com/scanomatic/som/host"
	"github.com/scanomatic/som/journal"
)

const shutdownTimeout = 10 * time.Second

// LogPowerSwitch stands in for scanner power hardware and only logs.
type LogPowerSwitch struct{}

func (LogPowerSwitch) SetPower(ctx context.Context, resourceID string, on bool) error {
	log.WithFields(log.Fields{"scanner": resourceID, "on": on}).Info("scanner power")
	return nil
}

// Run serves until ctx is cancelled or a component fails. ready, if set, is called with the
// bound address once the listener is open.
func Run(ctx context.Context, cfg *config.Config, ready func(net.Addr)) error {
	stat := stats.DefaultStatsReceiver()

	workers, err := cfg.BuildWorkers()
	if err != nil {
		return err
	}

	var listeners []coordinator.Listener
	var history api.History
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath, stat)
		if err != nil {
			return err
		}
		defer j.Close()
		listeners = append(listeners, j)
		history = j
	}

	monitor := host.NewMonitor(cfg.Thresholds(), nil, stat)
	if err := monitor.Start(cfg.Host.Interval); err != nil {
		return err
	}
	defer monitor.Stop()

	coord, err := coordinator.New(coordinator.Config{
		Resources:   cfg.Resources(),
		HistorySize: cfg.HistorySize,
		TickRate:    cfg.TickRate,
		Workers:     workers,
		Host:        monitor,
		GateOnHost:  cfg.Host.GateAdmission,
		Power:       LogPowerSwitch{},
		Listeners:   listeners,
	}, stat)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", cfg.Addr)
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}
	srv := &http.Server{
		Handler:           api.NewServer(coord, history, stat).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithFields(log.Fields{"addr": ln.Addr().String(), "scanners": len(cfg.Resources())}).Info("serving som api")
	if ready != nil {
		ready(ln.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serving http")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	log.WithError(err).Info("som daemon stopped")
	return err
}
