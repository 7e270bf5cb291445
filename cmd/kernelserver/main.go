// Command kernelserver runs the openTCS-style kernel core as a standalone
// process: the object pool, model facade, routing engine, order manager,
// and kernel supervisor wired together behind an HTTP transport.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentcs-go/kernel/applications/events"
	"github.com/opentcs-go/kernel/applications/httpapi"
	"github.com/opentcs-go/kernel/domain/kernel"
	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/routing"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/config"
	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/kernellog"
	"github.com/opentcs-go/kernel/internal/kvstore"
	"github.com/opentcs-go/kernel/internal/metrics"
	"github.com/opentcs-go/kernel/internal/modelstore"
	"github.com/opentcs-go/kernel/internal/objectpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config/env)")
	configPath := flag.String("config", "", "path to an optional YAML configuration overlay")
	dispatchTick := flag.Duration("dispatch-tick", time.Second, "dispatcher sweep interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = cfg.HTTPAddr
	}

	logger := kernellog.New("kernel", cfg.LogLevel, cfg.LogFormat)
	m := metrics.Init("opentcs-kernel")

	bus := eventbus.New()
	ids := identity.NewService()
	pool := objectpool.New(ids, bus)
	pool.SetMetrics(m)
	facade := topology.NewFacade(pool, ids)
	engine := routing.NewEngine(pool, bus, routing.DistanceCost{}, routing.Exhaustive)
	prometheus.MustRegister(engine.Collector())
	mgr := orders.NewManager(pool, facade, ids, engine, logger)

	rootCtx := context.Background()

	var models *modelstore.Store
	if cfg.ModelStoreDSN != "" {
		if err := modelstore.Migrate(cfg.ModelStoreDSN); err != nil {
			log.Fatalf("run model store migrations: %v", err)
		}
		models, err = modelstore.Open(rootCtx, cfg.ModelStoreDSN, m)
		if err != nil {
			log.Fatalf("open model store: %v", err)
		}
		defer models.Close()
	}

	var kv *kvstore.Store
	if cfg.RedisAddr != "" {
		kv = kvstore.NewWithRedis(rootCtx, cfg.RedisAddr, "opentcs:config:", logger)
	} else {
		kv = kvstore.New(logger)
	}

	supervisor := kernel.NewSupervisor(pool, ids, facade, mgr, engine, models, kv, m, logger, cfg.JWTSecret)
	supervisor.StartDispatchLoop(rootCtx, *dispatchTick)

	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				m.UpdateUptime(startTime)
				m.SampleProcessStats()
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.New(supervisor, m, logger))
	mux.Handle("/events", events.NewHub(bus, logger))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: listenAddr, Handler: mux}

	go func() {
		logger.WithField("addr", listenAddr).Info("kernel listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	supervisor.SetState(kernel.Shutdown)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
