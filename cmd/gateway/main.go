// Command gateway runs the MySQL-to-PostgreSQL translation gateway:
// it presents a MySQL-compatible wire endpoint, authenticates clients,
// rewrites their SQL to PostgreSQL dialect, and executes it against a
// single configured backend. Wiring order follows the teacher's
// cmd/dbbouncer entrypoint.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/postmyrustache/gateway/internal/api"
	"github.com/postmyrustache/gateway/internal/config"
	"github.com/postmyrustache/gateway/internal/executor"
	"github.com/postmyrustache/gateway/internal/health"
	"github.com/postmyrustache/gateway/internal/listener"
	"github.com/postmyrustache/gateway/internal/metrics"
	"github.com/postmyrustache/gateway/internal/session"
)

// startStatsLoop periodically pushes pool accounting into the gauges
// metrics.Collector exposes, mirroring the teacher's StartStatsLoop. The
// returned func stops the loop and waits for it to exit.
func startStatsLoop(exec *executor.Executor, m *metrics.Collector, interval time.Duration) func() {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := exec.Stats()
				m.UpdatePoolStats(stats.Active, stats.Waiting)
			case <-stopCh:
				return
			}
		}
	}()
	return func() {
		close(stopCh)
		<-doneCh
	}
}

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to configuration file")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	log.Printf("[main] configuration loaded: %+v", cfg.Redacted())

	m := metrics.New()

	exec, err := executor.New(cfg.Backend.DSN(), cfg.Backend.DBName, cfg.Backend.MaxConnections, cfg.Backend.AcquireTimeout)
	if err != nil {
		log.Fatalf("connecting to backend: %v", err)
	}
	defer exec.Close()
	exec.SetOnExhausted(m.PoolExhausted)

	stopStats := startStatsLoop(exec, m, 5*time.Second)

	hc := health.NewChecker(exec, m, 10*cfg.Backend.AcquireTimeout, 3, cfg.Backend.AcquireTimeout)
	hc.Start()

	creds := session.Credentials{Username: cfg.MySQL.Username, Password: cfg.MySQL.Password}
	l := listener.New(exec, m, creds)
	if err := l.Listen(cfg.Listen.BindAddress); err != nil {
		log.Fatalf("starting MySQL listener: %v", err)
	}

	apiAddr := cfg.Listen.APIBind + ":" + strconv.Itoa(cfg.Listen.APIPort)
	apiServer := api.NewServer(hc, exec, m, apiAddr)
	if err := apiServer.Start(); err != nil {
		log.Fatalf("starting API server: %v", err)
	}

	// Only MySQL credentials are applied on reload (spec §6): the backend
	// DSN and bind address are read once at startup, matching the
	// "no reconnect within session" rule.
	watcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		l.SetCredentials(session.Credentials{Username: newCfg.MySQL.Username, Password: newCfg.MySQL.Password})
		log.Printf("[main] applied reloaded configuration")
	})
	if err != nil {
		log.Printf("[main] config hot-reload disabled: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("[main] received signal %s, shutting down", sig)

	if watcher != nil {
		watcher.Stop()
	}
	if err := apiServer.Stop(); err != nil {
		log.Printf("[main] API server shutdown error: %v", err)
	}
	l.Stop()
	hc.Stop()
	stopStats()

	log.Printf("[main] shutdown complete")
}
