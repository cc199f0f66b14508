// Command pkd-reconcile runs the Reconciliation Engine either once
// (-once) or as a daemon that re-runs on the configured interval until
// terminated.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkdmirror/appshell"
	"github.com/icao-pkd/pkdmirror/core"
	"github.com/icao-pkd/pkdmirror/ldapmirror"
	"github.com/icao-pkd/pkdmirror/logging"
	"github.com/icao-pkd/pkdmirror/pkdconfig"
	"github.com/icao-pkd/pkdmirror/reconcile"
	"github.com/icao-pkd/pkdmirror/store"
)

func main() {
	configFile := flag.String("config", "", "Path to the pkd-reconcile YAML configuration file")
	once := flag.Bool("once", false, "Run a single reconciliation pass and exit")
	flag.Parse()
	if *configFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := pkdconfig.Load(*configFile)
	if cfg == nil {
		cfg = &pkdconfig.Config{}
	}
	log, scope := appshell.StatsAndLogging("pkd-reconcile", cfg.Syslog.StdoutLevel)
	appshell.FailOnError(log, err, "loading configuration")
	log.Info(appshell.VersionString())

	dbMap, err := store.NewDbMap(cfg.Database.Driver, cfg.Database.DSN.String())
	appshell.FailOnError(log, err, "opening trust store database")
	clk := clock.New()
	ts := store.New(dbMap, clk, log)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password.String(), DB: cfg.Redis.DB})
		ts.SetCache(store.NewCertificateCache(rdb, cfg.Redis.TTL.Duration))
	}

	mirror := ldapmirror.New(ldapmirror.Config{
		URL:      cfg.LDAP.URL,
		BindDN:   cfg.LDAP.BindDN,
		Password: cfg.LDAP.Password.String(),
		BaseDN:   cfg.LDAP.BaseDN,
		PoolSize: cfg.LDAP.PoolSize,
	}, log)

	engine := reconcile.New(ts, mirror, clk, log, scope, cfg.Reconcile.BatchSize, cfg.Reconcile.UseDBLock)

	if *once {
		runPass(engine, log, core.TriggeredManual, cfg.Reconcile.DryRun)
		return
	}

	interval := cfg.Reconcile.Interval.Duration
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		runPass(engine, log, core.TriggeredDailySync, cfg.Reconcile.DryRun)
		for {
			select {
			case <-ticker.C:
				runPass(engine, log, core.TriggeredDailySync, cfg.Reconcile.DryRun)
			case <-stop:
				return
			}
		}
	}()

	appshell.CatchSignals(log, func() { close(stop) })
}

func runPass(engine *reconcile.Engine, log logging.Logger, triggeredBy core.TriggeredBy, dryRun bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := engine.Run(ctx, triggeredBy, dryRun)
	if err != nil {
		log.AuditErr(err, "reconciliation run failed")
		return
	}
	log.Audit("reconciliation run completed",
		"status", summary.Status,
		"successCount", summary.SuccessCount,
		"failureCount", summary.FailureCount,
		"durationMs", summary.DurationMS)
}
