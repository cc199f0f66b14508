// Command pkd-pa-verify runs Passive Authentication Verification (spec
// §4.5) against a SOD file and zero or more data-group files named
// dg<N>=<path>, printing the resulting verification and per-group results
// as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkdmirror/appshell"
	"github.com/icao-pkd/pkdmirror/core"
	"github.com/icao-pkd/pkdmirror/metrics"
	"github.com/icao-pkd/pkdmirror/pa"
	"github.com/icao-pkd/pkdmirror/pkdconfig"
	"github.com/icao-pkd/pkdmirror/store"
	"github.com/icao-pkd/pkdmirror/validation"
)

type dgFlags map[int][]byte

func (d dgFlags) String() string { return "" }

func (d dgFlags) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "dg") {
		return fmt.Errorf("expected dg<N>=<path>, got %q", value)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(parts[0], "dg"))
	if err != nil {
		return fmt.Errorf("invalid data group number in %q: %v", value, err)
	}
	contents, err := os.ReadFile(parts[1])
	if err != nil {
		return fmt.Errorf("reading %s: %v", parts[1], err)
	}
	d[n] = contents
	return nil
}

func main() {
	configFile := flag.String("config", "", "Path to the pkd-pa-verify YAML configuration file")
	sodPath := flag.String("sod", "", "Path to the SOD (EF.SOD) file")
	country := flag.String("country", "", "Issuing country, ISO 3166-1 alpha-2 (derived from the DSC subject when omitted)")
	documentNumber := flag.String("document", "", "Travel document number, for audit logging only")
	dataGroups := make(dgFlags)
	flag.Var(dataGroups, "dg", "Data group in dg<N>=<path> form, repeatable")
	flag.Parse()
	if *configFile == "" || *sodPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := pkdconfig.Load(*configFile)
	if cfg == nil {
		cfg = &pkdconfig.Config{}
	}
	log, _ := appshell.StatsAndLogging("pkd-pa-verify", cfg.Syslog.StdoutLevel)
	appshell.FailOnError(log, err, "loading configuration")
	log.Info(appshell.VersionString())

	sod, err := os.ReadFile(*sodPath)
	appshell.FailOnError(log, err, "reading SOD file")

	dbMap, err := store.NewDbMap(cfg.Database.Driver, cfg.Database.DSN.String())
	appshell.FailOnError(log, err, "opening trust store database")
	clk := clock.New()
	ts := store.New(dbMap, clk, log)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password.String(), DB: cfg.Redis.DB})
		ts.SetCache(store.NewCertificateCache(rdb, cfg.Redis.TTL.Duration))
	}

	validationEngine := validation.New(dbMap, clk, log, validation.DefaultRevocationPolicy)
	if cache := ts.Cache(); cache != nil {
		validationEngine.SetCache(cache)
	}

	engine := pa.New(ts, validationEngine, clk, log, metrics.NewNoopScope())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	verification, results, err := engine.Verify(ctx, core.PaVerifyRequest{
		SOD:            sod,
		DataGroups:     dataGroups,
		DocumentNumber: *documentNumber,
		Country:        *country,
	})
	appshell.FailOnError(log, err, "verification failed")

	output := struct {
		Verification *core.PaVerification   `json:"verification"`
		DataGroups   []core.DataGroupResult `json:"dataGroups"`
	}{verification, results}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		appshell.FailOnError(log, err, "encoding verification result")
	}
}
