// Command pkd-ingest runs the Ingestion Pipeline against a single file
// supplied on the command line: parse, validate, persist to the Trust
// Store, and mirror to LDAP, reporting each progress event as it arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkdmirror/appshell"
	"github.com/icao-pkd/pkdmirror/core"
	"github.com/icao-pkd/pkdmirror/ingest"
	"github.com/icao-pkd/pkdmirror/ldapmirror"
	"github.com/icao-pkd/pkdmirror/logging"
	"github.com/icao-pkd/pkdmirror/pkdconfig"
	"github.com/icao-pkd/pkdmirror/store"
	"github.com/icao-pkd/pkdmirror/validation"
)

var formatFlag = map[string]core.UploadFormat{
	"ldif":       core.FormatLDIF,
	"masterlist": core.FormatML,
	"pem":        core.FormatPEM,
	"der":        core.FormatDER,
	"p7b":        core.FormatP7B,
	"crl":        core.FormatCRL,
}

func main() {
	configFile := flag.String("config", "", "Path to the pkd-ingest YAML configuration file")
	format := flag.String("format", "", "Upload format: ldif, masterlist, pem, der, p7b, crl")
	flag.Parse()
	if *configFile == "" || *format == "" || flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	uploadFormat, ok := formatFlag[*format]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -format %q\n", *format)
		os.Exit(1)
	}
	filePath := flag.Arg(0)

	cfg, err := pkdconfig.Load(*configFile)
	if cfg == nil {
		cfg = &pkdconfig.Config{}
	}
	log, scope := appshell.StatsAndLogging("pkd-ingest", cfg.Syslog.StdoutLevel)
	appshell.FailOnError(log, err, "loading configuration")
	log.Info(appshell.VersionString())

	raw, err := os.ReadFile(filePath)
	appshell.FailOnError(log, err, "reading input file")

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

	engine := validation.New(dbMap, clk, log, validation.DefaultRevocationPolicy)
	if cache := ts.Cache(); cache != nil {
		engine.SetCache(cache)
	}

	archiver := buildArchiver(cfg, log)

	var queue *ingest.StageQueue
	if cfg.Queue.DataDir != "" {
		queue, err = ingest.OpenStageQueue(cfg.Queue.DataDir)
		appshell.FailOnError(log, err, "opening durable stage queue")
		defer queue.Close()
	}

	pipeline := ingest.New(ts, mirror, engine, archiver, queue, clk, log, scope)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rec, events, err := pipeline.Submit(ctx, filePath, uploadFormat, raw)
	appshell.FailOnError(log, err, "submitting upload")
	log.Info("upload accepted", "uploadId", rec.ID)

	for ev := range events {
		fmt.Printf("[%3d%%] %-22s processed=%d total=%d %s\n",
			ev.Percentage, ev.Stage, ev.ProcessedCount, ev.TotalCount, ev.ErrorMessage)
	}
}

func buildArchiver(cfg *pkdconfig.Config, log logging.Logger) ingest.Archiver {
	if cfg.S3.Bucket == "" {
		return ingest.NoopArchiver{}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.S3.Region))
	if err != nil {
		log.Warning("loading AWS config failed, archival disabled", "error", err.Error())
		return ingest.NoopArchiver{}
	}
	return ingest.NewS3Archiver(s3.NewFromConfig(awsCfg), cfg.S3.Bucket)
}
