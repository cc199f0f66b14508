// Package pkdconfig loads and validates the YAML configuration file every
// pkd-* binary takes as its single "-config" argument: one big Config
// struct unmarshalled in one pass, with YAML tags, struct-tag validation
// via letsencrypt/validator/v10, and a ConfigDuration/ConfigSecret pair
// for human-friendly durations and indirected secrets. ConfigSecret
// resolves from an environment variable rather than a file, since these
// binaries run in containers where env injection is the norm.
package pkdconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/letsencrypt/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration shape shared by every pkd-* binary.
// Each binary reads only the sections it needs. Load validates every
// section regardless, so database and ldap, whose fields are tagged
// required, must be present even for a binary that does not use them; the
// other sections may be omitted and are left at their zero value.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" validate:"required"`
	LDAP      LDAPConfig      `yaml:"ldap"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
	Queue     QueueConfig     `yaml:"queue"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Syslog    SyslogConfig    `yaml:"syslog"`
}

// DatabaseConfig holds the Trust Store's connection parameters.
type DatabaseConfig struct {
	Driver string       `yaml:"driver" validate:"required"`
	DSN    ConfigSecret `yaml:"dsn" validate:"required"`
}

// LDAPConfig holds the LDAP Mirror's connection parameters, mirroring
// ldapmirror.Config field for field so a loaded Config can be handed to
// ldapmirror.New without translation beyond the struct literal.
type LDAPConfig struct {
	URL      string       `yaml:"url" validate:"required"`
	BindDN   string       `yaml:"bindDN" validate:"required"`
	Password ConfigSecret `yaml:"password"`
	BaseDN   string       `yaml:"baseDN" validate:"required"`
	PoolSize int          `yaml:"poolSize"`
}

// RedisConfig holds the candidate-issuer/CRL cache's connection parameters.
// Addr left empty disables the cache; the Validation Engine falls back to
// querying the Trust Store directly.
type RedisConfig struct {
	Addr     string         `yaml:"addr"`
	Password ConfigSecret   `yaml:"password"`
	DB       int            `yaml:"db"`
	TTL      ConfigDuration `yaml:"ttl"`
}

// S3Config holds the upload archiver's bucket parameters. Bucket left
// empty disables archival; ingest.New is handed a NoopArchiver instead.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

// QueueConfig holds the MANUAL-mode durable staging queue's parameters.
type QueueConfig struct {
	DataDir string `yaml:"dataDir"`
}

// ReconcileConfig holds the reconciliation engine's tuning parameters.
type ReconcileConfig struct {
	BatchSize int            `yaml:"batchSize"`
	UseDBLock bool           `yaml:"useDBLock"`
	Interval  ConfigDuration `yaml:"interval"`
	DryRun    bool           `yaml:"dryRun"`
}

// SyslogConfig holds StdoutLevel, on a syslog.Priority-style integer scale:
// 0=Emerg .. 7=Debug. appshell.StatsAndLogging takes it as a parameter but
// does not filter by it: Debug lines are never written to stderr and every
// other severity always is.
type SyslogConfig struct {
	StdoutLevel int `yaml:"stdoutLevel"`
}

// Load reads filename, unmarshals it as YAML into a Config, and validates
// every `validate:"..."` tag. Every error is returned wrapped with the file
// name; a validation error carries validator's own message, which names the
// failing fields.
func Load(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", filename, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", filename, err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config file %s: %w", filename, err)
	}
	return &cfg, nil
}

// ConfigDuration is time.Duration with YAML (de)serialization to and from
// Go's duration string syntax ("30s", "5m").
type ConfigDuration struct {
	time.Duration
}

func (d *ConfigDuration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

func (d ConfigDuration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// ConfigSecret is a string-valued config field that may be given directly
// or, if it starts with "env:", resolved from the named environment
// variable: containers favor injected env vars over mounted secret files.
type ConfigSecret string

const secretPrefix = "env:"

func (d *ConfigSecret) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, secretPrefix) {
		*d = ConfigSecret(s)
		return nil
	}
	name := s[len(secretPrefix):]
	val, ok := os.LookupEnv(name)
	if !ok {
		return fmt.Errorf("config secret references unset environment variable %q", name)
	}
	*d = ConfigSecret(val)
	return nil
}

func (d ConfigSecret) String() string {
	return string(d)
}
