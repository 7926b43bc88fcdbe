package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the configuration of the appcred server and CLI.
type Config struct {
	LogLevel           string `hcl:"log_level,optional"`
	LogFormat          string `hcl:"log_format,optional"`
	LogFile            string `hcl:"log_file,optional"`
	LogRotateMegabytes int    `hcl:"log_rotate_megabytes,optional"`
	LogRotateMaxFiles  int    `hcl:"log_rotate_max_files,optional"`
	LogRotateMaxAge    int    `hcl:"log_rotate_max_age_days,optional"`

	Storage      *StorageBlock      `hcl:"storage,block"`
	Cache        *CacheBlock        `hcl:"cache,block"`
	ExternalAuth *ExternalAuthBlock `hcl:"external_auth,block"`
	Token        *TokenBlock        `hcl:"token,block"`
	Audit        *AuditBlock        `hcl:"audit,block"`
	Seed         *SeedBlock         `hcl:"seed,block"`
}

type StorageBlock struct {
	Type string `hcl:"type,label"` // "inmem" or "file"

	// File storage specific config
	Path string `hcl:"path,optional"`

	// BcryptCost is the work factor for hashing credential secrets.
	BcryptCost int `hcl:"bcrypt_cost,optional"`
}

// Config returns the backend options as a map
func (s *StorageBlock) Config() map[string]string {
	config := map[string]string{}
	if s.Path != "" {
		config["path"] = s.Path
	}
	return config
}

type CacheBlock struct {
	TTL         string `hcl:"ttl,optional"` // e.g. "10m" or "600"
	NumCounters int64  `hcl:"num_counters,optional"`
	MaxCost     int64  `hcl:"max_cost,optional"`
}

type ExternalAuthBlock struct {
	// Method selects the resolver: "external", "external-domain" or
	// "kerberos".
	Method          string `hcl:"method,optional"`
	DefaultDomainID string `hcl:"default_domain_id,optional"`
}

type TokenBlock struct {
	Bind []string `hcl:"bind,optional"`
}

type AuditBlock struct {
	Path        string   `hcl:"path,optional"` // "stdout" writes to standard output
	HMACKey     string   `hcl:"hmac_key,optional"`
	Prefix      string   `hcl:"prefix,optional"`
	OmitFields  []string `hcl:"omit_fields,optional"`
	BufferSize  int      `hcl:"buffer_size,optional"`
	FlushPeriod string   `hcl:"flush_period,optional"`
	MaxSizeMB   int      `hcl:"max_size_mb,optional"`
	MaxBackups  int      `hcl:"max_backups,optional"`
	Compress    bool     `hcl:"compress,optional"`
}

// SeedBlock declares the identities and assignments loaded into the
// in-process identity and role stores at startup.
type SeedBlock struct {
	Domains     []DomainSeed     `hcl:"domain,block"`
	Users       []UserSeed       `hcl:"user,block"`
	Groups      []GroupSeed      `hcl:"group,block"`
	Roles       []RoleSeed       `hcl:"role,block"`
	Assignments []AssignmentSeed `hcl:"assignment,block"`
}

type DomainSeed struct {
	Name string `hcl:"name,label"`
	ID   string `hcl:"id,optional"`
}

type UserSeed struct {
	Name     string   `hcl:"name,label"`
	ID       string   `hcl:"id,optional"`
	Domain   string   `hcl:"domain,optional"` // domain name, default domain when empty
	Disabled bool     `hcl:"disabled,optional"`
	Groups   []string `hcl:"groups,optional"` // group names
}

type GroupSeed struct {
	Name   string `hcl:"name,label"`
	ID     string `hcl:"id,optional"`
	Domain string `hcl:"domain,optional"`
}

type RoleSeed struct {
	Name        string `hcl:"name,label"`
	ID          string `hcl:"id,optional"`
	Description string `hcl:"description,optional"`
}

// AssignmentSeed grants Role on Project to exactly one of User or Group.
type AssignmentSeed struct {
	User    string `hcl:"user,optional"`
	Group   string `hcl:"group,optional"`
	Project string `hcl:"project"`
	Role    string `hcl:"role"`
}

// Default returns the configuration used when no file is given: in-memory
// storage and audit on stdout.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func LoadConfig(configFile string) (*Config, error) {
	var config Config

	if err := hclsimple.DecodeFile(configFile, nil, &config); err != nil {
		return nil, err
	}
	return finish(&config)
}

// Parse decodes HCL source. filename must end in .hcl and is only used in
// diagnostics.
func Parse(filename string, src []byte) (*Config, error) {
	var config Config

	if err := hclsimple.Decode(filename, src, nil, &config); err != nil {
		return nil, err
	}
	return finish(&config)
}

func finish(c *Config) (*Config, error) {
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Storage == nil {
		c.Storage = &StorageBlock{Type: "inmem"}
	}
	if c.Cache == nil {
		c.Cache = &CacheBlock{}
	}
	if c.ExternalAuth == nil {
		c.ExternalAuth = &ExternalAuthBlock{}
	}
	if c.ExternalAuth.Method == "" {
		c.ExternalAuth.Method = "external"
	}
	if c.ExternalAuth.DefaultDomainID == "" {
		c.ExternalAuth.DefaultDomainID = "default"
	}
	if c.Token == nil {
		c.Token = &TokenBlock{}
	}
	if c.Audit == nil {
		c.Audit = &AuditBlock{}
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "stdout"
	}
	if c.Seed == nil {
		c.Seed = &SeedBlock{}
	}
}

// Validate checks values the HCL schema cannot.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "inmem":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage \"file\" requires a path")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	switch c.ExternalAuth.Method {
	case "external", "external-domain", "kerberos":
	default:
		return fmt.Errorf("unsupported external_auth method %q", c.ExternalAuth.Method)
	}

	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if _, err := c.AuditFlushPeriod(); err != nil {
		return err
	}

	for i, a := range c.Seed.Assignments {
		if (a.User == "") == (a.Group == "") {
			return fmt.Errorf("seed assignment %d must name exactly one of user or group", i)
		}
	}
	return nil
}

// CacheTTL parses cache.ttl. Zero means the cache default.
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Cache == nil || c.Cache.TTL == "" {
		return 0, nil
	}
	ttl, err := parseutil.ParseDurationSecond(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.Cache.TTL, err)
	}
	return ttl, nil
}

// AuditFlushPeriod parses audit.flush_period. Zero means the sink default.
func (c *Config) AuditFlushPeriod() (time.Duration, error) {
	if c.Audit == nil || c.Audit.FlushPeriod == "" {
		return 0, nil
	}
	d, err := parseutil.ParseDurationSecond(c.Audit.FlushPeriod)
	if err != nil {
		return 0, fmt.Errorf("invalid audit flush_period %q: %w", c.Audit.FlushPeriod, err)
	}
	return d, nil
}
