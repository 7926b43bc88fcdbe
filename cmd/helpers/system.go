package helpers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	phy "github.com/openbao/openbao/sdk/v2/physical"
	"github.com/stephnangue/appcred/audit"
	"github.com/stephnangue/appcred/auth"
	"github.com/stephnangue/appcred/auth/external"
	"github.com/stephnangue/appcred/config"
	"github.com/stephnangue/appcred/credential"
	"github.com/stephnangue/appcred/credential/drivers"
	"github.com/stephnangue/appcred/identity"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/notify"
	"github.com/stephnangue/appcred/physical"
	"github.com/stephnangue/appcred/role"
)

const subsystemCore = "core"

// Options controls where a System writes.
type Options struct {
	// LogOutput receives operational logs (default os.Stderr).
	LogOutput io.Writer
	// AuditOutput receives audit lines when the audit path is "stdout"
	// (default os.Stdout).
	AuditOutput io.Writer
}

// System is the application wired from a configuration.
type System struct {
	Config      *config.Config
	Logger      *logger.GatedLogger
	Bus         *notify.Hub
	Identity    *identity.Store
	Roles       *role.Registry
	Storage     phy.Backend
	Credentials *credential.Manager
	Audit       *audit.Recorder
	Auth        *auth.Registry
}

// NewSystem builds every component described by cfg. The log gate opens
// once the build finishes, successful or not.
func NewSystem(ctx context.Context, cfg *config.Config, opts Options) (sys *System, retErr error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.AuditOutput == nil {
		opts.AuditOutput = os.Stdout
	}

	log := buildGatedLogger(cfg, opts.LogOutput)
	defer func() {
		_ = log.OpenGate()
	}()

	s := &System{Config: cfg, Logger: log}
	defer func() {
		if retErr != nil {
			if err := s.Close(); err != nil {
				log.Warn("failed to release partially built system", logger.Err(err))
			}
			log.Error("failed to build system", logger.Err(retErr))
		}
	}()

	s.Bus = notify.NewHub(notify.HubConfig{Logger: log})
	s.Identity = identity.NewStore(s.Bus, log)
	s.Roles = role.NewRegistry(role.Config{
		Membership: s.Identity,
		Bus:        s.Bus,
		Logger:     log,
	})
	if err := Seed(ctx, cfg.Seed, s.Identity, s.Roles); err != nil {
		return nil, fmt.Errorf("failed to load seed: %w", err)
	}

	backend, err := physical.New(cfg.Storage.Type, cfg.Storage.Config(), log)
	if err != nil {
		return nil, err
	}
	s.Storage = backend

	driver, err := drivers.NewStorageDriver(drivers.StorageDriverConfig{
		Backend:    backend,
		Logger:     log,
		BcryptCost: cfg.Storage.BcryptCost,
	})
	if err != nil {
		return nil, err
	}

	cacheConfig, err := buildCacheConfig(cfg)
	if err != nil {
		return nil, err
	}
	s.Credentials, err = credential.NewManager(credential.ManagerConfig{
		Driver: driver,
		Oracle: s.Roles,
		Roles:  s.Roles,
		Bus:    s.Bus,
		Cache:  cacheConfig,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	sink, err := buildAuditSink(cfg, opts.AuditOutput, log)
	if err != nil {
		return nil, err
	}
	s.Audit, err = audit.NewRecorder(audit.RecorderConfig{
		Bus:    s.Bus,
		Sink:   sink,
		Format: buildAuditFormat(cfg.Audit),
		Logger: log,
	})
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	s.Auth = auth.NewRegistry()
	if err := external.Register(s.Auth, s.Identity, cfg.ExternalAuth.DefaultDomainID, cfg.Token.Bind, log); err != nil {
		return nil, err
	}

	log.Debug("system ready",
		logger.String("storage", cfg.Storage.Type),
		logger.String("external_auth", cfg.ExternalAuth.Method))
	return s, nil
}

// Login authenticates req with the configured external method.
func (s *System) Login(ctx context.Context, req *auth.Request) (*auth.Response, error) {
	method, err := s.Auth.Get(s.Config.ExternalAuth.Method)
	if err != nil {
		return nil, err
	}
	return method.Authenticate(ctx, req)
}

// Close stops the subscribers, waits for pending audit deliveries and
// closes the audit sink. It is safe on a partially built System.
func (s *System) Close() error {
	var result *multierror.Error
	if s.Credentials != nil {
		s.Credentials.Close()
	}
	if s.Roles != nil {
		s.Roles.Close()
	}
	if s.Bus != nil {
		s.Bus.Wait()
	}
	if s.Audit != nil {
		if err := s.Audit.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close audit recorder: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func buildGatedLogger(cfg *config.Config, out io.Writer) *logger.GatedLogger {
	logConfig := &logger.Config{
		Level:     logger.ParseLogLevel(cfg.LogLevel),
		Format:    logger.ParseOutputFormat(cfg.LogFormat),
		Subsystem: subsystemCore,
		Outputs:   []io.Writer{out},
	}
	if cfg.LogFile != "" {
		logConfig.FileConfig = &logger.FileConfig{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogRotateMegabytes,
			MaxAge:     cfg.LogRotateMaxAge,
			MaxBackups: cfg.LogRotateMaxFiles,
		}
	}

	gateConfig := logger.GatedWriterConfig{
		Underlying:    out,
		InitialState:  logger.GateClosed,
		MaxBufferSize: 10 * 1024 * 1024, // 10MB buffer for initialization logs
	}

	gatedLogger, _ := logger.NewGatedLogger(logConfig, gateConfig)
	return gatedLogger
}

func buildCacheConfig(cfg *config.Config) (credential.CacheConfig, error) {
	out := credential.DefaultCacheConfig()
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return out, err
	}
	if ttl > 0 {
		out.TTL = ttl
	}
	if cfg.Cache.NumCounters > 0 {
		out.NumCounters = cfg.Cache.NumCounters
	}
	if cfg.Cache.MaxCost > 0 {
		out.MaxCost = cfg.Cache.MaxCost
	}
	return out, nil
}

// nopCloser keeps WriterSink from closing the process's standard streams.
type nopCloser struct {
	io.Writer
}

func buildAuditSink(cfg *config.Config, out io.Writer, log *logger.GatedLogger) (audit.Sink, error) {
	c := cfg.Audit

	var sink audit.Sink
	if c.Path == "stdout" {
		sink = audit.NewWriterSink("stdout", nopCloser{out})
	} else {
		fileSink, err := audit.NewFileSink(audit.FileSinkConfig{
			Path:       c.Path,
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			Compress:   c.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file %s: %w", c.Path, err)
		}
		sink = fileSink
	}

	if c.BufferSize <= 0 {
		return sink, nil
	}
	period, err := cfg.AuditFlushPeriod()
	if err != nil {
		return nil, multierror.Append(err, sink.Close()).ErrorOrNil()
	}
	buffered, err := audit.NewBufferedSink(audit.BufferedSinkConfig{
		Sink:        sink,
		BufferSize:  c.BufferSize,
		FlushPeriod: period,
		Logger:      log,
	})
	if err != nil {
		return nil, multierror.Append(err, sink.Close()).ErrorOrNil()
	}
	return buffered, nil
}

func buildAuditFormat(c *config.AuditBlock) audit.Format {
	var opts []audit.JSONFormatOption
	if c.Prefix != "" {
		opts = append(opts, audit.WithPrefix(c.Prefix))
	}
	if len(c.OmitFields) > 0 {
		opts = append(opts, audit.WithOmitFields(c.OmitFields))
	}
	if c.HMACKey != "" {
		opts = append(opts, audit.WithSaltFunc(audit.NewHMACer(c.HMACKey).SaltFunc()))
	}
	return audit.NewJSONFormat(opts...)
}
