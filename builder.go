package goTodo

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/goTodo/credential"
	internalaudit "github.com/MrEthical07/goTodo/internal/audit"
	"github.com/MrEthical07/goTodo/internal/flows"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a [Client].
//
// Builder instances are intended to be configured during initialization and
// used once; a second Build call fails.
type Builder struct {
	config Config
	store  credential.Store
	redis  redis.UniversalClient

	httpClient *http.Client
	navigator  Navigator
	logger     *zap.Logger
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The builder keeps a copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore injects a credential store, overriding Config.Store.
func (b *Builder) WithStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the client used by the redis store backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient overrides the HTTP client built from Config.Transport.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithNavigator sets the collaborator told about forced logouts, redirects
// and alerts. The default ignores every call.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination. Events are only emitted when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Client].
//
// Build fails with an error wrapping [ErrInvalidConfig] for bad settings, and
// when the redis backend is selected without [Builder.WithRedis].
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- CREDENTIAL STORE --------
	store := b.store
	if store == nil {
		switch cfg.Store.Backend {
		case StoreFile:
			store = credential.NewFileStore(cfg.Store.Path)
		case StoreRedis:
			if b.redis == nil {
				return nil, errors.New("redis store backend requires redis client")
			}
			store = credential.NewRedisStore(b.redis, cfg.Store.RedisPrefix)
		default:
			store = credential.NewMemoryStore(credential.Credential{})
		}
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Transport.Timeout}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("gotodo")

	navigator := b.navigator
	if navigator == nil {
		navigator = NopNavigator{}
	}

	c := &Client{
		config:    cloneConfig(cfg),
		baseURL:   cfg.API.baseURL(),
		store:     store,
		http:      httpClient,
		navigator: navigator,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	// -------- FLOWS --------
	warn := logger.Sugar().Warnw
	dispatch := flows.DispatchDeps{
		BaseURL:      c.baseURL,
		HTTP:         httpClient,
		Store:        store,
		UserAgent:    cfg.Transport.UserAgent,
		MaxBodyBytes: cfg.Transport.MaxBodyBytes,
		Observe:      c.observeRoundTrip,
	}
	c.flows = flows.New(flows.Deps{
		Send: flows.SendDeps{
			Dispatch: dispatch,
			Refresh: flows.RefreshDeps{
				URL:             flows.JoinURL(c.baseURL, cfg.API.authPath("/refresh")),
				HTTP:            httpClient,
				Store:           store,
				TokenKeys:       cfg.Refresh.TokenKeys,
				RefreshTokenKey: cfg.Refresh.RefreshTokenKey,
				UserAgent:       cfg.Transport.UserAgent,
				MaxBodyBytes:    cfg.Transport.MaxBodyBytes,
				Warn:            warn,
			},
			InvalidAuthMessage: cfg.Refresh.InvalidAuthMessage,
			Proactive:          cfg.Refresh.Proactive,
			Leeway:             cfg.Refresh.Leeway,
			OnRefresh:          c.onRefresh,
			Warn:               warn,
		},
	})

	b.built = true

	return c, nil
}
