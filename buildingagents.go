// Package buildingagents provides a high-level façade over the chat service:
// the ERNI agent catalog, guardrails, conversation store, turn orchestrator
// and HTTP server, wired together from a single configuration. Most
// applications interact with this package by:
//  1. Loading a config.Config (config.Load or config.Default)
//  2. Creating an App via New() (optionally overriding models or the store)
//  3. Calling Run() to serve until the context is canceled
//
// All defaults are safe for local development: an in-memory conversation
// store, JSON logging on stdout and the built-in mock business data.
package buildingagents

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/erni-gruppe/building-agents/agent"
	"github.com/erni-gruppe/building-agents/config"
	"github.com/erni-gruppe/building-agents/guardrail"
	"github.com/erni-gruppe/building-agents/logging"
	"github.com/erni-gruppe/building-agents/metrics"
	"github.com/erni-gruppe/building-agents/model"
	"github.com/erni-gruppe/building-agents/model/anthropic"
	"github.com/erni-gruppe/building-agents/model/openai"
	"github.com/erni-gruppe/building-agents/orchestrate"
	"github.com/erni-gruppe/building-agents/registry"
	"github.com/erni-gruppe/building-agents/server"
	"github.com/erni-gruppe/building-agents/store"
	"github.com/erni-gruppe/building-agents/store/bolt"
	"github.com/erni-gruppe/building-agents/tool"
)

// Options configures the App. Any unset component is built from the Config.
type Options struct {
	// AgentModel drives agent turns; GuardrailModel drives guardrail
	// classification. Override both with model.NewMockModel() for tests.
	AgentModel     model.Model
	GuardrailModel model.Model

	// Store overrides the conversation store built from Config.Store.
	Store store.Store

	// Logger defaults to a structured logger per Config.Logging.
	Logger logging.Logger
}

// App aggregates the wired service components.
type App struct {
	Config       config.Config
	Logger       logging.Logger
	Registry     *registry.Registry
	Store        store.Store
	Orchestrator *orchestrate.Orchestrator
	Server       *server.Server
	Metrics      *metrics.Recorder

	cleanup []func()
}

// New wires the complete service from the given configuration.
func New(cfg config.Config, optFns ...func(o *Options)) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(promRegistry)

	app := &App{Config: cfg, Logger: logger, Metrics: recorder}

	agentModel, guardrailModel, err := buildModels(cfg, opts)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(cfg.EntryAgent, Agents(), logger)
	if err != nil {
		return nil, err
	}
	app.Registry = reg

	st, err := app.buildStore(cfg, opts, recorder, logger)
	if err != nil {
		return nil, err
	}
	app.Store = st

	cache := guardrail.NewCache(func(o *guardrail.CacheOptions) {
		o.MaxEntries = cfg.Guardrails.CacheSize
		o.TTL = cfg.GuardrailCacheTTL()
		o.OnHit = recorder.GuardrailCacheHit
		o.OnMiss = recorder.GuardrailCacheMiss
	})
	guardrails := []guardrail.Guardrail{
		guardrail.NewRelevanceGuardrail(guardrailModel, func(o *guardrail.ClassifierOptions) {
			o.Cache = cache
			o.Logger = logger
		}),
		guardrail.NewJailbreakGuardrail(guardrailModel, func(o *guardrail.ClassifierOptions) {
			o.Cache = cache
			o.Logger = logger
		}),
	}

	tools := tool.NewBuildingTools(cfg.Business)
	runner := agent.NewModelRunner(agentModel, tools, reg, func(o *agent.Options) {
		o.Logger = logger
	})

	app.Orchestrator = orchestrate.New(reg, st, runner, func(o *orchestrate.Options) {
		o.Guardrails = guardrails
		o.Logger = logger
		o.Metrics = recorder
	})

	app.Server = server.New(cfg.Server.Addr, app.Orchestrator, func(o *server.Options) {
		o.AllowedOrigins = cfg.Server.AllowedOrigins
		o.ReadTimeout = cfg.ReadTimeout()
		o.WriteTimeout = cfg.WriteTimeout()
		o.ShutdownTimeout = cfg.ShutdownTimeout()
		o.MetricsRegistry = promRegistry
		o.Logger = logger
		o.ReadinessChecks = map[string]server.ReadinessCheck{
			"environment_configured": func(context.Context) bool {
				return cfg.Models.Provider == "mock" || apiKeyConfigured(cfg)
			},
		}
	})

	return app, nil
}

// Run serves HTTP traffic until ctx is canceled, keeping the active
// conversation gauge current, then releases all resources.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if counter, ok := a.Store.(interface{ Len() int }); ok {
		go a.pollStoreSize(ctx, counter)
	}
	return a.Server.ListenAndServe(ctx)
}

// Close releases the store and any other held resources.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func (a *App) pollStoreSize(ctx context.Context, counter interface{ Len() int }) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Metrics.SetActiveConversations(counter.Len())
		}
	}
}

func (a *App) buildStore(cfg config.Config, opts Options, recorder *metrics.Recorder, logger logging.Logger) (store.Store, error) {
	if opts.Store != nil {
		return opts.Store, nil
	}

	onEvict := func(id string, reason store.EvictionReason) {
		recorder.ConversationEvicted(string(reason))
		logger.Debug("conversation.evicted", "conversation_id", id, "reason", string(reason))
	}

	if cfg.Store.Path != "" {
		st, err := bolt.Open(cfg.Store.Path, func(o *bolt.Options) {
			o.TTL = cfg.StoreTTL()
			o.MaxEntries = cfg.Store.MaxEntries
			o.Logger = logger
			o.OnEvict = onEvict
		})
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, func() {
			if err := st.Close(); err != nil {
				logger.Warn("store.close", "error", err.Error())
			}
		})
		return st, nil
	}

	st := store.NewInMemoryStore(func(o *store.Options) {
		o.TTL = cfg.StoreTTL()
		o.MaxEntries = cfg.Store.MaxEntries
		o.SweepInterval = cfg.StoreSweepInterval()
		o.Logger = logger
		o.OnEvict = onEvict
	})
	a.cleanup = append(a.cleanup, st.Close)
	return st, nil
}

func buildModels(cfg config.Config, opts Options) (agentModel, guardrailModel model.Model, err error) {
	agentModel = opts.AgentModel
	guardrailModel = opts.GuardrailModel
	if agentModel != nil && guardrailModel != nil {
		return agentModel, guardrailModel, nil
	}

	switch cfg.Models.Provider {
	case "openai":
		if agentModel == nil {
			agentModel = openai.NewModel(func(o *openai.Options) { o.Model = cfg.Models.AgentModel })
		}
		if guardrailModel == nil {
			guardrailModel = openai.NewModel(func(o *openai.Options) {
				o.Model = cfg.Models.GuardrailModel
				o.Temperature = 0
				o.MaxCompletionTokens = 500
			})
		}
	case "anthropic":
		if agentModel == nil {
			agentModel = anthropic.NewModel(func(o *anthropic.Options) {
				if name := cfg.Models.AgentModel; name != "" {
					o.Model = anthropic.ModelName(name)
				}
				o.APIKey = cfg.Models.AnthropicAPIKey
			})
		}
		if guardrailModel == nil {
			guardrailModel = anthropic.NewModel(func(o *anthropic.Options) {
				if name := cfg.Models.GuardrailModel; name != "" {
					o.Model = anthropic.ModelName(name)
				}
				o.APIKey = cfg.Models.AnthropicAPIKey
				o.Temperature = 0
				o.MaxTokens = 500
			})
		}
	case "mock":
		mock := model.NewMockModel()
		if agentModel == nil {
			agentModel = mock
		}
		if guardrailModel == nil {
			guardrailModel = mock
		}
	default:
		return nil, nil, fmt.Errorf("buildingagents: unknown model provider %q", cfg.Models.Provider)
	}
	return agentModel, guardrailModel, nil
}

func apiKeyConfigured(cfg config.Config) bool {
	switch cfg.Models.Provider {
	case "anthropic":
		return cfg.Models.AnthropicAPIKey != ""
	default:
		return cfg.Models.OpenAIAPIKey != ""
	}
}
