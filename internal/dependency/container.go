// Package dependency wires core solpilot services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.uber.org/dig"

	"github.com/solpilot/solpilot/internal/agent"
	"github.com/solpilot/solpilot/internal/config"
	"github.com/solpilot/solpilot/internal/drift"
	"github.com/solpilot/solpilot/internal/jupiter"
	"github.com/solpilot/solpilot/internal/notify"
	"github.com/solpilot/solpilot/internal/providers"
	"github.com/solpilot/solpilot/internal/schema"
	"github.com/solpilot/solpilot/internal/server"
	"github.com/solpilot/solpilot/internal/session"
	"github.com/solpilot/solpilot/internal/solana"
	"github.com/solpilot/solpilot/internal/tools"
	"github.com/solpilot/solpilot/internal/watch"
)

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never import dig directly.
type Container struct {
	provider   schema.LLMProvider
	dispatcher *agent.Dispatcher
	registry   *tools.Registry
	sessions   *session.Manager
	server     *server.Server
	feed       *jupiter.PriceFeed
	alerts     *watch.Service
	notifyBus  *notify.Bus
	notifier   *notify.Manager
	chain      *solana.Client
}

func (c *Container) Provider() schema.LLMProvider   { return c.provider }
func (c *Container) Dispatcher() *agent.Dispatcher  { return c.dispatcher }
func (c *Container) Registry() *tools.Registry      { return c.registry }
func (c *Container) Sessions() *session.Manager     { return c.sessions }
func (c *Container) Server() *server.Server         { return c.server }
func (c *Container) PriceFeed() *jupiter.PriceFeed  { return c.feed }
func (c *Container) AlertWatcher() *watch.Service   { return c.alerts }
func (c *Container) NotifyBus() *notify.Bus         { return c.notifyBus }
func (c *Container) Notifier() *notify.Manager      { return c.notifier }
func (c *Container) Chain() *solana.Client          { return c.chain }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		newProvider,
		newChainClient,
		newJupiterClient,
		newPriceFeed,
		newPriceService,
		newDriftClient,
		newSessionManager,
		newNotifyBus,
		newNotifyManager,
		newAlertWatcher,
		newPersona,
		newRegistry,
		newDispatcher,
		newServer,
	}
	for _, c := range constructors {
		if err := d.Provide(c); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		dispatcher *agent.Dispatcher,
		registry *tools.Registry,
		sessions *session.Manager,
		srv *server.Server,
		feed *jupiter.PriceFeed,
		alerts *watch.Service,
		bus *notify.Bus,
		notifier *notify.Manager,
		chain *solana.Client,
	) {
		result = &Container{
			provider:   provider,
			dispatcher: dispatcher,
			registry:   registry,
			sessions:   sessions,
			server:     srv,
			feed:       feed,
			alerts:     alerts,
			notifyBus:  bus,
			notifier:   notifier,
			chain:      chain,
		}
	})
	return result, err
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	p := cfg.Providers
	if p.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q, edit %s", p.Name, config.ConfigPath())
	}
	return providers.New(p.Name, p.APIKey, p.APIBase, cfg.Agent.Model, p.ExtraHeaders), nil
}

func newChainClient(cfg *config.Config) *solana.Client {
	return solana.NewClient(cfg.Solana)
}

func newJupiterClient(cfg *config.Config) *jupiter.Client {
	return jupiter.NewClient(cfg.Jupiter)
}

func newPriceFeed(cfg *config.Config) *jupiter.PriceFeed {
	return jupiter.NewPriceFeed(cfg.Jupiter.PriceFeedWS)
}

func newPriceService(cfg *config.Config, client *jupiter.Client, feed *jupiter.PriceFeed) *jupiter.PriceService {
	svc := jupiter.NewPriceService(client, feed)
	svc.Watch("SOL")
	for symbol := range cfg.Solana.Tokens {
		svc.Watch(symbol)
	}
	return svc
}

func newDriftClient(cfg *config.Config) *drift.Client {
	var signer *solana.Signer
	if cfg.Solana.SignerKeyPath != "" {
		s, err := solana.LoadSigner(cfg.Solana.SignerKeyPath)
		if err != nil {
			slog.Warn("drift signer unavailable, requests go unsigned", "err", err)
		} else {
			signer = s
		}
	}
	return drift.NewClient(cfg.Drift.GatewayBase, signer)
}

func newSessionManager() (*session.Manager, error) {
	return session.NewManager(config.DataDir())
}

func newNotifyBus() *notify.Bus {
	return notify.NewBus(64)
}

func newNotifyManager(bus *notify.Bus, cfg *config.Config) *notify.Manager {
	return notify.NewManager(bus, cfg.Notify)
}

func newAlertWatcher(cfg *config.Config, prices *jupiter.PriceService, bus *notify.Bus) *watch.Service {
	storePath := filepath.Join(config.DataDir(), "alerts.json")
	svc := watch.NewService(storePath, 30*time.Second, prices.Price)
	svc.SetOnFire(func(ctx context.Context, alert watch.Alert, price float64) {
		bus.Publish(notify.PriceAlertNotification(alert.Symbol, alert.Direction, alert.Threshold, price))
	})
	return svc
}

func newPersona(cfg *config.Config) *agent.Persona {
	return agent.NewPersona(cfg.Agent.PersonaPath)
}

// newRegistry assembles the full tool catalogue.
func newRegistry(
	cfg *config.Config,
	chain *solana.Client,
	prices *jupiter.PriceService,
	jup *jupiter.Client,
	dft *drift.Client,
	alerts *watch.Service,
) *tools.Registry {
	registry := tools.NewRegistry()
	registry.MustRegister(
		tools.NewBalanceTool(chain),
		tools.NewRecentTransactionsTool(chain),
		tools.NewPortfolioTool(chain, prices),
		tools.NewSendTokensTool(chain),
		tools.NewSwapPriceTool(jup, chain),
		tools.NewSwapTransactionTool(jup, chain),
		tools.NewTokenPriceTool(prices),
		tools.NewDriftBalanceTool(dft),
		tools.NewCreateDriftAccountTool(dft),
		tools.NewOpenPerpPositionTool(dft),
		tools.NewMarketNewsTool(cfg.News.SearchAPIKey, cfg.News.MaxResults),
		tools.NewCreatePriceAlertTool(alerts),
		tools.NewListPriceAlertsTool(alerts),
		tools.NewCancelPriceAlertTool(alerts),
	)
	return registry
}

func newDispatcher(provider schema.LLMProvider, registry *tools.Registry, persona *agent.Persona, cfg *config.Config) *agent.Dispatcher {
	return agent.NewDispatcher(provider, registry, persona, cfg.Agent)
}

func newServer(dispatcher *agent.Dispatcher, sessions *session.Manager, registry *tools.Registry, cfg *config.Config) *server.Server {
	return server.New(dispatcher, sessions, registry, cfg.Server.Port)
}
