package api

import (
	"edgerelay/conf"
	"edgerelay/internal/canceller"
	"edgerelay/internal/exchange"
	"edgerelay/internal/handler/instrument"
	whhandler "edgerelay/internal/handler/webhook"
	"edgerelay/internal/plan"
	"edgerelay/internal/router"
	"edgerelay/internal/service"
	"edgerelay/internal/webhook"
	"edgerelay/pkg/recorder"
)

// App 服务依赖
type App struct {
	Exchange  *exchange.GuardedExchange
	Rules     *service.InstrumentService
	Relay     *service.RelayService
	Canceller *canceller.Canceller
	Webhook   *webhook.WebhookHandler
}

func NewApp(cfg *conf.Config) (*App, error) {
	ex, err := exchange.New(cfg)
	if err != nil {
		return nil, err
	}

	rules := service.NewInstrumentService(ex, cfg.Symbols, cfg.Risk.MinNotional, cfg.Exchange.InstrumentTTL)
	builder := plan.NewBuilder(cfg.Risk.MaxRiskPerTradePct, cfg.Exchange.ProtectiveReduceOnly)
	c := canceller.New(ex)

	var journal recorder.Recorder = recorder.Nop{}
	if cfg.Journal.Path != "" {
		journal = recorder.NewJSONFileRecorder(cfg.Journal.Path)
	}

	relay := service.NewRelayService(ex, rules, builder, c, journal, cfg.Exchange.SettleCoin)
	return &App{
		Exchange:  ex,
		Rules:     rules,
		Relay:     relay,
		Canceller: c,
		Webhook:   webhook.NewWebhookHandler(relay, cfg.Webhook, cfg.Risk.DefaultRiskPerTradePct),
	}, nil
}

func (a *App) InitRouter(cfg *conf.Config) Router {
	return router.NewApiRouter(
		whhandler.NewHandler(a.Webhook),
		instrument.NewHandler(a.Rules),
		cfg.Webhook.DedupeWindow,
	)
}

// Close 等待后台执行结束，再停止撤单任务
func (a *App) Close() {
	a.Webhook.Wait()
	a.Canceller.Stop()
}
