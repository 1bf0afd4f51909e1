package service

import (
	"context"
	"edgerelay/conf"
	"edgerelay/internal/model"
	"edgerelay/pkg/logger"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
)

// RulesSource 交易所提供的下单规则
type RulesSource interface {
	Instrument(ctx context.Context, symbol string) (*model.InstrumentRules, error)
}

type cachedRules struct {
	rules     model.InstrumentRules
	fetchedAt time.Time
}

// InstrumentService 解析交易对的下单规则：交易所规则 + 配置覆盖，结果按 TTL 缓存
type InstrumentService struct {
	src         RulesSource
	overrides   map[string]conf.SymbolRules
	minNotional decimal.Decimal
	ttl         time.Duration
	cache       *lru.Cache
	mu          sync.Mutex // 同一时间只请求一次交易所
	now         func() time.Time
}

func NewInstrumentService(src RulesSource, overrides map[string]conf.SymbolRules, minNotional float64, ttl time.Duration) *InstrumentService {
	cache, _ := lru.New(256)
	return &InstrumentService{
		src:         src,
		overrides:   overrides,
		minNotional: decimal.NewFromFloat(minNotional),
		ttl:         ttl,
		cache:       cache,
		now:         time.Now,
	}
}

// Rules 获取交易对规则。交易所请求失败时，如果配置里给出了完整的规则则直接使用
func (s *InstrumentService) Rules(ctx context.Context, symbol string) (model.InstrumentRules, error) {
	if v, ok := s.cache.Get(symbol); ok {
		c := v.(cachedRules)
		if s.ttl <= 0 || s.now().Sub(c.fetchedAt) < s.ttl {
			return c.rules, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(symbol); ok {
		c := v.(cachedRules)
		if s.ttl <= 0 || s.now().Sub(c.fetchedAt) < s.ttl {
			return c.rules, nil
		}
	}
	return s.refresh(ctx, symbol)
}

func (s *InstrumentService) refresh(ctx context.Context, symbol string) (model.InstrumentRules, error) {
	override, hasOverride := s.overrides[symbol]

	var rules model.InstrumentRules
	remote, err := s.src.Instrument(ctx, symbol)
	switch {
	case err == nil:
		rules = *remote
	case hasOverride && complete(override):
		logger.Warn("instrument rules fetch failed, using configured rules",
			logger.Pair("symbol", symbol), logger.Err(err))
		rules = model.InstrumentRules{Symbol: symbol}
	default:
		return model.InstrumentRules{}, fmt.Errorf("instrument rules for %s: %w", symbol, err)
	}

	if hasOverride {
		apply(&rules, override)
	}
	if !rules.MinNotional.IsPositive() {
		rules.MinNotional = s.minNotional
	}
	rules.Symbol = symbol

	s.cache.Add(symbol, cachedRules{rules: rules, fetchedAt: s.now()})
	return rules, nil
}

// Invalidate 删除缓存，下次请求重新获取
func (s *InstrumentService) Invalidate(symbol string) {
	s.cache.Remove(symbol)
}

const syncInterval = 1 * time.Hour

// StartInstrumentSyncWorker 定时刷新已缓存的交易对规则，直到 ctx 被取消
func (s *InstrumentService) StartInstrumentSyncWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = syncInterval
	}
	go func() {
		logger.Infof("instrument sync worker started, every %v", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("instrument sync worker shutting down")
				return
			case <-ticker.C:
				s.doSyncJob(ctx)
			}
		}
	}()
}

func (s *InstrumentService) doSyncJob(ctx context.Context) {
	keys := s.cache.Keys()
	s.mu.Lock()
	defer s.mu.Unlock()

	synced := 0
	for _, k := range keys {
		symbol, _ := k.(string)
		if _, err := s.refresh(ctx, symbol); err != nil {
			// 保留旧规则，等待下一个周期
			logger.Warn("instrument sync failed", logger.Pair("symbol", symbol), logger.Err(err))
			continue
		}
		synced++
	}
	logger.Info("instrument rules synced", logger.Pair("count", synced))
}

func complete(o conf.SymbolRules) bool {
	return o.MinQty > 0 && o.QtyStep > 0 && o.TickSize > 0
}

func apply(r *model.InstrumentRules, o conf.SymbolRules) {
	if o.MinQty > 0 {
		r.MinQty = decimal.NewFromFloat(o.MinQty)
	}
	if o.QtyStep > 0 {
		r.QtyStep = decimal.NewFromFloat(o.QtyStep)
	}
	if o.MinNotional > 0 {
		r.MinNotional = decimal.NewFromFloat(o.MinNotional)
	}
	if o.TickSize > 0 {
		r.TickSize = decimal.NewFromFloat(o.TickSize)
	}
}
