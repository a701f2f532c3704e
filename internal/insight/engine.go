// Package insight runs the per-entity analysis pipeline and fuses the
// per-channel results into a single comparable InsightRecord. Channel
// failures degrade to completeness flags; they never abort an entity,
// and no entity can abort a sibling in a batch.
package insight

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abralabs/abra/internal/analysis/anomaly"
	"github.com/abralabs/abra/internal/analysis/relevance"
	"github.com/abralabs/abra/internal/analysis/seasonality"
	"github.com/abralabs/abra/internal/analysis/trend"
	"github.com/abralabs/abra/internal/infra"
	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/pkg/models"
)

// ChannelPayload is one raw provider payload for one channel.
type ChannelPayload struct {
	Provider  string         `json:"provider"`
	Channel   models.Channel `json:"channel"`
	Payload   []byte         `json:"payload"`
	DateRange string         `json:"date_range,omitempty"` // cache key component, e.g. "2025-09..2026-08"
}

// SubEntityPayload is one raw time-series payload for a sub-entity
// (typically a product under the brand) used for spike detection.
type SubEntityPayload struct {
	SubEntityID string `json:"sub_entity_id"`
	Provider    string `json:"provider"`
	Payload     []byte `json:"payload"`
}

// EntityInput is everything the engine needs to analyze one entity.
// Payloads are pre-fetched raw provider responses; the engine never
// performs network I/O itself.
type EntityInput struct {
	Profile     models.EntityProfile `json:"profile"`
	Channels    []ChannelPayload     `json:"channels"`
	SubEntities []SubEntityPayload   `json:"sub_entities,omitempty"`

	// Now is the clock reference for recency decay and run stamping.
	// Zero means wall-clock time; tests pin it for repeatable output.
	Now time.Time `json:"now,omitempty"`
}

// ProgressEvent reports a pipeline stage transition for streaming
// consumers. Err is set when a channel degraded.
type ProgressEvent struct {
	EntityID string         `json:"entity_id"`
	Channel  models.Channel `json:"channel,omitempty"`
	Stage    string         `json:"stage"`
	Err      string         `json:"error,omitempty"`
}

// ChannelAnalytics is the per-channel intermediate the pipeline
// produces and the cache stores. Exactly the fields that survived that
// channel's analysis are set; Status records how far it got.
type ChannelAnalytics struct {
	Channel     models.Channel          `json:"channel"`
	Status      models.ChannelStatus    `json:"status"`
	Smoothed    *models.SmoothedSeries  `json:"smoothed,omitempty"`
	Forecast    *models.ForecastSeries  `json:"forecast,omitempty"`
	Seasonality *models.SeasonalProfile `json:"seasonality,omitempty"`
	Monthly     *models.MonthlyProfile  `json:"monthly,omitempty"`
	Changes     *models.ChangeStats     `json:"changes,omitempty"`
	Volatility  float64                 `json:"volatility,omitempty"`
	Relevance   []models.RelevanceScore `json:"relevance,omitempty"`
}

// Engine is the analysis pipeline. It is safe for concurrent use.
type Engine struct {
	registry *ingest.Registry
	opts     Options
	cache    infra.Cache // nil disables caching

	mu         sync.RWMutex
	onProgress func(ProgressEvent)
}

// New creates an engine over the given adapter registry. cache may be
// nil to disable result caching.
func New(registry *ingest.Registry, opts Options, cache infra.Cache) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Engine{registry: registry, opts: opts, cache: cache}
}

// OnProgress registers a callback for pipeline stage events. The
// callback must be safe to call from multiple goroutines.
func (e *Engine) OnProgress(fn func(ProgressEvent)) {
	e.mu.Lock()
	e.onProgress = fn
	e.mu.Unlock()
}

func (e *Engine) emit(ev ProgressEvent) {
	e.mu.RLock()
	fn := e.onProgress
	e.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// AnalyzeEntity runs the full pipeline for one entity and returns its
// fused record. The only error it returns is context cancellation;
// every data-level failure shows up as a completeness flag instead.
func (e *Engine) AnalyzeEntity(ctx context.Context, in EntityInput) (*models.InsightRecord, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	e.emit(ProgressEvent{EntityID: in.Profile.ID, Stage: "start"})

	analytics := make(map[models.Channel]*ChannelAnalytics, len(in.Channels))
	var amu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, cp := range in.Channels {
		cp := cp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ca := e.analyzeChannel(gctx, in, cp, now)
			amu.Lock()
			analytics[cp.Channel] = ca
			amu.Unlock()
			return nil
		})
	}

	var stars []models.Anomaly
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		stars = e.detectStars(in)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	record := fuse(in.Profile, analytics, stars, e.opts, now)
	e.emit(ProgressEvent{EntityID: in.Profile.ID, Stage: "done"})
	return record, nil
}

// AnalyzeBatch runs AnalyzeEntity for each input concurrently, bounded
// by the configured concurrency. Output order matches input order.
func (e *Engine) AnalyzeBatch(ctx context.Context, inputs []EntityInput) ([]*models.InsightRecord, error) {
	records := make([]*models.InsightRecord, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			rec, err := e.AnalyzeEntity(gctx, in)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// analyzeChannel never fails: any error on the way down degrades the
// channel to incomplete or missing. A panic inside the numeric pipeline
// is confined the same way.
func (e *Engine) analyzeChannel(ctx context.Context, in EntityInput, cp ChannelPayload, now time.Time) (ca *ChannelAnalytics) {
	ca = &ChannelAnalytics{Channel: cp.Channel, Status: models.StatusMissing}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("insight: channel %s for %s panicked: %v", cp.Channel, in.Profile.ID, r)
			ca = &ChannelAnalytics{Channel: cp.Channel, Status: models.StatusMissing}
			e.emit(ProgressEvent{EntityID: in.Profile.ID, Channel: cp.Channel, Stage: "failed", Err: "internal error"})
		}
	}()

	key := infra.Key(in.Profile.ID, cp.Channel, cp.DateRange)
	if e.cache != nil && cp.DateRange != "" {
		if payload, ok := e.cache.Get(ctx, key); ok {
			var cached ChannelAnalytics
			if err := json.Unmarshal(payload, &cached); err == nil && cached.Channel == cp.Channel {
				e.emit(ProgressEvent{EntityID: in.Profile.ID, Channel: cp.Channel, Stage: "cached"})
				return &cached
			}
			// Corrupt entry, recompute.
		}
	}

	e.emit(ProgressEvent{EntityID: in.Profile.ID, Channel: cp.Channel, Stage: "normalize"})

	res, err := e.registry.Normalize(cp.Provider, cp.Payload, ingest.Query{
		EntityID: in.Profile.ID,
		Channel:  cp.Channel,
		Country:  in.Profile.Country,
	})
	if err != nil {
		log.Printf("insight: channel %s for %s dropped: %v", cp.Channel, in.Profile.ID, err)
		e.emit(ProgressEvent{EntityID: in.Profile.ID, Channel: cp.Channel, Stage: "failed", Err: err.Error()})
		return ca
	}

	switch res.Kind() {
	case ingest.PayloadTimeSeries:
		e.analyzeSeries(ca, res.Series)
	case ingest.PayloadSearchResults:
		for i := range res.Results.Results {
			r := &res.Results.Results[i]
			if r.Kind == "" {
				r.Kind = relevance.ClassifyKind(r.Title)
			}
		}
		qctx := relevance.QueryContext{Entity: in.Profile, Now: now}
		ca.Relevance = relevance.ScoreSet(res.Results, qctx, e.opts.Relevance)
		ca.Status = models.StatusOK
	}

	e.emit(ProgressEvent{EntityID: in.Profile.ID, Channel: cp.Channel, Stage: "analyzed"})

	if e.cache != nil && cp.DateRange != "" && ca.Status != models.StatusMissing {
		if payload, err := json.Marshal(ca); err == nil {
			e.cache.Set(ctx, key, payload, e.opts.CacheTTL)
		}
	}
	return ca
}

// analyzeSeries runs the trend stages over one canonical series. A
// short or gappy series degrades to incomplete rather than failing;
// whatever stages still apply are kept.
func (e *Engine) analyzeSeries(ca *ChannelAnalytics, ts *models.TimeSeries) {
	sm, err := trend.Smooth(ts, e.opts.Trend)
	switch {
	case sm == nil:
		// Too little history to smooth; change stats need even more.
		ca.Status = models.StatusIncomplete
		log.Printf("insight: channel %s for %s degraded: %v", ts.Channel, ts.EntityID, err)
		return
	case err != nil:
		ca.Status = models.StatusIncomplete
	default:
		ca.Status = models.StatusOK
	}
	ca.Smoothed = sm

	if fc, err := trend.Forecast(sm, e.opts.Forecast); err == nil {
		ca.Forecast = fc
	}

	profile := seasonality.Detect(sm, e.opts.Seasonality)
	ca.Seasonality = &profile

	if changes, err := trend.Changes(ts); err == nil {
		ca.Changes = changes
	}

	// A calendar profile only means something once the series spans
	// more than one month.
	if monthly := seasonality.Monthly(ts); len(monthly.Months) > 1 {
		ca.Monthly = &monthly
	}
	ca.Volatility = trend.Volatility(sm.Values)
}

// detectStars normalizes the sub-entity series and flags statistically
// significant spikes across them. Malformed or short sub-series are
// skipped; they cannot affect siblings.
func (e *Engine) detectStars(in EntityInput) []models.Anomaly {
	if len(in.SubEntities) == 0 {
		return nil
	}

	series := make(map[string]*models.SmoothedSeries, len(in.SubEntities))
	for _, sub := range in.SubEntities {
		res, err := e.registry.Normalize(sub.Provider, sub.Payload, ingest.Query{
			EntityID: sub.SubEntityID,
			Channel:  models.ChannelTrends,
			Country:  in.Profile.Country,
		})
		if err != nil || res.Series == nil {
			log.Printf("insight: sub-entity %s under %s skipped: %v", sub.SubEntityID, in.Profile.ID, err)
			continue
		}
		sm, err := trend.Smooth(res.Series, e.opts.Trend)
		if sm == nil {
			log.Printf("insight: sub-entity %s under %s skipped: %v", sub.SubEntityID, in.Profile.ID, err)
			continue
		}
		series[sub.SubEntityID] = sm
	}
	if len(series) == 0 {
		return nil
	}
	return anomaly.DetectSpikes(series, e.opts.Anomaly)
}

// sortedChannels returns the analytics keys in display order so fusion
// output is deterministic.
func sortedChannels(analytics map[models.Channel]*ChannelAnalytics) []models.Channel {
	order := make(map[models.Channel]int, len(models.AllChannels))
	for i, ch := range models.AllChannels {
		order[ch] = i
	}
	chs := make([]models.Channel, 0, len(analytics))
	for ch := range analytics {
		chs = append(chs, ch)
	}
	sort.Slice(chs, func(i, j int) bool {
		oi, iok := order[chs[i]]
		oj, jok := order[chs[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return chs[i] < chs[j]
	})
	return chs
}
