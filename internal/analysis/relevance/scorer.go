// Package relevance scores the attention value of discrete search
// results from keyword overlap, channel weight and recency decay.
// Every factor is normalized to [0,1] before weighting so the factor
// map always explains which signal drove the score.
package relevance

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/abralabs/abra/pkg/models"
)

// Config holds the scoring tunables. Factor weights must sum to 1.
type Config struct {
	KeywordWeight   float64
	ChannelWeight   float64
	RecencyWeight   float64
	RecencyHalfLife time.Duration
	ChannelBase     map[models.Channel]float64
	TopK            int
}

// DefaultConfig returns the calibration defaults. Editorial channels
// carry a higher base weight than shopping or video.
func DefaultConfig() Config {
	return Config{
		KeywordWeight:   0.5,
		ChannelWeight:   0.3,
		RecencyWeight:   0.2,
		RecencyHalfLife: 7 * 24 * time.Hour,
		ChannelBase: map[models.Channel]float64{
			models.ChannelWeb:      1.0,
			models.ChannelNews:     0.85,
			models.ChannelTrends:   0.75,
			models.ChannelVideo:    0.7,
			models.ChannelShopping: 0.6,
		},
		TopK: 10,
	}
}

// QueryContext carries the entity being scored against and the clock
// reference for recency decay. Now is explicit so runs are repeatable.
type QueryContext struct {
	Entity models.EntityProfile
	Now    time.Time
}

// Keywords returns the canonical name plus category keywords, name first
// so it counts among the high-importance terms.
func (q QueryContext) Keywords() []string {
	kws := make([]string, 0, len(q.Entity.Keywords)+1)
	if q.Entity.Name != "" {
		kws = append(kws, q.Entity.Name)
	}
	kws = append(kws, q.Entity.Keywords...)
	return kws
}

// importantKeywords is how many leading keywords earn the match bonus.
const importantKeywords = 5

// matchBonus is added to the keyword factor when one of the leading
// keywords matches, mirroring the radar's +20-points rule.
const matchBonus = 0.2

// Score rates one result. The returned score is always in [0,1] and the
// weighted contributions in Factors sum to it within float tolerance.
func Score(result models.SearchResult, qctx QueryContext, cfg Config) models.RelevanceScore {
	if cfg.KeywordWeight+cfg.ChannelWeight+cfg.RecencyWeight == 0 {
		cfg = DefaultConfig()
	}

	kind := result.Kind
	if kind == "" {
		kind = ClassifyKind(result.Title)
	}

	text := strings.ToLower(result.Title + " " + result.Snippet)

	kw := keywordFactor(text, qctx.Keywords())
	ch := channelFactor(result.Channel, cfg)
	rc := recencyFactor(result.ObservedAt, qctx.Now, cfg.RecencyHalfLife)

	factors := map[string]float64{
		"keyword_match":  cfg.KeywordWeight * kw,
		"channel_weight": cfg.ChannelWeight * ch,
		"recency":        cfg.RecencyWeight * rc,
	}

	score := factors["keyword_match"] + factors["channel_weight"] + factors["recency"]
	score = clip01(score)

	return models.RelevanceScore{
		ResultURL: result.URL,
		Kind:      kind,
		Score:     score,
		Factors:   factors,
	}
}

// ScoreSet scores every result in the set.
func ScoreSet(set *models.SearchResultSet, qctx QueryContext, cfg Config) []models.RelevanceScore {
	scores := make([]models.RelevanceScore, 0, len(set.Results))
	for _, r := range set.Results {
		scores = append(scores, Score(r, qctx, cfg))
	}
	return scores
}

// TopKMean returns the mean score of the k best results. Fewer than k
// results average over what exists.
func TopKMean(scores []models.RelevanceScore, k int) float64 {
	if len(scores) == 0 || k <= 0 {
		return 0
	}
	sorted := make([]float64, len(scores))
	for i, s := range scores {
		sorted[i] = s.Score
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if k > len(sorted) {
		k = len(sorted)
	}
	sum := 0.0
	for _, v := range sorted[:k] {
		sum += v
	}
	return sum / float64(k)
}

func keywordFactor(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 1 // nothing to filter against, everything is relevant
	}
	matched := 0
	important := false
	for i, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			matched++
			if i < importantKeywords {
				important = true
			}
		}
	}
	f := float64(matched) / float64(len(keywords))
	if important {
		f += matchBonus
	}
	return clip01(f)
}

func channelFactor(ch models.Channel, cfg Config) float64 {
	if w, ok := cfg.ChannelBase[ch]; ok {
		return clip01(w)
	}
	return 0.5
}

// recencyFactor halves with every half-life of age. An unknown
// observation time scores neutral rather than stale.
func recencyFactor(observed, now time.Time, halfLife time.Duration) float64 {
	if observed.IsZero() || halfLife <= 0 {
		return 0.5
	}
	age := now.Sub(observed)
	if age <= 0 {
		return 1
	}
	return clip01(math.Exp(-math.Ln2 * age.Hours() / halfLife.Hours()))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// questionWords flag results phrased as questions, in the markets the
// radar serves (English and Spanish).
var questionWords = []string{
	"what", "how", "where", "when", "why", "which", "who",
	"qué", "cuál", "cómo", "dónde", "cuándo", "quién", "por qué",
}

// ClassifyKind tags a result title as a question or an attribute query.
func ClassifyKind(title string) models.ResultKind {
	lower := strings.ToLower(title)
	for _, w := range questionWords {
		if strings.Contains(lower, w) {
			return models.KindQuestion
		}
	}
	return models.KindAttribute
}
