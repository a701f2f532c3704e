package insight

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/abralabs/abra/pkg/models"
)

// Comparison ranks a set of entities analyzed under identical settings
// in the same run, so their overall scores are directly comparable.
type Comparison struct {
	RunID        string                  `json:"run_id"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Records      []*models.InsightRecord `json:"records"` // input order
	Leader       string                  `json:"leader,omitempty"`
	FastestRiser string                  `json:"fastest_riser,omitempty"`
}

// Compare analyzes every input and summarizes who leads on overall
// score and who is rising fastest month over month. Entities whose
// record ended up unusable still appear in Records but never in the
// summary fields.
func (e *Engine) Compare(ctx context.Context, inputs []EntityInput) (*Comparison, error) {
	records, err := e.AnalyzeBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Records:     records,
	}
	if len(records) > 0 && !inputs[0].Now.IsZero() {
		cmp.GeneratedAt = inputs[0].Now
	}

	var bestScore, bestRise float64
	for _, rec := range records {
		if rec.OverallScore != nil && (cmp.Leader == "" || *rec.OverallScore > bestScore) {
			cmp.Leader = rec.EntityID
			bestScore = *rec.OverallScore
		}
		if c := rec.Trend.Changes; c != nil && (cmp.FastestRiser == "" || c.MonthChange > bestRise) {
			cmp.FastestRiser = rec.EntityID
			bestRise = c.MonthChange
		}
	}
	return cmp, nil
}
