package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/attune-labs/attune-engine/internal/database"
	"github.com/attune-labs/attune-engine/internal/metrics"
)

const (
	// Understanding samples below this value earn a review point.
	reviewThreshold = 50.0
	// At most this many review points per session.
	maxReviewPoints = 3
	// Transcript lines within this window of a low moment give it context.
	reviewWindow = 10 * time.Second
)

// Store is the database surface the generator needs.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*database.SessionAPI, error)
	HasSummaryInsight(ctx context.Context, sessionID string) (bool, error)
	InsertInsight(ctx context.Context, row *database.InsightRow) (int64, error)
	SetSessionSummary(ctx context.Context, sessionID, summary string) error
	ListEventsByType(ctx context.Context, sessionID, eventType string) ([]database.SessionEventAPI, error)
	ListUnderstandingBelow(ctx context.Context, sessionID string, threshold float64, limit int) ([]database.SessionEventAPI, error)
	TranscriptsNear(ctx context.Context, sessionID string, t time.Time, window time.Duration) ([]database.SessionEventAPI, error)
}

// Generator produces all insights for a saved session. Generation is
// idempotent: a session that already has a summary is left untouched.
type Generator struct {
	store    Store
	provider Provider
	log      zerolog.Logger
}

// NewGenerator creates an insight generator.
func NewGenerator(store Store, provider Provider, log zerolog.Logger) *Generator {
	return &Generator{
		store:    store,
		provider: provider,
		log:      log.With().Str("component", "insight").Logger(),
	}
}

// Generate creates a summary, review points, and a suggestion for the
// session. It reports success as a bool only; failures are logged and never
// propagate to the caller's save path.
func (g *Generator) Generate(ctx context.Context, sessionID string) bool {
	log := g.log.With().Str("session_id", sessionID).Logger()

	done, err := g.store.HasSummaryInsight(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Msg("insight idempotence check failed")
		return false
	}
	if done {
		log.Debug().Msg("insights already generated, skipping")
		return true
	}

	session, err := g.store.GetSession(ctx, sessionID)
	if err != nil || session == nil {
		log.Error().Err(err).Msg("session lookup failed")
		return false
	}

	transcript, err := g.store.ListEventsByType(ctx, sessionID, database.EventTranscript)
	if err != nil {
		log.Error().Err(err).Msg("transcript load failed")
		return false
	}

	if !g.generateSummary(ctx, log, session, transcript) {
		return false
	}
	g.generateReviewPoints(ctx, log, session)
	g.generateSuggestion(ctx, log, session, transcript)
	return true
}

func (g *Generator) generateSummary(ctx context.Context, log zerolog.Logger, session *database.SessionAPI, transcript []database.SessionEventAPI) bool {
	text, err := g.provider.Generate(ctx, Request{
		Type:    database.InsightSummary,
		Context: fmt.Sprintf("Classroom session %q", session.Title),
		Data: map[string]any{
			"transcript":        joinTranscript(transcript),
			"attention_avg":     session.AttentionAvg,
			"understanding_avg": session.UnderstandingAvg,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("summary generation failed")
		return false
	}

	row := &database.InsightRow{SessionID: session.ID, Type: database.InsightSummary, Content: text}
	if _, err := g.store.InsertInsight(ctx, row); err != nil {
		log.Error().Err(err).Msg("summary insert failed")
		return false
	}
	if err := g.store.SetSessionSummary(ctx, session.ID, text); err != nil {
		log.Error().Err(err).Msg("session summary update failed")
	}
	metrics.InsightsGenerated.WithLabelValues(database.InsightSummary).Inc()
	return true
}

func (g *Generator) generateReviewPoints(ctx context.Context, log zerolog.Logger, session *database.SessionAPI) {
	lows, err := g.store.ListUnderstandingBelow(ctx, session.ID, reviewThreshold, maxReviewPoints)
	if err != nil {
		log.Error().Err(err).Msg("low understanding lookup failed")
		return
	}

	for _, low := range lows {
		nearby, err := g.store.TranscriptsNear(ctx, session.ID, low.Timestamp, reviewWindow)
		if err != nil {
			log.Warn().Err(err).Time("at", low.Timestamp).Msg("nearby transcript lookup failed")
			continue
		}

		value := 0.0
		if low.Value != nil {
			value = *low.Value
		}
		text, err := g.provider.Generate(ctx, Request{
			Type:    database.InsightReviewPoint,
			Context: fmt.Sprintf("Understanding dropped to %.0f during %q", value, session.Title),
			Data: map[string]any{
				"timestamp":  low.Timestamp.Format(time.RFC3339),
				"transcript": joinTranscript(nearby),
			},
		})
		if err != nil {
			log.Warn().Err(err).Time("at", low.Timestamp).Msg("review point generation failed")
			continue
		}

		meta, _ := json.Marshal(map[string]any{
			"timestamp":     low.Timestamp.Format(time.RFC3339),
			"understanding": value,
		})
		row := &database.InsightRow{
			SessionID: session.ID,
			Type:      database.InsightReviewPoint,
			Content:   text,
			Metadata:  meta,
		}
		if _, err := g.store.InsertInsight(ctx, row); err != nil {
			log.Warn().Err(err).Msg("review point insert failed")
			continue
		}
		metrics.InsightsGenerated.WithLabelValues(database.InsightReviewPoint).Inc()
	}
}

func (g *Generator) generateSuggestion(ctx context.Context, log zerolog.Logger, session *database.SessionAPI, transcript []database.SessionEventAPI) {
	text, err := g.provider.Generate(ctx, Request{
		Type:    database.InsightSuggestion,
		Context: fmt.Sprintf("Teaching suggestion for %q", session.Title),
		Data: map[string]any{
			"transcript":        joinTranscript(transcript),
			"attention_avg":     session.AttentionAvg,
			"understanding_avg": session.UnderstandingAvg,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("suggestion generation failed")
		return
	}

	row := &database.InsightRow{SessionID: session.ID, Type: database.InsightSuggestion, Content: text}
	if _, err := g.store.InsertInsight(ctx, row); err != nil {
		log.Warn().Err(err).Msg("suggestion insert failed")
		return
	}
	metrics.InsightsGenerated.WithLabelValues(database.InsightSuggestion).Inc()
}

func joinTranscript(events []database.SessionEventAPI) string {
	var lines []string
	for _, e := range events {
		if e.Content != nil && *e.Content != "" {
			lines = append(lines, *e.Content)
		}
	}
	return strings.Join(lines, "\n")
}
