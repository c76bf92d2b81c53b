package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fortuna/aurora/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Strength score weights
const (
	HomeIceBonus   = 0.08
	GoalDiffScale  = 100.0
	GoalDiffCap    = 0.15
	VenueFormCap   = 0.10
	lowConfidence  = 0.30
	highConfidence = 0.60
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrNotScheduled     = errors.New("game is not scheduled")
	ErrAlreadyPredicted = errors.New("game already has a prediction")
)

// TeamStatsSource provides aggregated team statistics
type TeamStatsSource interface {
	TeamStats(ctx context.Context, teamID int64) (*TeamStats, error)
}

// PredictionListener is told about predictions after they are committed
type PredictionListener interface {
	PredictionCreated(ctx context.Context, p *store.Prediction)
	PredictionEvaluated(ctx context.Context, p *store.Prediction)
}

// PredictionService picks winners for scheduled games and scores them later
type PredictionService struct {
	repo      store.Repository
	stats     TeamStatsSource
	listeners []PredictionListener
	logger    *logrus.Logger
	now       func() time.Time
}

// NewPredictionService creates a new prediction service
func NewPredictionService(repo store.Repository, stats TeamStatsSource, logger *logrus.Logger) *PredictionService {
	return &PredictionService{
		repo:   repo,
		stats:  stats,
		logger: logger,
		now:    time.Now,
	}
}

// WithListener registers a listener for prediction events
func (s *PredictionService) WithListener(l PredictionListener) *PredictionService {
	s.listeners = append(s.listeners, l)
	return s
}

// TeamStrengthScore rates a team from its aggregated stats. The base is the
// points percentage; home ice, goal differential and venue form adjust it.
func TeamStrengthScore(stats *TeamStats, isHome bool) float64 {
	score := stats.PointsPercentage
	if isHome {
		score += HomeIceBonus
	}

	score += clamp(float64(stats.GoalDifferential)/GoalDiffScale, GoalDiffCap)

	venue := stats.Away
	if isHome {
		venue = stats.Home
	}
	score += clamp(venue.PointsPercentage()-stats.PointsPercentage, VenueFormCap)

	return score
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// Predict stores a winner pick for a scheduled game. Confidence is the gap
// between the two strength scores; equal scores pick the home team. With
// force an existing prediction is replaced.
func (s *PredictionService) Predict(ctx context.Context, gameID int64, force bool) (*store.Prediction, error) {
	game, err := s.repo.GetGame(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("game %d: %w", gameID, ErrGameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching game: %w", err)
	}
	if game.State != store.StateScheduled {
		return nil, fmt.Errorf("game %d is %s: %w", gameID, game.State, ErrNotScheduled)
	}
	if !force {
		_, err := s.repo.GetPredictionByGame(ctx, gameID)
		switch {
		case err == nil:
			return nil, fmt.Errorf("game %d: %w", gameID, ErrAlreadyPredicted)
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("checking existing prediction: %w", err)
		}
	}

	homeStats, err := s.stats.TeamStats(ctx, game.HomeTeamID)
	if err != nil {
		return nil, fmt.Errorf("home team stats: %w", err)
	}
	awayStats, err := s.stats.TeamStats(ctx, game.AwayTeamID)
	if err != nil {
		return nil, fmt.Errorf("away team stats: %w", err)
	}

	homeScore := TeamStrengthScore(homeStats, true)
	awayScore := TeamStrengthScore(awayStats, false)

	prediction := &store.Prediction{
		GameID:            gameID,
		PredictedWinnerID: game.HomeTeamID,
		Confidence:        math.Abs(homeScore - awayScore),
		CreatedAt:         s.now().UTC(),
	}
	if awayScore > homeScore {
		prediction.PredictedWinnerID = game.AwayTeamID
	}

	err = s.repo.InTx(ctx, func(tx store.Repository) error {
		_, err := tx.GetPredictionByGame(ctx, gameID)
		switch {
		case err == nil && !force:
			return fmt.Errorf("game %d: %w", gameID, ErrAlreadyPredicted)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}

		if force {
			if _, err := tx.DeletePredictionsByGame(ctx, gameID); err != nil {
				return err
			}
		}
		return tx.InsertPrediction(ctx, prediction)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"game_id":    gameID,
		"home_score": homeScore,
		"away_score": awayScore,
		"winner":     prediction.PredictedWinnerID,
		"confidence": prediction.Confidence,
		"forced":     force,
	}).Info("Stored prediction")

	for _, l := range s.listeners {
		l.PredictionCreated(ctx, prediction)
	}
	return prediction, nil
}

// BatchResult summarises a PredictAllScheduled run
type BatchResult struct {
	Date        string              `json:"date"`
	Predicted   int                 `json:"predicted"`
	Skipped     int                 `json:"skipped"`
	Failed      int                 `json:"failed"`
	Predictions []*store.Prediction `json:"predictions"`
}

// PredictAllScheduled predicts every scheduled game on date. Games that
// already have a prediction are skipped and failures are counted; neither
// stops the batch.
func (s *PredictionService) PredictAllScheduled(ctx context.Context, date string, force bool) (*BatchResult, error) {
	games, err := s.repo.ListGamesByDateAndState(ctx, date, store.StateScheduled)
	if err != nil {
		return nil, fmt.Errorf("fetching scheduled games for %s: %w", date, err)
	}

	result := &BatchResult{Date: date, Predictions: []*store.Prediction{}}
	for _, game := range games {
		p, err := s.Predict(ctx, game.GameID, force)
		switch {
		case err == nil:
			result.Predicted++
			result.Predictions = append(result.Predictions, p)
		case errors.Is(err, ErrNotScheduled), errors.Is(err, ErrAlreadyPredicted):
			result.Skipped++
		default:
			result.Failed++
			s.logger.WithError(err).WithField("game_id", game.GameID).Warn("Prediction failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"date":      date,
		"predicted": result.Predicted,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Info("Predicted scheduled games")
	return result, nil
}

// EvaluationSummary reports one EvaluatePending pass
type EvaluationSummary struct {
	Evaluated  int     `json:"evaluated"`
	Correct    int     `json:"correct"`
	Wrong      int     `json:"wrong"`
	Unresolved int     `json:"unresolved"`
	Accuracy   float64 `json:"accuracy"`
}

// EvaluatePending scores every unevaluated prediction whose game is final
// with a winner, in one transaction. Final games without a winner stay pending.
func (s *PredictionService) EvaluatePending(ctx context.Context) (*EvaluationSummary, error) {
	summary := &EvaluationSummary{}
	var evaluated []*store.Prediction

	err := s.repo.InTx(ctx, func(tx store.Repository) error {
		pending, err := tx.ListPendingEvaluations(ctx)
		if err != nil {
			return err
		}

		for _, item := range pending {
			p := item.Prediction
			if !item.WinnerID.Valid {
				summary.Unresolved++
				s.logger.WithField("game_id", p.GameID).Warn("Final game has no winner, leaving prediction pending")
				continue
			}

			correct := p.PredictedWinnerID == item.WinnerID.Int64
			if err := tx.SetPredictionCorrect(ctx, p.PredictionID, correct); err != nil {
				return err
			}
			p.Correct.Bool, p.Correct.Valid = correct, true
			evaluated = append(evaluated, p)

			if correct {
				summary.Correct++
			} else {
				summary.Wrong++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("evaluating predictions: %w", err)
	}

	summary.Evaluated = summary.Correct + summary.Wrong
	summary.Accuracy = accuracyPercent(summary.Correct, summary.Evaluated)

	s.logger.WithFields(logrus.Fields{
		"evaluated":  summary.Evaluated,
		"correct":    summary.Correct,
		"unresolved": summary.Unresolved,
	}).Info("Evaluated predictions")

	for _, p := range evaluated {
		for _, l := range s.listeners {
			l.PredictionEvaluated(ctx, p)
		}
	}
	return summary, nil
}

// ConfidenceBucket is the accuracy of predictions within a confidence band
type ConfidenceBucket struct {
	Level    string  `json:"level"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// ConfidenceReport groups evaluated predictions by confidence band
type ConfidenceReport struct {
	Total    int                `json:"total"`
	Correct  int                `json:"correct"`
	Accuracy float64            `json:"accuracy"`
	Buckets  []ConfidenceBucket `json:"buckets"`
}

// ConfidenceLevel names the band a confidence falls in
func ConfidenceLevel(confidence float64) string {
	switch {
	case confidence < lowConfidence:
		return "low"
	case confidence < highConfidence:
		return "medium"
	default:
		return "high"
	}
}

// ConfidenceBreakdown reports accuracy per confidence band over all evaluated
// predictions. Bands without predictions are omitted.
func (s *PredictionService) ConfidenceBreakdown(ctx context.Context) (*ConfidenceReport, error) {
	predictions, err := s.repo.ListEvaluatedPredictions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching evaluated predictions: %w", err)
	}

	levels := []string{"low", "medium", "high"}
	byLevel := make(map[string]*ConfidenceBucket, len(levels))
	for _, level := range levels {
		byLevel[level] = &ConfidenceBucket{Level: level}
	}

	report := &ConfidenceReport{Buckets: []ConfidenceBucket{}}
	for _, p := range predictions {
		bucket := byLevel[ConfidenceLevel(p.Confidence)]
		bucket.Total++
		report.Total++
		if p.Correct.Bool {
			bucket.Correct++
			report.Correct++
		}
	}

	for _, level := range levels {
		bucket := byLevel[level]
		if bucket.Total == 0 {
			continue
		}
		bucket.Accuracy = accuracyPercent(bucket.Correct, bucket.Total)
		report.Buckets = append(report.Buckets, *bucket)
	}
	report.Accuracy = accuracyPercent(report.Correct, report.Total)

	return report, nil
}

// accuracyPercent returns correct/total as a percentage rounded to one decimal
func accuracyPercent(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1)
	return pct.InexactFloat64()
}
