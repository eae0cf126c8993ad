// Package store persists published picks and their paper-trading positions
// in an embedded Badger database. Picks are immutable once saved; positions
// carry the only mutable state, and their close operation is a guarded
// transition so a terminal outcome can never be overwritten.
package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"

	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/pkg/models"
)

// Sentinel errors.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyClosed = errors.New("store: position already closed")
	ErrDuplicate     = errors.New("store: record already exists")
)

// Store wraps the badgerhold database.
type Store struct {
	db  *badgerhold.Store
	log *zap.Logger
}

// Open opens (or creates) the database at the configured path.
func Open(cfg config.StoreConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = cfg.Path
	options.ValueDir = cfg.Path
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.Path, err)
	}

	log.Debug("store opened", zap.String("path", cfg.Path))
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ── Picks ──

// SavePick persists a validated stock pick. Picks are append-only; saving an
// existing ID fails.
func (s *Store) SavePick(pick *models.ValidatedStock) error {
	err := s.db.Insert(pick.ID, pick)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return fmt.Errorf("%w: pick %s", ErrDuplicate, pick.ID)
	}
	if err != nil {
		return fmt.Errorf("save pick %s: %w", pick.ID, err)
	}
	return nil
}

// GetPick returns a pick by ID.
func (s *Store) GetPick(id string) (*models.ValidatedStock, error) {
	var pick models.ValidatedStock
	err := s.db.Get(id, &pick)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("%w: pick %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get pick %s: %w", id, err)
	}
	return &pick, nil
}

// ListPicks returns the most recent picks, newest first, up to limit.
// A non-positive limit returns everything.
func (s *Store) ListPicks(limit int) ([]models.ValidatedStock, error) {
	var picks []models.ValidatedStock
	if err := s.db.Find(&picks, nil); err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	sort.Slice(picks, func(i, j int) bool {
		return picks[i].PublishedAt.After(picks[j].PublishedAt)
	})
	if limit > 0 && len(picks) > limit {
		picks = picks[:limit]
	}
	return picks, nil
}

// PicksSince returns picks published on or after the given time, newest
// first. Serves the archive's date-ranged views.
func (s *Store) PicksSince(since time.Time) ([]models.ValidatedStock, error) {
	var picks []models.ValidatedStock
	if err := s.db.Find(&picks, badgerhold.Where("PublishedAt").Ge(since)); err != nil {
		return nil, fmt.Errorf("picks since %s: %w", since.Format("2006-01-02"), err)
	}
	sort.Slice(picks, func(i, j int) bool {
		return picks[i].PublishedAt.After(picks[j].PublishedAt)
	})
	return picks, nil
}

// PicksByTicker returns all picks for a ticker, newest first.
func (s *Store) PicksByTicker(ticker string) ([]models.ValidatedStock, error) {
	var picks []models.ValidatedStock
	if err := s.db.Find(&picks, badgerhold.Where("Ticker").Eq(ticker)); err != nil {
		return nil, fmt.Errorf("picks for %s: %w", ticker, err)
	}
	sort.Slice(picks, func(i, j int) bool {
		return picks[i].PublishedAt.After(picks[j].PublishedAt)
	})
	return picks, nil
}

// ── Positions ──

// OpenPosition creates the tracking position for a pick. Exactly one position
// exists per pick; the unique StockID index enforces the 1:1 link.
func (s *Store) OpenPosition(pos *models.Position) error {
	if pos.Outcome == "" {
		pos.Outcome = models.OutcomeOpen
	}
	pos.UpdatedAt = time.Now()
	err := s.db.Insert(pos.ID, pos)
	if errors.Is(err, badgerhold.ErrKeyExists) || errors.Is(err, badgerhold.ErrUniqueExists) {
		return fmt.Errorf("%w: position for pick %s", ErrDuplicate, pos.StockID)
	}
	if err != nil {
		return fmt.Errorf("open position %s: %w", pos.ID, err)
	}
	return nil
}

// GetPosition returns a position by ID.
func (s *Store) GetPosition(id string) (*models.Position, error) {
	var pos models.Position
	err := s.db.Get(id, &pos)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("%w: position %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}
	return &pos, nil
}

// PositionForPick returns the position linked to a pick ID.
func (s *Store) PositionForPick(stockID string) (*models.Position, error) {
	var positions []models.Position
	if err := s.db.Find(&positions, badgerhold.Where("StockID").Eq(stockID)); err != nil {
		return nil, fmt.Errorf("position for pick %s: %w", stockID, err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: position for pick %s", ErrNotFound, stockID)
	}
	return &positions[0], nil
}

// OpenPositions returns all positions still awaiting an outcome.
func (s *Store) OpenPositions() ([]models.Position, error) {
	var positions []models.Position
	if err := s.db.Find(&positions, badgerhold.Where("Outcome").Eq(models.OutcomeOpen).Index("Outcome")); err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].EntryDate.Before(positions[j].EntryDate)
	})
	return positions, nil
}

// ListPositions returns positions filtered by outcome. An empty outcome
// returns everything.
func (s *Store) ListPositions(outcome models.Outcome) ([]models.Position, error) {
	var positions []models.Position
	var query *badgerhold.Query
	if outcome != "" {
		query = badgerhold.Where("Outcome").Eq(outcome).Index("Outcome")
	}
	if err := s.db.Find(&positions, query); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].EntryDate.After(positions[j].EntryDate)
	})
	return positions, nil
}

// ClosePosition transitions an open position to a terminal outcome. The
// update is conditional: a position that already holds a terminal outcome is
// left untouched and ErrAlreadyClosed is returned, so two concurrent updaters
// can never double-close or flip a result.
func (s *Store) ClosePosition(id string, exit models.ExitReason, exitDate time.Time, exitPrice, returnPct float64) (*models.Position, error) {
	// A flat or negative return is a loss; only strictly positive wins.
	outcome := models.OutcomeLoss
	if returnPct > 0 {
		outcome = models.OutcomeWin
	}

	var closed *models.Position
	query := badgerhold.Where(badgerhold.Key).Eq(id).And("Outcome").Eq(models.OutcomeOpen)
	err := s.db.UpdateMatching(&models.Position{}, query, func(record interface{}) error {
		pos, ok := record.(*models.Position)
		if !ok {
			return fmt.Errorf("unexpected record type %T", record)
		}
		pos.Outcome = outcome
		pos.ExitDate = &exitDate
		pos.ExitPrice = exitPrice
		pos.ExitReason = exit
		pos.ReturnPercent = returnPct
		pos.UpdatedAt = time.Now()
		closed = pos
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("close position %s: %w", id, err)
	}

	// No row matched: either the ID is unknown or the position is already in
	// a terminal state. Read back to tell the two apart.
	if closed == nil {
		pos, err := s.GetPosition(id)
		if err != nil {
			return nil, err
		}
		return pos, fmt.Errorf("%w: %s is %s", ErrAlreadyClosed, id, pos.Outcome)
	}

	s.log.Info("position closed",
		zap.String("id", id),
		zap.String("ticker", closed.Ticker),
		zap.String("reason", string(exit)),
		zap.String("outcome", string(outcome)),
		zap.Float64("return_pct", returnPct))

	return closed, nil
}
