// Package publish hands finished briefs to external channels. The core never
// renders HTML or subject lines; it emits structured BriefData and each
// Publisher decides what to do with it.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/marketbrief/marketbrief/pkg/models"
)

// Publisher delivers a finished brief to one channel.
type Publisher interface {
	// Name identifies the channel for logging.
	Name() string

	// Publish delivers the brief. Implementations must be safe to call with
	// an empty picks list (a no-picks day is still a brief).
	Publish(ctx context.Context, brief *models.BriefData) error
}

// LogPublisher writes a summary of the brief to the application log. It is
// the default channel in development and a safety net in production: even
// when every external channel is down, the day's picks are on record.
type LogPublisher struct {
	log *zap.Logger
}

// NewLogPublisher creates a log-backed publisher.
func NewLogPublisher(log *zap.Logger) *LogPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(ctx context.Context, brief *models.BriefData) error {
	fields := []zap.Field{
		zap.Time("date", brief.Date),
		zap.Int("picks", len(brief.Picks)),
		zap.Int("closed_today", len(brief.ClosedToday)),
		zap.Float64("win_rate", brief.Performance.WinRate),
	}
	for _, pick := range brief.Picks {
		p.log.Info("brief pick",
			zap.String("ticker", pick.Ticker),
			zap.Float64("last_price", pick.LastPrice),
			zap.Float64("confidence", pick.Confidence),
			zap.Int("quality", pick.DataQualityScore),
			zap.String("trend", pick.TrendSymbol))
	}
	p.log.Info("brief published", fields...)
	return nil
}

// FilePublisher writes each brief as a dated JSON file, forming the archive
// the API serves and external renderers consume.
type FilePublisher struct {
	dir string
	log *zap.Logger
}

// NewFilePublisher creates a publisher writing to the given directory.
func NewFilePublisher(dir string, log *zap.Logger) *FilePublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &FilePublisher{dir: dir, log: log}
}

func (p *FilePublisher) Name() string { return "file" }

func (p *FilePublisher) Publish(ctx context.Context, brief *models.BriefData) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create brief directory: %w", err)
	}

	path := filepath.Join(p.dir, brief.Date.Format("2006-01-02")+".json")
	data, err := json.MarshalIndent(brief, "", "  ")
	if err != nil {
		return fmt.Errorf("encode brief: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write brief: %w", err)
	}

	p.log.Info("brief written", zap.String("path", path), zap.Int("picks", len(brief.Picks)))
	return nil
}

// Multi fans a brief out to several publishers. Channel failures are
// collected, not short-circuited: one dead channel must not silence the rest.
type Multi struct {
	publishers []Publisher
	log        *zap.Logger
}

// NewMulti creates a fan-out publisher.
func NewMulti(log *zap.Logger, publishers ...Publisher) *Multi {
	if log == nil {
		log = zap.NewNop()
	}
	return &Multi{publishers: publishers, log: log}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Publish(ctx context.Context, brief *models.BriefData) error {
	var failed int
	var lastErr error
	for _, pub := range m.publishers {
		if err := pub.Publish(ctx, brief); err != nil {
			failed++
			lastErr = err
			m.log.Error("publish channel failed",
				zap.String("channel", pub.Name()),
				zap.Error(err))
		}
	}
	if failed == len(m.publishers) && failed > 0 {
		return fmt.Errorf("all %d publish channels failed: %w", failed, lastErr)
	}
	return nil
}
