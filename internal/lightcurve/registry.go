package lightcurve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
)

// Artifact records a light curve written to disk.
type Artifact struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"type:varchar(36);index:idx_artifacts_run"`
	SourceID  int64  `gorm:"uniqueIndex:idx_artifacts_key"`
	Band      string `gorm:"type:varchar(8);uniqueIndex:idx_artifacts_key"`
	Label     string `gorm:"uniqueIndex:idx_artifacts_key"`
	Path      string
	Points    int
	Detected  int
	CreatedAt time.Time
}

func (Artifact) TableName() string { return "lightcurve_artifacts" }

// NewRunID returns a fresh identifier for a pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

// Registry indexes written light curves in SQLite. Writes are serialised
// so batch workers can share one registry.
type Registry struct {
	db *gorm.DB
	mu sync.Mutex
}

// OpenRegistry opens or creates the registry database at path.
func OpenRegistry(path string, slowThreshold time.Duration) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioError(err, path, "open_registry")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormAdapter(log.Module("db"), slowThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open registry database: %w", err)).
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}
	if err := db.AutoMigrate(&Artifact{}); err != nil {
		return nil, errors.New(fmt.Errorf("registry migration failed: %w", err)).
			Category(errors.CategoryDatabase).
			Context("operation", "migrate_registry").
			Build()
	}
	return &Registry{db: db}, nil
}

// Record stores the artifact for lc written at path, replacing any earlier
// record of the same source, band and label.
func (r *Registry) Record(ctx context.Context, runID string, lc *Curve, path string) (*Artifact, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, errors.Newf("invalid run id %q: %v", runID, err).
			Category(errors.CategoryValidation).
			Build()
	}
	a := &Artifact{
		RunID:     runID,
		SourceID:  lc.SourceID,
		Band:      string(lc.Band),
		Label:     lc.Label,
		Path:      path,
		Points:    lc.Len(),
		CreatedAt: time.Now().UTC(),
	}
	for _, p := range lc.Points {
		if p.Detected {
			a.Detected++
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "band"}, {Name: "label"}},
		DoUpdates: clause.AssignmentColumns([]string{"run_id", "path", "points", "detected", "created_at"}),
	}).Create(a).Error
	if err != nil {
		return nil, dbError(err, "record_artifact")
	}
	return a, nil
}

// Lookup returns the artifact of a source, band and label.
func (r *Registry) Lookup(ctx context.Context, sourceID int64, band survey.Band, label string) (*Artifact, error) {
	var a Artifact
	err := r.db.WithContext(ctx).
		Where("source_id = ? AND band = ? AND label = ?", sourceID, string(band), label).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Newf("no light curve recorded for source %d in %s with label %q", sourceID, band, label).
			Category(errors.CategoryNotFound).
			SourceContext(sourceID, string(band)).
			Build()
	}
	if err != nil {
		return nil, dbError(err, "lookup_artifact")
	}
	return &a, nil
}

// Run lists the artifacts written by one run, ordered by source.
func (r *Registry) Run(ctx context.Context, runID string) ([]Artifact, error) {
	var out []Artifact
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("source_id, band, label").
		Find(&out).Error
	if err != nil {
		return nil, dbError(err, "list_run")
	}
	return out, nil
}

func (r *Registry) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return dbError(err, "close_registry")
	}
	return sqlDB.Close()
}

func dbError(err error, op string) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}
