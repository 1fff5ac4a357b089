package catalog

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/observability/metrics"
	"github.com/romanasp/campari/internal/survey"
)

// SourceRecord is the sources table.
type SourceRecord struct {
	ID       int64 `gorm:"primaryKey;autoIncrement:false"`
	ShardID  int   `gorm:"index:idx_sources_shard"`
	RA       float64
	Dec      float64
	Class    string `gorm:"type:varchar(16)"`
	StartMJD float64
	EndMJD   float64
	PeakMJD  float64
	HostRA   *float64
	HostDec  *float64
	PeakMag  *float64 `gorm:"index:idx_sources_mag"`
}

func (SourceRecord) TableName() string { return "sources" }

// ExposureRecord is the exposures table. Corners run in detector pixel order.
type ExposureRecord struct {
	ID       uint   `gorm:"primaryKey"`
	Pointing int    `gorm:"uniqueIndex:idx_exposures_key"`
	Detector int    `gorm:"uniqueIndex:idx_exposures_key"`
	Band     string `gorm:"type:varchar(8);index:idx_exposures_band"`
	MJD      float64
	Detected bool
	TrueFlux float64
	RA0      float64
	Dec0     float64
	RA1      float64
	Dec1     float64
	RA2      float64
	Dec2     float64
	RA3      float64
	Dec3     float64
}

func (ExposureRecord) TableName() string { return "exposures" }

// SQLOptions tunes an SQLStore.
type SQLOptions struct {
	CacheTTL      time.Duration // shard row cache lifetime; zero disables caching
	CacheCleanup  time.Duration // expired item sweep interval; zero never sweeps
	SlowThreshold time.Duration
	BatchSize     int
}

// SQLStore is a Store backed by SQLite through GORM. Shard reads go
// through a TTL cache, since every source in a batch reads its shard.
type SQLStore struct {
	db      *gorm.DB
	path    string
	cache   *cache.Cache
	opts    SQLOptions
	metrics metrics.CacheRecorder
}

// OpenSQLStore opens or creates the catalog database at path and migrates its schema.
func OpenSQLStore(path string, opts SQLOptions) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("operation", "open_catalog").
				Context("path", path).
				Build()
		}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	dbLog := logger.NewGormAdapter(log.Module("db"), opts.SlowThreshold)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: dbLog})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open catalog database: %w", err)).
			Category(errors.CategoryDatabase).
			Context("operation", "open_catalog").
			Context("path", path).
			Build()
	}

	start := time.Now()
	if err := db.AutoMigrate(&SourceRecord{}, &ExposureRecord{}); err != nil {
		return nil, errors.New(fmt.Errorf("catalog migration failed: %w", err)).
			Category(errors.CategoryDatabase).
			Context("operation", "migrate_catalog").
			Build()
	}
	log.Debug("catalog database ready",
		logger.String("path", path),
		logger.Duration("migration_duration", time.Since(start)))

	s := &SQLStore{db: db, path: path, opts: opts, metrics: metrics.NoopRecorder{}}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, opts.CacheCleanup)
	}
	return s, nil
}

// SetRecorder reports shard cache hits and misses to r.
func (s *SQLStore) SetRecorder(r metrics.CacheRecorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.metrics = r
}

func (s *SQLStore) ShardIndex(ctx context.Context) ([]ShardIndex, error) {
	var rows []struct {
		ID      int64
		ShardID int
	}
	err := s.db.WithContext(ctx).Model(&SourceRecord{}).
		Select("id", "shard_id").
		Order("shard_id, id").
		Find(&rows).Error
	if err != nil {
		return nil, s.dbError(err, "shard_index")
	}

	var out []ShardIndex
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].ID != r.ShardID {
			out = append(out, ShardIndex{ID: r.ShardID})
		}
		last := &out[len(out)-1]
		last.SourceIDs = append(last.SourceIDs, r.ID)
	}
	return out, nil
}

func (s *SQLStore) ReadShard(ctx context.Context, shardID int) ([]SourceRow, error) {
	key := fmt.Sprintf("shard:%d", shardID)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			s.metrics.RecordCacheLookup(metrics.CacheShard, true)
			return v.([]SourceRow), nil
		}
		s.metrics.RecordCacheLookup(metrics.CacheShard, false)
	}

	var recs []SourceRecord
	if err := s.db.WithContext(ctx).Where("shard_id = ?", shardID).Order("id").Find(&recs).Error; err != nil {
		return nil, s.dbError(err, "read_shard")
	}
	if len(recs) == 0 {
		return nil, errors.Newf("shard %d does not exist", shardID).
			Category(errors.CategoryNotFound).
			Context("operation", "read_shard").
			Build()
	}

	rows := make([]SourceRow, len(recs))
	for i, r := range recs {
		rows[i] = r.row()
	}
	if s.cache != nil {
		s.cache.SetDefault(key, rows)
	}
	return rows, nil
}

func (s *SQLStore) TileFootprints(ctx context.Context, band survey.Band) ([]survey.Exposure, error) {
	var recs []ExposureRecord
	err := s.db.WithContext(ctx).
		Where("band = ?", string(band)).
		Order("mjd, pointing, detector").
		Find(&recs).Error
	if err != nil {
		return nil, s.dbError(err, "tile_footprints")
	}
	out := make([]survey.Exposure, len(recs))
	for i, r := range recs {
		out[i] = r.exposure()
	}
	return out, nil
}

// PutSources upserts catalog rows and invalidates the shard cache.
func (s *SQLStore) PutSources(ctx context.Context, rows []SourceRow) error {
	if len(rows) == 0 {
		return nil
	}
	recs := make([]SourceRecord, len(rows))
	for i, r := range rows {
		if r.ShardID == 0 {
			r.ShardID = ShardFor(r.RA, r.Dec)
		}
		recs[i] = sourceRecord(r)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(&recs, s.opts.BatchSize).Error
	if err != nil {
		return s.dbError(err, "put_sources")
	}
	if s.cache != nil {
		s.cache.Flush()
	}
	return nil
}

// PutExposures upserts tiling rows keyed by pointing and detector.
func (s *SQLStore) PutExposures(ctx context.Context, exposures []survey.Exposure) error {
	if len(exposures) == 0 {
		return nil
	}
	recs := make([]ExposureRecord, len(exposures))
	for i, e := range exposures {
		recs[i] = exposureRecord(e)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pointing"}, {Name: "detector"}},
			UpdateAll: true,
		}).
		CreateInBatches(&recs, s.opts.BatchSize).Error
	if err != nil {
		return s.dbError(err, "put_exposures")
	}
	return nil
}

// Counts returns the number of stored sources and exposures.
func (s *SQLStore) Counts(ctx context.Context) (sources, exposures int64, err error) {
	if err = s.db.WithContext(ctx).Model(&SourceRecord{}).Count(&sources).Error; err != nil {
		return 0, 0, s.dbError(err, "count_sources")
	}
	if err = s.db.WithContext(ctx).Model(&ExposureRecord{}).Count(&exposures).Error; err != nil {
		return 0, 0, s.dbError(err, "count_exposures")
	}
	return sources, exposures, nil
}

func (s *SQLStore) Close() error {
	if s.cache != nil {
		s.cache.Flush()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.dbError(err, "close")
	}
	return sqlDB.Close()
}

func (s *SQLStore) dbError(err error, op string) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Context("path", s.path).
		Build()
}

func sourceRecord(r SourceRow) SourceRecord {
	rec := SourceRecord{
		ID:       r.ID,
		ShardID:  r.ShardID,
		RA:       r.RA,
		Dec:      r.Dec,
		Class:    string(r.Class),
		StartMJD: r.Start,
		EndMJD:   r.End,
		PeakMJD:  r.Peak,
	}
	if !math.IsNaN(r.HostRA) && !math.IsNaN(r.HostDec) {
		ra, dec := r.HostRA, r.HostDec
		rec.HostRA, rec.HostDec = &ra, &dec
	}
	if !math.IsNaN(r.PeakMag) {
		mag := r.PeakMag
		rec.PeakMag = &mag
	}
	return rec
}

func (r SourceRecord) row() SourceRow {
	row := SourceRow{
		ID:      r.ID,
		ShardID: r.ShardID,
		RA:      r.RA,
		Dec:     r.Dec,
		Class:   survey.ObjectClass(r.Class),
		Start:   r.StartMJD,
		End:     r.EndMJD,
		Peak:    r.PeakMJD,
		HostRA:  math.NaN(),
		HostDec: math.NaN(),
		PeakMag: math.NaN(),
	}
	if r.HostRA != nil && r.HostDec != nil {
		row.HostRA, row.HostDec = *r.HostRA, *r.HostDec
	}
	if r.PeakMag != nil {
		row.PeakMag = *r.PeakMag
	}
	return row
}

func exposureRecord(e survey.Exposure) ExposureRecord {
	c := e.Footprint.Corners
	return ExposureRecord{
		Pointing: e.Pointing,
		Detector: e.Detector,
		Band:     string(e.Band),
		MJD:      e.MJD,
		Detected: e.Detected,
		TrueFlux: e.TrueFlux,
		RA0:      c[0].RA,
		Dec0:     c[0].Dec,
		RA1:      c[1].RA,
		Dec1:     c[1].Dec,
		RA2:      c[2].RA,
		Dec2:     c[2].Dec,
		RA3:      c[3].RA,
		Dec3:     c[3].Dec,
	}
}

func (r ExposureRecord) exposure() survey.Exposure {
	return survey.Exposure{
		Pointing: r.Pointing,
		Detector: r.Detector,
		Band:     survey.Band(r.Band),
		MJD:      r.MJD,
		Detected: r.Detected,
		TrueFlux: r.TrueFlux,
		Footprint: survey.Footprint{Corners: [4]survey.SkyCoord{
			{RA: r.RA0, Dec: r.Dec0},
			{RA: r.RA1, Dec: r.Dec1},
			{RA: r.RA2, Dec: r.Dec2},
			{RA: r.RA3, Dec: r.Dec3},
		}},
	}
}
