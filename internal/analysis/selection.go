package analysis

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/romanasp/campari/internal/catalog"
	"github.com/romanasp/campari/internal/conf"
	"github.com/romanasp/campari/internal/errors"
	"github.com/romanasp/campari/internal/logger"
	"github.com/romanasp/campari/internal/survey"
)

// SelectionRequest picks source IDs from one catalog shard.
type SelectionRequest struct {
	Shard int
	// Class is a catalog class name such as "SN" or "star"; empty keeps all.
	Class string
	// MinMag and MaxMag are inclusive peak magnitude limits; NaN is open.
	MinMag float64
	MaxMag float64
}

// SelectSources writes the IDs of the sources matching in to out, one per
// line, and returns them.
func SelectSources(ctx context.Context, settings *conf.Settings, in SelectionRequest, out io.Writer) ([]int64, error) {
	filter := catalog.SourceFilter{ShardID: in.Shard, MinMag: in.MinMag, MaxMag: in.MaxMag}
	if in.Class != "" {
		class, err := survey.ParseObjectClass(in.Class)
		if err != nil {
			return nil, err
		}
		filter.Class = class
	}

	store, err := catalog.OpenSQLStore(conf.ExpandPath(settings.Catalog.Path), settings.CatalogOptions())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close catalog", logger.Error(err))
		}
	}()

	ids, err := store.SelectSourceIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := catalog.WriteSourceIDs(out, ids); err != nil {
		return nil, err
	}
	log.Info("source list written",
		logger.Int("shard", in.Shard),
		logger.String("class", string(filter.Class)),
		logger.Int("sources", len(ids)))
	return ids, nil
}

// CreateOutput creates path and its directory for writing.
func CreateOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-output").
			Context("path", path).
			Build()
	}
	f, err := os.Create(path) //nolint:gosec // G304: path is a user-supplied output file
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-output").
			Context("path", path).
			Build()
	}
	return f, nil
}
