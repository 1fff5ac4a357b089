package analysis

import "github.com/romanasp/campari/internal/logger"

var log = logger.Global().Module("analysis")
