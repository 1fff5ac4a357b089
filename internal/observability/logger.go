package observability

import "github.com/romanasp/campari/internal/logger"

var log = logger.Global().Module("telemetry")
