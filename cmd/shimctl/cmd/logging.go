package cmd

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-drift/embedshim/cmd/shimctl/internal/config"
	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/shim"
)

// newLogger builds the process logger from resolved config. Logs go to
// stderr so stdout stays machine-readable.
func newLogger(r *config.Resolved) (*zap.Logger, error) {
	var zc zap.Config
	if r.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(r.LogLevel)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// installLogger routes shim and error-report logging through l.
func installLogger(l *zap.Logger) {
	shim.SetLogger(l)
	shimerrors.SetLogger(l.Named("errors"))
}
