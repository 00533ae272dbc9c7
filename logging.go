package aspen

import (
	"time"

	"go.uber.org/zap"
)

// Operation names a profile lifecycle step.
type Operation string

const (
	OpCompose Operation = "compose"
	OpLoad    Operation = "load"
	OpSave    Operation = "save"
)

// OperationEvent describes a finished profile operation.
type OperationEvent struct {
	Op         Operation
	Profile    string
	Path       string
	Properties int
	Duration   time.Duration
	Err        error
}

// Logger records profile operations.
type Logger interface {
	LogOperation(OperationEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(OperationEvent)

// LogOperation implements Logger.
func (f LoggerFunc) LogOperation(event OperationEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogOperation(OperationEvent) {}

// WithLogger attaches an operation logger to the provider.
func WithLogger(logger Logger) Option {
	return func(cfg *providerConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// EvaluatorLogEvent describes one expression run: a check constraint during a
// load or a call to Provider.Evaluate.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Property string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records expression runs.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// WithEvaluatorLogger attaches a logger for expression runs. ZapLogger
// satisfies both Logger and EvaluatorLogger.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *providerConfig) {
		if logger == nil {
			cfg.evaluatorLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evaluatorLogger = logger
	}
}

// ZapLogger writes operation and evaluation events to a zap logger. Failures
// are logged at warn level.
type ZapLogger struct {
	L *zap.Logger
}

// NewZapLogger wraps l; a nil logger becomes zap.NewNop.
func NewZapLogger(l *zap.Logger) ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return ZapLogger{L: l.Named("aspen")}
}

func (z ZapLogger) LogOperation(event OperationEvent) {
	if z.L == nil {
		return
	}
	fields := []zap.Field{
		zap.String("profile", event.Profile),
		zap.String("path", event.Path),
		zap.Int("properties", event.Properties),
		zap.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		z.L.Warn(string(event.Op)+" failed", append(fields, zap.Error(event.Err))...)
		return
	}
	z.L.Debug(string(event.Op), fields...)
}

func (z ZapLogger) LogEvaluation(event EvaluatorLogEvent) {
	if z.L == nil {
		return
	}
	fields := []zap.Field{
		zap.String("engine", event.Engine),
		zap.String("expr", event.Expr),
		zap.String("property", event.Property),
		zap.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		z.L.Warn("evaluation failed", append(fields, zap.Error(event.Err))...)
		return
	}
	z.L.Debug("evaluation", fields...)
}
