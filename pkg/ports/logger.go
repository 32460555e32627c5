package ports

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	// LevelDebug includes per-frame and subprocess detail.
	LevelDebug LogLevel = iota
	// LevelInfo reports run-level progress.
	LevelInfo
	// LevelWarn reports recoverable problems, like a skipped frame.
	LevelWarn
	// LevelError reports problems that end the run.
	LevelError
	// LevelQuiet suppresses all output.
	LevelQuiet
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "quiet":
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger is the logging surface the pipeline writes to. Message
// strings are translation keys; adapters run them through the lexicon
// before formatting.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger whose messages carry the given
	// component prefix, for attributing debug output to one stage.
	WithComponent(component string) Logger
}
