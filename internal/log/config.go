package log

// Level is the minimum severity emitted during a scan run.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the output encoding: text for interactive scans,
// json for scheduled runs whose output is shipped to a log collector.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config is the logging section of the configuration file.
type Config struct {
	Level  Level  `mapstructure:"level"`
	Format Format `mapstructure:"format"`
}

// DefaultConfig applies when the configuration file has no logging section.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatText,
	}
}
