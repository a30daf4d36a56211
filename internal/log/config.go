package log

// Config controls the process logger.
type Config struct {
	Level   string          `mapstructure:"level"`
	Pattern string          `mapstructure:"pattern"`
	Time    string          `mapstructure:"time"`
	File    FileAppenderOpt `mapstructure:"file"`
}

// FileAppenderOpt configures the optional rotating file appender.
type FileAppenderOpt struct {
	Enabled    bool   `mapstructure:"enabled"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns console-only info-level logging.
func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Pattern: "%time [%level] %field %msg\n",
		Time:    "2006-01-02 15:04:05",
	}
}
