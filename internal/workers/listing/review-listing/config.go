package reviewlisting

import "time"

// Config bounds a single review job, database round trips included.
type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}
