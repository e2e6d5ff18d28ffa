package config

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Level returns the logrus level named by LogLevel. An empty level means
// info.
func (c Config) Level() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, fmt.Errorf("unknown log-level: %w", err)
	}
	return lvl, nil
}

// NewLogger returns a logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
		TimestampFormat:  "15:04:05",
	})

	if lvl, err := c.Level(); err == nil {
		l.SetLevel(lvl)
	}
	return logrus.NewEntry(l)
}
