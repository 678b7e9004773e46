// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// SyslogConfig configures an optional remote syslog mirror for the core's
// structured log stream.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns the disabled-by-default syslog configuration.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "nat64d",
		Facility: 1,
	}
}

// SyslogWriter is a logrus.Hook that forwards formatted records to a remote
// syslog collector over UDP or TCP.
type SyslogWriter struct {
	conn     net.Conn
	tag      string
	facility int
}

// NewSyslogWriter dials the configured syslog collector and returns a hook
// ready to be installed with logging.AddHook.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host must not be empty")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "nat64d"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := net.DialTimeout(cfg.Protocol, addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog %s: %w", addr, err)
	}

	return &SyslogWriter{conn: conn, tag: cfg.Tag, facility: cfg.Facility}, nil
}

// Levels reports that the hook fires for every level; severity mapping
// happens in Fire.
func (w *SyslogWriter) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire writes a single RFC 3164-shaped line to the syslog collector.
func (w *SyslogWriter) Fire(entry *logrus.Entry) error {
	severity := severityFor(entry.Level)
	priority := w.facility*8 + severity
	line := fmt.Sprintf("<%d>%s %s: %s\n", priority, entry.Time.Format(time.Stamp), w.tag, entry.Message)
	_, err := w.conn.Write([]byte(line))
	return err
}

// Close releases the underlying transport.
func (w *SyslogWriter) Close() error {
	return w.conn.Close()
}

func severityFor(level logrus.Level) int {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return 2 // critical
	case logrus.ErrorLevel:
		return 3 // error
	case logrus.WarnLevel:
		return 4 // warning
	case logrus.InfoLevel:
		return 6 // informational
	default:
		return 7 // debug
	}
}
