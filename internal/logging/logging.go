// Package logging wires a single *logrus.Logger the way core/wallet.go's
// SetWalletLogger/globalLogger pattern threads a logger through a package:
// one shared instance, set once at startup, read everywhere.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var root = logrus.New()

// Configure sets the root logger's level and output destination. Called
// once from cmd/feedctl at startup; an empty file path logs to stderr.
func Configure(level string, file string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	root.SetLevel(lvl)
	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var out io.Writer = os.Stderr
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		out = f
	}
	root.SetOutput(out)
	return nil
}

// Get returns the shared root logger.
func Get() *logrus.Logger {
	return root
}

// For returns a child entry tagged with a "component" field, the way server
// middleware and the sqlite backend each get their own tagged sub-logger.
func For(component string) *logrus.Entry {
	return root.WithField("component", component)
}
