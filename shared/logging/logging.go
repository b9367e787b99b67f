package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Setup sends log output to stdout and, when file is set, appends to that file too.
// The returned closer releases the file and is safe to call when no file was opened.
func Setup(level string, debug bool, file string) (io.Closer, error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nopCloser{}, errors.Wrapf(err, "invalid log level %q", level)
	}
	if debug {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)

	if file == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.SetOutput(os.Stdout)
		return nopCloser{}, errors.Wrapf(err, "failed to open log file %s", file)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
