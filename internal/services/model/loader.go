// Package model resolves and runs trained sequence models: JSON linear specs
// from disk and remote serving endpoints for exported Keras models.
package model

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"StockCast/internal/domain/models"
	domsvc "StockCast/internal/domain/service"
	"StockCast/pkg/logger"
)

var _ domsvc.ModelLoader = (*FileLoader)(nil)

// ErrNoServing is returned for a binary model file when no serving endpoint is configured.
var ErrNoServing = errors.New("model file needs a serving endpoint")

// FileLoader finds a model file per ticker. For each extension it tries, in
// order: {dir}/{T}_lstm_model{ext}, {dir}/lstm_model{ext},
// models/{T}_lstm_model{ext}, models/lstm_model{ext}.
// JSON files are decoded in process. Any other file is served by the remote
// endpoint under the file's base name.
type FileLoader struct {
	dir        string
	extensions []string
	remote     *HTTPServiceBase
	retries    int
	log        *logger.Logger
	stat       func(string) (os.FileInfo, error)
	open       func(string) (*os.File, error)
}

// LoaderOption configures FileLoader.
type LoaderOption func(*FileLoader)

func WithRemote(base *HTTPServiceBase, retries int) LoaderOption {
	return func(l *FileLoader) {
		l.remote = base
		l.retries = retries
	}
}

func WithLogger(log *logger.Logger) LoaderOption {
	return func(l *FileLoader) {
		if log != nil {
			l.log = log
		}
	}
}

func NewFileLoader(dir string, extensions []string, opts ...LoaderOption) *FileLoader {
	if len(extensions) == 0 {
		extensions = []string{".json"}
	}
	l := &FileLoader{
		dir:        dir,
		extensions: extensions,
		log:        logger.Nop(),
		stat:       os.Stat,
		open:       os.Open,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Candidates lists every path Locate checks, in order, without duplicates.
func (l *FileLoader) Candidates(ticker string) []string {
	dirs := []string{l.dir}
	if filepath.Clean(l.dir) != "models" {
		dirs = append(dirs, "models")
	}
	var out []string
	for _, ext := range l.extensions {
		for _, d := range dirs {
			out = append(out,
				filepath.Join(d, ticker+"_lstm_model"+ext),
				filepath.Join(d, "lstm_model"+ext),
			)
		}
	}
	return out
}

func (l *FileLoader) Locate(ticker string) (string, bool) {
	for _, p := range l.Candidates(ticker) {
		if fi, err := l.stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}

func (l *FileLoader) Load(ctx context.Context, ticker string) (domsvc.SequenceModel, string, error) {
	path, ok := l.Locate(ticker)
	if !ok {
		return nil, "", &models.ModelNotFoundError{Ticker: ticker, Searched: l.Candidates(ticker)}
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err := l.open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open model %s: %w", path, err)
		}
		defer f.Close()
		m, err := DecodeSpec(f)
		if err != nil {
			return nil, "", fmt.Errorf("model %s: %w", path, err)
		}
		l.log.Debug("model loaded", logger.String("ticker", ticker), logger.String("path", path))
		return m, filepath.Base(path), nil
	}

	if l.remote == nil || l.remote.BaseURL() == "" {
		return nil, "", fmt.Errorf("%s: %w", path, ErrNoServing)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	l.log.Debug("model served remotely",
		logger.String("ticker", ticker),
		logger.String("path", path),
		logger.String("endpoint", l.remote.BaseURL()),
	)
	return NewRemoteModel(l.remote, name, l.retries), filepath.Base(path), nil
}
