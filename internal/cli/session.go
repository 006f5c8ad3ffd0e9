package cli

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/linked/internal/config"
	"github.com/roach88/linked/internal/logger"
	"github.com/roach88/linked/internal/namespace"
	"github.com/roach88/linked/internal/store"
)

// session is the configuration, logger and open store a command uses.
type session struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store *store.Store
}

// openSession loads the configuration and opens the configured store.
// Failures are command errors.
func openSession(opts *RootOptions, f *OutputFormatter) (*session, error) {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, err)
	}
	base, err := cfg.Logger(opts.Verbose)
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, err)
	}

	resolver := namespace.NewResolver()
	cfg.Register(resolver)

	st, err := store.Open(cfg.Database.Path,
		store.WithLogger(logger.Component(base, "store")),
		store.WithResolver(resolver),
	)
	if err != nil {
		return nil, f.Fail(ErrCodeStore, errors.Wrapf(err, "open %s", cfg.Database.Path))
	}

	log := logger.Component(base, "cli")
	log.Debugw("store opened", "path", cfg.Database.Path)
	return &session{cfg: cfg, log: log, store: st}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.log.Warnw("close store", "error", err)
	}
	_ = s.log.Sync()
}
