package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/godaddy/asherah/go/securememory"
	"github.com/godaddy/asherah/go/securememory/memguard"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/keelann95/localvault"
	"github.com/keelann95/localvault/pkg/crypto/aead"
	"github.com/keelann95/localvault/pkg/keystorage"
	"github.com/keelann95/localvault/pkg/persistence"
)

type app struct {
	service *localvault.Service
	closers []func() error
}

func (a *app) Close() error {
	var first error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// newApp wires a Service from the global options. The returned app must be closed.
func newApp(ctx context.Context) (*app, error) {
	a := new(app)

	dir := opts.SessionDir
	if dir == "" {
		d, err := keystorage.DefaultDir()
		if err != nil {
			return nil, errors.Wrap(err, "no session directory, use --session-dir")
		}

		dir = d
	}

	storage, err := keystorage.NewFileStorage(dir)
	if err != nil {
		return nil, err
	}

	db, err := persistence.OpenDB(persistence.DBType(opts.Driver), opts.DSN)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, db.Close)

	store := persistence.NewSQLRecordStore(db,
		persistence.WithDBType(persistence.DBType(opts.Driver)),
		persistence.WithTableName(opts.Table),
	)

	if err := store.Open(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.service = localvault.NewService(
		localvault.NewKeyManager(storage, localvault.WithSecretFactory(new(memguard.SecretFactory))),
		localvault.NewCodec(aead.NewAES256GCM()),
		store,
		// optional step(s)
		localvault.WithMetrics(opts.Metrics),
	)

	a.closers = append(a.closers, a.service.Close)

	return a, nil
}

// withApp runs fn against a freshly wired app, cancelling its context on interrupt.
func withApp(fn func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)

	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}

	if opts.Metrics {
		PrintAllMetrics()
	}

	logger.Debug("run complete",
		zap.Int64("secrets.allocs", securememory.AllocCounter.Count()),
		zap.Int64("secrets.inuse", securememory.InUseCounter.Count()),
	)

	return runErr
}
