// Package field composes the field client runtime shared by sightctl and
// sighttui: profile lock, durable local store, connectivity tracking, the
// real-time channel, the offline cache transport and the sync engine.
package field

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/sightings/internal/api"
	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/config"
	"github.com/matheus3301/sightings/internal/lock"
	"github.com/matheus3301/sightings/internal/offlinecache"
	"github.com/matheus3301/sightings/internal/outbox"
	"github.com/matheus3301/sightings/internal/profile"
	"github.com/matheus3301/sightings/internal/realtime"
	"github.com/matheus3301/sightings/internal/status"
	"github.com/matheus3301/sightings/internal/store"
	intsync "github.com/matheus3301/sightings/internal/sync"
	"go.uber.org/zap"
)

const installTimeout = 30 * time.Second

// Options configures Open.
type Options struct {
	Profile string
	Config  *config.Client
	Logger  *zap.Logger
	// Presence overrides the network presence probe. Nil uses the OS
	// interface list.
	Presence status.PresenceFunc
}

// Runtime is an opened field client. Exported fields are safe to use until
// Close.
type Runtime struct {
	Profile string
	Config  *config.Client
	Logger  *zap.Logger

	Bus        *bus.Bus
	Store      *store.Store
	Tracker    *status.Tracker
	Channel    *realtime.Client
	Cache      *offlinecache.Worker
	API        *api.Client
	Reconciler *intsync.Reconciler
	Engine     *intsync.Engine
	Composer   *outbox.Composer

	lock    *lock.Lock
	watcher *status.Watcher
	cancel  context.CancelFunc
}

// Open locks the profile and starts every background component. The store
// opens asynchronously; the first reconciliation pass runs once it is ready.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultClient()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := profile.EnsureDir(opts.Profile); err != nil {
		return nil, fmt.Errorf("prepare profile %s: %w", opts.Profile, err)
	}
	wsURL, err := realtime.ChannelURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	lk, err := lock.Acquire(profile.Dir(opts.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("profile", opts.Profile), zap.String("path", lk.Path()))

	b := bus.New()
	st := store.New(profile.StorePath(opts.Profile), logger.Named("store"))
	tracker := status.NewTracker(b)
	watcher := status.NewWatcher(tracker, opts.Presence, cfg.NetProbeInterval.Duration, logger)

	channel := realtime.NewClient(realtime.ClientConfig{
		URL:       wsURL,
		BaseDelay: cfg.Reconnect.BaseDelay.Duration,
		MaxDelay:  cfg.Reconnect.MaxDelay.Duration,
	}, logger.Named("channel"))
	channel.OnConnected(tracker.TransportConnected)
	channel.OnDisconnected(func(error) { tracker.TransportDisconnected() })

	worker := offlinecache.New(offlinecache.Config{
		Name:     cfg.Cache.Name,
		BaseURL:  cfg.ServerURL,
		Precache: cfg.Cache.Precache,
	}, st, nil, logger.Named("cache"))
	client := api.NewClient(cfg.ServerURL, worker, cfg.RequestTimeout.Duration)

	rec := intsync.NewReconciler(st, client, channel, tracker, b,
		intsync.Options{AckedMessageFlush: cfg.AckedMessageFlush}, logger.Named("sync"))
	engine := intsync.NewEngine(rec, b, logger.Named("sync"))
	composer := outbox.NewComposer(st, channel, tracker, engine, b, 0, logger)

	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt := &Runtime{
		Profile:    opts.Profile,
		Config:     cfg,
		Logger:     logger,
		Bus:        b,
		Store:      st,
		Tracker:    tracker,
		Channel:    channel,
		Cache:      worker,
		API:        client,
		Reconciler: rec,
		Engine:     engine,
		Composer:   composer,
		lock:       lk,
		watcher:    watcher,
		cancel:     cancel,
	}

	st.OnReady(func(err error) {
		if err != nil {
			return
		}
		engine.Trigger()
		go rt.installCache(rctx)
	})

	engine.Start(rctx)
	composer.Start(rctx)
	watcher.Start(rctx)
	st.Start()
	channel.Start(rctx)
	return rt, nil
}

func (r *Runtime) installCache(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()
	if err := r.Cache.Install(ctx); err != nil {
		r.Logger.Debug("response cache install incomplete", zap.Error(err))
	}
	if err := r.Cache.Activate(ctx); err != nil {
		r.Logger.Warn("response cache activate", zap.Error(err))
	}
}

// WaitReady blocks until the local store has opened.
func (r *Runtime) WaitReady(ctx context.Context) error {
	select {
	case <-r.Store.Ready():
		return r.Store.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitOnline blocks until the tracker reports ONLINE or ctx ends. It reports
// whether the client is online on return.
func (r *Runtime) WaitOnline(ctx context.Context) bool {
	ch, unsub := r.Bus.Subscribe(status.KindChanged, 8)
	defer unsub()
	for !r.Tracker.Online() {
		select {
		case <-ch:
		case <-ctx.Done():
			return r.Tracker.Online()
		}
	}
	return true
}

// Close stops every component in reverse start order and releases the
// profile lock.
func (r *Runtime) Close() error {
	r.Channel.Stop()
	r.watcher.Stop()
	r.Composer.Stop()
	r.Engine.Stop()
	r.cancel()
	var errs []error
	if err := r.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := r.lock.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release lock: %w", err))
	}
	return errors.Join(errs...)
}
