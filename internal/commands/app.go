package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ledgerline-dev/ledgerline/internal/config"
	"github.com/ledgerline-dev/ledgerline/internal/eventlog"
	"github.com/ledgerline-dev/ledgerline/internal/ledger"
	"github.com/ledgerline-dev/ledgerline/internal/logging"
	"github.com/ledgerline-dev/ledgerline/internal/server"
	"github.com/ledgerline-dev/ledgerline/internal/syncclient"
)

// app wires one full stack: config, server core over the event log, and a
// client replica talking to it over the in-process loopback transport.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	log    *eventlog.Log
	core   *server.Core
	queue  *syncclient.Queue
	ledger *ledger.Ledger
	client *syncclient.Client
}

func openApp(ctx context.Context, dir string) (*app, error) {
	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}

	log, err := eventlog.Open(cfg.Server.Database)
	if err != nil {
		return nil, err
	}

	core, err := server.New(log, eventlog.NewBroker(), logger)
	if err != nil {
		log.Close()
		return nil, err
	}

	queue, err := syncclient.OpenQueue(cfg.Client.Database)
	if err != nil {
		log.Close()
		return nil, err
	}

	led := ledger.New()
	clientID, err := queue.ClientID(ctx)
	if err != nil {
		queue.Close()
		log.Close()
		return nil, err
	}

	sess := server.Session{User: cfg.User, ClientID: clientID, Workspace: cfg.Workspace}
	client, err := syncclient.New(ctx, queue, led, syncclient.NewLoopback(core, sess), logger)
	if err != nil {
		queue.Close()
		log.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, log: log, core: core, queue: queue, ledger: led, client: client}
	if err := a.bootstrap(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// bootstrap rebuilds the in-memory replica by replaying the full event
// history for the user, own events included.
func (a *app) bootstrap(ctx context.Context) error {
	events, err := a.log.Replay(ctx, a.cfg.User)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := a.ledger.HandleEvent(ev); err != nil {
			return fmt.Errorf("replaying event %s: %w", ev.Type, err)
		}
	}
	return nil
}

func (a *app) Close() {
	a.queue.Close()
	a.log.Close()
	_ = a.logger.Sync()
}
