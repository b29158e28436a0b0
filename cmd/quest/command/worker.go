package command

import (
	"context"
	"fmt"
	"time"

	"github.com/pixil98/go-quest/internal/gateway"
	"github.com/pixil98/go-quest/internal/messaging"
	"github.com/pixil98/go-quest/internal/session"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	// Create the embedded messaging server
	natsServer, err := cfg.Nats.BuildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	// Create the session store
	store, err := cfg.Storage.BuildStore(context.Background())
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	// Create the definition loader
	loader, err := cfg.Content.BuildLoader()
	if err != nil {
		return nil, fmt.Errorf("creating definition loader: %w", err)
	}

	var ttl time.Duration
	if cfg.SessionTTL != "" {
		ttl, err = time.ParseDuration(cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("parsing session_ttl: %w", err)
		}
	}

	var sweepInterval time.Duration
	if cfg.SweepInterval != "" {
		sweepInterval, err = time.ParseDuration(cfg.SweepInterval)
		if err != nil {
			return nil, fmt.Errorf("parsing sweep_interval: %w", err)
		}
	}

	// Wire the session service around the engine
	svc := session.NewService(loader, store, messaging.NewQuestPublisher(natsServer), ttl)

	// Create a worker list
	return service.WorkerList{
		"nats":    natsServer,
		"gateway": gateway.New(cfg.Gateway.Address, svc, natsServer),
		"sweeper": session.NewSweeper(svc, sweepInterval),
	}, nil
}
