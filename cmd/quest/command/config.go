package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

type Config struct {
	SessionTTL    string        `json:"session_ttl"`
	SweepInterval string        `json:"sweep_interval"`
	Nats          NatsConfig    `json:"nats"`
	Storage       StorageConfig `json:"storage"`
	Content       ContentConfig `json:"content"`
	Gateway       GatewayConfig `json:"gateway"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.SessionTTL != "" {
		d, err := time.ParseDuration(c.SessionTTL)
		if err != nil {
			el.Add(fmt.Errorf("parsing session_ttl: %w", err))
		} else if d < time.Minute {
			el.Add(fmt.Errorf("session_ttl must be at least 1 minute"))
		}
	}

	if c.SweepInterval != "" {
		_, err := time.ParseDuration(c.SweepInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing sweep_interval: %w", err))
		}
	}

	el.Add(c.Nats.Validate())
	el.Add(c.Storage.Validate())
	el.Add(c.Content.Validate())
	el.Add(c.Gateway.Validate())

	return el.Err()
}
