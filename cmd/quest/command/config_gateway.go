package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

type GatewayConfig struct {
	Address string `json:"address"`
}

func (c *GatewayConfig) Validate() error {
	el := errors.NewErrorList()

	if c.Address == "" {
		el.Add(fmt.Errorf("address is required"))
	}

	return el.Err()
}
