package command

import (
	"context"
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-quest/internal/session"
)

type StorageDriver int

const (
	StorageDriverMemory StorageDriver = iota
	StorageDriverSqlite
)

func (d *StorageDriver) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "memory":
		*d = StorageDriverMemory
	case "sqlite":
		*d = StorageDriverSqlite
	default:
		return fmt.Errorf("unknown storage driver: %s", text)
	}
	return nil
}

type StorageConfig struct {
	Driver StorageDriver `json:"driver"`
	Path   string        `json:"path,omitempty"`
}

func (c *StorageConfig) Validate() error {
	el := errors.NewErrorList()

	if c.Driver == StorageDriverSqlite && c.Path == "" {
		el.Add(fmt.Errorf("path is required for the sqlite driver"))
	}

	return el.Err()
}

func (c *StorageConfig) BuildStore(ctx context.Context) (session.Store, error) {
	switch c.Driver {
	case StorageDriverMemory:
		return session.NewMemoryStore(), nil
	case StorageDriverSqlite:
		return session.OpenSqliteStore(ctx, c.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver: %v", c.Driver)
	}
}
