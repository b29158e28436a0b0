package command

import (
	"fmt"
	"net/url"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-quest/internal/content"
)

type ContentConfig struct {
	BaseURL     string `json:"base_url"`
	CacheMaxAge string `json:"cache_max_age,omitempty"`
}

func (c *ContentConfig) Validate() error {
	el := errors.NewErrorList()

	if c.BaseURL == "" {
		el.Add(fmt.Errorf("base_url is required"))
	} else if _, err := url.Parse(c.BaseURL); err != nil {
		el.Add(fmt.Errorf("parsing base_url: %w", err))
	}

	if c.CacheMaxAge != "" {
		_, err := time.ParseDuration(c.CacheMaxAge)
		if err != nil {
			el.Add(fmt.Errorf("parsing cache_max_age: %w", err))
		}
	}

	return el.Err()
}

func (c *ContentConfig) BuildLoader() (*content.Loader, error) {
	var opts []content.LoaderOpt
	if c.CacheMaxAge != "" {
		d, err := time.ParseDuration(c.CacheMaxAge)
		if err != nil {
			return nil, fmt.Errorf("parsing cache_max_age: %w", err)
		}
		opts = append(opts, content.WithMaxAge(d))
	}

	return content.NewLoader(c.BaseURL, opts...), nil
}
