package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token         string        `env:"TOKEN,required,notEmpty"`
	DBPath        string        `env:"DB_PATH"          envDefault:"db.sqlite"`
	FetchSpec     string        `env:"FETCH_SPEC"       envDefault:"*/15 * * * *"`
	PostsOnNewSub int           `env:"POSTS_ON_NEW_SUB" envDefault:"5"`
	FeedTimeout   time.Duration `env:"FEED_TIMEOUT"     envDefault:"20s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}
