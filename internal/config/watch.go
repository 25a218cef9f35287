package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch loads configPath and calls onChange with the re-read configuration
// whenever the file is written or replaced. Viper watches the directory, so
// editors that save via rename are picked up too.
//
// The returned Config is the initial one. onChange runs on Viper's watcher
// goroutine; a file that fails to decode is reported through err and the
// previous configuration should stay in effect.
func Watch(configPath string, onChange func(cfg *Config, err error)) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("watching config: no config file given")
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()

	return cfg, nil
}
