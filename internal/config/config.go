/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the feed handler's two configuration files: the
// exchange connection parameters, and the shared-memory metadata
// describing the instrument universe and ring sizing. Keeping them
// separate lets an operator roll the instrument set without touching
// exchange credentials, and vice versa.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// FeedConfig holds the exchange connection parameters.
type FeedConfig struct {
	URL      string   `mapstructure:"url"`
	Key      string   `mapstructure:"key"`
	Secret   string   `mapstructure:"secret"`
	Channels []string `mapstructure:"channels"`
}

// LoadFeedConfig reads the feed-handler connection config from path,
// applying FEEDHANDLER_-prefixed environment variable overrides.
func LoadFeedConfig(path string) (*FeedConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("FEEDHANDLER")
	v.AutomaticEnv()
	_ = v.BindEnv("url", "FEEDHANDLER_URL")
	_ = v.BindEnv("key", "FEEDHANDLER_KEY")
	_ = v.BindEnv("secret", "FEEDHANDLER_SECRET")
	_ = v.BindEnv("channels", "FEEDHANDLER_CHANNELS")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read feed config: %w", err)
	}

	var cfg FeedConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal feed config: %w", err)
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("channels must name at least one channel")
	}
	return &cfg, nil
}

// ShmMetadata describes the instrument universe and the shared-memory
// layout the writer task sizes its mmap'd regions against.
type ShmMetadata struct {
	OrderbookPath  string   `mapstructure:"orderbook_path"`
	TradeRingPath  string   `mapstructure:"trade_ring_path"`
	TradeRingSlots int      `mapstructure:"trade_ring_slots"`
	Instruments    []string `mapstructure:"instruments"`
}

// LoadShmMetadata reads shared-memory metadata from path.
func LoadShmMetadata(path string) (*ShmMetadata, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("orderbook_path", "/dev/shm/feedhandler_orderbook")
	v.SetDefault("trade_ring_path", "/dev/shm/feedhandler_trades")
	v.SetDefault("trade_ring_slots", 8192)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read shm metadata: %w", err)
	}

	var meta ShmMetadata
	if err := v.Unmarshal(&meta); err != nil {
		return nil, fmt.Errorf("unmarshal shm metadata: %w", err)
	}

	if len(meta.Instruments) == 0 {
		return nil, fmt.Errorf("instruments must name at least one instrument")
	}
	if meta.TradeRingSlots <= 0 || meta.TradeRingSlots&(meta.TradeRingSlots-1) != 0 {
		return nil, fmt.Errorf("trade_ring_slots must be a power of 2, got %d", meta.TradeRingSlots)
	}
	return &meta, nil
}
