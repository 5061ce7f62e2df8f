// Copyright 2024 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scb

import (
	"os"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/scb/message"

	toml "github.com/pelletier/go-toml/v2"
)

// URL is the default base URL of the API. It may be overwritten in tests
// before creating a new Config.
var URL = "http://api.scb.se/OV0104/v1/doris"

// Config of the Client.
type Config struct {
	BaseURL     string `json:"base_url" toml:"base_url"` // default: URL
	Lang        string `json:"lang" toml:"lang" default:"sv" choices:"sv,en"`
	QueryLimit  int    `json:"query_limit" toml:"query_limit" default:"100000"`
	CallsPer10s int    `json:"calls_per_10s" toml:"calls_per_10s" default:"30"` // 0 = unlimited
}

var _ message.Message = &Config{}

// InitMessage implements message.Message.
func (c *Config) InitMessage(js any) error {
	if err := message.Init(c, js); err != nil {
		return errors.Annotate(err, "failed to init Config")
	}
	if c.BaseURL == "" {
		c.BaseURL = URL
	}
	return c.Check()
}

// Check the validity of the Config values.
func (c *Config) Check() error {
	if !message.StringIn(c.Lang, "sv", "en") {
		return errors.Reason("lang must be 'sv' or 'en', got '%s'", c.Lang)
	}
	if c.QueryLimit <= 0 {
		return errors.Reason("query_limit = %d must be > 0", c.QueryLimit)
	}
	if c.CallsPer10s < 0 {
		return errors.Reason("calls_per_10s = %d must be >= 0", c.CallsPer10s)
	}
	return nil
}

// NewConfig creates a Config with the default values.
func NewConfig() *Config {
	var c Config
	if err := c.InitMessage(map[string]any{}); err != nil {
		panic(errors.Annotate(err, "failed to init default Config"))
	}
	return &c
}

// ReadConfig reads a TOML config file, e.g.:
//
//	base_url = "http://api.scb.se/OV0104/v1/doris"
//	lang = "en"
//	query_limit = 100000
//	calls_per_10s = 30
//
// Absent keys keep their default values. A missing file results in the
// default Config when mustExist is false.
func ReadConfig(path string, mustExist bool) (*Config, error) {
	c := NewConfig()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return c, nil
		}
		return nil, errors.Annotate(err, "failed to open config file %s", path)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	d.DisallowUnknownFields()
	if err := d.Decode(c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", path)
	}
	if c.BaseURL == "" {
		c.BaseURL = URL
	}
	if err := c.Check(); err != nil {
		return nil, errors.Annotate(err, "invalid config file %s", path)
	}
	return c, nil
}
