// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/cardinalhq/gcputil/pkg/bq"
	"github.com/cardinalhq/gcputil/pkg/gcpauth"
	"github.com/cardinalhq/gcputil/pkg/pubsub"
	"github.com/cardinalhq/gcputil/pkg/slack"
)

// Config aggregates configuration for the gcputil command.
type Config struct {
	Project                   string         `mapstructure:"project"`
	CredentialsFile           string         `mapstructure:"credentials_file"`
	ImpersonateServiceAccount string         `mapstructure:"impersonate_service_account"`
	BigQuery                  BigQueryConfig `mapstructure:"bigquery"`
	Storage                   StorageConfig  `mapstructure:"storage"`
	Slack                     SlackConfig    `mapstructure:"slack"`
	Trigger                   TriggerConfig  `mapstructure:"trigger"`
}

type BigQueryConfig struct {
	Location     string        `mapstructure:"location"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type StorageConfig struct {
	Location string `mapstructure:"location"`
}

type SlackConfig struct {
	Webhook string        `mapstructure:"webhook"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

type TriggerConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	ProjectEnv string        `mapstructure:"project_env"`
	TopicEnv   string        `mapstructure:"topic_env"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		BigQuery: BigQueryConfig{PollInterval: bq.DefaultPollInterval},
		Storage:  StorageConfig{Location: "US"},
		Slack:    SlackConfig{Timeout: slack.DefaultTimeout},
		Trigger: TriggerConfig{
			Timeout:    pubsub.DefaultTriggerTimeout,
			ProjectEnv: pubsub.DefaultProjectVar,
			TopicEnv:   pubsub.DefaultTopicVar,
		},
	}
}

// Load reads configuration from gcputil.yaml in the working directory and
// from environment variables. Environment variables use the prefix "GCPUTIL"
// and the dot character in keys is replaced by an underscore. For example,
// "bigquery.location" becomes "GCPUTIL_BIGQUERY_LOCATION".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("gcputil")
	v.AddConfigPath(".")
	v.SetEnvPrefix("GCPUTIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.BigQuery.PollInterval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("bigquery.poll_interval must be positive, got %s", c.BigQuery.PollInterval))
	}
	if c.Slack.Timeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("slack.timeout must be positive, got %s", c.Slack.Timeout))
	}
	if c.Slack.Retries < 0 {
		errs = multierror.Append(errs, fmt.Errorf("slack.retries must not be negative, got %d", c.Slack.Retries))
	}
	if c.Trigger.Timeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("trigger.timeout must be positive, got %s", c.Trigger.Timeout))
	}
	if c.Trigger.ProjectEnv == "" || c.Trigger.TopicEnv == "" {
		errs = multierror.Append(errs, errors.New("trigger.project_env and trigger.topic_env must be set"))
	}
	return errs.ErrorOrNil()
}

// Auth returns the credential settings for client construction.
func (c *Config) Auth() gcpauth.Config {
	return gcpauth.Config{
		CredentialsFile:           c.CredentialsFile,
		ImpersonateServiceAccount: c.ImpersonateServiceAccount,
	}
}

// TriggerEnv returns the variables RetriggerSelf reads.
func (c *Config) TriggerEnv() pubsub.TriggerEnv {
	return pubsub.TriggerEnv{ProjectVar: c.Trigger.ProjectEnv, TopicVar: c.Trigger.TopicEnv}
}

// TriggerOptions returns the ProcessTrigger settings, alerting through alerter
// when it is not nil.
func (c *Config) TriggerOptions(alerter pubsub.FailAlerter) pubsub.TriggerOptions {
	return pubsub.TriggerOptions{Timeout: c.Trigger.Timeout, Alerter: alerter}
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
