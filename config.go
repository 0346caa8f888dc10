package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brutella/hap"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
)

const (
	defaultPollInterval   = 300
	defaultPort           = 2000
	defaultAutoResetDelay = 5
	defaultTimeout        = 3000
	defaultHTTPMethod     = "GET"
)

var (
	ErrNoAPIRoute = errors.New("apiroute is required")
	ErrInvalidPin = errors.New("invalid homekit pin")
)

// Config mirrors the homebridge-web-window accessory options, plus the
// settings this bridge needs to run standalone.
type Config struct {
	Name           string `mapstructure:"name" yaml:"name"`
	APIRoute       string `mapstructure:"apiroute" yaml:"apiroute"`
	PollInterval   int    `mapstructure:"pollInterval" yaml:"pollInterval"`
	Port           int    `mapstructure:"port" yaml:"port"`
	AutoReset      bool   `mapstructure:"autoReset" yaml:"autoReset"`
	AutoResetDelay int    `mapstructure:"autoResetDelay" yaml:"autoResetDelay"`
	Username       string `mapstructure:"username" yaml:"username,omitempty"`
	Password       string `mapstructure:"password" yaml:"password,omitempty"`
	Timeout        int    `mapstructure:"timeout" yaml:"timeout"`
	HTTPMethod     string `mapstructure:"http_method" yaml:"http_method"`

	Manufacturer string `mapstructure:"manufacturer" yaml:"manufacturer"`
	Serial       string `mapstructure:"serial" yaml:"serial"`
	Model        string `mapstructure:"model" yaml:"model"`
	Firmware     string `mapstructure:"firmware" yaml:"firmware"`

	HomeKit HomeKitConfig `mapstructure:"homekit" yaml:"homekit"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type HomeKitConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	Pin string `mapstructure:"pin" yaml:"pin,omitempty"`
}

type MQTTConfig struct {
	URL   string `mapstructure:"url" yaml:"url,omitempty"`
	Topic string `mapstructure:"topic" yaml:"topic"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
}

func (c *Config) PollPeriod() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

func (c *Config) ResetDelay() time.Duration {
	return time.Duration(c.AutoResetDelay) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "Window")
	v.SetDefault("apiroute", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("serial", "")
	v.SetDefault("firmware", "")
	v.SetDefault("pollInterval", defaultPollInterval)
	v.SetDefault("port", defaultPort)
	v.SetDefault("autoReset", false)
	v.SetDefault("autoResetDelay", defaultAutoResetDelay)
	v.SetDefault("timeout", defaultTimeout)
	v.SetDefault("http_method", defaultHTTPMethod)
	v.SetDefault("manufacturer", "webwindow")
	v.SetDefault("model", "webwindow")
	v.SetDefault("homekit.dir", "./db")
	v.SetDefault("homekit.pin", "")
	v.SetDefault("mqtt.url", "")
	v.SetDefault("mqtt.topic", "webwindow")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads configFile, or config.{json,yaml,toml} from the usual
// places when empty, on top of defaults and WEBWINDOW_* environment
// variables. A missing config file is fine as long as apiroute is set some
// other way.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("webwindow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.webwindow")
		v.AddConfigPath("/etc/webwindow/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.fixup(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) fixup() error {
	c.APIRoute = strings.TrimSuffix(strings.TrimSpace(c.APIRoute), "/")
	if c.APIRoute == "" {
		return ErrNoAPIRoute
	}

	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if c.AutoResetDelay <= 0 {
		c.AutoResetDelay = defaultAutoResetDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	c.HTTPMethod = strings.ToUpper(c.HTTPMethod)
	if c.HTTPMethod == "" {
		c.HTTPMethod = defaultHTTPMethod
	}

	if c.HomeKit.Pin != "" {
		pin := strings.ReplaceAll(strings.TrimSpace(c.HomeKit.Pin), "-", "")
		if len(pin) != 8 || strings.TrimLeft(pin, "0123456789") != "" {
			return fmt.Errorf("%w: %q must be 8 digits", ErrInvalidPin, c.HomeKit.Pin)
		}
		if hap.InvalidPins[pin] {
			return fmt.Errorf("%w: %q is not allowed by HomeKit", ErrInvalidPin, c.HomeKit.Pin)
		}
		c.HomeKit.Pin = pin
	}

	if c.Serial == "" {
		c.Serial = c.APIRoute
	}
	if c.Firmware == "" {
		c.Firmware = versioninfo.Version
	}

	return nil
}
