package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"accessory": "WebWindow",
		"name": "Bedroom Window",
		"apiroute": "http://192.168.1.50/"
	}`)

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "Bedroom Window", cfg.Name)
	assert.Equal(t, "http://192.168.1.50", cfg.APIRoute)
	assert.Equal(t, 300*time.Second, cfg.PollPeriod())
	assert.Equal(t, 2000, cfg.Port)
	assert.False(t, cfg.AutoReset)
	assert.Equal(t, 5*time.Second, cfg.ResetDelay())
	assert.Equal(t, 3000*time.Millisecond, cfg.RequestTimeout())
	assert.Equal(t, "GET", cfg.HTTPMethod)
	assert.Equal(t, "http://192.168.1.50", cfg.Serial)
	assert.Equal(t, versioninfo.Version, cfg.Firmware)
	assert.Equal(t, "./db", cfg.HomeKit.Dir)
	assert.Equal(t, "webwindow", cfg.MQTT.Topic)
	assert.Empty(t, cfg.MQTT.URL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_HomebridgeOptions(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"name": "Skylight",
		"apiroute": "https://skylight.local",
		"pollInterval": 60,
		"port": 2100,
		"autoReset": true,
		"autoResetDelay": 10,
		"username": "admin",
		"password": "secret",
		"timeout": 1500,
		"http_method": "post",
		"manufacturer": "ACME",
		"serial": "SN-1",
		"model": "Sky",
		"firmware": "1.2.3",
		"mqtt": {"url": "tcp://broker:1883", "topic": "home/skylight"}
	}`)

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.PollPeriod())
	assert.Equal(t, 2100, cfg.Port)
	assert.True(t, cfg.AutoReset)
	assert.Equal(t, 10*time.Second, cfg.ResetDelay())
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout())
	assert.Equal(t, "POST", cfg.HTTPMethod)
	assert.Equal(t, "ACME", cfg.Manufacturer)
	assert.Equal(t, "SN-1", cfg.Serial)
	assert.Equal(t, "Sky", cfg.Model)
	assert.Equal(t, "1.2.3", cfg.Firmware)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.URL)
	assert.Equal(t, "home/skylight", cfg.MQTT.Topic)
}

func TestLoadConfig_YAMLAndZeroValues(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
apiroute: http://window
pollInterval: 0
timeout: -1
log:
  level: debug
`)

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, defaultPollInterval, cfg.PollInterval)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_MissingAPIRoute(t *testing.T) {
	path := writeConfig(t, "config.json", `{"name": "Window"}`)

	_, err := LoadConfig(viper.New(), path)
	assert.ErrorIs(t, err, ErrNoAPIRoute)
}

func TestLoadConfig_HomeKitPin(t *testing.T) {
	tests := []struct {
		pin  string
		want string
		err  bool
	}{
		{"03145154", "03145154", false},
		{"031-45-154", "03145154", false},
		{"1234567", "", true},
		{"123456789", "", true},
		{"0314515a", "", true},
		{"12345678", "", true},
		{"000-00-000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.pin, func(t *testing.T) {
			path := writeConfig(t, "config.json", `{"apiroute": "http://window", "homekit": {"pin": "`+tt.pin+`"}}`)

			cfg, err := LoadConfig(viper.New(), path)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidPin)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.HomeKit.Pin)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("WEBWINDOW_APIROUTE", "http://from-env")
	t.Setenv("WEBWINDOW_MQTT_TOPIC", "env/topic")

	path := writeConfig(t, "config.json", `{"name": "Window"}`)

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env", cfg.APIRoute)
	assert.Equal(t, "env/topic", cfg.MQTT.Topic)
}
