package config_test

import (
	"testing"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/config"
	"github.com/spf13/viper"
)

func TestSetDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	if got := viper.GetString("storage.driver"); got != "memory" {
		t.Errorf("storage.driver = %q, want memory", got)
	}
	if got := viper.GetDuration("hub.delivery_timeout"); got != 2*time.Second {
		t.Errorf("hub.delivery_timeout = %v, want 2s", got)
	}
	if got := viper.GetInt("hub.max_parallel"); got != 32 {
		t.Errorf("hub.max_parallel = %d, want 32", got)
	}
	if got := viper.GetDuration("ws.ping_interval"); got != 30*time.Second {
		t.Errorf("ws.ping_interval = %v, want 30s", got)
	}
	if got := viper.GetBool("events.relay.enabled"); got {
		t.Error("events.relay.enabled must default to false")
	}
	if got := viper.GetStringSlice("kafka.brokers"); len(got) != 1 || got[0] != "kafka:9092" {
		t.Errorf("kafka.brokers = %v", got)
	}
}

func TestSetDefaults_ConfigOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	viper.Set("hub.delivery_timeout", "750ms")
	viper.Set("storage.driver", "pebble")

	if got := viper.GetDuration("hub.delivery_timeout"); got != 750*time.Millisecond {
		t.Errorf("hub.delivery_timeout = %v, want 750ms", got)
	}
	if got := viper.GetString("storage.driver"); got != "pebble" {
		t.Errorf("storage.driver = %q, want pebble", got)
	}
}
