package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// NewViper returns the configuration read from the flags, environment and config
// file bound to viper. The configuration is validated, and the output directory
// is created if profiling is enabled.
func NewViper() (*Config, error) {
	cfg := &Config{
		UID:               viper.GetString("uid"),
		Peers:             viper.GetStringMapString("peers"),
		Listen:            viper.GetString("listen"),
		Quorum:            viper.GetInt("quorum"),
		Leader:            viper.GetString("leader"),
		Propose:           viper.GetString("propose"),
		HeartbeatPeriod:   viper.GetDuration("heartbeat-period"),
		HeartbeatTimeout:  viper.GetDuration("heartbeat-timeout"),
		PrepareWindow:     viper.GetDuration("prepare-window"),
		PollInterval:      viper.GetDuration("poll-interval"),
		ResendInterval:    viper.GetDuration("resend-interval"),
		BackoffMultiplier: viper.GetFloat64("backoff-multiplier"),
		BackoffMax:        viper.GetDuration("backoff-max"),
		EventBuffer:       viper.GetUint("event-buffer"),
		SaveTimeout:       viper.GetDuration("save-timeout"),
		Store:             viper.GetString("store"),
		StorePath:         viper.GetString("store-path"),
		EtcdEndpoints:     viper.GetStringSlice("etcd-endpoints"),
		EtcdPrefix:        viper.GetString("etcd-prefix"),
		EtcdDialTimeout:   viper.GetDuration("etcd-dial-timeout"),
		RateLimit:         viper.GetFloat64("rate-limit"),
		RateBurst:         viper.GetInt("rate-burst"),
		DialTimeout:       viper.GetDuration("connect-timeout"),
		RetryDelay:        viper.GetDuration("retry-delay"),
		QueueSize:         viper.GetInt("queue-size"),
		MaxMessageSize:    viper.GetInt("max-message-size"),
		TLSCert:           viper.GetString("tls-cert"),
		TLSKey:            viper.GetString("tls-key"),
		TLSCA:             viper.GetString("tls-ca"),
		LogLevel:          viper.GetString("log-level"),
		Output:            viper.GetString("output"),
		CPUProfile:        viper.GetBool("cpu-profile"),
		MemProfile:        viper.GetBool("mem-profile"),
		Trace:             viper.GetBool("trace"),
		FgprofProfile:     viper.GetBool("fgprof-profile"),
	}

	if cfg.Store == StoreFile && cfg.StorePath == "" && cfg.UID != "" {
		cfg.StorePath = fmt.Sprintf("paxos-%s.log", cfg.UID)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var err error
	if cfg.Output != "" {
		cfg.Output, err = filepath.Abs(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %v", err)
		}

		err = os.MkdirAll(cfg.Output, 0o755)
		if err != nil {
			return nil, fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	return cfg, nil
}
