package common

import (
	"gopkg.in/ini.v1"
)

const StandardMaxDNSPacketSize = 512

var Config = &ConfigStruct{
	Service: &ServiceConfig{
		ListenAddr: "0.0.0.0:53",
	},
	Upstream: &UpstreamConfig{
		Forwarder: "8.8.8.8:53",
	},
	Cache: &CacheConfig{
		SnapshotFilePath: "dns_cache.yaml",
		SweepIntervalSec: 30,
	},
	Log: &LogConfig{
		LogFilePath:        "",
		LogFileMaxSizeKB:   16 * 1024,
		LogLevelForFile:    "info",
		LogLevelForConsole: "info",
	},
	Metrics: &MetricsConfig{
		Enable:     false,
		ListenAddr: "127.0.0.1:9253",
	},
	Advanced: &AdvancedConfig{
		UpstreamTimeoutMs:     5000,
		ListenerPollTimeoutMs: 1000,
		StopJoinTimeoutMs:     2000,
		MaxReceivedPacketSize: StandardMaxDNSPacketSize,
	},
}

func Init(configFilePath string) error {
	if configFilePath != "" {
		cfg, err := ini.Load(configFilePath)
		if err != nil {
			return err
		}
		if err := cfg.MapTo(Config); err != nil {
			return err
		}
	}
	return nil
}

func CreateConfigFile(configFilePath string) error {
	cfg := ini.Empty()
	if err := cfg.ReflectFrom(Config); err != nil {
		return err
	}
	return cfg.SaveTo(configFilePath)
}

func NeedDebug() bool {
	return Config.Log.LogLevelForFile == "debug" || Config.Log.LogLevelForConsole == "debug"
}

func IntMax(a int, b int) int {
	if a > b {
		return a
	}
	return b
}
