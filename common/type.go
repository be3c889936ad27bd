package common

type ConfigStruct struct {
	Service  *ServiceConfig
	Upstream *UpstreamConfig
	Cache    *CacheConfig
	Log      *LogConfig
	Metrics  *MetricsConfig
	Advanced *AdvancedConfig
}

type ServiceConfig struct {
	ListenAddr string `comment:"Listen Address (Example: 0.0.0.0:53)"`
}

type UpstreamConfig struct {
	Forwarder string `comment:"Upstream Resolver Address (Example: 8.8.8.8:53)"`
}

type CacheConfig struct {
	SnapshotFilePath string `comment:"Cache Snapshot File Path"`
	SweepIntervalSec int    `comment:"Seconds Between Expired-Record Sweeps"`
}

type LogConfig struct {
	LogFilePath        string `comment:"Log File Path"`
	LogFileMaxSizeKB   int    `comment:"Max Size of Log File in KB"`
	LogLevelForFile    string `comment:"Log Level for Log File"`
	LogLevelForConsole string `comment:"Log Level for Console"`
}

type MetricsConfig struct {
	Enable     bool   `comment:"Serve Prometheus Metrics over HTTP"`
	ListenAddr string `comment:"Metrics Listen Address (Example: 127.0.0.1:9253)"`
}

type AdvancedConfig struct {
	UpstreamTimeoutMs     int `comment:"Timeout for One Upstream Exchange"`
	ListenerPollTimeoutMs int `comment:"Read Deadline on the Listening Socket"`
	StopJoinTimeoutMs     int `comment:"Wait Bound for the Sweeper on Shutdown"`
	MaxReceivedPacketSize int `comment:"Receive Buffer Size per Packet"`
}
