package config

// Node selects where marketplace state lives.
type Node struct {
	DataDir string `toml:"DataDir" yaml:"dataDir"`
	// Backend is memory, leveldb or bolt.
	Backend string `toml:"Backend" yaml:"backend"`
	// Deployer receives the marketplace capability on first start.
	Deployer string `toml:"Deployer" yaml:"deployer"`
}

// RPC configures the JSON-RPC listener.
type RPC struct {
	ListenAddress string `toml:"ListenAddress" yaml:"listenAddress"`
	// JWTSecretEnv names the environment variable holding the HS256 secret.
	JWTSecretEnv       string  `toml:"JWTSecretEnv" yaml:"jwtSecretEnv"`
	JWTIssuer          string  `toml:"JWTIssuer" yaml:"jwtIssuer"`
	JWTAudience        string  `toml:"JWTAudience" yaml:"jwtAudience"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond" yaml:"rateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst" yaml:"rateLimitBurst"`
	FaucetEnabled      bool    `toml:"FaucetEnabled" yaml:"faucetEnabled"`
	FaucetMaxAmount    uint64  `toml:"FaucetMaxAmount" yaml:"faucetMaxAmount"`
	ReadTimeout        string  `toml:"ReadTimeout" yaml:"readTimeout"`
	WriteTimeout       string  `toml:"WriteTimeout" yaml:"writeTimeout"`
}

// Market carries engine behaviour switches and the keeper sweeper.
type Market struct {
	LockOrderOnDispute bool   `toml:"LockOrderOnDispute" yaml:"lockOrderOnDispute"`
	MaxCommitAttempts  int    `toml:"MaxCommitAttempts" yaml:"maxCommitAttempts"`
	SweepInterval      string `toml:"SweepInterval" yaml:"sweepInterval"`
	// KeeperAddress is the caller recorded on sweeper refunds. Empty disables
	// the sweeper.
	KeeperAddress string `toml:"KeeperAddress" yaml:"keeperAddress"`
}

type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	Env        string `toml:"Env" yaml:"env"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

// EventLog points at the SQL journal. A postgres:// URL selects postgres,
// anything else is a sqlite path.
type EventLog struct {
	DSN string `toml:"DSN" yaml:"dsn"`
}

type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	// Headers is a comma separated key=value list.
	Headers string `toml:"Headers" yaml:"headers"`
	// SampleRatio of root spans to keep. 0 keeps every span.
	SampleRatio    float64 `toml:"SampleRatio" yaml:"sampleRatio"`
	MetricInterval string  `toml:"MetricInterval" yaml:"metricInterval"`
}

// Webhook forwards settlement events when URL is set.
type Webhook struct {
	URL          string `toml:"URL" yaml:"url"`
	SecretEnv    string `toml:"SecretEnv" yaml:"secretEnv"`
	QueueSize    int    `toml:"QueueSize" yaml:"queueSize"`
	DrainTimeout string `toml:"DrainTimeout" yaml:"drainTimeout"`
}
