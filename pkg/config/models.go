package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Approval  ApprovalConfig
	Storage   StorageConfig
	LogLevel  string `mapstructure:"logLevel"`
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwtSecret"`
	TokenCookie string `mapstructure:"tokenCookie"`
}

type ConnectionLimitConfig struct {
	MaxPerIdentity int    `mapstructure:"maxPerIdentity"`
	Mode           string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// ApprovalConfig holds the co-authorization policy knobs. The TTL bounds how
// long a pending login approval stays resolvable; the sweep interval bounds
// how late the expiry signal can arrive after that.
type ApprovalConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

type StorageConfig struct {
	PostgresDSN string `mapstructure:"postgresDSN"`
}
