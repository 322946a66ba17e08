package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// DefaultClaimContract address of the deployed claim contract the signatures are issued for
const DefaultClaimContract = "0x598e1cebb2a4b7f169eecbbdfcab395438e6ec27"

// DefaultRPCEndpoint public Fantom opera RPC
const DefaultRPCEndpoint = "https://rpc.ftm.tools"

// Config application configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	Claims     ClaimsConfig     `yaml:"claims"`
	Signer     SignerConfig     `yaml:"signer"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	CORS       CORSConfig       `yaml:"cors"`       // CORS configuration
	Log        LogConfig        `yaml:"log"`        // logrus level and format
	Static     StaticConfig     `yaml:"static"`     // static index page
	Admin      AdminConfig      `yaml:"admin"`      // Admin API access control configuration
}

// ServerConfig server configuration
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout int      `yaml:"shutdownTimeout"` // seconds
	TrustedProxies  []string `yaml:"trustedProxies"`  // proxies whose X-Forwarded-For is honoured
}

// BlockchainConfig ledger the claim contract lives on
type BlockchainConfig struct {
	ChainID      int64    `yaml:"chainId"` // 0 skips the chain id check at dial time
	RPCEndpoints []string `yaml:"rpcEndpoints"`
	Contract     string   `yaml:"contract"`
	ABIPath      string   `yaml:"abiPath"`     // empty uses the embedded nonce/balanceOf ABI
	CallTimeout  int      `yaml:"callTimeout"` // seconds per contract read
}

// ClaimsConfig allocation snapshot configuration
type ClaimsConfig struct {
	SnapshotPath string `yaml:"snapshotPath"`
	Decimals     uint8  `yaml:"decimals"`
}

// SignerConfig signing key. Only ever populated from PRIVATE_KEY in practice.
type SignerConfig struct {
	PrivateKey string `yaml:"privateKey"`
}

// DatabaseConfig issuance audit log database. Empty DSN disables the audit log.
type DatabaseConfig struct {
	DSN     string `yaml:"dsn"`
	Timeout int    `yaml:"timeout"` // seconds per audit write or event publish after signing
}

// HookTimeoutDuration bound on each post-signing audit/event call
func (d DatabaseConfig) HookTimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// NATSConfig NATS event publishing. Empty URL disables events.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Timeout int    `yaml:"timeout"` // seconds
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`   // List of allowed origins
	AllowCredentials bool     `yaml:"allowCredentials"` // Whether to allow credentials
	MaxAge           int      `yaml:"maxAge"`           // Max age for preflight requests (seconds)
}

// LogConfig logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// StaticConfig static page served on GET /
type StaticConfig struct {
	IndexPath string `yaml:"indexPath"`
}

// AdminConfig admin login configuration. The admin API is mounted only when all secrets are set.
type AdminConfig struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"passwordHash"` // bcrypt
	TOTPSecret   string   `yaml:"totpSecret"`
	JWTSecret    string   `yaml:"jwtSecret"`
	TokenTTL     int      `yaml:"tokenTTL"`   // hours
	AllowedIPs   []string `yaml:"allowedIPs"` // IPs or CIDR ranges allowed besides localhost
}

// Enabled reports whether every admin secret is configured
func (a AdminConfig) Enabled() bool {
	return a.PasswordHash != "" && a.TOTPSecret != "" && a.JWTSecret != ""
}

// CallTimeoutDuration per-read timeout for contract calls
func (b BlockchainConfig) CallTimeoutDuration() time.Duration {
	return time.Duration(b.CallTimeout) * time.Second
}

// Addr listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10,
		},
		Blockchain: BlockchainConfig{
			ChainID:      250,
			RPCEndpoints: []string{DefaultRPCEndpoint},
			Contract:     DefaultClaimContract,
			CallTimeout:  10,
		},
		Claims: ClaimsConfig{
			SnapshotPath: "snapshot.json",
			Decimals:     18,
		},
		Database: DatabaseConfig{
			Timeout: 5,
		},
		NATS: NATSConfig{
			Subject: "claims.authorized",
			Timeout: 10,
		},
		CORS: CORSConfig{
			MaxAge: 3600,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Static: StaticConfig{
			IndexPath: "index.html",
		},
		Admin: AdminConfig{
			Username: "admin",
			TokenTTL: 24,
		},
	}
}

// LoadConfig Load configuration file. An empty path looks for config.local.yaml then
// config.yaml and falls back to defaults plus environment when neither exists.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Printf("✅ Loading configuration from config file: %s", configPath)
	case errors.Is(err, os.ErrNotExist) && !explicit:
		log.Printf("📋 [Config] no config file found, using defaults and environment")
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	overrideFromEnv(cfg)
	normalize(cfg)

	return cfg, nil
}

// overrideFromEnv Override configuration from environment variables
func overrideFromEnv(config *Config) {
	// server configuration
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if proxies := os.Getenv("TRUSTED_PROXIES"); proxies != "" {
		config.Server.TrustedProxies = splitList(proxies)
	}

	// RPC endpoints: comma separated list wins over the single URL
	if rpcEndpoints := os.Getenv("RPC_ENDPOINTS"); rpcEndpoints != "" {
		config.Blockchain.RPCEndpoints = splitList(rpcEndpoints)
	} else if rpcURL := os.Getenv("RPC_URL"); rpcURL != "" {
		config.Blockchain.RPCEndpoints = []string{strings.TrimSpace(rpcURL)}
	}
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			config.Blockchain.ChainID = id
		}
	}
	if contract := os.Getenv("CLAIM_CONTRACT"); contract != "" {
		config.Blockchain.Contract = contract
	}
	if abiPath := os.Getenv("ABI_PATH"); abiPath != "" {
		config.Blockchain.ABIPath = abiPath
	}
	if callTimeout := os.Getenv("RPC_CALL_TIMEOUT"); callTimeout != "" {
		if t, err := strconv.Atoi(callTimeout); err == nil {
			config.Blockchain.CallTimeout = t
		}
	}

	if snapshotPath := os.Getenv("SNAPSHOT_PATH"); snapshotPath != "" {
		config.Claims.SnapshotPath = snapshotPath
	}

	// Private key from environment variables
	if privateKey := os.Getenv("PRIVATE_KEY"); privateKey != "" {
		config.Signer.PrivateKey = privateKey
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if timeout := os.Getenv("DATABASE_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Database.Timeout = t
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if subject := os.Getenv("NATS_SUBJECT"); subject != "" {
		config.NATS.Subject = subject
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.CORS.AllowedOrigins = splitList(corsOrigins)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Log.Format = format
	}

	if indexPath := os.Getenv("STATIC_INDEX_PATH"); indexPath != "" {
		config.Static.IndexPath = indexPath
	}

	if username := os.Getenv("ADMIN_USERNAME"); username != "" {
		config.Admin.Username = username
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		config.Admin.PasswordHash = hash
	}
	if totpSecret := os.Getenv("ADMIN_TOTP_SECRET"); totpSecret != "" {
		config.Admin.TOTPSecret = totpSecret
	}
	if jwtSecret := os.Getenv("ADMIN_JWT_SECRET"); jwtSecret != "" {
		config.Admin.JWTSecret = jwtSecret
	}
	if allowedIPs := os.Getenv("ADMIN_ALLOWED_IPS"); allowedIPs != "" {
		config.Admin.AllowedIPs = splitList(allowedIPs)
	}
}

func normalize(config *Config) {
	config.Blockchain.Contract = strings.ToLower(strings.TrimSpace(config.Blockchain.Contract))
	if config.Blockchain.CallTimeout <= 0 {
		config.Blockchain.CallTimeout = 10
	}
	if config.Database.Timeout <= 0 {
		config.Database.Timeout = 5
	}
	if config.Claims.Decimals == 0 {
		config.Claims.Decimals = 18
	}
	if config.Admin.TokenTTL <= 0 {
		config.Admin.TokenTTL = 24
	}
	if config.NATS.Subject == "" {
		config.NATS.Subject = "claims.authorized"
	}
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	if len(c.Blockchain.RPCEndpoints) == 0 {
		return fmt.Errorf("blockchain.rpcEndpoints is empty")
	}
	if !common.IsHexAddress(c.Blockchain.Contract) || !strings.HasPrefix(c.Blockchain.Contract, "0x") {
		return fmt.Errorf("blockchain.contract %q is not a valid address", c.Blockchain.Contract)
	}
	if c.Signer.PrivateKey == "" {
		return fmt.Errorf("signing key not configured: set PRIVATE_KEY")
	}
	if c.Claims.SnapshotPath == "" {
		return fmt.Errorf("claims.snapshotPath is empty")
	}
	// 10^78 no longer fits in a uint256
	if c.Claims.Decimals > 77 {
		return fmt.Errorf("claims.decimals %d out of range", c.Claims.Decimals)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
