// Package config holds SDK configuration. Values come from an optional JSON
// file with environment-variable overrides loaded through godotenv.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/utilities"
)

// DefaultProgramID is the deployed Veiled program.
const DefaultProgramID = "H6apEGZAw23AKUeqCX41wkDv2LVwX3Ec8oYPip7k3xzA"

type Config struct {
	RPCEndpoint         string        `json:"rpc_endpoint"`
	WSEndpoint          string        `json:"ws_endpoint"`
	ProgramID           string        `json:"program_id"`
	Commitment          string        `json:"commitment"`
	ConfirmationTimeout time.Duration `json:"-"`
	ConfirmationSeconds int           `json:"confirmation_timeout_seconds"`
	AmqpURL             string        `json:"amqp_url"`
	AmqpExchange        string        `json:"amqp_exchange"`
	AmqpRoutingKey      string        `json:"amqp_routing_key"`
}

func Defaults() Config {
	return Config{
		RPCEndpoint:         "http://127.0.0.1:8899",
		ProgramID:           DefaultProgramID,
		Commitment:          "finalized",
		ConfirmationTimeout: 60 * time.Second,
	}
}

// Load reads the JSON file when path is non-empty, then applies environment
// overrides. A missing .env file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		fileCfg, err := utilities.ReadConfig[Config](path)
		if err != nil {
			return cfg, err
		}
		cfg = merge(cfg, fileCfg)
	}

	if err := godotenv.Load(); err != nil {
		logger.Default().Debugf("no .env file loaded: %v", err)
	}
	cfg = applyEnv(cfg)

	if cfg.ConfirmationSeconds > 0 {
		cfg.ConfirmationTimeout = time.Duration(cfg.ConfirmationSeconds) * time.Second
	}

	return cfg, nil
}

func merge(base, override Config) Config {
	if override.RPCEndpoint != "" {
		base.RPCEndpoint = override.RPCEndpoint
	}
	if override.WSEndpoint != "" {
		base.WSEndpoint = override.WSEndpoint
	}
	if override.ProgramID != "" {
		base.ProgramID = override.ProgramID
	}
	if override.Commitment != "" {
		base.Commitment = override.Commitment
	}
	if override.ConfirmationSeconds > 0 {
		base.ConfirmationSeconds = override.ConfirmationSeconds
	}
	if override.AmqpURL != "" {
		base.AmqpURL = override.AmqpURL
	}
	if override.AmqpExchange != "" {
		base.AmqpExchange = override.AmqpExchange
	}
	if override.AmqpRoutingKey != "" {
		base.AmqpRoutingKey = override.AmqpRoutingKey
	}
	return base
}

func applyEnv(cfg Config) Config {
	if v := os.Getenv("VEILED_RPC_ENDPOINT"); v != "" {
		cfg.RPCEndpoint = v
	}
	if v := os.Getenv("VEILED_WS_ENDPOINT"); v != "" {
		cfg.WSEndpoint = v
	}
	if v := os.Getenv("VEILED_PROGRAM_ID"); v != "" {
		cfg.ProgramID = v
	}
	if v := os.Getenv("VEILED_COMMITMENT"); v != "" {
		cfg.Commitment = v
	}
	if v := os.Getenv("VEILED_CONFIRMATION_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ConfirmationSeconds = secs
		}
	}
	if v := os.Getenv("VEILED_AMQP_URL"); v != "" {
		cfg.AmqpURL = v
	}
	if v := os.Getenv("VEILED_AMQP_EXCHANGE"); v != "" {
		cfg.AmqpExchange = v
	}
	if v := os.Getenv("VEILED_AMQP_ROUTING_KEY"); v != "" {
		cfg.AmqpRoutingKey = v
	}
	return cfg
}
