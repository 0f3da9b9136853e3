package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MASTER_ADDR is the gRPC address of a running server, the suites are skipped without it
	MasterAddr string `envconfig:"MASTER_ADDR"`
	HTTPAddr   string `envconfig:"HTTP_ADDR" default:"http://localhost:8080"`
	JWTSecret  string `envconfig:"JWT_SECRET"`
	Issuer     string `envconfig:"TOKEN_ISSUER" default:"social-lab"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
