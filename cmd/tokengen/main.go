package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"social-lab/auth"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds the shared secret, the same one the server validates tokens with.
type Config struct {
	JWTSecret   string `env:"JWT_SECRET,required=true"`
	TokenIssuer string `env:"TOKEN_ISSUER,default=social-lab"`
}

// tokengen mints a session token, standing in for the account service during development.
func main() {
	userID := flag.String("user", "", "user id carried by the token")
	roles := flag.String("roles", "user", "comma separated roles")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	token, err := auth.NewTokenManager(config.JWTSecret, config.TokenIssuer).
		GenerateToken(*userID, strings.Split(*roles, ","), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
