package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/pkg/jwt"
)

var (
	userID = flag.Int64("user", 0, "User ID carried by the token")
	admin  = flag.Bool("admin", false, "Issue an admin token")
	hours  = flag.Int("hours", 0, "Token lifetime in hours (default: jwt.expire_hours)")
)

// 为运维和联调签发访问 token
func main() {
	flag.Parse()

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	expire := cfg.JWT.ExpireHours
	if *hours > 0 {
		expire = *hours
	}

	role := jwt.RoleUser
	if *admin {
		role = jwt.RoleAdmin
	}

	token, err := jwt.GenerateTokenWithRole(*userID, role, cfg.JWT.Secret, expire)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
