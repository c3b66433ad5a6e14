// Command admintoken mints a bearer token for the /admin routes using the
// configured admin secret.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"bossfit/internal/config"
	"bossfit/internal/security"
)

func main() {
	flagSet := pflag.NewFlagSet("admintoken", pflag.ContinueOnError)
	subject := flagSet.String("subject", "operator", "token subject recorded in the audit log")
	ttl := flagSet.Duration("ttl", 0, "token lifetime (default security.adminjwtttl)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	token, err := mint(cfg.Security, *subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(cfg config.SecurityConfig, subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = cfg.AdminJWTTTL
	}
	return security.GenerateAdminToken(cfg.AdminJWTSecret, subject, ttl)
}
