// Command token mints a bearer token for the admin API or, with -partner, the
// customer portal.
package main

import (
	"flag"
	"fmt"
	"time"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/config"
	"zns-gateway/internal/logger"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	company := flag.Uint("company", cfg.DefaultCompanyID, "company id")
	user := flag.Uint("user", 1, "user id")
	partner := flag.Uint("partner", 0, "partner id for portal tokens")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	token, err := auth.IssueToken(cfg.JWTSecret, auth.Env{
		CompanyID: *company,
		UserID:    *user,
		PartnerID: *partner,
	}, *ttl)
	if err != nil {
		log.WithError(err).Fatal("failed to issue token")
	}
	fmt.Println(token)
}
