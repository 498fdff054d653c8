// Command issue-token mints a bearer token for local development.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/rtbecker76/universal-electronics2/internal/session"
)

func main() {
	var (
		user     = flag.String("user", "", "user id (token subject)")
		customer = flag.Int64("customer", 0, "customer id the user buys as")
		email    = flag.String("email", "", "email address")
		admin    = flag.Bool("admin", false, "grant the administrator role")
		ttl      = flag.Duration("ttl", 12*time.Hour, "token lifetime")
		issuer   = flag.String("issuer", envOr("JWT_ISSUER", "universal-electronics"), "token issuer")
	)
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	if *user == "" {
		flag.Usage()
		os.Exit(2)
	}

	tm := session.NewTokenManager(secret, *issuer)
	token, err := tm.Issue(domain.Session{
		UserID:     *user,
		CustomerID: *customer,
		Email:      *email,
		IsAdmin:    *admin,
	}, *ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
