package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tripsmith/internal/middleware"
)

// devtoken mints a signed bearer token for local testing against the API.
func main() {
	var (
		userFlag   string
		localeFlag string
		ttlFlag    time.Duration
	)
	flag.StringVar(&userFlag, "user", "", "requester ID to embed in the token")
	flag.StringVar(&localeFlag, "locale", "", "locale preference to embed (optional)")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		exitWithError(errors.New("JWT_SECRET is required"))
	}

	token, err := middleware.SignJWT(secret, middleware.TokenClaims{
		Sub:    userID,
		Locale: strings.TrimSpace(localeFlag),
		Exp:    time.Now().Add(ttlFlag).Unix(),
		Issuer: "tripsmith-dev",
	})
	if err != nil {
		exitWithError(fmt.Errorf("failed to sign token: %w", err))
	}

	fmt.Println(token)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
