package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/fanzone/go/internal/auth"
)

func main() {
	var (
		userID   = flag.String("user", "", "subject user id")
		username = flag.String("name", "", "display name used in chat")
		role     = flag.String("role", string(auth.RoleViewer), "viewer or admin")
		ttl      = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	if *userID == "" || *username == "" {
		fmt.Fprintln(os.Stderr, "-user and -name are required")
		flag.Usage()
		os.Exit(2)
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "fanzone"
	}
	verifier, err := auth.NewVerifier([]byte(os.Getenv("JWT_SECRET")), issuer, clockwork.NewRealClock())
	if err != nil {
		fmt.Fprintf(os.Stderr, "verifier: %v\n", err)
		os.Exit(1)
	}

	token, err := verifier.Issue(*userID, *username, auth.Role(*role), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
