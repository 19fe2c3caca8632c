// Package main provides a support CLI for consentd: it signs and inspects
// scope cookies and reads or clears a scope's stored decision.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"consentd/internal/consent/store"
	jwttoken "consentd/internal/jwt_token"
	"consentd/internal/platform/config"
	"consentd/pkg/secrets"
)

const defaultCookieTTL = 365 * 24 * time.Hour

type tokenOutput struct {
	Scope     string            `json:"scope"`
	Token     string            `json:"token,omitempty"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Usage     map[string]string `json:"usage,omitempty"`
}

func main() {
	issueCmd := flag.NewFlagSet("issue", flag.ExitOnError)
	issueScope := issueCmd.String("scope", "", "Scope ID (UUID). Generated if empty.")
	issueSecret := issueCmd.String("secret", config.DevScopeSecret, "Scope cookie signing secret")
	issueTTL := issueCmd.Duration("ttl", defaultCookieTTL, "Cookie time-to-live")
	issueJSON := issueCmd.Bool("json", false, "Output as JSON")

	inspectCmd := flag.NewFlagSet("inspect", flag.ExitOnError)
	inspectSecret := inspectCmd.String("secret", config.DevScopeSecret, "Scope cookie signing secret")

	recordCmd := flag.NewFlagSet("record", flag.ExitOnError)
	recordDB := recordCmd.String("db", os.Getenv("CONSENTD_DB_PATH"), "Path to the SQLite slot database")
	recordRedis := recordCmd.String("redis", os.Getenv("CONSENTD_REDIS_URL"), "Redis slot backend URL")
	recordPostgres := recordCmd.String("database-url", os.Getenv("CONSENTD_DATABASE_URL"), "Postgres slot backend URL")
	recordScope := recordCmd.String("scope", "", "Scope ID")
	recordClear := recordCmd.Bool("clear", false, "Remove the stored decision")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "issue":
		_ = issueCmd.Parse(os.Args[2:])
		issueToken(ctx, *issueScope, *issueSecret, *issueTTL, *issueJSON)
	case "inspect":
		_ = inspectCmd.Parse(os.Args[2:])
		if inspectCmd.NArg() != 1 {
			fail("inspect takes exactly one token")
		}
		inspectToken(ctx, inspectCmd.Arg(0), *inspectSecret)
	case "record":
		_ = recordCmd.Parse(os.Args[2:])
		showRecord(ctx, store.BackendConfig{
			DBPath:      *recordDB,
			RedisURL:    *recordRedis,
			DatabaseURL: *recordPostgres,
		}, *recordScope, *recordClear)
	case "secret":
		secret, err := secrets.Generate()
		if err != nil {
			fail("Error generating secret: %v", err)
		}
		fmt.Println(secret)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`consentctl - Support tool for consentd

Usage:
  consentctl <command> [flags]

Commands:
  issue     Sign a consent_scope cookie value
  inspect   Print the scope carried by a cookie value
  record    Show or clear the decision stored for a scope
  secret    Generate a value for CONSENTD_SCOPE_SECRET

Examples:
  # Cookie for a fresh scope, signed with the development secret
  consentctl issue

  # Cookie for an existing scope
  consentctl issue -scope "550e8400-e29b-41d4-a716-446655440000" -secret "$CONSENTD_SCOPE_SECRET"

  # Which scope does a browser hold?
  consentctl inspect -secret "$CONSENTD_SCOPE_SECRET" <cookie value>

  # Show, then forget, a stored decision
  consentctl record -db /var/lib/consentd/slots.db -scope <scope>
  consentctl record -db /var/lib/consentd/slots.db -scope <scope> -clear
  consentctl record -redis redis://localhost:6379/0 -scope <scope>

Use "consentctl <command> -h" for more information about a command.`)
}

func issueToken(ctx context.Context, scope, secret string, ttl time.Duration, jsonOutput bool) {
	if scope == "" {
		scope = jwttoken.NewScope()
	}
	token, err := jwttoken.NewScopeTokenService(secret, ttl).Issue(ctx, scope)
	if err != nil {
		fail("Error signing cookie: %v", err)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Scope:     scope,
			Token:     token,
			ExpiresIn: ttl.String(),
			Usage: map[string]string{
				"cookie": "consent_scope=<token>",
			},
		})
		return
	}
	fmt.Println("Scope Cookie")
	fmt.Println("============")
	fmt.Printf("Scope:      %s\n", scope)
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl --cookie \"consent_scope=<token>\" http://localhost:8080/consent")
}

func inspectToken(ctx context.Context, token, secret string) {
	scope, err := jwttoken.NewScopeTokenService(secret, defaultCookieTTL).Validate(ctx, token)
	if err != nil {
		fail("Invalid cookie: %v", err)
	}
	printJSON(tokenOutput{Scope: scope})
}

func showRecord(ctx context.Context, cfg store.BackendConfig, scope string, clear bool) {
	if scope == "" {
		fail("record needs -scope")
	}
	if cfg.Name() == store.BackendMemory {
		fail("record needs one of -db, -redis or -database-url")
	}
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		fail("Error opening %s slot backend: %v", cfg.Name(), err)
	}
	defer backend.Close()

	st := store.New(backend.Slots, scope)
	if clear {
		st.Clear(ctx)
		fmt.Println("cleared")
		return
	}
	rec, ok := st.Load(ctx)
	if !ok {
		fmt.Println("no decision stored")
		return
	}
	raw, err := store.Encode(rec)
	if err != nil {
		fail("Error encoding record: %v", err)
	}
	fmt.Println(string(raw))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail("Error encoding JSON: %v", err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
