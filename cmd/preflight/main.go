// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	if err := godotenv.Load(); err == nil {
		ok(".env loaded")
	}

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	apiAddr := strings.TrimSpace(os.Getenv("API_ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	allowed := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	resync := strings.TrimSpace(os.Getenv("RESYNC_SCHEDULE"))
	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	slack := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (admin routes will 403).")
	}
	if pub == "" {
		warn("PUBLIC_API_KEYS is empty; only admin keys can read.")
	}

	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub, "KAFKA_BROKERS": brokers} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if apiAddr == "" {
		warn("API_ADDR is empty; 127.0.0.1:8080 will be used.")
	} else {
		ok("API_ADDR=" + apiAddr)
	}

	if db == "" {
		warn("DATABASE_URL empty; sites and results are kept in memory and lost on restart.")
	} else {
		ok("DATABASE_URL present")
	}

	if allowed == "" || allowed == "*" {
		warn("ALLOWED_ORIGINS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + allowed)
	}

	if resync != "" {
		if _, err := cron.ParseStandard(resync); err != nil {
			fail("RESYNC_SCHEDULE is invalid: " + err.Error())
		}
		ok("RESYNC_SCHEDULE=" + resync)
	}

	if brokers == "" {
		warn("KAFKA_BROKERS empty; check results will not be published.")
	} else {
		ok("KAFKA_BROKERS=" + brokers)
	}

	if slack == "" {
		warn("SLACK_WEBHOOK_URL empty; alerts go to the log only.")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	ok("preflight passed")
}
