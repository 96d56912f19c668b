// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/sitewatch/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(".env")
	if err != nil {
		fail(err.Error())
	}

	switch {
	case cfg.AdminSecretBcrypt != "":
		if !strings.HasPrefix(cfg.AdminSecretBcrypt, "$2") {
			fail("ADMIN_SECRET_BCRYPT does not look like a bcrypt hash.")
		}
		ok("ADMIN_SECRET_BCRYPT present")
	case cfg.AdminSecret != "":
		if len(cfg.AdminSecret) < 8 {
			warn("ADMIN_SECRET is shorter than 8 characters.")
		}
		ok("ADMIN_SECRET present")
	default:
		fail("ADMIN_SECRET is empty (admin form will always 403).")
	}

	if cfg.TelegramToken == "" {
		warn("TELEGRAM_BOT_TOKEN empty; status changes will not be delivered.")
	} else if !strings.Contains(cfg.TelegramToken, ":") {
		warn("TELEGRAM_BOT_TOKEN does not look like <id>:<secret>.")
	} else {
		ok("TELEGRAM_BOT_TOKEN present")
	}

	tf, err := config.LoadTargets(cfg.TargetsFile)
	if err != nil {
		fail(cfg.TargetsFile + ": " + err.Error())
	}
	ok(fmt.Sprintf("%s: %d targets every %d min (%s)", cfg.TargetsFile, len(tf.Targets), tf.CheckIntervalMinutes, tf.Timezone))
	if len(tf.Targets) == 0 {
		warn("no targets configured in file; only admin-added sites will be checked.")
	}

	ok("ADDR=" + cfg.Addr)
	ok("STORAGE=" + string(cfg.Storage))
	if cfg.RedisAddr == "" {
		warn("REDIS_ADDR empty; chat id lookups go straight to storage.")
	} else {
		ok("REDIS_ADDR=" + cfg.RedisAddr)
	}

	ok("preflight passed")
}
