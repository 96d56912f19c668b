package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/registry"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	"github.com/hamed0406/sitewatch/internal/scheduler"
	"github.com/hamed0406/sitewatch/internal/status"
)

// Usage:
//
//	cli          interactive: register a chat id for a site on a running API
//	cli check    probe every site in TARGETS_FILE once and print the result
func main() {
	if len(os.Args) > 1 && os.Args[1] == "check" {
		os.Exit(check())
	}
	os.Exit(register())
}

func register() int {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}

	reader := bufio.NewReader(os.Stdin)
	ask := func(prompt string) string {
		fmt.Print(prompt)
		s, _ := reader.ReadString('\n')
		return strings.TrimSpace(s)
	}

	raw := ask("Site URL (e.g., https://example.com): ")
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := domain.NormalizeURL(raw); err != nil {
		fmt.Println("Invalid URL:", err)
		return 1
	}
	chatID := ask("Telegram chat_id: ")
	secret := os.Getenv("ADMIN_SECRET")
	if secret == "" {
		secret = ask("Admin secret: ")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.PostForm(strings.TrimRight(api, "/")+"/admin", url.Values{
		"url":     {raw},
		"chat_id": {chatID},
		"secret":  {secret},
	})
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return 1
	}
	defer resp.Body.Close()

	var body struct {
		Error   string `json:"error"`
		Targets []struct {
			URL    string `json:"url"`
			Name   string `json:"name"`
			ChatID string `json:"chat_id"`
		} `json:"targets"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Println("Saved. Configured sites:")
		for _, t := range body.Targets {
			chat := t.ChatID
			if chat == "" {
				chat = "-"
			}
			fmt.Printf("  %-40s %-20s %s\n", t.URL, t.Name, chat)
		}
		return 0
	case http.StatusForbidden:
		fmt.Println("Rejected: wrong secret.")
	case http.StatusBadRequest:
		fmt.Println("Rejected:", body.Error)
	default:
		fmt.Println("API returned status:", resp.Status)
	}
	return 1
}

func check() int {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	tf, err := config.LoadTargets(cfg.TargetsFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx := context.Background()
	reg := registry.New(memory.New(), registry.Options{})
	if err := reg.Seed(ctx, tf.DomainTargets()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	store := status.NewStore(status.Meta{CheckedEveryMinutes: tf.CheckIntervalMinutes, Location: tf.Location})
	s := scheduler.New(zap.NewNop(), reg, probe.NewHTTPChecker(cfg.ProbeTimeout), store, nil, scheduler.Sinks{},
		scheduler.Options{Timeout: cfg.ProbeTimeout})
	s.RunOnce(ctx)

	all := store.GetAll()
	urls := make([]string, 0, len(all))
	for u := range all {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	down := 0
	for _, u := range urls {
		st := all[u]
		mark := "✔"
		if st.Status == domain.StatusDown {
			mark = "✖"
			down++
		}
		fmt.Printf("%s %-5s %-40s %s\n", mark, st.Status, u, st.LastError)
	}
	if down > 0 {
		return 2
	}
	return 0
}
