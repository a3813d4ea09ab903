package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

func main() {
	defAPI := os.Getenv("API_BASE")
	if defAPI == "" {
		defAPI = "http://localhost:8080"
	}

	api := pflag.String("api", defAPI, "API base URL")
	key := pflag.StringP("key", "k", os.Getenv("ADMIN_API_KEY"), "admin API key")
	name := pflag.StringP("name", "n", "", "site name (defaults to the host)")
	raw := pflag.StringP("url", "u", "", "site URL; prompted for when empty")
	interval := pflag.DurationP("interval", "i", time.Minute, "check interval")
	paused := pflag.Bool("paused", false, "register the site inactive")
	pflag.Parse()

	if *raw == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
		line, _ := reader.ReadString('\n')
		*raw = line
	}
	target := strings.TrimSpace(*raw)
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	u, err := url.ParseRequestURI(target)
	if err != nil || u.Host == "" {
		fmt.Fprintln(os.Stderr, "Invalid URL.")
		os.Exit(1)
	}
	if *name == "" {
		*name = u.Host
	}

	active := !*paused
	body, _ := json.Marshal(domain.SiteInput{
		Name:          *name,
		URL:           target,
		CheckInterval: int(interval.Milliseconds()),
		IsActive:      &active,
	})
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*api, "/")+"/api/sites", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building request:", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	if *key != "" {
		req.Header.Set("X-API-Key", *key)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fmt.Fprintf(os.Stderr, "API returned %s: %s\n", resp.Status, strings.TrimSpace(string(msg)))
		os.Exit(1)
	}
	var site domain.Site
	if err := json.NewDecoder(resp.Body).Decode(&site); err != nil {
		fmt.Println("Added.")
		return
	}
	fmt.Printf("Added %s (%s) every %s. Stats: GET /api/sites/%s/stats\n", site.Name, site.URL, site.Interval(), site.ID)
}
