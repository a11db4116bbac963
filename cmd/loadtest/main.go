package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Togather-Foundation/sitelens/internal/loadtest"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Base URL of the server to test")
		profile     = flag.String("profile", "light", "Load profile: light, medium, heavy, burst")
		rps         = flag.Int("rps", 0, "Custom requests per second (overrides profile)")
		duration    = flag.Duration("duration", 0, "Custom test duration (overrides profile)")
		singleRatio = flag.Float64("single-ratio", 0, "Share of single-page reconciles 0.0-1.0 (overrides profile)")
		batchSize   = flag.Int("batch-size", 0, "Pages per batch request (overrides profile)")
		pagesFile   = flag.String("pages", "", "File with one canonical URL or path per line")
		noRamp      = flag.Bool("no-ramp", false, "Disable ramp-up/ramp-down (instant start/stop)")
	)
	flag.Parse()

	tester := loadtest.NewLoadTester(*baseURL)
	if *pagesFile != "" {
		pages, err := readPages(*pagesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		tester.WithPages(pages)
	}

	config, ok := loadtest.LoadProfiles[loadtest.LoadProfile(*profile)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown profile: %s\n", *profile)
		os.Exit(1)
	}
	if *rps > 0 {
		config.RequestsPerSecond = *rps
	}
	if *duration > 0 {
		config.Duration = *duration
	}
	if *singleRatio > 0 {
		config.SingleRatio = *singleRatio
	}
	if *batchSize > 0 {
		config.BatchSize = *batchSize
	}
	if *noRamp {
		config.RampUpTime = 0
		config.RampDownTime = 0
	}

	fmt.Printf("Starting load test against %s\n", *baseURL)
	fmt.Printf("  Profile: %s, RPS: %d, Duration: %s\n", *profile, config.RequestsPerSecond, config.Duration)
	fmt.Printf("  Ramp-up: %s, Ramp-down: %s\n", config.RampUpTime, config.RampDownTime)
	fmt.Printf("  Single/batch: %.0f%%/%.0f%% (batch size %d)\n\n", config.SingleRatio*100, (1-config.SingleRatio)*100, config.BatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := tester.RunCustom(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(stats.Report())
}

// readPages loads one page per line, skipping blanks and # comments.
func readPages(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pages file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var pages []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pages = append(pages, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pages file: %w", err)
	}
	return pages, nil
}
