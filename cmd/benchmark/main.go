package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Config holds the benchmark settings.
var (
	targetURL   string
	apiKey      string
	dbURL       string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics.
var (
	totalRequests uint64
	success200    uint64 // idempotent replays
	success201    uint64 // fresh transfers
	fail409       uint64 // idempotency conflicts
	fail422       uint64 // domain errors (insufficient balance, currency mismatch)
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:3000", "API base URL")
	flag.StringVar(&apiKey, "api-key", "", "API key to authenticate with (required)")
	flag.StringVar(&dbURL, "db", "", "database URL used to load seeded account ids")
	flag.IntVar(&concurrency, "workers", 10, "number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "test duration")
	flag.StringVar(&workload, "workload", "uniform", "workload type: uniform | hotspot")
}

func main() {
	flag.Parse()
	if apiKey == "" {
		log.Fatal("-api-key is required (see cmd/seeder output)")
	}

	accountIDs, err := loadAccountIDs()
	if err != nil {
		log.Fatalf("load account ids: %v", err)
	}
	if len(accountIDs) < 2 {
		log.Fatal("need at least 2 seeded accounts to run transfers")
	}

	log.Printf("starting benchmark: %s | workers: %d | duration: %s | accounts: %d", workload, concurrency, duration, len(accountIDs))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, accountIDs)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func loadAccountIDs() ([]uuid.UUID, error) {
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DB_SOURCE")
	}
	if dbURL == "" {
		return nil, fmt.Errorf("one of -db, DATABASE_URL, DB_SOURCE must be set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, "SELECT id FROM accounts ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func worker(wg *sync.WaitGroup, start time.Time, accountIDs []uuid.UUID) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		from, to := pickAccounts(accountIDs)
		key := fmt.Sprintf("bench-%s-%s-%d", from, to, time.Now().UnixNano())

		payload := map[string]any{
			"from_account_id": from.String(),
			"to_account_id":   to.String(),
			"amount":          100,
			"idempotency_key": key,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/accounts/transfer", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", apiKey)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated:
			if resp.StatusCode == http.StatusCreated {
				atomic.AddUint64(&success201, 1)
			} else {
				atomic.AddUint64(&success200, 1)
			}
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickAccounts(ids []uuid.UUID) (uuid.UUID, uuid.UUID) {
	n := len(ids)

	if workload == "hotspot" && rand.Float32() < 0.90 {
		if rand.Float32() < 0.5 {
			return ids[0], ids[1]
		}
		return ids[1], ids[0]
	}

	a := rand.Intn(n)
	b := rand.Intn(n)
	for a == b {
		b = rand.Intn(n)
	}
	return ids[a], ids[b]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()

	results := map[string]any{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"success_created": s201,
		"success_replay":  s200,
		"idempotency_409": f409,
		"domain_422":      f422,
		"errors":          fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
