// Command benchmark load-tests the transfer coordinator, grounded on
// punchamoorthee-ledgerops/cmd/benchmark/main.go's flag-driven worker
// loop, adapted to POST /transfers with an Idempotency-Key header and
// to the coordinator's 200/400/409 status contract instead of the
// teacher's single-service 200/201/409 contract.
package main

import (
	"bytes"
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
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

var (
	totalRequests uint64
	successAccepted uint64
	failConflict    uint64
	failOther       uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "Coordinator base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
}

func main() {
	flag.Parse()
	log.Printf("starting benchmark: %s | workers: %d | duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}
	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	httpClient := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		from, to := generateAccounts()
		key := fmt.Sprintf("bench-%d-%d-%d", from, to, time.Now().UnixNano())

		payload := map[string]interface{}{
			"fromAccountId": from,
			"toAccountId":   to,
			"amount":        "1.00",
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)

		resp, err := httpClient.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&successAccepted, 1)
		case http.StatusConflict:
			atomic.AddUint64(&failConflict, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func generateAccounts() (int64, int64) {
	const totalAccounts = 1000
	if workload == "hotspot" {
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return 1, 2
			}
			return 2, 1
		}
	}
	a := rand.Int63n(totalAccounts) + 1
	b := rand.Int63n(totalAccounts) + 1
	for a == b {
		b = rand.Int63n(totalAccounts) + 1
	}
	return a, b
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	accepted := atomic.LoadUint64(&successAccepted)
	conflicts := atomic.LoadUint64(&failConflict)
	other := atomic.LoadUint64(&failOther)

	results := map[string]interface{}{
		"workload":         workload,
		"duration_sec":     d.Seconds(),
		"total_requests":   total,
		"throughput_tps":   float64(total) / d.Seconds(),
		"accepted":         accepted,
		"idempotency_conflicts": conflicts,
		"errors":           other,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
