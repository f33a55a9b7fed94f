package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/punchamoorthee/qrtopup/internal/api"
	"github.com/punchamoorthee/qrtopup/internal/client"
	"github.com/punchamoorthee/qrtopup/internal/models"
	"github.com/punchamoorthee/qrtopup/internal/reconcile"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	wallets     int
	secret      string
	duplicates  float64
)

var (
	totalIntents uint64
	confirmed    uint64
	replayed     uint64
	conflicts    uint64
	failOther    uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.IntVar(&wallets, "wallets", 1000, "Number of seeded wallets to spread intents over")
	flag.StringVar(&secret, "secret", os.Getenv("WEBHOOK_SECRET"), "Webhook signing secret")
	flag.Float64Var(&duplicates, "duplicates", 0.1, "Share of webhooks delivered twice")
}

func main() {
	flag.Parse()
	log.Printf("Starting Load Test | Workers: %d | Duration: %s", concurrency, duration)

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
	bank := resty.New().SetBaseURL(targetURL).SetTimeout(5 * time.Second)

	for time.Since(start) < duration {
		walletID := int64(rand.Intn(wallets) + 1)
		c := client.New(targetURL, walletID, 5*time.Second)

		in, err := c.CreateIntent(context.Background(), reconcile.IntentRequest{
			Amount: int64(rand.Intn(100)+1) * 1000,
			Method: "bank_transfer",
			Bank:   "mb",
		})
		if err != nil {
			if errors.Is(err, reconcile.ErrConflict) {
				atomic.AddUint64(&conflicts, 1)
			} else {
				atomic.AddUint64(&failOther, 1)
			}
			continue
		}
		atomic.AddUint64(&totalIntents, 1)

		evt := models.BankWebhook{
			EventID:       uuid.NewString(),
			ReferenceCode: in.ReferenceCode,
			Amount:        in.Amount,
			Status:        "paid",
		}
		body, _ := json.Marshal(evt)

		deliveries := 1
		if rand.Float64() < duplicates {
			deliveries = 2
		}
		for i := 0; i < deliveries; i++ {
			resp, err := bank.R().
				SetHeader("Content-Type", "application/json").
				SetHeader(models.SignatureHeader, api.Sign([]byte(secret), body)).
				SetBody(body).
				Post("/api/v1/webhooks/bank")
			if err != nil {
				atomic.AddUint64(&failOther, 1)
				continue
			}

			switch resp.StatusCode() {
			case http.StatusOK:
				if i == 0 {
					atomic.AddUint64(&confirmed, 1)
				} else {
					atomic.AddUint64(&replayed, 1)
				}
			case http.StatusConflict:
				atomic.AddUint64(&conflicts, 1)
			default:
				atomic.AddUint64(&failOther, 1)
			}
		}
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalIntents)
	ok := atomic.LoadUint64(&confirmed)
	rep := atomic.LoadUint64(&replayed)
	f409 := atomic.LoadUint64(&conflicts)
	fErr := atomic.LoadUint64(&failOther)

	results := map[string]interface{}{
		"duration_sec":      d.Seconds(),
		"intents_created":   total,
		"throughput_tps":    float64(total) / d.Seconds(),
		"webhooks_settled":  ok,
		"webhooks_replayed": rep,
		"conflicts":         f409,
		"errors":            fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_loadtest_%d.json", concurrency)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("could not save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
