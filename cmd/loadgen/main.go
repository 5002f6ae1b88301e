package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

type purchaseRequest struct {
	RequestID string `json:"request_id"`
	ItemID    string `json:"item_id"`
	Quantity  int64  `json:"quantity"`
}

type purchaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "gateway base URL")
	itemID := flag.String("item", "", "item identifier to buy")
	total := flag.Int("n", 50, "total purchase requests")
	concurrency := flag.Int("c", 10, "concurrent workers")
	flag.Parse()

	if *itemID == "" {
		log.Fatal("-item is required")
	}

	client := resty.New().
		SetBaseURL(*baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	var confirmed, pending, rejected, failed atomic.Int32
	requests := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range requests {
				var out purchaseResponse
				resp, err := client.R().
					SetBody(purchaseRequest{
						RequestID: uuid.NewString(),
						ItemID:    *itemID,
						Quantity:  1,
					}).
					SetResult(&out).
					SetError(&out).
					Post("/api/purchase")

				switch {
				case err != nil:
					failed.Add(1)
				case resp.StatusCode() == http.StatusOK:
					confirmed.Add(1)
				case resp.StatusCode() == http.StatusConflict:
					pending.Add(1)
				case resp.StatusCode() == http.StatusUnprocessableEntity:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	start := time.Now()
	for i := 0; i < *total; i++ {
		requests <- i
	}
	close(requests)
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("requests:  %d in %s\n", *total, elapsed)
	fmt.Printf("confirmed: %d\n", confirmed.Load())
	fmt.Printf("pending:   %d (serialized away)\n", pending.Load())
	fmt.Printf("rejected:  %d (ledger refused)\n", rejected.Load())
	fmt.Printf("failed:    %d\n", failed.Load())
}
