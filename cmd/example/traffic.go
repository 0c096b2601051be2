package main

import (
	"context"
	"log"
	"net/http"
	"time"
)

// startTrafficSimulator requests the demo endpoints in turn every 3 seconds
func startTrafficSimulator(ctx context.Context, baseURL string) {
	// Give server a moment to fully start
	time.Sleep(500 * time.Millisecond)

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	endpoints := []string{"/api/users", "/api/orders/42", "/api/orders/0", "/api/panic"}
	client := &http.Client{Timeout: 5 * time.Second}
	log.Println("Traffic simulator started - making requests every 3 seconds")

	reqCount := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("Traffic simulator stopped")
			return
		case <-ticker.C:
			endpoint := endpoints[reqCount%len(endpoints)]
			reqCount++

			go func(ep string, count int) {
				resp, err := client.Get(baseURL + ep)
				if err != nil {
					log.Printf("Traffic simulation failed for %s: %v", ep, err)
					return
				}
				resp.Body.Close()
				log.Printf("Request #%d: %s -> %d", count, ep, resp.StatusCode)
			}(endpoint, reqCount)
		}
	}
}
