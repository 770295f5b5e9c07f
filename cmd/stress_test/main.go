package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	initialStock  = 20
	totalRequests = 50
)

var client = &http.Client{Timeout: 30 * time.Second}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func call(method, url, token string, body, out any) (int, error) {
	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func main() {
	baseURL := strings.TrimRight(getEnv("STRESS_BASE_URL", "http://localhost:3001"), "/")

	// Login
	var login struct {
		Token string `json:"token"`
	}
	status, err := call(http.MethodPost, baseURL+"/api/login", "", map[string]string{
		"username": getEnv("STRESS_USERNAME", "admin"),
		"password": getEnv("STRESS_PASSWORD", "admin123"),
	}, &login)
	if err != nil || status != http.StatusOK {
		log.Fatalf("failed to login: status %d: %v", status, err)
	}

	// Seed one lot of a fresh part
	part := "STRESS-" + strings.ToUpper(uuid.NewString()[:8])
	status, err = call(http.MethodPost, baseURL+"/api/inventory", login.Token, map[string]any{
		"jwl_part":      part,
		"customer_part": "C-" + part,
		"description":   "Stress test item",
		"uom":           "PCS",
		"batch":         "B1",
		"mfg_date":      time.Now().Format("02-01-2006"),
		"exp_date":      time.Now().AddDate(1, 0, 0).Format("02-01-2006"),
		"qty":           initialStock,
	}, nil)
	if err != nil || status != http.StatusCreated {
		log.Fatalf("failed to seed stock: status %d: %v", status, err)
	}
	log.Printf("seeded %s with %d units", part, initialStock)

	var successCount, shortCount, errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			status, err := call(http.MethodPost, baseURL+"/api/receipt", login.Token, map[string]any{
				"customer": map[string]string{"name": fmt.Sprintf("customer-%d", n), "address": "1 Load St"},
				"items":    []map[string]any{{"jwl_part": part, "qty": 1, "unit_price": "1.00"}},
				"tax_rate": "0",
			}, nil)
			switch {
			case err != nil:
				errorCount.Add(1)
			case status == http.StatusOK:
				successCount.Add(1)
			case status == http.StatusUnprocessableEntity:
				shortCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	short := shortCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Part:             %s\n", part)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Insufficient:     %d\n", short)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && short == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d receipts issued, %d refused\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d refused, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, short)
	}

	// Verify remaining stock
	var page struct {
		Data []struct {
			Qty int `json:"qty"`
		} `json:"data"`
	}
	if _, err := call(http.MethodGet, baseURL+"/api/inventory?jwl_part="+part, login.Token, nil, &page); err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	remaining := 0
	for _, lot := range page.Data {
		remaining += lot.Qty
	}
	fmt.Printf("Final Stock:      %d\n", remaining)

	if remaining == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", remaining)
	}
}
