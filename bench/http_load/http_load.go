package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MintResp is returned by POST /mint for JSON clients.
type MintResp struct {
	ZenID string `json:"zenid"`
	Token string `json:"token"`
}

// Post is the subset of the post view model the benchmark needs.
type Post struct {
	ID int64 `json:"id"`
}

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var likeRatio float64
	var csvFile string
	var trimPercent float64

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / users")
	flag.Float64Var(&likeRatio, "likes", 0.7, "fraction of requests that toggle a like instead of posting")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	// --- Mint one account and one seed post per goroutine ---
	fmt.Printf("Minting %d users...\n", concurrency)
	users := make([]MintResp, concurrency)
	seeds := make([]int64, concurrency)
	for i := 0; i < concurrency; i++ {
		u, err := mint(client, server)
		if err != nil {
			panic(fmt.Sprintf("failed to mint user: %v", err))
		}
		users[i] = u

		resp, err := createPost(client, server, u.Token, fmt.Sprintf("seed post %d", i))
		if err != nil {
			panic(fmt.Sprintf("failed to create seed post: %v", err))
		}
		var p Post
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			resp.Body.Close()
			panic(fmt.Sprintf("failed to decode post response: %v", err))
		}
		resp.Body.Close()
		seeds[i] = p.ID
	}
	fmt.Println("Users minted.")

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	// Atomic counters for thread-safe tracking
	var requests int64
	var successes int64
	var errors4xx int64
	var errors5xx int64

	latencySlices := make([][]float64, concurrency) // each goroutine records latencies

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			user := users[idx]
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(idx)))
			var localLatencies []float64

			for time.Now().Before(stopTime) {
				start := time.Now()

				var resp *http.Response
				var err error
				if rng.Float64() < likeRatio {
					target := seeds[rng.Intn(len(seeds))]
					req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost,
						fmt.Sprintf("%s/like_post/%d", server, target), nil)
					req.Header.Set("Authorization", "Bearer "+user.Token)
					resp, err = client.Do(req)
				} else {
					resp, err = createPost(client, server, user.Token, fmt.Sprintf("load test post %d", time.Now().UnixNano()))
				}

				lat := time.Since(start).Seconds() * 1000 // latency in ms
				localLatencies = append(localLatencies, lat)
				atomic.AddInt64(&requests, 1)

				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					continue
				}

				// Count success/failure by status code
				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&successes, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt64(&errors4xx, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt64(&errors5xx, 1)
				}
				if resp.StatusCode >= 400 {
					bodyBytes, _ := io.ReadAll(resp.Body)
					fmt.Printf("Status %d: %s\n", resp.StatusCode, string(bodyBytes))
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	// --- Compute statistics ---
	trimmedMeanVal := trimmedMean(allLatencies, trimPercent)
	p50 := percentile(allLatencies, 50)
	p90 := percentile(allLatencies, 90)
	p99 := percentile(allLatencies, 99)

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", requests, successes, errors4xx, errors5xx)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n", trimmedMeanVal, p50, p90, p99)

	// --- Save latencies to CSV ---
	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

func mint(client *http.Client, server string) (MintResp, error) {
	var out MintResp
	req, _ := http.NewRequest(http.MethodPost, server+"/mint", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return out, fmt.Errorf("mint returned %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

func createPost(client *http.Client, server, token, content string) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("content", content)
	mw.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, server+"/create_post", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	trimmed := data[trim : len(data)-trim]
	if len(trimmed) == 0 {
		return 0
	}
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile calculates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}
