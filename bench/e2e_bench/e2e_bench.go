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
	"strings"
	"sync"
	"time"

	"github.com/CoderLord25/ZenSocial/internal/identity"
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

// Measures how long a like takes to show up on the post owner's
// notifications page. Needs a server with EVENTS_ENABLED=true and a worker.
func main() {
	var serverAddr string
	var owners, actors, likes, concurrency int
	var pollTimeout int

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&owners, "owners", 20, "number of post owners")
	flag.IntVar(&actors, "actors", 50, "number of liking users")
	flag.IntVar(&likes, "likes", 100, "number of likes to publish")
	flag.IntVar(&concurrency, "c", 20, "concurrency for liking")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for notification delivery")
	flag.Parse()

	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}

	// --- 1) Mint owners with one post each, and actors ---
	fmt.Printf("Minting %d owners and %d actors...\n", owners, actors)
	type ownerRecord struct {
		MintResp
		PostID int64
	}
	ownerList := make([]ownerRecord, 0, owners)
	for i := 0; i < owners; i++ {
		u := mustMint(client, serverAddr)
		p := mustPost(ctx, client, serverAddr, u.Token, fmt.Sprintf("owner post %d", i))
		ownerList = append(ownerList, ownerRecord{MintResp: u, PostID: p.ID})
	}
	actorList := make([]MintResp, 0, actors)
	for i := 0; i < actors; i++ {
		actorList = append(actorList, mustMint(client, serverAddr))
	}
	fmt.Println("Accounts created successfully.")

	// --- 2) Like random posts concurrently ---
	// Each (actor, owner) pair is liked at most once so every like is an
	// "on" transition that produces an event.
	fmt.Printf("Publishing %d likes with concurrency %d...\n", likes, concurrency)
	type likeRecord struct {
		Owner   ownerRecord
		Actor   MintResp
		Created time.Time
	}

	seen := make(map[[2]int]bool)
	var plan []likeRecord
	for len(plan) < likes && len(seen) < owners*actors {
		oi, ai := rand.Intn(owners), rand.Intn(actors)
		if seen[[2]int{oi, ai}] {
			continue
		}
		seen[[2]int{oi, ai}] = true
		plan = append(plan, likeRecord{Owner: ownerList[oi], Actor: actorList[ai]})
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	likesCh := make(chan likeRecord, len(plan))

	for _, lr := range plan {
		wg.Add(1)
		sem <- struct{}{}
		go func(lr likeRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
				fmt.Sprintf("%s/like_post/%d", serverAddr, lr.Owner.PostID), nil)
			req.Header.Set("Authorization", "Bearer "+lr.Actor.Token)

			lr.Created = time.Now()
			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("like error: %v\n", err)
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				fmt.Printf("like returned %d\n", resp.StatusCode)
				return
			}
			likesCh <- lr
		}(lr)
	}

	wg.Wait()
	close(likesCh)

	// --- 3) Poll owners' notification pages ---
	fmt.Println("Checking notification delivery...")
	var latencies []float64
	var latMu sync.Mutex
	var failCount int64
	var checksWg sync.WaitGroup

	for lr := range likesCh {
		checksWg.Add(1)
		go func(lr likeRecord) {
			defer checksWg.Done()
			deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
			marker := identity.Short(lr.Actor.ZenID)

			for time.Now().Before(deadline) {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, serverAddr+"/notifications", nil)
				req.Header.Set("Authorization", "Bearer "+lr.Owner.Token)
				resp, err := client.Do(req)
				if err != nil {
					time.Sleep(200 * time.Millisecond)
					continue
				}
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()

				if strings.Contains(string(body), marker) {
					lat := time.Since(lr.Created).Seconds() * 1000
					latMu.Lock()
					latencies = append(latencies, lat)
					latMu.Unlock()
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			latMu.Lock()
			failCount++
			latMu.Unlock()
		}(lr)
	}

	checksWg.Wait()

	// --- 4) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No successful deliveries recorded.")
		return
	}
	trimPercent := 1.0
	meanVal := trimmedMean(latencies, trimPercent)
	p50 := trimmedPercentile(latencies, 50, trimPercent)
	p90 := trimmedPercentile(latencies, 90, trimPercent)
	p99 := trimmedPercentile(latencies, 99, trimPercent)
	fmt.Printf("Delivery stats (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
		len(latencies), meanVal, p50, p90, p99, failCount)

	f, err := os.Create("e2e_latencies.csv")
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	w := csv.NewWriter(f)
	w.Write([]string{"latency_ms"})
	for _, v := range latencies {
		w.Write([]string{fmt.Sprintf("%.3f", v)})
	}
	w.Flush()
	f.Close()
	fmt.Println("Saved e2e_latencies.csv")
}

func mustMint(client *http.Client, server string) MintResp {
	req, _ := http.NewRequest(http.MethodPost, server+"/mint", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("mint error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var out MintResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Printf("decode mint resp error: %v\n", err)
		os.Exit(1)
	}
	return out
}

func mustPost(ctx context.Context, client *http.Client, server, token, content string) Post {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("content", content)
	mw.Close()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, server+"/create_post", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("post error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var p Post
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		fmt.Printf("decode post error: %v\n", err)
		os.Exit(1)
	}
	return p
}

// trimmedMean calculates the mean of a dataset excluding extreme values.
func trimmedMean(data []float64, trimPercent float64) float64 {
	data = trimmed(data, trimPercent)
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// trimmedPercentile returns a percentile value after trimming extremes.
func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	return percentile(trimmed(data, trimPercent), p)
}

func trimmed(data []float64, trimPercent float64) []float64 {
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	return data[trim : len(data)-trim]
}

// percentile calculates the requested percentile using linear interpolation.
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
