package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	appkafka "github.com/CoderLord25/ZenSocial/internal/broker"
	"github.com/CoderLord25/ZenSocial/internal/identity"
	"github.com/segmentio/kafka-go"
)

// Floods the interaction topic with synthetic events to measure producer
// throughput and load the notification worker.
func main() {
	var (
		total       int
		batchSize   int
		numWorkers  int
		owners      int
		kafkaBroker string
		topic       string
	)
	flag.IntVar(&total, "n", 100000, "total number of events to send")
	flag.IntVar(&batchSize, "batch", 100, "batch size for sending events")
	flag.IntVar(&numWorkers, "workers", 4, "number of parallel goroutines")
	flag.IntVar(&owners, "owners", 50, "number of distinct post owner ids")
	flag.StringVar(&kafkaBroker, "broker", "localhost:29092", "Kafka broker address")
	flag.StringVar(&topic, "topic", "zensocial-interactions", "interaction topic")
	flag.Parse()

	// Kafka writer with asynchronous sending enabled
	w := &kafka.Writer{
		Addr:     kafka.TCP(kafkaBroker),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Async:    true,
	}
	defer w.Close()

	actor, err := identity.NewZenID()
	if err != nil {
		panic(fmt.Sprintf("failed to mint actor id: %v", err))
	}
	types := []appkafka.EventType{appkafka.PostLiked, appkafka.PostReposted, appkafka.PostCommented}
	start := time.Now()

	var successCount uint64
	var failCount uint64

	jobs := make(chan int, total)
	var wg sync.WaitGroup

	// --- Start worker goroutines ---
	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]kafka.Message, 0, batchSize)

			flush := func() {
				if len(batch) == 0 {
					return
				}
				if err := w.WriteMessages(context.Background(), batch...); err != nil {
					atomic.AddUint64(&failCount, uint64(len(batch)))
					fmt.Printf("write error: %v\n", err)
				} else {
					atomic.AddUint64(&successCount, uint64(len(batch)))
				}
				batch = batch[:0]
			}

			for i := range jobs {
				msg, err := appkafka.InteractionEvent{
					Type:        types[i%len(types)],
					PostID:      int64(i + 1),
					PostOwnerID: int64(rand.Intn(owners) + 1),
					ActorID:     -1, // never a real owner, so every event notifies
					ActorZenID:  actor.String(),
					Created:     time.Now().UTC(),
				}.Encode()
				if err != nil {
					atomic.AddUint64(&failCount, 1)
					fmt.Printf("encode error: %v\n", err)
					continue
				}

				batch = append(batch, msg)
				if len(batch) >= batchSize {
					flush()
				}
			}
			flush()
		}()
	}

	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	// --- Benchmark results ---
	elapsed := time.Since(start)
	fmt.Printf("Total events: %d\n", total)
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount)/elapsed.Seconds())
}
