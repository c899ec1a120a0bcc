package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/CoderLord25/ZenSocial/cmd/server"
	"github.com/CoderLord25/ZenSocial/cmd/worker"
	appkafka "github.com/CoderLord25/ZenSocial/internal/broker"
	config "github.com/CoderLord25/ZenSocial/internal/init"
	"github.com/CoderLord25/ZenSocial/internal/store"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	mode := cfg.Mode

	// Open SQLite and apply pending migrations
	st, err := store.New()
	if err != nil {
		log.Fatalf("Database initialisation failed: %v", err)
	}
	defer st.Close()

	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "server":
		// Interaction events are only published when enabled
		var kafkaWriter appkafka.KafkaWriter = appkafka.NopWriter{}
		if cfg.EventsEnabled {
			w, err := appkafka.NewKafkaWriter(kafkaCfg)
			if err != nil {
				log.Fatalf("Kafka writer init failed: %v", err)
			}
			kafkaWriter = w
		}
		defer kafkaWriter.Close()

		server.Run(ctx, st, kafkaWriter, cfg)
	case "worker":
		// Consume interaction events and write notifications
		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		w := worker.New(st, kafkaReader, 0, 0)
		w.Run(ctx)
		if err := kafkaReader.Close(); err != nil {
			log.Printf("Kafka reader close failed: %v", err)
		}
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	log.Println("Shutdown completed")
}
