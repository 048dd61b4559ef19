package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goldmanhw/storefront/config"
	"github.com/goldmanhw/storefront/internal/adapter"
	"github.com/goldmanhw/storefront/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	partitions        = 1
	replicationFactor = 3
	compact           = "compact"
	minISR            = "2"
	// tombstone retention, one day
	deleteRetentionMs = "86400000"
)

func main() {
	sigCtx, closeApp := sigctx.NotifyContext(context.Background())
	defer closeApp()

	cfg := config.Load()

	cl := createClient(cfg)
	defer cl.Close()

	topics := []string{cfg.Broker.Topics.Products, cfg.Broker.Topics.Offers}

	printStart(topics)
	defer printComplete(time.Now())

	if err := makeTopics(sigCtx, cl, topics...); err != nil {
		printFail(err)
		return
	}
}

func createClient(cfg config.Config) *kadm.Client {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Broker.SeedBrokers...)}
	if t := cfg.Broker.TLS; t.Enabled() {
		opts = append(opts, kgo.DialTLSConfig(
			adapter.MakeTLSConfig(t.CA, t.Cert, t.Key),
		))
	}
	cl, err := kadm.NewOptClient(opts...)
	if err != nil {
		panic(err) // develop mistake
	}
	return cl
}

// makeTopics creates the collection topics. A single partition keeps
// every collection totally ordered.
func makeTopics(ctx context.Context, cl *kadm.Client, topics ...string) error {
	cleanupPolicy, isr, retention := compact, minISR, deleteRetentionMs

	config := map[string]*string{
		"cleanup.policy":      &cleanupPolicy,
		"min.insync.replicas": &isr,
		"delete.retention.ms": &retention,
	}

	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		config,
		topics...,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		if err := res.Err; err != nil {
			if errors.Is(err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, fmt.Errorf("topic %q: %w", res.Topic, err))
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

func printStart(topics []string) {
	fmt.Println("initializing collection topics...")
	for _, t := range topics {
		fmt.Printf("\t- %q\n", t)
	}
	fmt.Println()
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}
