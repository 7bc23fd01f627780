package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type testSchedulerConfig struct {
	redisURL    string
	tlsInsecure bool
	queue       string
	concurrency int
	interval    time.Duration
}

func (c testSchedulerConfig) GetRedisURL() string                { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool          { return c.tlsInsecure }
func (c testSchedulerConfig) GetAsynqQueueName() string          { return c.queue }
func (c testSchedulerConfig) GetAsynqConcurrency() int           { return c.concurrency }
func (c testSchedulerConfig) GetFollowUpInterval() time.Duration { return c.interval }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error when redis url is missing")
	}
}

func TestNewClientRejectsMalformedRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{redisURL: "://bad"}); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestClientEnqueueFollowUpRun(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewClient(testSchedulerConfig{
		redisURL: "redis://" + mr.Addr(),
		queue:    "crm",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	if err := client.EnqueueFollowUpRun(context.Background(), FollowUpRunPayload{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	found := false
	for _, key := range mr.Keys() {
		if strings.Contains(key, "crm") {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected task keys for queue crm, got %v", mr.Keys())
	}
}

func TestNilClientIsNoOp(t *testing.T) {
	var client *Client
	if err := client.EnqueueFollowUpRun(context.Background(), FollowUpRunPayload{}); err != nil {
		t.Fatalf("nil client must be a no-op, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("nil client close must be a no-op, got %v", err)
	}
}
