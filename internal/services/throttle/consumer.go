package throttle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/telemetry"
)

// Job types counted against the submitting user.
var countedJobTypes = []string{"IngestJob", "AccessJob", "ExecuteServiceJob"}

// Incrementer records one invocation.
type Incrementer interface {
	Increment(ctx context.Context, username string, component models.ThrottleComponent)
}

// ConsumerConfig configures a JobConsumer.
type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Entries read per call
	BatchSize int64
	// How long one read waits for new entries
	BlockTimeout time.Duration
	// Entries another consumer has held unacknowledged this long are
	// claimed on Start
	ClaimMinIdle time.Duration
}

// jobMessage is the part of a job event the counter needs.
type jobMessage struct {
	JobID     string `json:"jobId"`
	CreatedBy string `json:"createdBy"`
}

// JobConsumer reads job events from a Redis stream consumer group and counts
// each against its creator.
type JobConsumer struct {
	client  redis.UniversalClient
	cfg     ConsumerConfig
	counter Incrementer

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewJobConsumer creates a stopped consumer.
func NewJobConsumer(client redis.UniversalClient, cfg ConsumerConfig, counter Incrementer) *JobConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 2 * time.Second
	}
	if cfg.ClaimMinIdle <= 0 {
		cfg.ClaimMinIdle = time.Minute
	}
	return &JobConsumer{client: client, cfg: cfg, counter: counter}
}

// Start creates the consumer group if needed and begins reading. Entries
// delivered before a crash but never acknowledged are counted first. The
// loop runs until Stop is called or ctx is cancelled.
func (c *JobConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return errors.New("job consumer already running")
	}

	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", c.cfg.Group, c.cfg.Stream, err)
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.running = true

	go c.run(ctx, c.stop, c.done)

	logging.Infow("job consumer started", "stream", c.cfg.Stream, "group", c.cfg.Group, "consumer", c.cfg.Consumer)
	return nil
}

// Stop signals the loop and waits until the batch in flight has been
// counted and acknowledged, or until ctx expires.
func (c *JobConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stop)
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		logging.Infof("job consumer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job consumer did not stop: %w", ctx.Err())
	}
}

// Done is closed when the loop has exited.
func (c *JobConsumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *JobConsumer) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-readCtx.Done():
		}
	}()

	// Batches already read are finished even when the read side is cancelled.
	handleCtx := context.WithoutCancel(ctx)

	c.recoverPending(readCtx, handleCtx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.Reset()

	for readCtx.Err() == nil {
		streams, err := c.client.XReadGroup(readCtx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    c.cfg.BatchSize,
			Block:    c.cfg.BlockTimeout,
		}).Result()

		switch {
		case errors.Is(err, redis.Nil):
			bo.Reset()
			continue
		case err != nil:
			if readCtx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			logging.Warnf("reading job stream %s failed, retrying in %s: %v", c.cfg.Stream, wait, err)
			select {
			case <-time.After(wait):
			case <-readCtx.Done():
				return
			}
			continue
		}

		bo.Reset()
		for _, stream := range streams {
			c.handleBatch(handleCtx, stream.Messages)
		}
	}
}

// recoverPending counts entries left in the group's pending list: first the
// ones delivered to this consumer name, then idle ones claimed from other
// consumers. Failures are logged; the consumer then reads new entries as usual.
func (c *JobConsumer) recoverPending(readCtx, handleCtx context.Context) {
	recovered := 0

	for readCtx.Err() == nil {
		streams, err := c.client.XReadGroup(readCtx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, "0"},
			Count:    c.cfg.BatchSize,
			Block:    -1,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			logging.Warnf("reading pending job events of %s failed: %v", c.cfg.Consumer, err)
			break
		}
		n := 0
		for _, stream := range streams {
			c.handleBatch(handleCtx, stream.Messages)
			n += len(stream.Messages)
		}
		if n == 0 {
			break
		}
		recovered += n
	}

	start := "0-0"
	for readCtx.Err() == nil {
		messages, next, err := c.client.XAutoClaim(readCtx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.cfg.ClaimMinIdle,
			Start:    start,
			Count:    c.cfg.BatchSize,
		}).Result()
		if err != nil {
			logging.Warnf("claiming idle job events on %s failed: %v", c.cfg.Stream, err)
			break
		}
		c.handleBatch(handleCtx, messages)
		recovered += len(messages)
		if next == "" || next == "0-0" {
			break
		}
		start = next
	}

	if recovered > 0 {
		logging.Infow("recovered pending job events", "stream", c.cfg.Stream, "count", recovered)
	}
}

func (c *JobConsumer) handleBatch(ctx context.Context, messages []redis.XMessage) {
	if len(messages) == 0 {
		return
	}

	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		c.handle(ctx, msg)
		ids = append(ids, msg.ID)
	}

	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, ids...).Err(); err != nil {
		logging.Errorf("acknowledging %d job events failed: %v", len(ids), err)
	}
}

func (c *JobConsumer) handle(ctx context.Context, msg redis.XMessage) {
	jobType, _ := msg.Values["type"].(string)
	if !isCountedJobType(jobType) {
		logging.Debugf("skipping job event %s of type %q", msg.ID, jobType)
		telemetry.Identity().RecordJobEvent(ctx, telemetry.ResultSkipped)
		return
	}

	payload, _ := msg.Values["job"].(string)
	var job jobMessage
	if err := json.Unmarshal([]byte(payload), &job); err != nil || job.CreatedBy == "" {
		logging.Errorf("Error Reading Job Message %s from stream %s: %v", msg.ID, c.cfg.Stream, err)
		telemetry.Identity().RecordJobEvent(ctx, telemetry.ResultInvalid)
		return
	}

	c.counter.Increment(ctx, job.CreatedBy, models.ThrottleComponentJob)
	telemetry.Identity().RecordJobEvent(ctx, telemetry.ResultOK)
	logging.Debugf("throttle processed for job %s by %s", job.JobID, job.CreatedBy)
}

// isCountedJobType accepts a bare job type or one suffixed with a
// deployment space, e.g. IngestJob-int.
func isCountedJobType(jobType string) bool {
	for _, t := range countedJobTypes {
		if jobType == t || strings.HasPrefix(jobType, t+"-") {
			return true
		}
	}
	return false
}
