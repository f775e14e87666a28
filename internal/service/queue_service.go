package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is a reliable job-id queue. A claimed id sits in a processing
// list until acked, with its claim time stamped in a sorted set. The
// reaper returns only claims older than a threshold to the queue, so a
// long run keeps its claim while an abandoned one is redelivered;
// delivery is at-least-once and consumers must tolerate redelivery.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, olderThan time.Duration, max int64) (int64, error)
}

// redisQueue implements Queue on two Redis lists plus a claims ZSET.
// Claim: BRPOPLPUSH queue -> processing (atomic move), ZADD claim time
// Ack:   LREM from processing, ZREM the claim stamp
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
	claimsKey     string
}

func NewRedisQueue(rdb *redis.Client, queueKey, processingKey string) Queue {
	return &redisQueue{
		rdb:           rdb,
		queueKey:      queueKey,
		processingKey: processingKey,
		claimsKey:     processingKey + ":claims",
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.queueKey, jobID).Err()
}

// ClaimBlocking waits up to timeout for a job id. timeout <= 0 blocks
// forever (worker daemon mode), in 1s slots so ctx cancellation is
// noticed. redis.Nil is returned when the wait expired empty.
func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := 1 * time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		wait := slot
		if !forever {
			remain := time.Until(deadline)
			if remain <= 0 {
				return "", redis.Nil
			}
			if remain < wait {
				wait = remain
			}
		}

		id, err := q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, wait).Result()
		if err == nil {
			// stamp the claim so the reaper can tell live from abandoned
			if zErr := q.rdb.ZAdd(ctx, q.claimsKey, redis.Z{
				Score:  float64(time.Now().Unix()),
				Member: id,
			}).Err(); zErr != nil {
				// can't track staleness => surface it
				return "", zErr
			}
			return id, nil
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		return "", err
	}
}

func (q *redisQueue) Ack(ctx context.Context, jobID string) error {
	if err := q.rdb.LRem(ctx, q.processingKey, 1, jobID).Err(); err != nil {
		return err
	}
	return q.rdb.ZRem(ctx, q.claimsKey, jobID).Err()
}

// RequeueStale moves up to max ids whose claim is older than olderThan
// from processing back to the queue. A younger claim belongs to a live
// worker and is left alone; the threshold must sit comfortably above
// the worst-case run duration.
func (q *redisQueue) RequeueStale(ctx context.Context, olderThan time.Duration, max int64) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()

	ids, err := q.rdb.ZRangeByScore(ctx, q.claimsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(cutoff, 10),
		Count: max,
	}).Result()
	if err != nil {
		return 0, err
	}

	var moved int64
	for _, id := range ids {
		removed, err := q.rdb.LRem(ctx, q.processingKey, 1, id).Result()
		if err != nil {
			return moved, err
		}
		if removed > 0 {
			if err := q.rdb.LPush(ctx, q.queueKey, id).Err(); err != nil {
				return moved, err
			}
			moved++
		}
		// drop the stamp either way; an id acked in the meantime leaves
		// only its stamp behind
		_ = q.rdb.ZRem(ctx, q.claimsKey, id).Err()
	}

	return moved, nil
}
