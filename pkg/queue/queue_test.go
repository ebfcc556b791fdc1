package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	require.NoError(t, client.Del(ctx, QueueEmails, QueueDLQ).Err())
	t.Cleanup(func() {
		client.Del(context.Background(), QueueEmails, QueueDLQ)
		client.Close()
	})
	return client
}

func TestNewJob(t *testing.T) {
	payload := EnrollMailPayload{Enroll: EnrollMailEnrollment{
		User:   EnrollMailUser{Name: "Bea", Email: "bea@example.com"},
		Meetup: EnrollMailMeetup{Title: "Talk"},
	}}
	job, err := NewJob(JobTypeEnrollMail, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeEnrollMail, job.Type)
	assert.Zero(t, job.Attempt)

	var decoded EnrollMailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Equal(t, "bea@example.com", decoded.Enroll.User.Email)
	assert.Equal(t, "Talk", decoded.Enroll.Meetup.Title)
}

func TestQueueFor_UnknownType(t *testing.T) {
	_, err := queueFor("nope")
	assert.Error(t, err)
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	client := setupTestRedis(t)
	q := NewQueue(client, nil)
	ctx := context.Background()

	job, err := q.EnqueueEnrollMail(ctx, EnrollMailPayload{Enroll: EnrollMailEnrollment{
		User:   EnrollMailUser{Name: "Bea", Email: "bea@example.com"},
		Meetup: EnrollMailMeetup{Title: "Talk"},
	}})
	require.NoError(t, err)

	got, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, QueueEmails, key)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobTypeEnrollMail, got.Type)
}

func TestQueue_RetryMovesToDLQ(t *testing.T) {
	client := setupTestRedis(t)
	q := NewQueue(client, nil)
	ctx := context.Background()

	job, err := NewJob(JobTypeEnrollMail, EnrollMailPayload{})
	require.NoError(t, err)

	for i := 0; i < MaxRetries-1; i++ {
		require.NoError(t, q.Retry(ctx, job))
	}
	n, err := client.LLen(ctx, QueueEmails).Result()
	require.NoError(t, err)
	assert.EqualValues(t, MaxRetries-1, n)

	require.NoError(t, q.Retry(ctx, job))
	dlq, err := client.LLen(ctx, QueueDLQ).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, dlq)
}

func TestQueue_DeadLetter(t *testing.T) {
	client := setupTestRedis(t)
	q := NewQueue(client, nil)
	ctx := context.Background()

	job, err := NewJob(JobTypeEnrollMail, EnrollMailPayload{})
	require.NoError(t, err)
	require.NoError(t, q.DeadLetter(ctx, job))

	n, err := client.LLen(ctx, QueueEmails).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	dlq, err := client.LLen(ctx, QueueDLQ).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, dlq)
}
