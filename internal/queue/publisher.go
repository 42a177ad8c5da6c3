// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queue hands triaged records to downstream workers by publishing
// Celery-compatible tasks to a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/triage"
)

const (
	// DefaultQueue is the Redis list workers consume with `celery worker -Q triage`.
	DefaultQueue = "triage"

	// TaskName is the Celery task that handles one triaged record.
	TaskName = "mailpipe.tasks.handle_triaged"
)

// Publisher pushes triage hand-offs to Redis in Celery task format.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a publisher targeting queueName.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// Handoff is the task argument: which record to process and why.
type Handoff struct {
	Store    string          `json:"store"`
	Decision triage.Decision `json:"decision"`
}

type celeryTask struct {
	ID      string  `json:"id"`
	Task    string  `json:"task"`
	Args    []any   `json:"args"`
	Kwargs  any     `json:"kwargs"`
	Retries int     `json:"retries"`
	ETA     *string `json:"eta"`
}

type celeryMessage struct {
	Body            string         `json:"body"`
	ContentEncoding string         `json:"content-encoding"`
	ContentType     string         `json:"content-type"`
	Headers         map[string]any `json:"headers"`
	Properties      map[string]any `json:"properties"`
}

// BuildMessage wraps a hand-off in the Celery envelope for queueName.
func BuildMessage(taskID, queueName string, h Handoff) ([]byte, error) {
	handoffJSON, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal handoff: %w", err)
	}

	taskBody, err := json.Marshal(celeryTask{
		ID:     taskID,
		Task:   TaskName,
		Args:   []any{string(handoffJSON)},
		Kwargs: map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal celery task: %w", err)
	}

	msg := celeryMessage{
		Body:            string(taskBody),
		ContentEncoding: "utf-8",
		ContentType:     "application/json",
		Headers: map[string]any{
			"lang":    "py",
			"task":    TaskName,
			"id":      taskID,
			"retries": 0,
		},
		Properties: map[string]any{
			"correlation_id": taskID,
			"delivery_mode":  2,
			"delivery_tag":   taskID,
			"body_encoding":  "utf-8",
			"exchange":       queueName,
			"routing_key":    queueName,
			"delivery_info": map[string]string{
				"exchange":    queueName,
				"routing_key": queueName,
			},
		},
	}

	out, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal celery message: %w", err)
	}
	return out, nil
}

// PublishDecision publishes one triaged record from store.
func (p *Publisher) PublishDecision(ctx context.Context, store string, d triage.Decision) error {
	taskID := uuid.NewString()
	msg, err := BuildMessage(taskID, p.queueName, Handoff{Store: store, Decision: d})
	if err != nil {
		return err
	}

	// Celery consumes with BRPOP, so producers LPUSH.
	if err := p.rdb.LPush(ctx, p.queueName, msg).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published triage hand-off",
		"task_id", taskID,
		"key", d.Key,
		"level", d.Level,
		"store", store,
		"queue", p.queueName,
	)
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
