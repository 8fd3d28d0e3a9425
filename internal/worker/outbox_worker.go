package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"repairhub/internal/database"
	"repairhub/internal/domain"
	"repairhub/internal/metrics"
	"repairhub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// telegramPayload is persisted in NotificationTask.Payload for the telegram
// channel. Email tasks persist the ClientMessage itself.
type telegramPayload struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// OutboxWorker drains the notification_queue and delivers each task through
// its channel sender. Delivery order is local queue, then redis, then a DB
// poll for tasks whose retry time has come.
type OutboxWorker struct {
	db            *database.DB
	email         domain.EmailSender
	telegram      domain.TelegramSender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewOutboxWorker builds a worker with sane defaults. The redis client and
// either sender may be nil; a task for a channel without a sender fails
// permanently.
func NewOutboxWorker(db *database.DB, email domain.EmailSender, telegram domain.TelegramSender, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *OutboxWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &OutboxWorker{
		db:            db,
		email:         email,
		telegram:      telegram,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.NotificationTask, models.OutboxQueueSize),
		redisQueueKey: "notifications:queue",
		deadLetterKey: "notifications:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueEmail persists an email task and schedules it via redis or the
// in-memory queue.
func (w *OutboxWorker) EnqueueEmail(ctx context.Context, msg *models.ClientMessage) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if msg.Recipient == "" {
		return errors.New("recipient is required")
	}

	payloadBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	return w.enqueue(ctx, models.NotificationTask{
		Channel:   models.ChannelEmail,
		BookingID: msg.BookingID,
		Recipient: msg.Recipient,
		Payload:   string(payloadBytes),
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	})
}

// EnqueueTelegram persists a telegram task for a provider chat.
func (w *OutboxWorker) EnqueueTelegram(ctx context.Context, chatID int64, bookingID, text string) error {
	if chatID == 0 {
		return errors.New("chat id is required")
	}

	payloadBytes, err := json.Marshal(telegramPayload{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	return w.enqueue(ctx, models.NotificationTask{
		Channel:   models.ChannelTelegram,
		BookingID: bookingID,
		Recipient: fmt.Sprintf("%d", chatID),
		Payload:   string(payloadBytes),
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	})
}

func (w *OutboxWorker) enqueue(ctx context.Context, task models.NotificationTask) error {
	if err := w.db.CreateNotificationTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task dropped to polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingNotificationTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending notification tasks error")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *OutboxWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.NotificationTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task error")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	if err := w.deliver(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification(task.Channel, "delivered")
	if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed error")
	}
}

func (w *OutboxWorker) deliver(ctx context.Context, task *models.NotificationTask) error {
	switch task.Channel {
	case models.ChannelEmail:
		if w.email == nil {
			return errors.New("email sender not configured")
		}
		var msg models.ClientMessage
		if err := json.Unmarshal([]byte(task.Payload), &msg); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return w.email.Send(ctx, &msg)
	case models.ChannelTelegram:
		if w.telegram == nil {
			return errors.New("telegram sender not configured")
		}
		var payload telegramPayload
		if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return w.telegram.SendMessage(payload.ChatID, payload.Text)
	default:
		return fmt.Errorf("unknown channel: %s", task.Channel)
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		metrics.IncNotification(task.Channel, "failed")
		if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed error")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	metrics.IncNotification(task.Channel, "retried")
	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateNotificationTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry error")
	}
}

func (w *OutboxWorker) pushRedis(ctx context.Context, task models.NotificationTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, task *models.NotificationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter error")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push error")
	}
}
