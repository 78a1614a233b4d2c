package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"horizon/models"
	"horizon/services/notification"
	"horizon/services/tasks"
	"horizon/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

// InitReminderWorker runs the async reminder worker in background.
func InitReminderWorker(mailSvc notification.MailService) {
	srv := asynq.NewServer(
		utils.ReminderQueueOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeReminderSend, handleReminderTask(mailSvc))

	// Start Redis health monitor
	go monitorRedisConnection()

	// Start async worker with retry logic
	go func() {
		log.Println("[ReminderWorker] Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[ReminderWorker] Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[ReminderWorker] Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

func handleReminderTask(mailSvc notification.MailService) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[ReminderHandler] Invalid payload: %v", err)
			return err
		}

		log.Printf("[ReminderHandler] Sending reminder for appointment %s to %s", p.AppointmentID, p.Email)

		meetLink := p.MeetLink
		if meetLink == "" {
			meetLink = "link not available"
		}
		body := fmt.Sprintf(
			"Hi %s,\n\nThis is a reminder of your upcoming appointment:\n\nStart Time: %s\nMeeting Link: %s\n\nSee you soon!",
			p.Name, p.StartTime.Format("Mon, 02 Jan 2006 15:04 MST"), meetLink)

		if err := mailSvc.SendMail(p.Email, "Appointment reminder", body); err != nil {
			log.Printf("[ReminderHandler] Failed to send reminder email: %v", err)
			return err
		}
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	opt := utils.ReminderQueueOpt()
	client := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[ReminderWorker] Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
