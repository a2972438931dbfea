package scheduler

import (
	"context"
	"fmt"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/platform/apperr"
	"dispatch_bot_backend/platform/config"
	"dispatch_bot_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// AppointmentReader loads the appointment a reminder refers to.
type AppointmentReader interface {
	GetAppointment(ctx context.Context, id int64) (domain.Appointment, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	appts  AppointmentReader
	out    conversation.Messenger
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, appts AppointmentReader, out conversation.Messenger, log *logger.Logger) (*Worker, error) {
	opt, err := connOpt(cfg)
	if err != nil {
		return nil, err
	}
	queue := queueName(cfg)

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		appts:  appts,
		out:    out,
		log:    log,
	}

	mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.remind(ctx, payload)
}

func (w *Worker) remind(ctx context.Context, payload AppointmentReminderPayload) error {
	appt, err := w.appts.GetAppointment(ctx, payload.AppointmentID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if appt.Status != domain.AppointmentScheduled || payload.To == "" {
		return nil
	}

	msg := conversation.Text("⏰ Lembrete: sua visita de *%s* está marcada para %s.\n\nSe precisar cancelar, envie uma mensagem e escolha a opção 5 do menu.",
		appt.Specialty, domain.FormatDateTime(appt.ScheduledAt))
	if err := w.out.Send(ctx, payload.To, msg); err != nil {
		return fmt.Errorf("send reminder for appointment %d: %w", appt.ID, err)
	}
	w.log.Info("appointment reminder sent", "appointment_id", appt.ID)
	return nil
}
