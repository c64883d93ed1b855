package worker

// email_worker.go
// Processes email jobs from QueueEmail.
// On a new canje the admin gets a notification with the voucher PDF attached.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"mannypuntos/internal/infra"
	"mannypuntos/internal/model"
	"mannypuntos/internal/repository"
	"mannypuntos/internal/retry"
)

const EmailNuevoCanje = "nuevo_canje"

// EmailJob is the job envelope sent to QueueEmail.
type EmailJob struct {
	Tipo    string    `json:"tipo"`
	CanjeID uuid.UUID `json:"canje_id"`
}

// Sender delivers one message with an optional attachment.
type Sender interface {
	Send(to, subject, body, pdfPath string) error
}

// EmailWorker builds and sends admin notifications.
type EmailWorker struct {
	canjes      repository.CanjeRepository
	sender      Sender
	rdb         *redis.Client
	to          string
	storagePath string
	policy      retry.Policy
}

// NewEmailWorker creates an EmailWorker. An empty to disables delivery.
func NewEmailWorker(canjes repository.CanjeRepository, sender Sender, rdb *redis.Client, to, storagePath string) *EmailWorker {
	return &EmailWorker{
		canjes:      canjes,
		sender:      sender,
		rdb:         rdb,
		to:          to,
		storagePath: storagePath,
		policy:      retry.Policy{BaseDelay: 2 * time.Second, MaxAttempts: 3},
	}
}

// Process sends the notification, retrying SMTP failures with backoff.
func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) {
	var job EmailJob
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return
	}
	if w.to == "" || w.sender == nil {
		log.Debug().Str("canje_id", job.CanjeID.String()).Msg("email_worker: no recipient configured, skipping")
		return
	}
	if job.Tipo != EmailNuevoCanje {
		log.Warn().Str("tipo", job.Tipo).Msg("email_worker: unknown email type")
		return
	}

	subject, body, pdfPath, err := w.render(ctx, job.CanjeID)
	if err != nil {
		log.Error().Err(err).Str("canje_id", job.CanjeID.String()).Msg("email_worker: failed to build notification")
		return
	}

	err = w.policy.Do(ctx, func(attempt int) error {
		if err := w.sender.Send(w.to, subject, body, pdfPath); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("email_worker: send failed")
			return err
		}
		return nil
	})
	if err != nil {
		SendToDLQ(ctx, w.rdb, QueueEmail, JobEmail, raw, err.Error(), w.policy.MaxAttempts)
		return
	}
	log.Info().Str("to", w.to).Str("canje_id", job.CanjeID.String()).Msg("email_worker: notification sent")
}

func (w *EmailWorker) render(ctx context.Context, canjeID uuid.UUID) (subject, body, pdfPath string, err error) {
	canje, err := w.canjes.FindByID(ctx, canjeID)
	if err != nil {
		return "", "", "", fmt.Errorf("load canje: %w", err)
	}
	snap := model.SnapshotCanje(canje, canje.Cliente, canje.Producto)

	pdfPath, err = infra.GenerateCanjeVoucherFile(snap, w.storagePath)
	if err != nil {
		return "", "", "", err
	}
	subject = fmt.Sprintf("Nuevo canje: %s", snap.ProductoNombre)
	body = fmt.Sprintf("%s (%s) canjeó %s por %d puntos.\nCanje: %s\n",
		snap.ClienteNombre, snap.ClienteTelefono, snap.ProductoNombre, snap.PuntosCanjeados, snap.ID)
	return subject, body, pdfPath, nil
}
