// Package notify is the boundary to the notification collaborator. The
// scheduling core publishes status-change events here; actual delivery
// (email, SMS) is handled by a separate consumer.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicore/peds-scheduling/internal/scheduling"
)

const Channel = "clinic:notifications"

type message struct {
	Event         string `json:"event"`
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	Status        string `json:"status"`
	OccurredAt    string `json:"occurred_at"`
}

// RedisNotifier publishes appointment changes to a Redis channel.
type RedisNotifier struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisNotifier(client *redis.Client, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, log: log}
}

func (n *RedisNotifier) AppointmentChanged(ctx context.Context, appt *scheduling.Appointment, event string) {
	msg := message{
		Event:         event,
		AppointmentID: appt.ID.String(),
		PatientID:     appt.PatientID.String(),
		Status:        string(appt.Status),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		n.log.Error().Err(err).Str("event", event).Msg("marshal notification")
		return
	}
	if err := n.client.Publish(ctx, Channel, data).Err(); err != nil {
		// Notification loss is tolerable; the booking or transition itself
		// already committed.
		n.log.Error().Err(err).
			Str("event", event).
			Str("appointment_id", appt.ID.String()).
			Msg("publish notification")
	}
}

// LogNotifier records changes to the log only. Used when Redis is absent
// (tests, dev mode).
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AppointmentChanged(_ context.Context, appt *scheduling.Appointment, event string) {
	n.log.Info().
		Str("event", event).
		Str("appointment_id", appt.ID.String()).
		Str("patient_id", appt.PatientID.String()).
		Str("status", string(appt.Status)).
		Msg("appointment changed")
}
