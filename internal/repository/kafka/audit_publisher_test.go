package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestAuditPublisher_Write(t *testing.T) {
	w := &recordingWriter{}
	p := &AuditPublisher{writer: w, topic: "medidoc.audit"}

	entry := &domain.AuditLog{
		ID:         uuid.New(),
		OccurredAt: time.Date(2026, time.April, 2, 9, 30, 0, 0, time.UTC),
		Action:     domain.ActionAppointmentCreate,
		TargetType: domain.TargetAppointment,
		TargetID:   "7c1e4a52-0d1b-4f7e-8a9c-2b3d4e5f6a7b",
	}
	require.NoError(t, p.Write(context.Background(), entry))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, entry.TargetID, string(msg.Key))
	assert.Equal(t, entry.OccurredAt, msg.Time)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "action", Value: []byte("APPOINTMENT_CREATE")})

	var decoded domain.AuditLog
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, entry.ID, decoded.ID)
	assert.Equal(t, entry.Action, decoded.Action)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestAuditPublisher_WriteError(t *testing.T) {
	p := &AuditPublisher{writer: &recordingWriter{err: errors.New("leader not available")}, topic: "medidoc.audit"}

	err := p.Write(context.Background(), &domain.AuditLog{Action: domain.ActionLogin})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "medidoc.audit")
	assert.Equal(t, "kafka", p.Name())
}

func TestNewAuditPublisher_WritesEachEventImmediately(t *testing.T) {
	p := NewAuditPublisher(config.AuditConfig{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "medidoc.audit"})
	defer p.Close()

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.Equal(t, "medidoc.audit", w.Topic)
}
