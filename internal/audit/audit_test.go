package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type failingSink struct{}

func (failingSink) Write(ctx context.Context, e Entry) error { return errors.New("down") }
func (failingSink) Close() error                             { return nil }

func TestKafkaSinkWritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, topic: "audit"}

	entry := NewEntry(ActionPublish, "wot.eu-MAIN-3", "ACTIVATED")
	entry.TrackingID = "trk-1"
	require.NoError(t, sink.Write(context.Background(), entry))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "wot.eu-MAIN-3", string(msg.Key))

	var decoded Entry
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, entry.EventID, decoded.EventID)
	assert.Equal(t, "trk-1", decoded.TrackingID)
	assert.Equal(t, "ACTIVATED", decoded.Status)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSinkWrapsWriteError(t *testing.T) {
	sink := &KafkaSink{writer: &fakeWriter{err: errors.New("no brokers")}, topic: "audit"}
	err := sink.Write(context.Background(), NewEntry(ActionPublish, "x-MAIN-1", "FAILED"))
	assert.ErrorContains(t, err, "no brokers")
}

func TestLogSinkWritesFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	entry := NewEntry(ActionMigrate, "wot.eu-MAIN-1", "Migrated")
	entry.Requester = "catool"
	require.NoError(t, sink.Write(context.Background(), entry))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "migrate", line["action"])
	assert.Equal(t, "catool", line["requester"])
	assert.Equal(t, "wot.eu-MAIN-1", line["catalog_code"])
}

func TestEmitterFillsDefaultsAndSwallowsErrors(t *testing.T) {
	w := &fakeWriter{}
	em := NewEmitter(&KafkaSink{writer: w, topic: "audit"}, "node-1", zerolog.Nop())

	em.Emit(context.Background(), Entry{Action: ActionTerminate, CatalogCode: "wot.eu-MAIN-2"})
	require.Len(t, w.messages, 1)

	var decoded Entry
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.NotEmpty(t, decoded.EventID)
	assert.False(t, decoded.CreatedAt.IsZero())
	assert.Equal(t, "node-1", decoded.Processor)

	assert.NotPanics(t, func() {
		NewEmitter(failingSink{}, "node-1", zerolog.Nop()).Emit(context.Background(), Entry{})
	})
}
