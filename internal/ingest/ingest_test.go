package ingest

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeBroker struct {
	mu       sync.Mutex
	messages []published
	handlers map[string]MessageHandler
}

func (b *fakeBroker) Publish(topic string, qos byte, _ bool, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, published{topic, qos, payload})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ byte, h MessageHandler) error {
	if b.handlers == nil {
		b.handlers = make(map[string]MessageHandler)
	}
	b.handlers[topic] = h
	return nil
}

type fakeSubmitter struct {
	accept    bool
	submitted []*analytics.Session
}

func (f *fakeSubmitter) Submit(s *analytics.Session) bool {
	if f.accept {
		f.submitted = append(f.submitted, s)
	}
	return f.accept
}

func setup(t *testing.T) (*Ingestor, *analytics.Session, *fakeBroker, *fakeSubmitter) {
	t.Helper()
	reg := analytics.NewRegistry(4, analytics.SessionConfig{PulseCapacity: 4, FrameCapacity: 2}, nil, nil)
	t.Cleanup(reg.Close)
	s, err := reg.Create()
	require.NoError(t, err)
	broker := &fakeBroker{}
	sub := &fakeSubmitter{accept: true}
	return NewIngestor(reg, sub, broker, "rflab/", 1, nil), s, broker, sub
}

func TestTopics(t *testing.T) {
	in, _, broker, _ := setup(t)
	assert.Equal(t, []string{"rflab/+/pulses", "rflab/+/frames", "rflab/+/analyze"}, in.Topics())
	assert.Equal(t, "rflab/abc/report", in.ReportTopic("abc"))

	require.NoError(t, in.Subscribe(broker))
	assert.Len(t, broker.handlers, 3)
}

func TestHandlePulses(t *testing.T) {
	in, s, _, _ := setup(t)
	payload, err := json.Marshal(models.PulseBatch{Pulses: []models.Pulse{
		{WidthUS: 300, Level: 1}, {WidthUS: 900}, {WidthUS: 300, Level: 1},
		{WidthUS: 900}, {WidthUS: 300, Level: 1}, {WidthUS: 900},
	}})
	require.NoError(t, err)

	require.NoError(t, in.HandleMessage("rflab/"+s.ID+"/pulses", payload))
	snap := s.Snapshot()
	assert.Len(t, snap.Pulses, 4)
	assert.Equal(t, uint64(2), snap.DroppedPulses)
}

func TestHandleFrames(t *testing.T) {
	in, s, _, _ := setup(t)
	payload := []byte(`{"frames":[{"data":"aa55","timestamp_us":10,"rssi_dbm":-61,"frequency_hz":433920000}]}`)

	require.NoError(t, in.HandleMessage("rflab/"+s.ID+"/frames", payload))
	snap := s.Snapshot()
	require.Len(t, snap.Frames, 1)
	assert.Equal(t, []byte{0xAA, 0x55}, snap.Frames[0].Payload())
	assert.Equal(t, int16(-61), snap.Frames[0].RSSIdBm)
}

func TestHandleAnalyze(t *testing.T) {
	in, s, _, sub := setup(t)

	require.NoError(t, in.HandleMessage("rflab/"+s.ID+"/analyze", nil))
	require.Len(t, sub.submitted, 1)
	assert.Same(t, s, sub.submitted[0])

	sub.accept = false
	assert.ErrorIs(t, in.HandleMessage("rflab/"+s.ID+"/analyze", nil), ErrQueueFull)
}

func TestHandleErrors(t *testing.T) {
	in, s, _, _ := setup(t)

	assert.ErrorIs(t, in.HandleMessage("other/"+s.ID+"/pulses", nil), ErrBadTopic)
	assert.ErrorIs(t, in.HandleMessage("rflab/"+s.ID, nil), ErrBadTopic)
	assert.ErrorIs(t, in.HandleMessage("rflab/"+s.ID+"/unknown", nil), ErrBadTopic)
	assert.ErrorIs(t, in.HandleMessage("rflab/missing/pulses", []byte(`{}`)), analytics.ErrSessionNotFound)
	assert.Error(t, in.HandleMessage("rflab/"+s.ID+"/pulses", []byte(`{"pulses":`)))
	assert.Error(t, in.HandleMessage("rflab/"+s.ID+"/frames", []byte(`{"frames":[{"data":"zz"}]}`)))
}

func TestPublishReport(t *testing.T) {
	in, s, broker, _ := setup(t)

	require.NoError(t, in.PublishReport(analytics.Report{SessionID: s.ID, Frames: 3}))
	require.Len(t, broker.messages, 1)
	msg := broker.messages[0]
	assert.Equal(t, "rflab/"+s.ID+"/report", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var back analytics.Report
	require.NoError(t, json.Unmarshal(msg.payload, &back))
	assert.Equal(t, 3, back.Frames)
}
