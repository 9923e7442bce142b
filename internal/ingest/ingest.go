package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
	"github.com/tworjaga/flipper-rf-lab/internal/metrics"
	"github.com/tworjaga/flipper-rf-lab/internal/models"
)

// Суффиксы топиков <prefix>/<session>/<kind>
const (
	KindPulses  = "pulses"
	KindFrames  = "frames"
	KindAnalyze = "analyze"
	KindReport  = "report"
)

var (
	ErrBadTopic  = errors.New("unexpected topic")
	ErrQueueFull = errors.New("analysis queue full")
)

// Publisher отправка сообщений брокеру
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Subscriber подписка на топики
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// Submitter постановка сессии в очередь анализа
type Submitter interface {
	Submit(s *analytics.Session) bool
}

// Ingestor раскладывает пакеты из MQTT по сессиям
type Ingestor struct {
	registry *analytics.Registry
	analyzer Submitter
	pub      Publisher
	prefix   string
	qos      byte
	logger   *zap.Logger
}

func NewIngestor(registry *analytics.Registry, analyzer Submitter, pub Publisher, prefix string, qos byte, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		registry: registry,
		analyzer: analyzer,
		pub:      pub,
		prefix:   strings.TrimSuffix(prefix, "/"),
		qos:      qos,
		logger:   logger,
	}
}

// Topics шаблоны топиков для подписки
func (i *Ingestor) Topics() []string {
	return []string{
		i.prefix + "/+/" + KindPulses,
		i.prefix + "/+/" + KindFrames,
		i.prefix + "/+/" + KindAnalyze,
	}
}

// Subscribe подписывает HandleMessage на все топики приема
func (i *Ingestor) Subscribe(sub Subscriber) error {
	for _, t := range i.Topics() {
		if err := sub.Subscribe(t, i.qos, i.HandleMessage); err != nil {
			return err
		}
		i.logger.Info("subscribed", zap.String("topic", t))
	}
	return nil
}

// ReportTopic топик публикации отчета сессии
func (i *Ingestor) ReportTopic(sessionID string) string {
	return i.prefix + "/" + sessionID + "/" + KindReport
}

func (i *Ingestor) parseTopic(topic string) (sessionID, kind string, err error) {
	rest, ok := strings.CutPrefix(topic, i.prefix+"/")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	return parts[0], parts[1], nil
}

// HandleMessage принимает пакет импульсов или кадров либо запрос анализа
func (i *Ingestor) HandleMessage(topic string, payload []byte) error {
	sessionID, kind, err := i.parseTopic(topic)
	if err != nil {
		return err
	}
	s, err := i.registry.Get(sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	switch kind {
	case KindPulses:
		var batch models.PulseBatch
		if err := json.Unmarshal(payload, &batch); err != nil {
			return fmt.Errorf("invalid pulse batch: %w", err)
		}
		res := s.AddPulses(batch.Pulses)
		metrics.PulsesReceived.WithLabelValues("mqtt").Add(float64(res.Accepted))
		metrics.SamplesDropped.WithLabelValues("pulse").Add(float64(res.Dropped))
		i.logger.Debug("pulses ingested",
			zap.String("session_id", sessionID),
			zap.Int("accepted", res.Accepted),
			zap.Int("dropped", res.Dropped),
		)
	case KindFrames:
		var batch models.FrameBatch
		if err := json.Unmarshal(payload, &batch); err != nil {
			return fmt.Errorf("invalid frame batch: %w", err)
		}
		res := s.AddFrames(batch.Frames)
		metrics.FramesReceived.WithLabelValues("mqtt").Add(float64(res.Accepted))
		metrics.SamplesDropped.WithLabelValues("frame").Add(float64(res.Dropped))
		i.logger.Debug("frames ingested",
			zap.String("session_id", sessionID),
			zap.Int("accepted", res.Accepted),
			zap.Int("dropped", res.Dropped),
		)
	case KindAnalyze:
		if !i.analyzer.Submit(s) {
			return fmt.Errorf("session %s: %w", sessionID, ErrQueueFull)
		}
	default:
		return fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	return nil
}

// PublishReport публикует отчет в топик сессии
func (i *Ingestor) PublishReport(r analytics.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return i.pub.Publish(i.ReportTopic(r.SessionID), i.qos, false, data)
}
