package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error {
	return m.errorsCh
}

func (m *mockConsumerGroup) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	if m.errorsCh != nil {
		close(m.errorsCh)
	}
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return m.topic }
func (m *mockClaim) Partition() int32                         { return m.partition }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

func TestTerminalMarker(t *testing.T) {
	if Terminal(nil) != nil {
		t.Fatal("Terminal(nil) must be nil")
	}

	cause := errors.New("bad payload")
	err := Terminal(cause)
	if !IsTerminal(err) {
		t.Fatal("IsTerminal() = false for wrapped error")
	}
	if !errors.Is(err, cause) {
		t.Fatal("terminal error does not unwrap to cause")
	}
	if IsTerminal(cause) {
		t.Fatal("IsTerminal() = true for bare error")
	}
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	errorsCh := make(chan error, 1)
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
			consumeCalls++
			cancel()
			return nil
		},
		closeFn: func() error {
			close(errorsCh)
			return nil
		},
	}

	consumer := &Consumer{
		consumer:   group,
		topics:     []string{TopicOrderRequests},
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     log.WithField("test", "consumer"),
		maxRetries: 2,
	}

	errorsCh <- errors.New("background error")
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := consumer.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if consumeCalls == 0 {
		t.Fatal("expected consume call")
	}
}

func TestConsumeClaimMarksHandledMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:  log.WithField("test", "claim"),
	}

	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: TopicOrderRequests, messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- &sarama.ConsumerMessage{Topic: TopicOrderRequests, Offset: 1, Key: []byte("k"), Value: []byte("{}")}
	close(claim.messages)

	if err := consumer.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if len(session.marked) != 1 {
		t.Fatalf("expected one marked message, got %d", len(session.marked))
	}
}

func TestTerminalErrorGoesToDLQWithoutRetry(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var payload map[string]interface{}
		if err := json.Unmarshal(value, &payload); err != nil {
			return err
		}
		if payload["original_topic"] != TopicOrderRequests {
			return errors.New("dlq payload missing original topic")
		}
		return nil
	})

	attempts := 0
	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error {
			attempts++
			return Terminal(errors.New("validation failed"))
		},
		logger:      log.WithField("test", "terminal"),
		dlqProducer: &Producer{producer: mockProducer, logger: log.WithField("test", "dlq")},
		maxRetries:  3,
	}

	msg := &sarama.ConsumerMessage{Topic: TopicOrderRequests, Key: []byte("o1"), Value: []byte(`{"orderId":"o1"}`)}
	if err := consumer.handleMessageWithRetry(context.Background(), msg); err != nil {
		t.Fatalf("expected dead-lettered message to be consumed: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("terminal error was retried %d times", attempts)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTransientErrorRetriesThenDeadLetters(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	attempts := 0
	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error {
			attempts++
			return errors.New("storage unavailable")
		},
		logger:      log.WithField("test", "transient"),
		dlqProducer: &Producer{producer: mockProducer, logger: log.WithField("test", "dlq")},
		maxRetries:  2,
	}

	msg := &sarama.ConsumerMessage{Topic: TopicOrderRequests, Key: []byte("o1"), Value: []byte(`{}`)}
	if err := consumer.handleMessageWithRetry(context.Background(), msg); err != nil {
		t.Fatalf("expected dead-lettered message to be consumed: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTransientErrorRecoversOnRetry(t *testing.T) {
	attempts := 0
	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error {
			attempts++
			if attempts < 2 {
				return errors.New("temporary")
			}
			return nil
		},
		logger:     log.WithField("test", "recover"),
		maxRetries: 3,
	}

	msg := &sarama.ConsumerMessage{Topic: TopicOrderRequests, Value: []byte(`{}`)}
	if err := consumer.handleMessageWithRetry(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestNoDLQProducerReturnsError(t *testing.T) {
	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error {
			return Terminal(errors.New("validation failed"))
		},
		logger:     log.WithField("test", "no-dlq"),
		maxRetries: 1,
	}

	msg := &sarama.ConsumerMessage{Topic: TopicOrderRequests, Value: []byte(`{}`)}
	if err := consumer.handleMessageWithRetry(context.Background(), msg); err == nil {
		t.Fatal("expected error when no dlq producer is configured")
	}
}
