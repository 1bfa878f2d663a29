package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fathima-sithara/studycircle-realtime/internal/metrics"
)

// DomainEvent is what external consumers (notifications, analytics)
// receive for every committed mutation.
type DomainEvent struct {
	Type     string      `json:"type"`
	Room     string      `json:"room,omitempty"`
	ActorID  string      `json:"actorId,omitempty"`
	Payload  interface{} `json:"payload"`
	Occurred time.Time   `json:"occurredAt"`
}

// Publisher hands domain events to the outside world. Implementations
// must not block the caller.
type Publisher interface {
	Publish(e DomainEvent)
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(DomainEvent) {}
func (NoopPublisher) Close() error        { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events and writes them from a single worker,
// behind a circuit breaker so an unavailable cluster fails fast.
type KafkaPublisher struct {
	writer messageWriter
	cb     *gobreaker.CircuitBreaker
	log    *zap.SugaredLogger
	queue  chan DomainEvent
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.SugaredLogger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log *zap.SugaredLogger) *KafkaPublisher {
	st := gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	p := &KafkaPublisher{
		writer: w,
		cb:     gobreaker.NewCircuitBreaker(st),
		log:    log,
		queue:  make(chan DomainEvent, 1024),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish enqueues e, dropping it when the queue is full.
func (p *KafkaPublisher) Publish(e DomainEvent) {
	if e.Occurred.IsZero() {
		e.Occurred = time.Now().UTC()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		metrics.PublishFailures.Inc()
		p.log.Warnw("event queue full, dropping", "type", e.Type, "room", e.Room)
	}
}

func (p *KafkaPublisher) run() {
	defer p.wg.Done()
	for e := range p.queue {
		p.write(e)
	}
}

func (p *KafkaPublisher) write(e DomainEvent) {
	b, err := json.Marshal(e)
	if err != nil {
		p.log.Errorw("marshal domain event", "type", e.Type, "err", err)
		return
	}
	_, err = p.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return nil, p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(e.Room),
			Value: b,
			Time:  e.Occurred,
		})
	})
	if err != nil {
		metrics.PublishFailures.Inc()
		p.log.Warnw("publish domain event", "type", e.Type, "room", e.Room, "err", err)
	}
}

// Close flushes the queue and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.writer.Close()
}
