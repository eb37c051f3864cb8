package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/core/events"
	"github.com/frahmantamala/acuhire/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []amqp.Publishing
	routedTo   []string
	prefetch   int
	closed     bool
	declareErr error
	publishErr error
	deliveries chan amqp.Delivery
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 8)}
}

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, c.declareErr
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.routedTo = append(c.routedTo, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeChannel) ConsumeWithContext(context.Context, string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) messages() []amqp.Publishing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]amqp.Publishing(nil), c.published...)
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type ackOutcome struct {
	tag     uint64
	acked   bool
	requeue bool
}

// recordingAcker stands in for the broker side of a delivery.
type recordingAcker struct {
	mu       sync.Mutex
	outcomes []ackOutcome
}

func (a *recordingAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes = append(a.outcomes, ackOutcome{tag: tag, acked: true})
	return nil
}

func (a *recordingAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes = append(a.outcomes, ackOutcome{tag: tag, requeue: requeue})
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *recordingAcker) seen() []ackOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ackOutcome(nil), a.outcomes...)
}

var _ = Describe("Forwarder", func() {
	var ch *fakeChannel

	BeforeEach(func() {
		ch = newFakeChannel()
	})

	It("declares the default durable queue", func() {
		_, err := audit.NewForwarder(ch, "", logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(ch.declared).To(Equal([]string{audit.DefaultQueue}))
	})

	It("closes the channel when the queue cannot be declared", func() {
		ch.declareErr = errors.New("access refused")
		_, err := audit.NewForwarder(ch, "audit.test", logger.Discard())
		Expect(err).To(MatchError(ContainSubstring("declare queue audit.test")))
		Expect(ch.isClosed()).To(BeTrue())
	})

	It("publishes recorded entries as persistent JSON messages", func() {
		fwd, err := audit.NewForwarder(ch, "audit.test", logger.Discard())
		Expect(err).NotTo(HaveOccurred())

		bus := events.NewEventBus(logger.Discard())
		fwd.Subscribe(bus)
		svc := audit.NewService(&memoryRepo{}, bus, logger.Discard())
		entry := audit.NewEntry(audit.ActionSecurityEvent, "", audit.RequestMeta{IPAddress: "198.51.100.2"},
			&audit.Details{Status: audit.StatusFailure})
		Expect(svc.Record(context.Background(), entry)).To(Succeed())
		Expect(bus.Drain(context.Background())).To(Succeed())

		msgs := ch.messages()
		Expect(msgs).To(HaveLen(1))
		msg := msgs[0]
		Expect(ch.routedTo).To(Equal([]string{"audit.test"}))
		Expect(msg.ContentType).To(Equal("application/json"))
		Expect(msg.DeliveryMode).To(Equal(amqp.Persistent))
		Expect(msg.Type).To(Equal(events.EventTypeAuditRecorded))

		var evt events.AuditRecordedEvent
		Expect(json.Unmarshal(msg.Body, &evt)).To(Succeed())
		Expect(msg.MessageId).To(Equal(evt.ID))
		Expect(evt.ActionType).To(Equal(string(audit.ActionSecurityEvent)))
		Expect(evt.IPAddress).To(Equal("198.51.100.2"))
		Expect(evt.Status).To(Equal(audit.StatusFailure))
		Expect(evt.UserID).To(BeEmpty())
	})

	It("reports publish failures with the event id", func() {
		fwd, err := audit.NewForwarder(ch, "audit.test", logger.Discard())
		Expect(err).NotTo(HaveOccurred())
		ch.publishErr = amqp.ErrClosed

		evt := events.NewAuditRecordedEvent("entry-1", "user_login", "u1", "", audit.StatusSuccess, time.Now())
		err = fwd.Handle(context.Background(), evt)
		Expect(err).To(MatchError(amqp.ErrClosed))
		Expect(err.Error()).To(ContainSubstring(evt.ID))
	})
})

var _ = Describe("Consume", func() {
	var (
		ch     *fakeChannel
		acker  *recordingAcker
		ctx    context.Context
		cancel context.CancelFunc
		done   chan error
	)

	body := func(entryID string) []byte {
		b, err := json.Marshal(events.NewAuditRecordedEvent(entryID, "user_login", "u1", "", audit.StatusSuccess, time.Now()))
		Expect(err).NotTo(HaveOccurred())
		return b
	}

	deliver := func(tag uint64, payload []byte, redelivered bool) {
		ch.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: tag, Body: payload, Redelivered: redelivered}
	}

	start := func(handle func(context.Context, events.AuditRecordedEvent) error) {
		done = make(chan error, 1)
		go func() { done <- audit.Consume(ctx, ch, "audit.test", logger.Discard(), handle) }()
	}

	BeforeEach(func() {
		ch = newFakeChannel()
		acker = &recordingAcker{}
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	It("acks handled events and stops cleanly when cancelled", func() {
		var (
			mu   sync.Mutex
			seen []string
		)
		start(func(_ context.Context, evt events.AuditRecordedEvent) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, evt.EntryID)
			return nil
		})
		deliver(1, body("a"), false)
		deliver(2, body("b"), false)

		Eventually(acker.seen).Should(Equal([]ackOutcome{{tag: 1, acked: true}, {tag: 2, acked: true}}))
		mu.Lock()
		Expect(seen).To(Equal([]string{"a", "b"}))
		mu.Unlock()
		Expect(ch.prefetch).To(Equal(16))
		Expect(ch.declared).To(Equal([]string{"audit.test"}))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
		Expect(ch.isClosed()).To(BeTrue())
	})

	It("requeues a failed event once, then drops it", func() {
		start(func(context.Context, events.AuditRecordedEvent) error { return errors.New("downstream busy") })
		deliver(7, body("a"), false)
		deliver(8, body("a"), true)

		Eventually(acker.seen).Should(Equal([]ackOutcome{{tag: 7, requeue: true}, {tag: 8, requeue: false}}))
	})

	It("drops undecodable messages without calling the handler", func() {
		called := make(chan struct{}, 1)
		start(func(context.Context, events.AuditRecordedEvent) error {
			called <- struct{}{}
			return nil
		})
		deliver(3, []byte("not json"), false)

		Eventually(acker.seen).Should(Equal([]ackOutcome{{tag: 3, requeue: false}}))
		Consistently(called, 20*time.Millisecond).ShouldNot(Receive())
	})

	It("fails when the broker closes the delivery channel", func() {
		start(func(context.Context, events.AuditRecordedEvent) error { return nil })
		close(ch.deliveries)

		Eventually(done).Should(Receive(MatchError(ContainSubstring("closed"))))
	})
})
