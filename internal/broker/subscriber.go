package broker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 30 * time.Second
)

// MessageHandler processes one raw message from a subscribed channel.
// Handlers must tolerate malformed payloads; a handler panic is
// recovered and logged so the subscription survives.
type MessageHandler func(channel string, payload []byte)

// Subscriber owns one long-lived channel subscription. It subscribes
// fresh on start (no replay of historical broker state), delivers each
// message to the handler, and resubscribes with exponential backoff
// when the connection drops. Messages published while disconnected are
// lost; status records and idempotent transitions absorb that gap.
type Subscriber struct {
	client  *Client
	channel string
	handler MessageHandler
	log     zerolog.Logger

	mu        sync.RWMutex
	connected bool
	stopped   bool
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewSubscriber creates a subscriber for a single channel.
func NewSubscriber(client *Client, channel string, handler MessageHandler, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		client:   client,
		channel:  channel,
		handler:  handler,
		log:      log.With().Str("component", "subscriber").Str("channel", channel).Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the subscription loop in a background goroutine.
func (s *Subscriber) Start() {
	go s.run()
}

// Stop terminates the subscription loop and waits for it to exit.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopChan)
	s.mu.Unlock()

	<-s.doneChan
}

// Connected reports whether the subscription is currently live.
func (s *Subscriber) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Channel returns the subscribed channel name.
func (s *Subscriber) Channel() string {
	return s.channel
}

func (s *Subscriber) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

func (s *Subscriber) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

// run is the subscription loop: subscribe, read until the connection
// drops, back off, resubscribe. Exits only on Stop.
func (s *Subscriber) run() {
	defer close(s.doneChan)

	attempt := 0
	for {
		if s.isStopped() {
			return
		}

		pubsub := s.client.Subscribe(context.Background(), s.channel)

		// Confirm the subscription before trusting the message channel
		confirmCtx, cancel := context.WithTimeout(context.Background(), s.client.timeout)
		_, err := pubsub.Receive(confirmCtx)
		cancel()
		if err != nil {
			_ = pubsub.Close()

			attempt++
			delay := calculateBackoff(attempt)
			s.log.Warn().Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Subscribe failed, retrying")

			select {
			case <-time.After(delay):
			case <-s.stopChan:
				return
			}
			continue
		}

		s.setConnected(true)
		if attempt > 0 {
			s.log.Info().Int("attempt", attempt).Msg("Resubscribed after reconnect")
		} else {
			s.log.Info().Msg("Subscribed")
		}
		attempt = 0

		s.readMessages(pubsub.Channel())
		_ = pubsub.Close()
		s.setConnected(false)

		if s.isStopped() {
			return
		}

		// Connection lost; loop around and resubscribe with backoff
		attempt = 1
		delay := calculateBackoff(attempt)
		s.log.Warn().Dur("delay", delay).Msg("Subscription lost, reconnecting")
		select {
		case <-time.After(delay):
		case <-s.stopChan:
			return
		}
	}
}

// readMessages delivers messages until the subscription closes or
// Stop is called.
func (s *Subscriber) readMessages(messages <-chan *redis.Message) {
	for {
		select {
		case <-s.stopChan:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.deliver(msg.Channel, []byte(msg.Payload))
		}
	}
}

// deliver invokes the handler with panic recovery. One poisonous
// message must not interrupt delivery of subsequent ones.
func (s *Subscriber) deliver(channel string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Str("channel", channel).
				Msg("Message handler panicked")
		}
	}()
	s.handler(channel, payload)
}

// calculateBackoff calculates exponential backoff delay
func calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: baseDelay * 2^(attempt-1)
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))

	// Cap at max delay
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}

	return time.Duration(delay)
}
