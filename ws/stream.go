package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	appconfig "hyperflow/config"
	"hyperflow/logger"
	"hyperflow/models"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

// wsJSON decodes inbound frames on the hot read path.
var wsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Conn is the minimal surface of one websocket connection. The gorilla
// *websocket.Conn satisfies it; tests substitute a scripted connection.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens one connection to the venue's streaming endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

func gorillaDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Stream multiplexes many logical subscribers over one shared connection.
// Each distinct topic is subscribed on the wire once regardless of how many
// local subscribers hold it; control frames go out only for the first
// subscriber of a topic and after the last one leaves. A lost connection is
// redialed and every registered topic resubscribed, so subscribers keep
// their ids and channels across reconnects.
type Stream struct {
	config *appconfig.Config
	dial   Dialer
	log    *logger.Log

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	conn    Conn
	nextID  int
	topics  map[string]models.Subscription
	sinks   map[string]map[int]*sink
	ids     map[int]string
}

func NewStream(cfg *appconfig.Config) *Stream {
	return &Stream{
		config: cfg,
		dial:   gorillaDialer,
		log:    logger.GetLogger(),
		topics: make(map[string]models.Subscription),
		sinks:  make(map[string]map[int]*sink),
		ids:    make(map[int]string),
	}
}

// Start dials the venue and begins the read loop. Topics registered before
// Start are subscribed as soon as the connection is up.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("stream is already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.run()

	s.log.WithComponent("stream").WithFields(logger.Fields{
		"url": s.config.Venue.WsURL,
	}).Info("stream starting")
	return nil
}

// Stop tears down the connection and waits for the read loop and all
// subscriber pumps to exit. Subscriber channels are not closed; they belong
// to the subscribers.
func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	for _, group := range s.sinks {
		for _, sk := range group {
			sk.stop()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.WithComponent("stream").Info("stream stopped")
}

// Subscribe registers ch as a subscriber of the topic and returns the
// subscription id used to unsubscribe. The channel stays owned by the
// caller; deliveries never block the shared read loop.
func (s *Stream) Subscribe(sub models.Subscription, ch chan<- models.WsMessage) (int, error) {
	key := sub.Key()

	s.mu.Lock()
	s.nextID++
	id := s.nextID

	sk := newSink(id, sub, ch)
	first := len(s.sinks[key]) == 0
	if s.sinks[key] == nil {
		s.sinks[key] = make(map[int]*sink)
	}
	s.sinks[key][id] = sk
	s.ids[id] = key
	s.topics[key] = sub
	conn := s.conn
	s.mu.Unlock()

	sk.start(s)

	if first && conn != nil {
		if err := s.writeCommand(conn, models.WsCommand{Method: "subscribe", Subscription: &sub}); err != nil {
			s.log.WithComponent("stream").WithError(err).Warn("subscribe frame failed, will resubscribe on reconnect")
		}
	}

	s.log.WithComponent("stream").WithFields(logger.Fields{
		"topic": key,
		"id":    id,
		"first": first,
	}).Debug("subscriber registered")
	return id, nil
}

// Unsubscribe removes one subscriber. The topic leaves the wire only when
// its last local subscriber is gone.
func (s *Stream) Unsubscribe(id int) error {
	s.mu.Lock()
	key, ok := s.ids[id]
	if !ok {
		s.mu.Unlock()
		return &models.UnknownSubscriptionError{ID: id}
	}
	sk := s.sinks[key][id]
	delete(s.ids, id)
	delete(s.sinks[key], id)
	last := len(s.sinks[key]) == 0
	var sub models.Subscription
	if last {
		sub = s.topics[key]
		delete(s.sinks, key)
		delete(s.topics, key)
	}
	conn := s.conn
	s.mu.Unlock()

	sk.stop()

	if last && conn != nil {
		if err := s.writeCommand(conn, models.WsCommand{Method: "unsubscribe", Subscription: &sub}); err != nil {
			s.log.WithComponent("stream").WithError(err).Warn("unsubscribe frame failed")
		}
	}
	return nil
}

// run owns the connection lifecycle: dial, resubscribe, read until failure,
// then back off and redial.
func (s *Stream) run() {
	defer s.wg.Done()
	log := s.log.WithComponent("stream")
	delay := time.Duration(s.config.Stream.ReconnectDelayMs) * time.Millisecond

	attempt := 0
	for {
		if s.ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			logger.IncrementStreamReconnect()
			log.WithFields(logger.Fields{"attempt": attempt}).Info("reconnecting stream")
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		attempt++

		conn, err := s.dial(s.ctx, s.config.Venue.WsURL)
		if err != nil {
			log.WithError(err).Warn("stream dial failed")
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		topics := make([]models.Subscription, 0, len(s.topics))
		for _, sub := range s.topics {
			topics = append(topics, sub)
		}
		s.mu.Unlock()

		for _, sub := range topics {
			sub := sub
			if err := s.writeCommand(conn, models.WsCommand{Method: "subscribe", Subscription: &sub}); err != nil {
				log.WithError(err).Warn("resubscribe frame failed")
			}
		}

		s.readLoop(conn)

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		stopped := !s.running
		s.mu.Unlock()
		conn.Close()
		if stopped {
			return
		}
	}
}

// readLoop consumes frames from one connection until it fails. A ping loop
// keeps the connection alive; the venue drops idle connections.
func (s *Stream) readLoop(conn Conn) {
	log := s.log.WithComponent("stream")

	pingDone := make(chan struct{})
	s.wg.Add(1)
	go s.pingLoop(conn, pingDone)
	defer close(pingDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				log.WithError(err).Warn("stream read failed")
			}
			return
		}
		s.dispatch(raw)
	}
}

func (s *Stream) pingLoop(conn Conn, done <-chan struct{}) {
	defer s.wg.Done()
	interval := time.Duration(s.config.Stream.PingIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeCommand(conn, models.WsCommand{Method: "ping"}); err != nil {
				s.log.WithComponent("stream").WithError(err).Warn("ping failed")
				return
			}
		}
	}
}

// dispatch fans one inbound frame out to every subscriber of a matching
// topic. Each subscriber receives its own copy via its sink queue.
func (s *Stream) dispatch(raw []byte) {
	var msg models.WsMessage
	if err := wsJSON.Unmarshal(raw, &msg); err != nil {
		s.log.WithComponent("stream").WithError(err).Warn("undecodable stream frame")
		return
	}
	switch msg.Channel {
	case "subscriptionResponse", "pong", "error":
		s.log.WithComponent("stream").WithFields(logger.Fields{
			"channel": msg.Channel,
			"data":    string(msg.Data),
		}).Debug("control frame")
		return
	}
	logger.RecordTopicMessage(msg.Channel, len(raw))

	s.mu.Lock()
	var targets []*sink
	for key, sub := range s.topics {
		if !topicMatches(sub, msg) {
			continue
		}
		for _, sk := range s.sinks[key] {
			targets = append(targets, sk)
		}
	}
	s.mu.Unlock()

	for _, sk := range targets {
		sk.enqueue(msg)
	}
}

// topicMatches pairs an inbound frame with a registered topic. Coin-scoped
// channels carry the coin inside the payload; account-scoped channels are
// matched on the channel discriminant alone since the connection only
// carries the topics this client subscribed.
func topicMatches(sub models.Subscription, msg models.WsMessage) bool {
	if sub.Channel() != msg.Channel {
		return false
	}
	if sub.Coin != "" {
		var scoped struct {
			Coin string `json:"coin"`
		}
		if err := wsJSON.Unmarshal(msg.Data, &scoped); err == nil && scoped.Coin != "" {
			return scoped.Coin == sub.Coin
		}
	}
	return true
}

// prune drops a subscriber whose channel turned out to be closed. It goes
// through the same path as Unsubscribe so the topic leaves the wire when
// the pruned subscriber was the last one.
func (s *Stream) prune(id int) {
	if err := s.Unsubscribe(id); err == nil {
		s.log.WithComponent("stream").WithFields(logger.Fields{
			"id": id,
		}).Debug("pruned subscriber with closed channel")
	}
}

func (s *Stream) writeCommand(conn Conn, cmd models.WsCommand) error {
	timeout := time.Duration(s.config.Stream.WriteTimeoutMs) * time.Millisecond
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err := conn.WriteJSON(cmd); err != nil {
		return &models.TransportError{Op: "stream write", Err: err}
	}
	return nil
}
