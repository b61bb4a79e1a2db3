package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
)

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type wsMessage struct {
	records []models.Record
	err     error
}

// socket is one shared connection to a websocket source. Waiters are
// Execute calls blocked on the next inbound message.
type socket struct {
	endpoint string
	conn     *websocket.Conn

	mu      sync.Mutex
	waiters []chan wsMessage
	closed  bool
}

func (s *socket) wait() chan wsMessage {
	ch := make(chan wsMessage, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		ch <- wsMessage{err: errs.NewSocketError(s.endpoint, websocket.ErrCloseSent)}
		return ch
	}
	s.waiters = append(s.waiters, ch)
	return ch
}

func (s *socket) cancel(ch chan wsMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

// deliver hands msg to every pending waiter and clears the list.
func (s *socket) deliver(msg wsMessage) {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range waiters {
		w <- msg
	}
}

// socketPool keeps at most one open connection per endpoint and fans every
// inbound message out to push subscribers.
type socketPool struct {
	dialer Dialer
	log    *slog.Logger

	mu      sync.Mutex
	sockets map[string]*socket
	dialing map[string]*dialCall
	pushers map[string]map[int]func([]models.Record)
	nextID  int
}

// dialCall is an in-flight dial. Callers that arrive while it runs park
// their waiters here; they move onto the socket before its read loop starts.
type dialCall struct {
	done    chan struct{}
	waiters []chan wsMessage
	s       *socket
	err     error
}

func newSocketPool(d Dialer, log *slog.Logger) *socketPool {
	return &socketPool{
		dialer:  d,
		log:     log,
		sockets: make(map[string]*socket),
		dialing: make(map[string]*dialCall),
		pushers: make(map[string]map[int]func([]models.Record)),
	}
}

// get returns the open socket for endpoint, dialing it if needed, together
// with a waiter for the next inbound message. Concurrent callers for the
// same endpoint share one dial, and a fresh connection's first frame reaches
// every caller that waited on the dial.
func (p *socketPool) get(ctx context.Context, endpoint string, headers map[string]string) (*socket, chan wsMessage, error) {
	p.mu.Lock()
	if s, ok := p.sockets[endpoint]; ok {
		p.mu.Unlock()
		return s, s.wait(), nil
	}
	if call, ok := p.dialing[endpoint]; ok {
		ch := make(chan wsMessage, 1)
		call.waiters = append(call.waiters, ch)
		p.mu.Unlock()
		select {
		case <-call.done:
			if call.err != nil {
				return nil, nil, call.err
			}
			return call.s, ch, nil
		case <-ctx.Done():
			p.mu.Lock()
			for i, w := range call.waiters {
				if w == ch {
					call.waiters = append(call.waiters[:i], call.waiters[i+1:]...)
					break
				}
			}
			s := call.s
			p.mu.Unlock()
			if s != nil {
				s.cancel(ch)
			}
			return nil, nil, ctx.Err()
		}
	}
	call := &dialCall{done: make(chan struct{})}
	p.dialing[endpoint] = call
	p.mu.Unlock()

	s, err := p.dial(ctx, endpoint, headers)

	var own chan wsMessage
	p.mu.Lock()
	delete(p.dialing, endpoint)
	if err == nil {
		own = make(chan wsMessage, 1)
		s.waiters = append([]chan wsMessage{own}, call.waiters...)
		call.waiters = nil
		call.s = s
		p.sockets[endpoint] = s
	}
	call.err = err
	p.mu.Unlock()
	close(call.done)

	if err != nil {
		return nil, nil, err
	}
	go p.readLoop(s)
	return s, own, nil
}

func (p *socketPool) dial(ctx context.Context, endpoint string, headers map[string]string) (*socket, error) {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	conn, resp, err := p.dialer.DialContext(ctx, endpoint, h)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errs.NewSocketError(endpoint, err)
	}
	metricActiveSockets.Inc()
	p.log.Debug("websocket source connected", "endpoint", endpoint)
	return &socket{endpoint: endpoint, conn: conn}, nil
}

// readLoop runs until the connection fails or is closed. Unparseable frames
// are logged and skipped. There is no reconnect: the next Execute dials again.
func (p *socketPool) readLoop(s *socket) {
	defer p.drop(s)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Warn("websocket source closed", "endpoint", s.endpoint, "error", err)
			}
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			s.deliver(wsMessage{err: errs.NewSocketError(s.endpoint, err)})
			return
		}

		var payload any
		if err := json.Unmarshal(data, &payload); err != nil {
			p.log.Warn("dropping unparseable websocket frame", "endpoint", s.endpoint, "error", err)
			continue
		}
		records, err := normalizeRecords(payload)
		if err != nil {
			p.log.Warn("dropping websocket frame", "endpoint", s.endpoint, "error", err)
			continue
		}
		s.deliver(wsMessage{records: records})
		p.push(s.endpoint, records)
	}
}

func (p *socketPool) drop(s *socket) {
	p.mu.Lock()
	if p.sockets[s.endpoint] == s {
		delete(p.sockets, s.endpoint)
	}
	p.mu.Unlock()
	_ = s.conn.Close()
	metricActiveSockets.Dec()
}

func (p *socketPool) push(endpoint string, records []models.Record) {
	p.mu.Lock()
	fns := make([]func([]models.Record), 0, len(p.pushers[endpoint]))
	for _, fn := range p.pushers[endpoint] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(records)
	}
}

func (p *socketPool) subscribe(endpoint string, fn func([]models.Record)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	if p.pushers[endpoint] == nil {
		p.pushers[endpoint] = make(map[int]func([]models.Record))
	}
	p.pushers[endpoint][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.pushers[endpoint], id)
			if len(p.pushers[endpoint]) == 0 {
				delete(p.pushers, endpoint)
			}
		})
	}
}

// closeAll sends a close frame on every open socket. The read loops then
// drop them from the pool.
func (p *socketPool) closeAll() {
	p.mu.Lock()
	sockets := make([]*socket, 0, len(p.sockets))
	for _, s := range p.sockets {
		sockets = append(sockets, s)
	}
	p.mu.Unlock()
	for _, s := range sockets {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
		_ = s.conn.Close()
	}
}

func (p *socketPool) open() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sockets)
}

// acquireWebSocket resolves with the next message the source sends after
// the call subscribes.
func (e *Engine) acquireWebSocket(ctx context.Context, cfg models.QueryConfig) ([]models.Record, error) {
	if cfg.Source.Endpoint == "" {
		return nil, errs.NewConfigurationError("source.endpoint", "websocket source requires an endpoint")
	}
	s, ch, err := e.sockets.get(ctx, cfg.Source.Endpoint, cfg.Source.Headers)
	if err != nil {
		return nil, err
	}
	select {
	case msg := <-ch:
		return msg.records, msg.err
	case <-ctx.Done():
		s.cancel(ch)
		return nil, ctx.Err()
	}
}
