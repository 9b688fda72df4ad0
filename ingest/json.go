package ingest

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"aegis/core"
	"aegis/metrics"
	"aegis/util/goroutine"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MaxLineBytes bounds a single newline-delimited JSON event.
	MaxLineBytes = 1024 * 1024
	// dedupCacheSize is the number of recently seen line digests remembered
	// for redelivery suppression.
	dedupCacheSize = 65536
)

// wireEvent is the newline-delimited JSON contract agents send.
type wireEvent struct {
	AlertID     string `json:"alert_id"`
	Level       int    `json:"level"`
	Agent       string `json:"agent"`
	Description string `json:"description"`
	RuleID      string `json:"rule_id"`
	Location    string `json:"location"`
	FullLog     string `json:"full_log"`
	Timestamp   string `json:"timestamp"`
}

// JSONListener accepts newline-delimited JSON events over TCP and feeds them
// into the engine channel. Malformed lines and duplicates are counted and
// dropped; a full channel sheds load rather than blocking the socket.
type JSONListener struct {
	host    string
	port    int
	limiter *rate.Limiter
	seen    *lru.Cache[[sha256.Size]byte, struct{}]
	eventCh chan<- *core.LogEvent

	listener net.Listener
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.SugaredLogger
}

// NewJSONListener creates a TCP JSON listener. rateLimit is events per
// second across all connections; zero or negative disables limiting.
func NewJSONListener(host string, port int, rateLimit int, eventCh chan<- *core.LogEvent, logger *zap.SugaredLogger) (*JSONListener, error) {
	limit := rate.Inf
	burst := 0
	if rateLimit > 0 {
		limit = rate.Limit(rateLimit)
		burst = rateLimit
	}

	seen, err := lru.New[[sha256.Size]byte, struct{}](dedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}

	return &JSONListener{
		host:    host,
		port:    port,
		limiter: rate.NewLimiter(limit, burst),
		seen:    seen,
		eventCh: eventCh,
		stopCh:  make(chan struct{}),
		logger:  logger,
	}, nil
}

// Start binds the TCP socket and begins accepting connections.
func (j *JSONListener) Start() error {
	addr := fmt.Sprintf("%s:%d", j.host, j.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind JSON listener on %s: %w", addr, err)
	}
	j.listener = listener
	j.logger.Infof("JSON TCP listener started on %s", listener.Addr())

	j.wg.Add(1)
	go j.acceptLoop()
	return nil
}

// Addr returns the bound address. Valid after Start.
func (j *JSONListener) Addr() net.Addr {
	return j.listener.Addr()
}

// Stop closes the socket and waits for in-flight connections to finish.
func (j *JSONListener) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
		if j.listener != nil {
			j.listener.Close()
		}
	})
	j.wg.Wait()
	j.logger.Info("JSON TCP listener stopped")
}

func (j *JSONListener) acceptLoop() {
	defer j.wg.Done()
	defer goroutine.Recover("json-accept", j.logger)

	for {
		conn, err := j.listener.Accept()
		if err != nil {
			select {
			case <-j.stopCh:
				return
			default:
				j.logger.Warnf("Accept failed: %v", err)
				continue
			}
		}

		j.wg.Add(1)
		go j.handleConn(conn)
	}
}

func (j *JSONListener) handleConn(conn net.Conn) {
	defer j.wg.Done()
	defer goroutine.Recover("json-conn", j.logger)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	for scanner.Scan() {
		select {
		case <-j.stopCh:
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if !j.limiter.Allow() {
			metrics.EventsDropped.WithLabelValues("rate_limit").Inc()
			continue
		}

		// Agents retry on flaky links; a byte-identical line seen twice is
		// a redelivery, not a new event. Alert IDs are shared across a
		// correlated cluster, so distinct events may carry the same one.
		if found, _ := j.seen.ContainsOrAdd(sha256.Sum256(line), struct{}{}); found {
			metrics.EventsDropped.WithLabelValues("duplicate").Inc()
			continue
		}

		event, err := parseWireEvent(line)
		if err != nil {
			metrics.EventsDropped.WithLabelValues("malformed").Inc()
			j.logger.Warnf("Dropping malformed event from %s: %v", conn.RemoteAddr(), err)
			continue
		}

		select {
		case j.eventCh <- event:
			metrics.EventsIngested.WithLabelValues("tcp").Inc()
		default:
			metrics.EventsDropped.WithLabelValues("backpressure").Inc()
			j.logger.Warn("Event channel full, dropping event")
		}
	}

	if err := scanner.Err(); err != nil {
		j.logger.Debugf("Connection from %s closed: %v", conn.RemoteAddr(), err)
	}
}

// parseWireEvent validates and converts one JSON line. Events without an
// alert ID get a generated one; events without a timestamp are stamped on
// arrival.
func parseWireEvent(line []byte) (*core.LogEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if w.Agent == "" {
		return nil, fmt.Errorf("missing agent")
	}
	if w.Level < 0 {
		return nil, fmt.Errorf("negative level %d", w.Level)
	}

	if w.AlertID == "" {
		w.AlertID = uuid.NewString()
	}

	ts := time.Now().UTC()
	if w.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, w.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", w.Timestamp, err)
		}
		ts = parsed.UTC()
	}

	return &core.LogEvent{
		AlertID:     w.AlertID,
		Level:       w.Level,
		Agent:       w.Agent,
		Description: w.Description,
		RuleID:      w.RuleID,
		Location:    w.Location,
		FullLog:     w.FullLog,
		Timestamp:   ts,
	}, nil
}
