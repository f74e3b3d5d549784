// Package liveevents is the in-process pub/sub hub behind the SSE
// endpoints. Publishing never blocks: slow subscribers lose frames
// rather than stalling the pipeline.
package liveevents

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
)

type FrameType string

const (
	FrameLog      FrameType = "log"
	FrameNode     FrameType = "node"
	FrameStatus   FrameType = "status"
	FrameComplete FrameType = "complete"
	FrameError    FrameType = "error"
)

const (
	PhaseEnter  = "enter"
	PhaseFinish = "finish"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
	DefaultMaxTopics        = 256
)

// Frame is one SSE payload. Which fields are set depends on Type: log
// carries Message, node carries Stage/Phase, status carries From/To,
// complete and error carry Data.
type Frame struct {
	Type      FrameType      `json:"type"`
	Stage     string         `json:"stage,omitempty"`
	Phase     string         `json:"phase,omitempty"`
	Message   string         `json:"message,omitempty"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"ts"`
}

// DocumentTopic names the per-document frame stream.
func DocumentTopic(id snowflake.ID) string {
	return "doc:" + id.String()
}

var Module = fx.Module("liveevents",
	fx.Provide(NewHub),
)

type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
	maxTopics        int
	metrics          *telemetry.Metrics
}

type stream struct {
	mu        sync.Mutex
	buffer    []Frame
	subs      map[uint64]chan Frame
	nextID    uint64
	lastTouch time.Time
}

type Subscription struct {
	hub   *Hub
	topic string
	id    uint64
	ch    chan Frame
	once  sync.Once
}

func NewHub(metrics *telemetry.Metrics) *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
		maxTopics:        DefaultMaxTopics,
		metrics:          metrics,
	}
}

// Publish appends the frame to the topic's replay buffer and fans it
// out. Topics are created on first publish and retained after the last
// subscriber leaves so late subscribers still see backlog; past
// maxTopics the stalest idle topic is evicted.
func (h *Hub) Publish(topic string, frame Frame) {
	if h == nil {
		return
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}

	stream := h.ensureStream(topic)

	stream.mu.Lock()
	stream.lastTouch = time.Now()
	stream.buffer = append(stream.buffer, frame)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan Frame, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordStreamEvent(string(frame.Type))
	}

	for _, ch := range subs {
		select {
		case ch <- frame:
		default:
			if h.metrics != nil {
				h.metrics.RecordStreamDropped(string(frame.Type))
			}
		}
	}
}

// Subscribe attaches to a topic and returns the current backlog.
func (h *Hub) Subscribe(topic string) (*Subscription, []Frame, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, nil, errors.New("invalid_topic")
	}

	stream := h.ensureStream(topic)

	stream.mu.Lock()
	if stream.subs == nil {
		stream.subs = make(map[uint64]chan Frame)
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan Frame, h.subscriberBuffer)
	stream.subs[id] = ch
	stream.lastTouch = time.Now()
	backlog := append([]Frame(nil), stream.buffer...)
	stream.mu.Unlock()

	if h.metrics != nil {
		h.metrics.StreamOpened()
	}

	return &Subscription{hub: h, topic: topic, id: id, ch: ch}, backlog, nil
}

func (h *Hub) ensureStream(topic string) *stream {
	h.mu.RLock()
	current := h.streams[topic]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[topic]
	if current == nil {
		if len(h.streams) >= h.maxTopics {
			h.evictStalestLocked()
		}
		current = &stream{subs: make(map[uint64]chan Frame), lastTouch: time.Now()}
		h.streams[topic] = current
	}
	return current
}

// evictStalestLocked drops the least recently touched topic with no
// live subscribers. Caller holds h.mu.
func (h *Hub) evictStalestLocked() {
	var (
		victim string
		oldest time.Time
	)
	for topic, s := range h.streams {
		s.mu.Lock()
		idle := len(s.subs) == 0
		touched := s.lastTouch
		s.mu.Unlock()
		if !idle {
			continue
		}
		if victim == "" || touched.Before(oldest) {
			victim = topic
			oldest = touched
		}
	}
	if victim != "" {
		delete(h.streams, victim)
	}
}

func (h *Hub) unsubscribe(topic string, id uint64) {
	if h == nil {
		return
	}

	h.mu.RLock()
	stream := h.streams[topic]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	stream.mu.Unlock()

	if h.metrics != nil {
		h.metrics.StreamClosed()
	}
}

func (s *Subscription) Events() <-chan Frame {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.topic, s.id)
	})
}
