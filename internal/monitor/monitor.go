// Package monitor keeps a passive, session-scoped log of page traffic.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/catalog-crawler/internal/storage"
)

type RequestLogEntry struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	PostData  string            `json:"post_data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type ResponseLogEntry struct {
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`
}

type Snapshot struct {
	Requests  []RequestLogEntry  `json:"requests"`
	Responses []ResponseLogEntry `json:"responses"`
}

// EventSource is the part of playwright.Page the monitor listens on.
type EventSource interface {
	OnRequest(fn func(playwright.Request))
	OnResponse(fn func(playwright.Response))
}

type Monitor struct {
	mu        sync.Mutex
	requests  []RequestLogEntry
	responses []ResponseLogEntry
	now       func() time.Time
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		now:    time.Now,
		logger: logger.With("component", "monitor"),
	}
}

// Attach registers the traffic callbacks on a page.
func (m *Monitor) Attach(src EventSource) {
	src.OnRequest(func(req playwright.Request) {
		defer m.recover("request")
		postData, _ := req.PostData()
		m.RecordRequest(req.URL(), req.Method(), req.Headers(), postData)
	})
	src.OnResponse(func(resp playwright.Response) {
		defer m.recover("response")
		m.RecordResponse(resp.URL(), resp.Status(), resp.Headers())
	})
}

func (m *Monitor) recover(kind string) {
	if r := recover(); r != nil {
		m.logger.Debug("monitor callback failed", "event", kind, "panic", fmt.Sprint(r))
	}
}

func (m *Monitor) RecordRequest(url, method string, headers map[string]string, postData string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, RequestLogEntry{
		URL:       url,
		Method:    method,
		Headers:   headers,
		PostData:  postData,
		Timestamp: m.now(),
	})
}

func (m *Monitor) RecordResponse(url string, status int, headers map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, ResponseLogEntry{
		URL:       url,
		Status:    status,
		Headers:   headers,
		Timestamp: m.now(),
	})
}

// Snapshot returns a copy of everything captured so far.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Requests:  make([]RequestLogEntry, len(m.requests)),
		Responses: make([]ResponseLogEntry, len(m.responses)),
	}
	copy(s.Requests, m.requests)
	copy(s.Responses, m.responses)
	return s
}

// Save writes the full snapshot. Nothing is written when no traffic was seen.
func (m *Monitor) Save(path string) error {
	s := m.Snapshot()
	if len(s.Requests) == 0 && len(s.Responses) == 0 {
		return nil
	}
	if err := storage.WriteJSON(path, s); err != nil {
		return fmt.Errorf("failed to save request log: %w", err)
	}
	m.logger.Info("request log saved", "path", path, "requests", len(s.Requests), "responses", len(s.Responses))
	return nil
}
