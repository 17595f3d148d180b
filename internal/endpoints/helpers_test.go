package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/thenexusengine/tne_mediation/internal/adapter"
	"github.com/thenexusengine/tne_mediation/internal/events"
	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
	"github.com/thenexusengine/tne_mediation/internal/storage"
)

func newTestAdapter(t *testing.T, mutate func(*partnersdk.Config)) *adapter.Adapter {
	t.Helper()
	cfg := &partnersdk.Config{
		SetupDelay: time.Millisecond,
		LoadDelay:  time.Millisecond,
		ShowDelay:  5 * time.Millisecond,
		EventDelay: 10 * time.Millisecond,
		ClickDelay: 5 * time.Millisecond,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return adapter.New(partnersdk.New(cfg), nil, nil)
}

// memoryRecorder keeps recorded events in memory
type memoryRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *memoryRecorder) Record(e events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *memoryRecorder) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

func (m *memoryRecorder) has(eventType string) bool {
	for _, t := range m.types() {
		if t == eventType {
			return true
		}
	}
	return false
}

func (m *memoryRecorder) waitFor(t *testing.T, eventType string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !m.has(eventType) {
		if time.Now().After(deadline) {
			t.Fatalf("event %q not recorded; got %v", eventType, m.types())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// memoryCatalog is an in-memory placement catalog
type memoryCatalog struct {
	mu         sync.Mutex
	placements map[string]*storage.Placement
	nextID     int
	err        error
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{placements: make(map[string]*storage.Placement)}
}

func (c *memoryCatalog) GetByMediationPlacement(ctx context.Context, placement string) (*storage.Placement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.placements[placement]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (c *memoryCatalog) List(ctx context.Context) ([]*storage.Placement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]*storage.Placement, 0, len(c.placements))
	for _, p := range c.placements {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MediationPlacement < out[j].MediationPlacement })
	return out, nil
}

func (c *memoryCatalog) Upsert(ctx context.Context, p *storage.Placement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.nextID++
	p.ID = fmt.Sprint(c.nextID)
	p.Status = "active"
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	c.placements[p.MediationPlacement] = &cp
	return nil
}

func (c *memoryCatalog) Delete(ctx context.Context, placement string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.placements[placement]; !ok {
		return fmt.Errorf("placement not found: %s", placement)
	}
	delete(c.placements, placement)
	return nil
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeResponse[ErrorResponse](t, rr).Error
}
