// Package testbroker implements an in-process HTTP server standing in for
// the real streaming broker (§6's External Interfaces table), for use by
// the channel package's tests. Adapted from the teacher's
// internal/server (Router/middleware shape: logging wrapper, panic
// recovery) repurposed from a Gemini-proxy API surface to the consumer/
// producer/login/token surface this library's core actually drives.
package testbroker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"dxlstream/internal/wire"
)

// Broker is a scriptable fake of the HTTP surface in spec.md §6. Tests
// install canned responses/behaviors via the exported fields before or
// during the test, then point a Channel at Server.URL.
type Broker struct {
	Server *httptest.Server

	mu sync.Mutex

	nextConsumerID int64

	// ConsumeQueue is consumed in order: each call to GET .../records pops
	// the next entry (or returns an empty result set if drained).
	ConsumeQueue [][]wire.ConsumedRecord

	// NotFoundOnConsume, while true, makes every GET .../records return
	// 404 instead of popping ConsumeQueue (simulating consumer loss). It
	// is not cleared automatically.
	NotFoundOnConsume bool
	// NotFoundOnSubscribe simulates the subscribed consumer having been
	// lost before the subscription call lands.
	NotFoundOnSubscribe bool
	// NotFoundOnCommit simulates consumer loss observed at commit time.
	NotFoundOnCommit bool

	// LoginUnauthorizedOnce, when true, makes the *next* login call return
	// 401 and then auto-clears, so the following call succeeds.
	LoginUnauthorizedOnce bool
	// LoginForbidden makes every login call return 403 (permanent).
	LoginForbidden bool
	// LoginToken is the token vended by a successful login.
	LoginToken string

	CreateCount    int32
	SubscribeCount int32
	ConsumeCount   int32
	CommitCount    int32
	DeleteCount    int32
	ProduceCount   int32
	ProducedBodies []wire.ProduceRequest
}

// New starts a Broker with sensible defaults (LoginToken set, empty
// ConsumeQueue).
func New() *Broker {
	b := &Broker{LoginToken: "test-token"}
	mux := http.NewServeMux()
	mux.HandleFunc("/identity/v1/login", b.handleLogin)
	mux.HandleFunc("/databus/consumer-service/v1/consumers", b.handleCreate)
	mux.HandleFunc("/databus/consumer-service/v1/consumers/", b.handleConsumerScoped)
	mux.HandleFunc("/databus/cloudproxy/v1/produce", b.handleProduce)
	b.Server = httptest.NewServer(withRecover(withLogging(mux)))
	return b
}

func (b *Broker) Close() { b.Server.Close() }

func (b *Broker) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	forbidden := b.LoginForbidden
	unauthorizedOnce := b.LoginUnauthorizedOnce
	if unauthorizedOnce {
		b.LoginUnauthorizedOnce = false
	}
	token := b.LoginToken
	b.mu.Unlock()

	if forbidden {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if unauthorizedOnce {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"AuthorizationToken": token})
}

func (b *Broker) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt32(&b.CreateCount, 1)
	b.mu.Lock()
	b.nextConsumerID++
	id := fmt.Sprintf("c%d", b.nextConsumerID)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, wire.CreateConsumerResponse{ConsumerInstanceID: id})
}

func (b *Broker) handleProduce(w http.ResponseWriter, r *http.Request) {
	var req wire.ProduceRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.ProduceCount++
	b.ProducedBodies = append(b.ProducedBodies, req)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// handleConsumerScoped dispatches /consumers/<id>/{subscription,records,offsets}
// and /consumers/<id> itself (DELETE).
func (b *Broker) handleConsumerScoped(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	const prefix = "/databus/consumer-service/v1/consumers/"
	rest := path[len(prefix):]

	switch {
	case hasSuffix(rest, "/subscription"):
		b.handleSubscribe(w, r)
	case hasSuffix(rest, "/records"):
		b.handleConsume(w, r)
	case hasSuffix(rest, "/offsets"):
		b.handleCommit(w, r)
	default:
		b.handleDelete(w, r)
	}
}

func (b *Broker) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.SubscribeCount, 1)
	b.mu.Lock()
	notFound := b.NotFoundOnSubscribe
	b.mu.Unlock()
	if notFound {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Broker) handleConsume(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.ConsumeCount, 1)
	b.mu.Lock()
	notFound := b.NotFoundOnConsume
	var records []wire.ConsumedRecord
	if !notFound {
		if len(b.ConsumeQueue) > 0 {
			records = b.ConsumeQueue[0]
			b.ConsumeQueue = b.ConsumeQueue[1:]
		}
	}
	b.mu.Unlock()
	if notFound {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wire.ConsumeResponse{Records: records})
}

func (b *Broker) handleCommit(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&b.CommitCount, 1)
	b.mu.Lock()
	notFound := b.NotFoundOnCommit
	b.mu.Unlock()
	if notFound {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Broker) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	atomic.AddInt32(&b.DeleteCount, 1)
	w.WriteHeader(http.StatusNoContent)
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Debugf("testbroker: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.Errorf("testbroker: panic recovered: %v", rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
