// Package id provides ID generation for runtime objects.
//
// IDs are prefixed ULIDs: lexicographically sortable by creation time and
// readable in logs (msg_01H..., sock_01H...). Bridge messages, sockets,
// fetch requests, timers and view clients each get their own prefix so an ID
// can never be mistaken for one from another domain.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MessageID identifies a bridge message
type MessageID string

// SocketID identifies a scripted socket handle
type SocketID string

// RequestID identifies an in-flight fetch
type RequestID string

// TimerID identifies a one-shot timer
type TimerID string

// ClientID identifies a connected view client
type ClientID string

const (
	MessagePrefix = "msg"
	SocketPrefix  = "sock"
	RequestPrefix = "req"
	TimerPrefix   = "tmr"
	ClientPrefix  = "cli"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewMessageID generates a new bridge message ID
func NewMessageID() MessageID {
	return MessageID(Default().GenerateWithPrefix(MessagePrefix))
}

// NewSocketID generates a new socket ID
func NewSocketID() SocketID {
	return SocketID(Default().GenerateWithPrefix(SocketPrefix))
}

// NewRequestID generates a new fetch request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewTimerID generates a new timer ID
func NewTimerID() TimerID {
	return TimerID(Default().GenerateWithPrefix(TimerPrefix))
}

// NewClientID generates a new view client ID
func NewClientID() ClientID {
	return ClientID(Default().GenerateWithPrefix(ClientPrefix))
}

func (id MessageID) String() string { return string(id) }
func (id SocketID) String() string  { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id TimerID) String() string   { return string(id) }
func (id ClientID) String() string  { return string(id) }

// IsValid checks if an ID string is a valid ULID, with or without a prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a known prefix if present
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the creation time from an ID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
