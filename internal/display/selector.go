package display

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// ErrNoServers is returned when a random pick is requested from an empty list
var ErrNoServers = errors.New("no servers to choose from")

// Selector resolves the user's input to a server name, picking a random
// configured server when the input is blank
type Selector struct {
	servers []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector over servers. A nil rng is seeded from the clock.
func NewSelector(servers []string, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Selector{
		servers: append([]string(nil), servers...),
		rng:     rng,
	}
}

// Choose returns the trimmed input, or a random server if it is blank
func (s *Selector) Choose(input string) (string, error) {
	if server := strings.TrimSpace(input); server != "" {
		return server, nil
	}
	return s.Random()
}

// Random returns one of the configured servers, uniformly
func (s *Selector) Random() (string, error) {
	if len(s.servers) == 0 {
		return "", ErrNoServers
	}

	s.mu.Lock()
	i := s.rng.Intn(len(s.servers))
	s.mu.Unlock()

	return s.servers[i], nil
}

// Servers returns a copy of the configured servers
func (s *Selector) Servers() []string {
	return append([]string(nil), s.servers...)
}
