package multiworld

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/world"
)

var ErrWorldNotFound = errors.New("world not found")

type Runtime struct {
	Spec  WorldSpec
	World *world.World
}

const (
	stateVersion        = 1
	worldRequestTimeout = 3 * time.Second
)

type persistedState struct {
	Version       int               `json:"version"`
	ClientToWorld map[string]string `json:"client_to_world"`
}

// Manager routes sessions and commands to concurrently running worlds.
// Each world keeps its own loop; the manager only holds routing state.
type Manager struct {
	mu sync.RWMutex

	runtimes  map[string]*Runtime
	manifest  []protocol.WorldRef
	defaultID string
	stateFile string

	clientToWorld map[string]string

	persistDebounce time.Duration
	persistCh       chan struct{}
	persistFlush    chan chan struct{}
	persistStop     chan struct{}
	persistWG       sync.WaitGroup
	closeOnce       sync.Once
}

func NewManager(cfg Config, manifest []protocol.WorldRef, runtimes map[string]*Runtime, stateFile string) (*Manager, error) {
	if len(runtimes) == 0 {
		return nil, fmt.Errorf("no runtimes")
	}
	if _, ok := runtimes[cfg.DefaultWorldID]; !ok {
		return nil, fmt.Errorf("default world %q has no runtime", cfg.DefaultWorldID)
	}
	for id, rt := range runtimes {
		if rt == nil || rt.World == nil {
			return nil, fmt.Errorf("runtime %q missing world", id)
		}
		if rt.World.ID() != id {
			return nil, fmt.Errorf("runtime key %q does not match world id %q", id, rt.World.ID())
		}
	}
	m := &Manager{
		runtimes:        runtimes,
		manifest:        append([]protocol.WorldRef(nil), manifest...),
		defaultID:       cfg.DefaultWorldID,
		stateFile:       strings.TrimSpace(stateFile),
		clientToWorld:   map[string]string{},
		persistDebounce: 200 * time.Millisecond,
	}
	if m.stateFile != "" {
		m.loadState()
		m.persistCh = make(chan struct{}, 1)
		m.persistFlush = make(chan chan struct{})
		m.persistStop = make(chan struct{})
		m.persistWG.Add(1)
		go m.persistLoop()
	}
	return m, nil
}

func (m *Manager) DefaultWorldID() string { return m.defaultID }

func (m *Manager) WorldIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.runtimes))
	for id := range m.runtimes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) Runtime(id string) *Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runtimes[id]
}

func (m *Manager) Manifest() []protocol.WorldRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]protocol.WorldRef(nil), m.manifest...)
}

// RunAll runs every world loop until ctx ends or one of them fails.
func (m *Manager) RunAll(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ids := m.WorldIDs()
	errCh := make(chan error, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		rt := m.Runtime(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rt.World.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("world %s: %w", rt.World.ID(), err)
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errCh)
	if err, ok := <-errCh; ok {
		return err
	}
	return ctx.Err()
}

// Join resolves the world for a new session. An explicit known preference
// wins, then the client's last world, then the default.
func (m *Manager) Join(clientName, worldPreference string) string {
	id := m.pickWorld(clientName, worldPreference)
	name := strings.TrimSpace(clientName)
	if name == "" {
		return id
	}
	m.mu.Lock()
	if m.clientToWorld[name] != id {
		m.clientToWorld[name] = id
		m.schedulePersistLocked()
	}
	m.mu.Unlock()
	return id
}

func (m *Manager) ClientWorld(clientName string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clientToWorld[strings.TrimSpace(clientName)]
}

func (m *Manager) pickWorld(clientName, pref string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p := strings.TrimSpace(pref); p != "" {
		if _, ok := m.runtimes[p]; ok {
			return p
		}
	}
	if last, ok := m.clientToWorld[strings.TrimSpace(clientName)]; ok {
		if _, ok := m.runtimes[last]; ok {
			return last
		}
	}
	return m.defaultID
}

// Submit runs one command line on the named world's next tick.
func (m *Manager) Submit(ctx context.Context, worldID string, cmd world.Command) (world.CommandResult, error) {
	rt := m.Runtime(worldID)
	if rt == nil {
		return world.CommandResult{}, fmt.Errorf("%w: %s", ErrWorldNotFound, worldID)
	}
	reqCtx, cancel := m.requestCtx(ctx)
	defer cancel()
	return rt.World.Submit(reqCtx, cmd)
}

func (m *Manager) State(ctx context.Context, worldID string) (world.State, error) {
	rt := m.Runtime(worldID)
	if rt == nil {
		return world.State{}, fmt.Errorf("%w: %s", ErrWorldNotFound, worldID)
	}
	reqCtx, cancel := m.requestCtx(ctx)
	defer cancel()
	return rt.World.RequestState(reqCtx)
}

// States collects every world's state; worlds that time out are skipped.
func (m *Manager) States(ctx context.Context) []world.State {
	var out []world.State
	for _, id := range m.WorldIDs() {
		st, err := m.State(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out
}

func (m *Manager) Subscribe(ctx context.Context, worldID, sessionID string, out chan []byte) error {
	rt := m.Runtime(worldID)
	if rt == nil {
		return fmt.Errorf("%w: %s", ErrWorldNotFound, worldID)
	}
	reqCtx, cancel := m.requestCtx(ctx)
	defer cancel()
	return rt.World.Subscribe(reqCtx, sessionID, out)
}

func (m *Manager) Unsubscribe(worldID, sessionID string) {
	if rt := m.Runtime(worldID); rt != nil {
		rt.World.Unsubscribe(sessionID)
	}
}

func (m *Manager) requestCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, worldRequestTimeout)
}

func (m *Manager) loadState() {
	b, err := os.ReadFile(m.stateFile)
	if err != nil {
		return
	}
	var st persistedState
	if err := json.Unmarshal(b, &st); err != nil || st.Version != stateVersion {
		return
	}
	for client, id := range st.ClientToWorld {
		if _, ok := m.runtimes[id]; ok {
			m.clientToWorld[client] = id
		}
	}
}

func (m *Manager) schedulePersistLocked() {
	if m.persistCh == nil {
		return
	}
	select {
	case m.persistCh <- struct{}{}:
	default:
	}
}

func (m *Manager) persistLoop() {
	defer m.persistWG.Done()
	var timer *time.Timer
	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
	}
	for {
		var timerCh <-chan time.Time
		if timer != nil {
			timerCh = timer.C
		}
		select {
		case <-m.persistStop:
			stopTimer()
			m.persistNow()
			return
		case <-m.persistCh:
			stopTimer()
			timer = time.NewTimer(m.persistDebounce)
		case ack := <-m.persistFlush:
			stopTimer()
			m.persistNow()
			close(ack)
		case <-timerCh:
			timer = nil
			m.persistNow()
		}
	}
}

func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.persistStop != nil {
			close(m.persistStop)
		}
		m.persistWG.Wait()
	})
}

// FlushState writes routing state now instead of waiting for the debounce.
func (m *Manager) FlushState(ctx context.Context) error {
	if m.persistFlush == nil {
		return nil
	}
	ack := make(chan struct{})
	select {
	case m.persistFlush <- ack:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) persistNow() {
	m.mu.RLock()
	st := persistedState{Version: stateVersion, ClientToWorld: make(map[string]string, len(m.clientToWorld))}
	for k, v := range m.clientToWorld {
		st.ClientToWorld[k] = v
	}
	m.mu.RUnlock()

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(m.stateFile), 0o755)
	tmp := m.stateFile + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, m.stateFile)
}
