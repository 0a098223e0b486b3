// Package safety implements scoped access tokens over node-owned memory.
//
// A Manager hands out Regions, one per independently guarded buffer. Code
// touching a region first acquires a Token in Read (shared) or ReadWrite
// (exclusive) mode. Every token is minted for the manager's current version;
// BumpVersion, called once per tick boundary, retires all of them at once so
// stale references surface as ErrSuperseded instead of silently reading
// reused memory.
package safety

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Mode is the access mode of a token.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeRead
	ModeReadWrite
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRead:
		return "read"
	case ModeReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Region names one guarded buffer. The zero Region is never allocated.
type Region struct {
	id   uint64
	name string
}

// ID returns the region's manager-unique id.
func (r Region) ID() uint64 { return r.id }

// Name returns the label given at allocation.
func (r Region) Name() string { return r.name }

func (r Region) String() string {
	return fmt.Sprintf("region %d (%s)", r.id, r.name)
}

// Token is a claim on a region for one version.
type Token struct {
	id       uint64
	region   Region
	mode     Mode
	version  uint64
	released bool
}

// Region returns the region the token guards.
func (t *Token) Region() Region { return t.region }

// Mode returns the token's access mode.
func (t *Token) Mode() Mode { return t.mode }

// Version returns the manager version the token was minted for.
func (t *Token) Version() uint64 { return t.version }

type regionState struct {
	region   Region
	readOnly bool
	readers  int
	writer   bool
	live     map[uint64]*Token
}

// Leaks summarizes what was still allocated when a manager was closed.
type Leaks struct {
	Regions []Region
	Tokens  int
}

// Empty reports whether nothing leaked.
func (l Leaks) Empty() bool {
	return len(l.Regions) == 0 && l.Tokens == 0
}

// Option configures a Manager.
type Option func(*Manager)

// WithViolationHook registers fn to be called for every rejected acquisition
// and failed check. It runs with the manager lock released.
func WithViolationHook(fn func(*AccessError)) Option {
	return func(m *Manager) { m.onViolation = fn }
}

// Manager owns the regions, tokens and the version counter of one graph.
// It is safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	logger      *slog.Logger
	version     uint64
	nextRegion  uint64
	nextToken   uint64
	regions     map[uint64]*regionState
	freed       map[uint64]struct{}
	closed      bool
	onViolation func(*AccessError)
}

// NewManager creates a manager at version 1.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		logger:  logger,
		version: 1,
		regions: make(map[uint64]*regionState),
		freed:   make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Version returns the current version.
func (m *Manager) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Allocate creates a new region labelled name.
func (m *Manager) Allocate(name string) Region {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRegion++
	r := Region{id: m.nextRegion, name: name}
	m.regions[r.id] = &regionState{region: r, live: make(map[uint64]*Token)}
	return r
}

// Free disposes of a region. Tokens still held on it fail Check with
// ErrDisposed from now on.
func (m *Manager) Free(r Region) error {
	m.mu.Lock()
	st, err := m.lookup("Free", r, ModeNone)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	outstanding := len(st.live)
	delete(m.regions, r.id)
	m.freed[r.id] = struct{}{}
	m.mu.Unlock()

	if outstanding > 0 {
		m.logger.Warn("Region freed while tokens are outstanding.", "region", r.String(), "tokens", outstanding)
	}
	return nil
}

// Acquire claims r in the given mode for the current version.
func (m *Manager) Acquire(r Region, mode Mode) (*Token, error) {
	m.mu.Lock()
	st, err := m.lookup("Acquire", r, mode)
	if err != nil {
		m.mu.Unlock()
		return nil, m.violation(err)
	}

	var cause error
	switch mode {
	case ModeRead:
		if st.writer {
			cause = ErrConcurrentAccess
		}
	case ModeReadWrite:
		switch {
		case st.readOnly:
			cause = ErrReadOnly
		case st.writer || st.readers > 0:
			cause = ErrConcurrentAccess
		}
	}
	if cause != nil {
		m.mu.Unlock()
		return nil, m.violation(&AccessError{Op: "Acquire", Region: r, Mode: mode, Cause: cause})
	}

	m.nextToken++
	t := &Token{id: m.nextToken, region: r, mode: mode, version: m.version}
	switch mode {
	case ModeRead:
		st.readers++
	case ModeReadWrite:
		st.writer = true
	}
	st.live[t.id] = t
	m.mu.Unlock()
	return t, nil
}

// Release gives a token back. Releasing a token that was already released,
// retired by a bump, or whose region is gone is a no-op.
func (m *Manager) Release(t *Token) error {
	if t == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.released || t.version != m.version {
		t.released = true
		return nil
	}
	t.released = true
	st, ok := m.regions[t.region.id]
	if !ok {
		return nil
	}
	if _, held := st.live[t.id]; !held {
		return nil
	}
	delete(st.live, t.id)
	switch t.mode {
	case ModeRead:
		st.readers--
	case ModeReadWrite:
		st.writer = false
	}
	return nil
}

// Check reports whether t may still be used.
func (m *Manager) Check(t *Token) error {
	if t == nil {
		return &AccessError{Op: "Check", Cause: ErrUnknownRegion}
	}
	m.mu.Lock()
	var cause error
	_, freed := m.freed[t.region.id]
	switch {
	case freed:
		cause = ErrDisposed
	case t.released:
		cause = ErrReleased
	case t.version != m.version:
		cause = ErrSuperseded
	}
	m.mu.Unlock()

	if cause == nil {
		return nil
	}
	return m.violation(&AccessError{Op: "Check", Region: t.region, Mode: t.mode, Cause: cause})
}

// BumpVersion advances the version and retires every outstanding token.
func (m *Manager) BumpVersion() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.version++
	for _, st := range m.regions {
		st.readers = 0
		st.writer = false
		clear(st.live)
	}
	return m.version
}

// MarkReadOnly forbids ReadWrite tokens on r until MarkReadWrite.
func (m *Manager) MarkReadOnly(r Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.lookup("MarkReadOnly", r, ModeNone)
	if err != nil {
		return err
	}
	if st.writer {
		return &AccessError{Op: "MarkReadOnly", Region: r, Mode: ModeReadWrite, Cause: ErrConcurrentAccess}
	}
	st.readOnly = true
	return nil
}

// MarkReadWrite lifts a read-only mark.
func (m *Manager) MarkReadWrite(r Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.lookup("MarkReadWrite", r, ModeNone)
	if err != nil {
		return err
	}
	st.readOnly = false
	return nil
}

// IsReadOnly reports whether r is marked read-only.
func (m *Manager) IsReadOnly(r Region) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.regions[r.id]
	return ok && st.readOnly
}

// Outstanding returns the number of live tokens across all regions.
func (m *Manager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, st := range m.regions {
		n += len(st.live)
	}
	return n
}

// Close reports, and logs, every region never freed and every token never
// released in the current version. Calling Close twice reports nothing new.
func (m *Manager) Close() Leaks {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Leaks{}
	}
	m.closed = true
	var leaks Leaks
	for _, st := range m.regions {
		leaks.Regions = append(leaks.Regions, st.region)
		leaks.Tokens += len(st.live)
	}
	m.mu.Unlock()

	slices.SortFunc(leaks.Regions, func(a, b Region) int {
		return cmp.Compare(a.id, b.id)
	})
	if !leaks.Empty() {
		names := make([]string, len(leaks.Regions))
		for i, r := range leaks.Regions {
			names[i] = r.name
		}
		m.logger.Warn("Safety manager closed with leaked resources.", "regions", names, "tokens", leaks.Tokens)
	}
	return leaks
}

// lookup must be called with m.mu held.
func (m *Manager) lookup(op string, r Region, mode Mode) (*regionState, error) {
	if st, ok := m.regions[r.id]; ok {
		return st, nil
	}
	if _, ok := m.freed[r.id]; ok {
		return nil, &AccessError{Op: op, Region: r, Mode: mode, Cause: ErrDisposed}
	}
	return nil, &AccessError{Op: op, Region: r, Mode: mode, Cause: ErrUnknownRegion}
}

func (m *Manager) violation(err error) error {
	if ae, ok := err.(*AccessError); ok && m.onViolation != nil {
		m.onViolation(ae)
	}
	return err
}
