// Package syntax implements the tiered incremental syntax manager: a
// per-document scheduler that keeps a tree-sitter-style parse tree in
// sync under typing, undo/redo, viewport scrolling, and document size,
// without ever blocking the caller. Ported from the original editor's
// syntax_manager (see its invariants/tests/lifecycle.rs, mirrored here in
// lifecycle_test.go) onto Go goroutines + a bounded worker pool instead of
// async tasks.
package syntax

import (
	"context"
	"sync"
	"time"

	"github.com/shiv248/kolabcore/internal/change"
	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/pkg/logger"
)

// Tier classifies a document by byte size, selecting a TieredSyntaxPolicy.
type Tier int

const (
	TierS Tier = iota
	TierM
	TierL
)

// TierFor classifies byteLen into S/M/L using the thresholds a terminal
// editor typically tunes: small source files, medium modules, large
// generated/vendored files.
func TierFor(byteLen int) Tier {
	switch {
	case byteLen < 64*1024:
		return TierS
	case byteLen < 2*1024*1024:
		return TierM
	default:
		return TierL
	}
}

// Hotness describes whether a document is currently visible, backgrounded,
// or cold, driving retention decisions.
type Hotness int

const (
	Visible Hotness = iota
	Hidden
	Cold
)

// RetentionPolicy controls whether a hidden document's trees survive a
// retention sweep.
type RetentionPolicy int

const (
	KeepAlways RetentionPolicy = iota
	DropWhenHidden
)

// TieredSyntaxPolicy holds the per-tier scheduling knobs.
type TieredSyntaxPolicy struct {
	Debounce                  time.Duration
	RetentionHiddenFull       RetentionPolicy
	RetentionHiddenViewport   RetentionPolicy
	ViewportCooldownOnTimeout time.Duration
	EagerInjections           bool
}

// PolicySet holds one TieredSyntaxPolicy per tier.
type PolicySet struct {
	S, M, L TieredSyntaxPolicy
}

func (ps PolicySet) forTier(t Tier) TieredSyntaxPolicy {
	switch t {
	case TierS:
		return ps.S
	case TierM:
		return ps.M
	default:
		return ps.L
	}
}

// DefaultPolicySet is a reasonable starting point for all three tiers.
func DefaultPolicySet() PolicySet {
	p := TieredSyntaxPolicy{
		Debounce:                  60 * time.Millisecond,
		RetentionHiddenFull:       KeepAlways,
		RetentionHiddenViewport:   DropWhenHidden,
		ViewportCooldownOnTimeout: 2 * time.Second,
	}
	return PolicySet{S: p, M: p, L: p}
}

// OptsKey distinguishes parse results that used different engine options
// (currently just injection enrichment).
type OptsKey struct {
	Injections bool
}

// PollResult is the outcome of an ensure_syntax call.
type PollResult int

const (
	Ready PollResult = iota
	Pending
	Kicked
	CoolingDown
)

// EngineErrorKind is the non-fatal failure taxonomy for parse attempts.
type EngineErrorKind int

const (
	ErrParse EngineErrorKind = iota
	ErrTimeout
	ErrOutOfMemory
)

// EngineError wraps a swallowed parse failure.
type EngineError struct {
	Kind EngineErrorKind
}

func (e *EngineError) Error() string {
	switch e.Kind {
	case ErrTimeout:
		return "syntax: engine timeout"
	case ErrOutOfMemory:
		return "syntax: engine out of memory"
	default:
		return "syntax: engine parse error"
	}
}

// Tree is an opaque parse result handle; the actual tree-sitter-style
// parse engine is external (spec §1 — syntax highlighting as a consumer
// of the trees is out of scope). TreeID changes whenever the content
// changes.
type Tree struct {
	TreeID uint64
	Opts   OptsKey
}

// Engine performs the actual (expensive) parse. Implementations must be
// safe for concurrent use; Parse should respect ctx cancellation.
type Engine interface {
	Parse(ctx context.Context, text string, opts OptsKey) (Tree, error)
}

// installedTree is the authoritative resident parse for a document.
type installedTree struct {
	tree        Tree
	docVersion  uint64
	treeID      uint64
}

type viewportKey struct {
	startByte uint32
	endByte   uint32
}

type viewportEntry struct {
	stageA *installedTree
	stageB *installedTree
}

type slot struct {
	full          *installedTree
	viewportCache map[viewportKey]viewportEntry
	dirty         bool
	languageID    string
	lastOptsKey   OptsKey
	treeIDCounter uint64
}

// taskClass distinguishes full-document parses from viewport parses.
type taskClass int

const (
	classFull taskClass = iota
	classViewportStageA
	classViewportStageB
)

type completedTask struct {
	docVersion  uint64
	opts        OptsKey
	tree        Tree
	err         error
	class       taskClass
	viewportKey *viewportKey
}

type inflightTask struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// EnsureSyntaxContext is the render path's request to catch up a
// document's syntax tree.
type EnsureSyntaxContext struct {
	DocID       document.ID
	DocVersion  uint64
	LanguageID  string
	Rope        rope.Rope
	Hotness     Hotness
	Viewport    *[2]uint32 // byte range, nil if no viewport supplied
}

// PollOutcome is ensure_syntax's return value.
type PollOutcome struct {
	Result  PollResult
	Updated bool
}

type docEntry struct {
	slot            slot
	lastEditSource  document.EditSource
	lastEditTime    time.Time
	lastTier        Tier
	generation      uint64
	inflightFull    *inflightTask
	inflightVP      map[viewportKey]*inflightTask
	completed       []completedTask
	syntaxVersion   uint64
	cooldownUntil   map[viewportKey]time.Time
	pendingBaseline uint64
}

func newDocEntry() *docEntry {
	return &docEntry{
		slot:       slot{viewportCache: make(map[viewportKey]viewportEntry)},
		inflightVP: make(map[viewportKey]*inflightTask),
		cooldownUntil: make(map[viewportKey]time.Time),
	}
}

// Manager is the tiered incremental syntax manager.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	policies PolicySet
	engine   Engine
	docs     map[document.ID]*docEntry
	sem      chan struct{}
}

// Config bounds the manager's concurrency.
type Config struct {
	MaxConcurrency int
}

// New constructs a Manager with the given engine and config.
func New(cfg Config, engine Engine) *Manager {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Manager{
		cfg:      cfg,
		policies: DefaultPolicySet(),
		engine:   engine,
		docs:     make(map[document.ID]*docEntry),
		sem:      make(chan struct{}, cfg.MaxConcurrency),
	}
}

// SetPolicy replaces the tier policy set.
func (m *Manager) SetPolicy(ps PolicySet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = ps
}

func (m *Manager) entry(id document.ID) *docEntry {
	e, ok := m.docs[id]
	if !ok {
		e = newDocEntry()
		m.docs[id] = e
	}
	return e
}

// NoteEdit marks the slot dirty and records the edit source, for batch
// operations that don't have a precise changeset (e.g. paste, format).
func (m *Manager) NoteEdit(id document.ID, source document.EditSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(id)
	e.slot.dirty = true
	e.lastEditSource = source
	e.lastEditTime = time.Now()
	e.generation++
}

// NoteEditIncremental attempts a synchronous incremental update of the
// resident full tree. On success it advances the resident tree's
// doc_version, clears dirty, and rotates tree_id. On failure it only
// marks dirty. cs is accepted for API symmetry with the original
// incremental-reparse contract; this implementation always takes the
// "full incremental reparse of the small changed region" path rather
// than a true tree-sitter edit-patch, since the parse engine itself is
// external (spec §1).
//
// A failed catch-up sourced from History anchors pendingBaseline to
// newVersion: the resident tree is still serving reads by projecting
// forward through the edits accumulated since it was installed, and a
// background completion that doesn't reach at least this version would
// break that projection rather than advance it. See shouldInstall.
func (m *Manager) NoteEditIncremental(id document.ID, newVersion uint64, oldRope, newRope rope.Rope, cs change.ChangeSet, source document.EditSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(id)
	e.lastEditSource = source
	e.lastEditTime = time.Now()
	e.generation++

	if e.slot.full == nil {
		e.slot.dirty = true
		if source == document.History {
			e.pendingBaseline = newVersion
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	tree, err := m.engine.Parse(ctx, newRope.String(), e.slot.lastOptsKey)
	if err != nil {
		logger.With("syntax").Debug("sync incremental reparse failed for %s: %v", id, err)
		e.slot.dirty = true
		if source == document.History {
			e.pendingBaseline = newVersion
		}
		return
	}
	e.slot.treeIDCounter++
	tree.TreeID = e.slot.treeIDCounter
	e.slot.full = &installedTree{tree: tree, docVersion: newVersion, treeID: tree.TreeID}
	e.slot.dirty = false
	e.pendingBaseline = 0
	m.bumpVersion(e)
}

// MarkDirty forces the slot dirty without changing last_edit_source; used
// by tests and by callers that need to force a recheck (e.g. language
// change).
func (m *Manager) MarkDirty(id document.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(id).slot.dirty = true
}

// ForceClean clears dirty without installing anything, matching the
// original test helper's `force_clean`.
func (m *Manager) ForceClean(id document.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(id).slot.dirty = false
}

func (m *Manager) bumpVersion(e *docEntry) {
	e.syntaxVersion++
}

// SyntaxVersion returns the monotone per-doc version counter.
func (m *Manager) SyntaxVersion(id document.ID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[id]
	if !ok {
		return 0
	}
	return e.syntaxVersion
}

// SyntaxDocVersion returns the doc_version attached to the resident full
// tree, if any.
func (m *Manager) SyntaxDocVersion(id document.ID) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[id]
	if !ok || e.slot.full == nil {
		return 0, false
	}
	return e.slot.full.docVersion, true
}

// HasSyntax reports whether a resident full tree exists.
func (m *Manager) HasSyntax(id document.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[id]
	return ok && e.slot.full != nil
}

// IsDirty reports the slot's dirty flag.
func (m *Manager) IsDirty(id document.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[id]
	return ok && e.slot.dirty
}

// HasPending reports whether a background full parse is currently
// in flight for id.
func (m *Manager) HasPending(id document.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[id]
	return ok && e.inflightFull != nil
}

// TreeID returns the resident full tree's identity, if any.
func (m *Manager) TreeID(id document.ID) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[id]
	if !ok || e.slot.full == nil {
		return 0, false
	}
	return e.slot.full.treeID, true
}

// EnsureSyntax is the render path's entry point: drains finished
// background tasks, installs anything that improves the slot, and kicks
// a new background full parse if the slot is dirty and nothing is
// already in flight, honoring debounce (skipped on bootstrap).
func (m *Manager) EnsureSyntax(ctx EnsureSyntaxContext) PollOutcome {
	m.mu.Lock()
	e := m.entry(ctx.DocID)
	updated := m.drainFinishedLocked(e)

	tier := TierFor(ctx.Rope.LenBytes())
	e.lastTier = tier
	policy := m.policies.forTier(tier)

	if e.slot.full != nil && !e.slot.dirty && e.slot.full.docVersion == ctx.DocVersion {
		m.mu.Unlock()
		return PollOutcome{Result: Ready, Updated: updated}
	}

	if e.inflightFull != nil {
		m.mu.Unlock()
		return PollOutcome{Result: Pending, Updated: updated}
	}

	bootstrap := e.slot.full == nil
	if !bootstrap && !e.slot.dirty {
		m.mu.Unlock()
		return PollOutcome{Result: Ready, Updated: updated}
	}
	if !bootstrap && policy.Debounce > 0 && time.Since(e.lastEditTime) < policy.Debounce {
		m.mu.Unlock()
		return PollOutcome{Result: Pending, Updated: updated}
	}

	e.generation++
	gen := e.generation
	task := m.kickFullParse(ctx.DocID, e, gen, ctx.DocVersion, ctx.Rope.String(), OptsKey{Injections: policy.EagerInjections})
	e.inflightFull = task
	m.mu.Unlock()
	return PollOutcome{Result: Kicked, Updated: updated}
}

func (m *Manager) kickFullParse(id document.ID, e *docEntry, gen uint64, docVersion uint64, text string, opts OptsKey) *inflightTask {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	task := &inflightTask{gen: gen, cancel: cancel, done: done}

	go func() {
		defer close(done)
		m.sem <- struct{}{}
		defer func() { <-m.sem }()

		tree, err := m.engine.Parse(ctx, text, opts)

		m.mu.Lock()
		defer m.mu.Unlock()
		cur, ok := m.docs[id]
		if !ok {
			return
		}
		cur.completed = append(cur.completed, completedTask{
			docVersion: docVersion,
			opts:       opts,
			tree:       tree,
			err:        err,
			class:      classFull,
		})
	}()
	return task
}

// DrainFinishedInflight installs any completed background task, called
// independently of EnsureSyntax (e.g. from a periodic Tick) so a document
// that is open but not being rendered still picks up a finished parse.
func (m *Manager) DrainFinishedInflight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	any := false
	for _, e := range m.docs {
		if m.drainFinishedLocked(e) {
			any = true
		}
	}
	return any
}

func (m *Manager) drainFinishedLocked(e *docEntry) bool {
	if e.inflightFull != nil {
		select {
		case <-e.inflightFull.done:
			e.inflightFull = nil
		default:
		}
	}

	updated := false
	for _, c := range e.completed {
		if c.err != nil {
			logger.With("syntax").Debug("parse error: %v", c.err)
			continue
		}
		if m.shouldInstall(c, e.slot.full, e.pendingBaseline) {
			e.slot.treeIDCounter++
			c.tree.TreeID = e.slot.treeIDCounter
			e.slot.full = &installedTree{tree: c.tree, docVersion: c.docVersion, treeID: c.tree.TreeID}
			e.slot.lastOptsKey = c.opts
			e.slot.dirty = false
			if e.pendingBaseline != 0 && c.docVersion >= e.pendingBaseline {
				e.pendingBaseline = 0
			}
			updated = true
			m.bumpVersion(e)
		}
	}
	e.completed = nil
	return updated
}

// shouldInstall is the install-dominance policy: a completion installs
// only when it improves the slot. With no resident tree at all, anything
// is an improvement (continuity over showing nothing). Otherwise its
// doc_version must strictly dominate the resident tree's.
//
// That dominance check alone isn't sufficient once a History-sourced edit
// has anchored projection ahead of the resident tree via pendingBaseline
// (set by NoteEditIncremental when its synchronous catch-up fails): a
// completion that dominates the resident tree but still falls short of
// pendingBaseline is a stale intermediate result. Installing it would
// swap the resident baseline for one that is closer to current but still
// wrong, discarding the continuity the caller has been maintaining by
// projecting the old resident tree forward through the edits accumulated
// since — for no gain, since highlighting would remain stale either way
// until a completion reaching pendingBaseline lands. Such a completion is
// discarded and the existing resident tree (and its projection) is kept
// until an exact catch-up arrives.
func (m *Manager) shouldInstall(c completedTask, resident *installedTree, pendingBaseline uint64) bool {
	if c.class != classFull {
		return false
	}
	if resident == nil {
		return true
	}
	if c.docVersion <= resident.docVersion {
		return false
	}
	if pendingBaseline != 0 && c.docVersion < pendingBaseline {
		return false
	}
	return true
}

// SweepRetention drops full/viewport trees of Cold documents per policy
// and flushes the completed queue for cold documents, bumping
// syntax_version for every drop (cache invalidation).
func (m *Manager) SweepRetention(hotnessFn func(document.ID) Hotness) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.docs {
		if hotnessFn(id) != Cold {
			continue
		}
		policy := m.policies.forTier(e.lastTier)
		dropped := false
		if e.slot.full != nil && policy.RetentionHiddenFull == DropWhenHidden {
			e.slot.full = nil
			dropped = true
		}
		if policy.RetentionHiddenViewport == DropWhenHidden && len(e.slot.viewportCache) > 0 {
			e.slot.viewportCache = make(map[viewportKey]viewportEntry)
			dropped = true
		}
		if dropped {
			m.bumpVersion(e)
		}
		if len(e.completed) > 0 {
			e.completed = nil
		}
	}
}
