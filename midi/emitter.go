package midi

import (
	"sync"

	"go.uber.org/zap"
)

// NoteOutputFunc receives notes at the output boundary. on reports
// whether this is a note-on (with a fresh OutputNote) or a note-off.
type NoteOutputFunc func(note OutputNote, on bool)

// CCOutputFunc receives control-change values at the output boundary
type CCOutputFunc func(cc, channel, value uint8)

// ParameterFunc receives resolved parameter changes from CC mappings
type ParameterFunc func(parameterID string, value float64)

type noteSub struct {
	id int
	fn NoteOutputFunc
}

type ccSub struct {
	id int
	fn CCOutputFunc
}

type paramSub struct {
	id int
	fn ParameterFunc
}

// Emitter fans engine output out to subscribers. Each delivery runs in
// its own failure boundary: a panicking subscriber is logged and skipped
// without blocking the rest, and unsubscribing from inside a handler is
// safe because delivery iterates a snapshot.
type Emitter struct {
	log *zap.Logger

	mu     sync.Mutex
	nextID int
	notes  []noteSub
	ccs    []ccSub
	params []paramSub
}

// NewEmitter creates an emitter. A nil logger disables logging.
func NewEmitter(log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{log: log}
}

// SubscribeNotes registers a note output handler and returns its
// unsubscribe func. Unsubscribing twice is a no-op.
func (e *Emitter) SubscribeNotes(fn NoteOutputFunc) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.notes = append(e.notes, noteSub{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.notes {
			if s.id == id {
				e.notes = append(e.notes[:i], e.notes[i+1:]...)
				return
			}
		}
	}
}

// SubscribeCC registers a CC output handler
func (e *Emitter) SubscribeCC(fn CCOutputFunc) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.ccs = append(e.ccs, ccSub{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.ccs {
			if s.id == id {
				e.ccs = append(e.ccs[:i], e.ccs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeParameters registers a parameter-change handler
func (e *Emitter) SubscribeParameters(fn ParameterFunc) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.params = append(e.params, paramSub{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.params {
			if s.id == id {
				e.params = append(e.params[:i], e.params[i+1:]...)
				return
			}
		}
	}
}

// EmitNote delivers a note event to all note subscribers
func (e *Emitter) EmitNote(note OutputNote, on bool) {
	e.mu.Lock()
	subs := make([]noteSub, len(e.notes))
	copy(subs, e.notes)
	e.mu.Unlock()

	for _, s := range subs {
		e.deliver("note", func() { s.fn(note, on) })
	}
}

// EmitCC delivers a CC value to all CC subscribers
func (e *Emitter) EmitCC(cc, channel, value uint8) {
	e.mu.Lock()
	subs := make([]ccSub, len(e.ccs))
	copy(subs, e.ccs)
	e.mu.Unlock()

	for _, s := range subs {
		e.deliver("cc", func() { s.fn(cc, channel, value) })
	}
}

// EmitParameter delivers a parameter change to all parameter subscribers
func (e *Emitter) EmitParameter(parameterID string, value float64) {
	e.mu.Lock()
	subs := make([]paramSub, len(e.params))
	copy(subs, e.params)
	e.mu.Unlock()

	for _, s := range subs {
		e.deliver("parameter", func() { s.fn(parameterID, value) })
	}
}

func (e *Emitter) deliver(kind string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("subscriber panicked",
				zap.String("kind", kind),
				zap.Any("panic", r))
		}
	}()
	call()
}
