// Package naturalkey translates internal identifiers to portable keys and back.
package naturalkey

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Kind namespaces keys so that a stage and a task may share a name.
type Kind string

const (
	Member   Kind = "member"
	Stage    Kind = "stage"
	Task     Kind = "task"
	Folder   Kind = "folder"
	Comment  Kind = "comment"
	ScoreRow Kind = "score_row"

	// Positions live in their own kinds so a stage literally named "#1"
	// never collides with the stage at index 1.
	StagePos Kind = "stage_pos"
	TaskPos  Kind = "task_pos"
)

type binding struct {
	kind      Kind
	key       string
	id        uuid.UUID
	ambiguous bool
	alias     bool
}

type idSlot struct {
	kind Kind
	id   uuid.UUID
}

type keySlot struct {
	kind Kind
	key  string
}

// Resolver is an arena of (kind, key, id) bindings indexed both ways.
// The first binding of a key wins; later ids claiming the same key are
// still resolvable by id but mark the key as ambiguous. An id may carry
// several keys; Resolve returns the first one bound.
type Resolver struct {
	mu    sync.RWMutex
	arena []binding
	byID  map[idSlot]int
	byKey map[keySlot]int
}

// New returns an empty resolver.
func New() *Resolver {
	return &Resolver{
		byID:  make(map[idSlot]int),
		byKey: make(map[keySlot]int),
	}
}

// Position is the key used for entities identified by list position.
func Position(i int) string {
	return "#" + strconv.Itoa(i)
}

// Bind records that id is known as key. It reports whether the key now maps to id.
// Empty keys and nil ids are ignored.
func (r *Resolver) Bind(kind Kind, id uuid.UUID, key string) bool {
	if key == "" || id == uuid.Nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ks := keySlot{kind, key}
	is := idSlot{kind, id}
	first, taken := r.byKey[ks]
	if taken && r.arena[first].id == id {
		return true
	}
	_, known := r.byID[is]
	r.arena = append(r.arena, binding{kind: kind, key: key, id: id, alias: known})
	pos := len(r.arena) - 1
	if !known {
		r.byID[is] = pos
	}
	if taken {
		r.arena[first].ambiguous = true
		r.arena[pos].ambiguous = true
		return false
	}
	r.byKey[ks] = pos
	return true
}

// Resolve returns the natural key for id, or "" when unknown.
func (r *Resolver) Resolve(kind Kind, id uuid.UUID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx, ok := r.byID[idSlot{kind, id}]; ok {
		return r.arena[idx].key
	}
	return ""
}

// ResolvePtr is Resolve for nullable foreign keys.
func (r *Resolver) ResolvePtr(kind Kind, id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return r.Resolve(kind, *id)
}

// Lookup returns the id bound to key.
func (r *Resolver) Lookup(kind Kind, key string) (uuid.UUID, bool) {
	if key == "" {
		return uuid.Nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx, ok := r.byKey[keySlot{kind, key}]; ok {
		return r.arena[idx].id, true
	}
	return uuid.Nil, false
}

// Ambiguous lists keys of kind that more than one id tried to claim.
func (r *Resolver) Ambiguous(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, b := range r.arena {
		if b.kind != kind || !b.ambiguous {
			continue
		}
		if idx := r.byKey[keySlot{kind, b.key}]; r.arena[idx].id == b.id {
			out = append(out, b.key)
		}
	}
	return out
}

// Len returns the number of ids bound for kind.
func (r *Resolver) Len(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, b := range r.arena {
		if b.kind == kind && !b.alias {
			n++
		}
	}
	return n
}
