package mapping

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/audiolibrelab/dialmix/internal/audio"
)

// Bound is a session together with the path it was matched on.
type Bound struct {
	Session audio.Session
	Path    string
}

// Unresolved is a session whose path could not be read this cycle.
type Unresolved struct {
	Session audio.Session
	Err     error
}

// Assignment is the result of one match pass.
type Assignment struct {
	Bindings []Binding

	bound [][]Bound

	// Unassigned holds sessions no binding selected.
	Unassigned []Bound

	// Unresolved holds sessions that were skipped because their path could
	// not be resolved. They are retried on the next pass.
	Unresolved []Unresolved
}

// Sessions returns the sessions assigned to binding i.
func (a *Assignment) Sessions(i int) []audio.Session {
	sessions := make([]audio.Session, len(a.bound[i]))
	for j, b := range a.bound[i] {
		sessions[j] = b.Session
	}
	return sessions
}

// Bound returns the sessions assigned to binding i with their paths.
func (a *Assignment) Bound(i int) []Bound {
	return a.bound[i]
}

// Match assigns every session to the first binding, in configured order, whose
// selector matches its lowercased path.
//
// Within a binding, sessions are ordered by path then process id, so the
// result does not depend on the order the OS listed them in.
func Match(bindings []Binding, sessions []audio.Session) *Assignment {
	a := &Assignment{
		Bindings: bindings,
		bound:    make([][]Bound, len(bindings)),
	}

	for _, session := range sessions {
		path, err := session.ProcessPath()
		if err != nil {
			slog.Debug("Session path unresolved, leaving unmatched", "pid", session.ProcessID(), "error", err)
			a.Unresolved = append(a.Unresolved, Unresolved{Session: session, Err: err})
			continue
		}
		b := Bound{Session: session, Path: strings.ToLower(path)}

		assigned := false
		for i, binding := range bindings {
			if binding.Selector.Matches(b.Path) {
				a.bound[i] = append(a.bound[i], b)
				assigned = true
				break
			}
		}
		if !assigned {
			a.Unassigned = append(a.Unassigned, b)
		}
	}

	for i := range a.bound {
		sortBound(a.bound[i])
	}
	sortBound(a.Unassigned)
	sort.SliceStable(a.Unresolved, func(i, j int) bool {
		return a.Unresolved[i].Session.ProcessID() < a.Unresolved[j].Session.ProcessID()
	})

	return a
}

func sortBound(b []Bound) {
	sort.SliceStable(b, func(i, j int) bool {
		if b[i].Path != b[j].Path {
			return b[i].Path < b[j].Path
		}
		return b[i].Session.ProcessID() < b[j].Session.ProcessID()
	})
}
