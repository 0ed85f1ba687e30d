package watch

import (
	"strings"

	"gopkg.in/fsnotify/fsnotify.v1"
)

// Op describes what happened to a file. Values combine as a bit mask.
type Op uint32

const (
	Create Op = 1 << iota
	Write
	Remove
	Rename
	Chmod
)

// AllOps matches every operation.
const AllOps = Create | Write | Remove | Rename | Chmod

var opNames = []struct {
	op   Op
	name string
}{
	{Create, "CREATE"},
	{Write, "WRITE"},
	{Remove, "REMOVE"},
	{Rename, "RENAME"},
	{Chmod, "CHMOD"},
}

// String renders the set bits joined by "|".
func (op Op) String() string {
	var parts []string
	for _, n := range opNames {
		if op&n.op == n.op {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "|")
}

// ParseOp parses a single operation name, ignoring case.
func ParseOp(s string) (Op, bool) {
	for _, n := range opNames {
		if strings.EqualFold(s, n.name) {
			return n.op, true
		}
	}
	return 0, false
}

// Event is the value written to a channel variable.
type Event struct {
	Path string `json:"path"`
	Op   Op     `json:"op"`
}

func fromFSNotify(ev fsnotify.Event) Event {
	var op Op
	if ev.Op&fsnotify.Create == fsnotify.Create {
		op |= Create
	}
	if ev.Op&fsnotify.Write == fsnotify.Write {
		op |= Write
	}
	if ev.Op&fsnotify.Remove == fsnotify.Remove {
		op |= Remove
	}
	if ev.Op&fsnotify.Rename == fsnotify.Rename {
		op |= Rename
	}
	if ev.Op&fsnotify.Chmod == fsnotify.Chmod {
		op |= Chmod
	}
	return Event{Path: ev.Name, Op: op}
}
