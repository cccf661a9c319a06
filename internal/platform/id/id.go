package id

import (
	"fmt"

	"go.jetify.com/typeid"
)

// Generator creates opaque identifiers.
type Generator interface {
	New() string
}

// TypeID produces sortable, prefixed identifiers such as session_01h455vb4pex5vsknk084sn02q.
type TypeID struct {
	Prefix string
}

func (g TypeID) New() string {
	tid, err := typeid.WithPrefix(g.Prefix)
	if err != nil {
		// Only an invalid prefix can fail; prefixes are compile-time constants.
		panic(fmt.Sprintf("typeid prefix %q: %v", g.Prefix, err))
	}
	return tid.String()
}
