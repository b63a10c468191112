// Package mode parses chmod-style permission specifications and resolves them against an
// existing file mode.
//
// Two forms are accepted: absolute octal modes ("0600", "755") and symbolic deltas
// ("u+rwX,g-rwx,o-rwx"). Both implement Spec.
package mode

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalid is returned by Parse for strings that are neither octal nor symbolic modes.
var ErrInvalid = errors.New("invalid mode")

// Mask covers every bit a Spec may produce: permissions plus setuid, setgid and sticky.
const Mask = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

// Spec resolves a desired permission set for an entry from its current mode.
// The returned mode only carries bits within Mask.
type Spec interface {
	Apply(current fs.FileMode, isDir bool) fs.FileMode
	String() string
	isSpec()
}

// Absolute replaces the permission bits outright.
type Absolute fs.FileMode

func (a Absolute) Apply(fs.FileMode, bool) fs.FileMode {
	return fs.FileMode(a) & Mask
}

func (a Absolute) String() string {
	return fmt.Sprintf("%04o", toUnix(fs.FileMode(a)))
}

func (Absolute) isSpec() {}

// Symbolic is an ordered list of clauses applied left to right.
type Symbolic []Clause

// Clause is one comma-separated part of a symbolic mode, e.g. "g-rwx".
type Clause struct {
	Who Who
	Ops []Op
}

// Who is a bit set over the user, group and other classes.
type Who uint8

const (
	WhoUser Who = 1 << iota
	WhoGroup
	WhoOther
	WhoAll = WhoUser | WhoGroup | WhoOther
)

// Op is a single operator with its operand: either permission letters or a class to copy from.
type Op struct {
	Operator byte
	Perms    string
	CopyFrom Who
}

func (s Symbolic) Apply(current fs.FileMode, isDir bool) fs.FileMode {
	bits := toUnix(current)
	for _, c := range s {
		for _, op := range c.Ops {
			bits = op.apply(bits, c.Who, isDir)
		}
	}

	return fromUnix(bits)
}

func (s Symbolic) String() string {
	clauses := make([]string, 0, len(s))
	for _, c := range s {
		var b strings.Builder
		b.WriteString(c.Who.String())
		for _, op := range c.Ops {
			b.WriteByte(op.Operator)
			if op.CopyFrom != 0 {
				b.WriteString(op.CopyFrom.String())
			} else {
				b.WriteString(op.Perms)
			}
		}
		clauses = append(clauses, b.String())
	}

	return strings.Join(clauses, ",")
}

func (Symbolic) isSpec() {}

func (w Who) String() string {
	if w == WhoAll {
		return "a"
	}

	var b strings.Builder
	if w&WhoUser != 0 {
		b.WriteByte('u')
	}
	if w&WhoGroup != 0 {
		b.WriteByte('g')
	}
	if w&WhoOther != 0 {
		b.WriteByte('o')
	}

	return b.String()
}

// mask returns the unix bits owned by the classes in w, special bits included.
func (w Who) mask() uint32 {
	var m uint32
	if w&WhoUser != 0 {
		m |= 0o4700
	}
	if w&WhoGroup != 0 {
		m |= 0o2070
	}
	if w&WhoOther != 0 {
		m |= 0o1007
	}

	return m
}

func (op Op) apply(bits uint32, who Who, isDir bool) uint32 {
	var perm uint32
	if op.CopyFrom != 0 {
		var v uint32
		switch op.CopyFrom {
		case WhoUser:
			v = (bits >> 6) & 0o7
		case WhoGroup:
			v = (bits >> 3) & 0o7
		case WhoOther:
			v = bits & 0o7
		}
		perm = v<<6 | v<<3 | v
	} else {
		for _, p := range op.Perms {
			switch p {
			case 'r':
				perm |= 0o444
			case 'w':
				perm |= 0o222
			case 'x':
				perm |= 0o111
			case 'X':
				if isDir || bits&0o111 != 0 {
					perm |= 0o111
				}
			case 's':
				perm |= 0o6000
			case 't':
				perm |= 0o1000
			}
		}
	}

	mask := who.mask()
	perm &= mask

	switch op.Operator {
	case '+':
		bits |= perm
	case '-':
		bits &^= perm
	case '=':
		bits = bits&^mask | perm
	}

	return bits
}

func toUnix(m fs.FileMode) uint32 {
	bits := uint32(m.Perm())
	if m&fs.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		bits |= 0o1000
	}

	return bits
}

func fromUnix(bits uint32) fs.FileMode {
	m := fs.FileMode(bits & 0o777)
	if bits&0o4000 != 0 {
		m |= fs.ModeSetuid
	}
	if bits&0o2000 != 0 {
		m |= fs.ModeSetgid
	}
	if bits&0o1000 != 0 {
		m |= fs.ModeSticky
	}

	return m
}

// FromOctal converts classic unix permission bits (e.g. 0o4755) to an fs.FileMode.
func FromOctal(bits uint32) fs.FileMode {
	return fromUnix(bits)
}

// Bits returns the part of m a Spec can change, for comparison against Apply's result.
func Bits(m fs.FileMode) fs.FileMode {
	return m & Mask
}
