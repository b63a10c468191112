package mode

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parse reads an octal ("0600", "755") or symbolic ("u+rwX,g-rwx,o-rwx") mode.
// A symbolic clause without a class applies to all classes.
func Parse(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.Wrap(ErrInvalid, "empty mode")
	}

	if isOctal(s) {
		v, err := strconv.ParseUint(s, 8, 32)
		if err != nil || v > 0o7777 {
			return nil, errors.Wrapf(ErrInvalid, "octal mode %q out of range", s)
		}
		return Absolute(FromOctal(uint32(v))), nil
	}

	var spec Symbolic
	for _, part := range strings.Split(s, ",") {
		clause, err := parseClause(part)
		if err != nil {
			return nil, errors.Wrapf(err, "mode %q", s)
		}
		spec = append(spec, clause)
	}

	return spec, nil
}

func isOctal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '7' {
			return false
		}
	}

	return true
}

func parseClause(part string) (Clause, error) {
	var c Clause
	i := 0

who:
	for ; i < len(part); i++ {
		switch part[i] {
		case 'u':
			c.Who |= WhoUser
		case 'g':
			c.Who |= WhoGroup
		case 'o':
			c.Who |= WhoOther
		case 'a':
			c.Who |= WhoAll
		default:
			break who
		}
	}

	if c.Who == 0 {
		c.Who = WhoAll
	}
	if i == len(part) {
		return Clause{}, errors.Wrapf(ErrInvalid, "clause %q has no operator", part)
	}

	for i < len(part) {
		operator := part[i]
		if operator != '+' && operator != '-' && operator != '=' {
			return Clause{}, errors.Wrapf(ErrInvalid, "unexpected %q in clause %q", operator, part)
		}
		i++

		start := i
		for i < len(part) && !strings.ContainsRune("+-=", rune(part[i])) {
			i++
		}
		operand := part[start:i]

		op := Op{Operator: operator}
		switch {
		case operand == "u" || operand == "g" || operand == "o":
			op.CopyFrom = map[string]Who{"u": WhoUser, "g": WhoGroup, "o": WhoOther}[operand]
		case strings.Trim(operand, "rwxXst") == "":
			op.Perms = operand
		default:
			return Clause{}, errors.Wrapf(ErrInvalid, "bad permissions %q in clause %q", operand, part)
		}
		c.Ops = append(c.Ops, op)
	}

	return c, nil
}
