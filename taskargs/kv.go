// Package taskargs turns task-runner style invocations into extraction requests.
//
// A task names the unarchive module and its arguments in one of several forms:
//
//	- unarchive: src=a.tgz dest=/srv copy=no
//	- unarchive:
//	    src: a.tgz
//	    dest: /srv
//	- action: unarchive src=a.tgz dest=/srv
//	- action:
//	    module: unarchive
//	    src: a.tgz
//	  args:
//	    dest: /srv
package taskargs

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrMalformedArgs = errors.New("malformed arguments")

// ParseKV parses space separated key=value pairs. Values may be wrapped in single or
// double quotes, and a backslash outside single quotes escapes the next character.
// A later duplicate key overrides an earlier one.
func ParseKV(s string) (map[string]string, error) {
	tokens, err := split(s)
	if err != nil {
		return nil, err
	}

	args := make(map[string]string, len(tokens))
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return nil, errors.Wrapf(ErrMalformedArgs, "%q is not a key=value pair", token)
		}
		if !validKey(key) {
			return nil, errors.Wrapf(ErrMalformedArgs, "invalid key %q", key)
		}

		args[key] = unquote(value)
	}

	return args, nil
}

// split breaks s on unquoted whitespace, keeping quotes and escapes in the tokens.
func split(s string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		escaped bool
		inToken bool
	)

	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
			continue
		}

		current.WriteRune(r)
		inToken = true
	}

	if quote != 0 {
		return nil, errors.Wrapf(ErrMalformedArgs, "unterminated %c quote", quote)
	}
	if inToken {
		tokens = append(tokens, current.String())
	}

	return tokens, nil
}

func unquote(s string) string {
	var (
		b       strings.Builder
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		b.WriteRune('\\')
	}

	return b.String()
}

func validKey(key string) bool {
	if key == "" {
		return false
	}

	for i, r := range key {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}
