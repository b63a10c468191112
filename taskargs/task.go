package taskargs

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const ModuleName = "unarchive"

var (
	ErrNoAction          = errors.New("no action detected in task")
	ErrConflictingAction = errors.New("conflicting action statements")
	ErrUnknownModule     = errors.New("unknown module")
)

// keywords are task keys that never name a module.
var keywords = map[string]bool{
	"name":         true,
	"args":         true,
	"action":       true,
	"local_action": true,
	"delegate_to":  true,
}

// Task is a task normalized to a module name and a flat argument map.
type Task struct {
	Name       string
	Module     string
	Args       map[string]string
	DelegateTo string
}

// Local reports whether the task runs on this host.
func (t Task) Local() bool {
	switch t.DelegateTo {
	case "", "localhost", "127.0.0.1":
		return true
	default:
		return false
	}
}

// ParseTask normalizes one task. Values in raw are strings, nil or nested
// map[string]any; anything else is formatted with fmt. Arguments under args act as
// defaults that the module's own arguments override.
func ParseTask(raw map[string]any) (*Task, error) {
	task := &Task{}

	if name, ok := raw["name"]; ok && name != nil {
		task.Name = fmt.Sprint(name)
	}
	if delegate, ok := raw["delegate_to"]; ok && delegate != nil {
		task.DelegateTo = fmt.Sprint(delegate)
	}

	defaults, err := flatten(raw["args"])
	if err != nil {
		return nil, errors.Wrap(err, "args")
	}

	var module string
	var args map[string]string

	if thing, ok := raw["action"]; ok {
		if module, args, err = parseAction(thing); err != nil {
			return nil, err
		}
	}

	if thing, ok := raw["local_action"]; ok {
		if module != "" {
			return nil, errors.Wrap(ErrConflictingAction, "action and local_action are mutually exclusive")
		}
		if module, args, err = parseAction(thing); err != nil {
			return nil, err
		}
		task.DelegateTo = "localhost"
	}

	for key, thing := range raw {
		if keywords[key] {
			continue
		}
		if key != ModuleName {
			return nil, errors.Wrapf(ErrUnknownModule, "%q", key)
		}
		if module != "" {
			return nil, ErrConflictingAction
		}

		module = key
		if args, err = parseModuleArgs(thing); err != nil {
			return nil, errors.Wrap(err, key)
		}
	}

	if module == "" {
		return nil, ErrNoAction
	}
	if module != ModuleName {
		return nil, errors.Wrapf(ErrUnknownModule, "%q", module)
	}

	task.Module = module
	task.Args = defaults
	for k, v := range args {
		task.Args[k] = v
	}

	return task, nil
}

// parseAction handles "action: unarchive k=v" and "action: {module: unarchive, k: v}".
func parseAction(thing any) (string, map[string]string, error) {
	switch v := thing.(type) {
	case string:
		module, rest, _ := strings.Cut(strings.TrimSpace(v), " ")
		args, err := ParseKV(rest)
		if err != nil {
			return "", nil, err
		}
		return module, args, nil
	case map[string]any:
		args, err := flatten(v)
		if err != nil {
			return "", nil, err
		}
		module := args["module"]
		delete(args, "module")
		return module, args, nil
	default:
		return "", nil, errors.Errorf("unexpected parameter type in action: %T", thing)
	}
}

func parseModuleArgs(thing any) (map[string]string, error) {
	switch v := thing.(type) {
	case nil:
		return map[string]string{}, nil
	case string:
		return ParseKV(v)
	case map[string]any:
		return flatten(v)
	default:
		return nil, errors.Errorf("unexpected parameter type: %T", thing)
	}
}

// flatten turns a structured argument map into strings. A nested args map replaces
// its parent, as in "action: {module: unarchive, args: {...}}".
func flatten(thing any) (map[string]string, error) {
	args := map[string]string{}
	if thing == nil {
		return args, nil
	}

	m, ok := thing.(map[string]any)
	if !ok {
		return nil, errors.Errorf("expected a map, got %T", thing)
	}
	if nested, ok := m["args"].(map[string]any); ok {
		module := m["module"]
		m = nested
		if module != nil {
			m = map[string]any{"module": module}
			for k, v := range nested {
				m[k] = v
			}
		}
	}

	for k, v := range m {
		switch v := v.(type) {
		case nil:
			args[k] = ""
		case map[string]any, []any:
			return nil, errors.Errorf("argument %q must be a scalar", k)
		default:
			args[k] = fmt.Sprint(v)
		}
	}

	return args, nil
}

// LoadTasks reads a YAML list of tasks. Scalars keep their literal text, so mode: 0644
// stays "0644" and copy: no stays "no".
func LoadTasks(r io.Reader) ([]Task, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not parse tasks")
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return nil, errors.Errorf("line %d: tasks must be a list", root.Line)
	}

	tasks := make([]Task, 0, len(root.Content))
	for i, item := range root.Content {
		value, err := nodeValue(item)
		if err != nil {
			return nil, errors.Wrapf(err, "task %d", i+1)
		}

		raw, ok := value.(map[string]any)
		if !ok {
			return nil, errors.Errorf("task %d (line %d) must be a map", i+1, item.Line)
		}

		task, err := ParseTask(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "task %d (line %d)", i+1, item.Line)
		}
		tasks = append(tasks, *task)
	}

	return tasks, nil
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil, nil
		}
		return n.Value, nil
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, errors.Errorf("line %d: keys must be scalars", key.Line)
			}
			value, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[key.Value] = value
		}
		return m, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			value, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		return items, nil
	default:
		return nil, errors.Errorf("line %d: unexpected yaml node", n.Line)
	}
}
