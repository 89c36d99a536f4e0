package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ParseDocument decodes one pipeline file: a JSON object mapping task names
// to task definitions. Definitions are returned in document order and each
// anchor points at the byte offset of the task's key. A key repeated within
// the file replaces the earlier definition.
func ParseDocument(file string, data []byte) ([]Definition, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid JSON", file)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%s: top level must be an object of tasks", file)
	}
	var (
		defs []Definition
		err  error
	)
	seen := make(map[string]int)
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == "" {
			err = fmt.Errorf("%s: empty task name at offset %d", file, key.Index)
			return false
		}
		if !value.IsObject() {
			err = fmt.Errorf("%s: task %q must be an object, got %s", file, name, value.Type)
			return false
		}
		var task Task
		if decodeErr := json.Unmarshal([]byte(value.Raw), &task); decodeErr != nil {
			err = fmt.Errorf("%s: task %q: %w", file, name, decodeErr)
			return false
		}
		def := Definition{
			Task:   &task,
			Anchor: Anchor{Task: name, File: file, Offset: key.Index},
		}
		if i, ok := seen[name]; ok {
			defs[i] = def
			return true
		}
		seen[name] = len(defs)
		defs = append(defs, def)
		return true
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}
