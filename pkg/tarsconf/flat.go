package tarsconf

import "strings"

// ParseFlat parses a sectionless key=value document — the grammar used by
// the persisted "${datapath}/${server}.tarsdat" state file (spec §6), which
// reuses the parser's key=value/escape rules but never opens a section.
func ParseFlat(text string) (map[string]string, error) {
	root, err := Parse(text)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(root.paramOrder))
	for _, k := range root.ParamOrder() {
		v, _ := root.Param(k)
		out[k] = v
	}
	return out, nil
}

// DumpFlat serializes a flat key=value map, honouring the supplied key
// order (callers should pass a stable order to keep the file diff-friendly
// across restarts).
func DumpFlat(order []string, values map[string]string) string {
	var b strings.Builder
	for _, k := range order {
		v, ok := values[k]
		if !ok {
			continue
		}
		b.WriteString(escapeReplacer.Replace(k))
		b.WriteByte('=')
		b.WriteString(escapeReplacer.Replace(v))
		b.WriteByte('\n')
	}
	return b.String()
}
