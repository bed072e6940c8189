package mapping

import "github.com/ocpp-gateway/gateway/internal/gwerrors"

// flatten resolves the parent DAG in raw (spec §4.3): rejects a missing
// parent id or a cycle (depth-first traversal with a recursion set), then
// computes each template's resolved variable set as
// (parent_resolved ∪ child_local), child overriding parent by OCPP name, in
// any topological order. The returned templates carry no parent reference.
func flatten(raw map[string]MappingTemplate) (map[string]MappingTemplate, error) {
	for id, t := range raw {
		if t.Parent != "" {
			if _, ok := raw[t.Parent]; !ok {
				return nil, gwerrors.Newf(gwerrors.KindConfigValidation, "template %q: parent %q does not exist", id, t.Parent).WithField("parent")
			}
		}
	}

	resolved := make(map[string]MappingTemplate, len(raw))
	visiting := make(map[string]bool)
	done := make(map[string]bool)

	var resolve func(id string) (MappingTemplate, error)
	resolve = func(id string) (MappingTemplate, error) {
		if done[id] {
			return resolved[id], nil
		}
		if visiting[id] {
			return MappingTemplate{}, gwerrors.Newf(gwerrors.KindConfigValidation, "cycle detected in template parent chain at %q", id).WithField("parent")
		}
		visiting[id] = true

		t := raw[id]
		var vars []OcppVariable
		if t.Parent != "" {
			parent, err := resolve(t.Parent)
			if err != nil {
				return MappingTemplate{}, err
			}
			vars = append(vars, parent.Variables...)
		}
		vars = overrideByName(vars, t.Variables)

		flat := MappingTemplate{ID: t.ID, Description: t.Description, Variables: vars}
		visiting[id] = false
		done[id] = true
		resolved[id] = flat
		return flat, nil
	}

	for id := range raw {
		if _, err := resolve(id); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// overrideByName merges child into base, child entries replacing a base
// entry with the same OCPP name in place, and appending names not present
// in base, preserving base's original ordering for unreplaced entries.
func overrideByName(base, child []OcppVariable) []OcppVariable {
	index := make(map[string]int, len(base))
	result := make([]OcppVariable, len(base))
	copy(result, base)
	for i, v := range result {
		index[v.OCPPName] = i
	}
	for _, v := range child {
		if i, ok := index[v.OCPPName]; ok {
			result[i] = v
			continue
		}
		index[v.OCPPName] = len(result)
		result = append(result, v)
	}
	return result
}
