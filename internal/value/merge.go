package value

// Merge overlays patch onto target and returns the merged tree together
// with the inverse patches:
//
//   - applying redoPatch to the pre-merge target yields merged
//   - applying undoPatch to merged restores the pre-merge target
//
// Scalar (and slice) patch values replace the target value wholesale;
// object patch values recurse into object targets. An object patch over a
// primitive target is a shape mismatch and returns a *MergeError. A nil
// target accepts any patch as a wholesale replacement.
//
// target is not mutated; merged shares no structure with target or patch.
func Merge(target, patch any) (merged, undoPatch, redoPatch any, err error) {
	if pm, ok := patch.(map[string]any); ok {
		tm, tok := target.(map[string]any)
		if !tok {
			if target == nil {
				return deepClone(patch), deepClone(target), deepClone(patch), nil
			}
			return nil, nil, nil, &MergeError{Message: "object patch over non-object target"}
		}
		m, u, r, err := mergeObjects(tm, pm, "")
		if err != nil {
			return nil, nil, nil, err
		}
		return m, u, r, nil
	}

	// Scalar or slice patch: wholesale replacement.
	return deepClone(patch), deepClone(target), deepClone(patch), nil
}

func mergeObjects(target, patch map[string]any, path string) (map[string]any, map[string]any, map[string]any, error) {
	merged := make(map[string]any, len(target)+len(patch))
	for k, v := range target {
		merged[k] = deepClone(v)
	}

	undo := make(map[string]any, len(patch))
	redo := make(map[string]any, len(patch))

	for k, pv := range patch {
		kp := childPath(path, k)
		tv, exists := target[k]

		if pm, ok := pv.(map[string]any); ok {
			switch {
			case exists && isObject(tv):
				m, u, r, err := mergeObjects(tv.(map[string]any), pm, kp)
				if err != nil {
					return nil, nil, nil, err
				}
				merged[k] = m
				undo[k] = u
				redo[k] = r
			case !exists || tv == nil:
				merged[k] = deepClone(pv)
				if exists {
					undo[k] = nil
				} else {
					undo[k] = Deleted
				}
				redo[k] = deepClone(pv)
			default:
				return nil, nil, nil, &MergeError{Path: kp, Message: "object patch over non-object target"}
			}
			continue
		}

		merged[k] = deepClone(pv)
		if exists {
			undo[k] = deepClone(tv)
		} else {
			undo[k] = Deleted
		}
		redo[k] = deepClone(pv)
	}

	return merged, undo, redo, nil
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// Apply overlays a recorded patch onto target and returns the result.
// Object patches recurse into object targets, Deleted markers remove
// keys, and everything else replaces wholesale. target may be mutated;
// callers pass an unfrozen clone.
func Apply(target, patch any) any {
	pm, ok := patch.(map[string]any)
	if !ok {
		return deepClone(patch)
	}
	tm, ok := target.(map[string]any)
	if !ok {
		tm = make(map[string]any, len(pm))
	}
	for k, pv := range pm {
		if pv == Deleted {
			delete(tm, k)
			continue
		}
		if sub, ok := pv.(map[string]any); ok {
			if cur, ok := tm[k].(map[string]any); ok {
				tm[k] = Apply(cur, sub)
				continue
			}
			tm[k] = Apply(nil, sub)
			continue
		}
		tm[k] = deepClone(pv)
	}
	return tm
}

// ComposeUndo folds a newer undo patch into an older one. Restoring a
// multi-merge cycle applies the newest undo first and the oldest last, so
// the older patch wins wherever the two overlap.
func ComposeUndo(older, newer any) any {
	return composeOver(newer, older)
}

// ComposeRedo folds a newer redo patch into an older one. Replay applies
// oldest first, so the newer patch wins wherever the two overlap.
func ComposeRedo(older, newer any) any {
	return composeOver(older, newer)
}

// composeOver overlays over onto base, recursing where both sides are
// objects and letting over replace otherwise.
func composeOver(base, over any) any {
	bm, bok := base.(map[string]any)
	om, ook := over.(map[string]any)
	if !bok || !ook {
		return deepClone(over)
	}
	out := make(map[string]any, len(bm)+len(om))
	for k, v := range bm {
		out[k] = deepClone(v)
	}
	for k, ov := range om {
		if cur, ok := out[k]; ok {
			out[k] = composeOver(cur, ov)
			continue
		}
		out[k] = deepClone(ov)
	}
	return out
}
