package variables

// Resolve folds exclusion entries of raw into the remaining entries.
// A plain entry equal to some exclusion is dropped; otherwise every
// exclusion belonging to its collection is attached as a key exclusion.
// Relative order of the kept entries is preserved and the result never
// contains an exclusion. Count entries are treated like plain ones.
func Resolve(raw []Variable) []Variable {
	var exclusions, plain []Variable
	for _, v := range raw {
		if v.Modifier == ModExclusion {
			exclusions = append(exclusions, v)
			continue
		}
		plain = append(plain, v)
	}

	out := make([]Variable, 0, len(plain))
	for _, p := range plain {
		entry := p.clone()
		dropped := false
		for _, ex := range exclusions {
			if Equal(ex, entry) {
				dropped = true
				break
			}
			if ex.BelongsTo(entry) {
				annotation := ex.clone()
				annotation.Modifier = ModNone
				entry.KeyExclusions = append(entry.KeyExclusions, annotation)
			}
		}
		if !dropped {
			out = append(out, entry)
		}
	}
	return out
}

// Merge resolves current extended by update. Plain entries of update that
// are already present in current are skipped.
func Merge(current, update []Variable) []Variable {
	combined := make([]Variable, 0, len(current)+len(update))
	for _, v := range current {
		combined = append(combined, v.clone())
	}
	for _, v := range update {
		if v.Modifier != ModExclusion && contains(current, v) {
			continue
		}
		combined = append(combined, v)
	}
	return Resolve(combined)
}

func contains(list []Variable, v Variable) bool {
	for _, existing := range list {
		if Equal(existing, v) && existing.Modifier == v.Modifier {
			return true
		}
	}
	return false
}
