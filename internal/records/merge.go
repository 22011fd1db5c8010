package records

// Merge folds newly gathered intelligence into an existing recon record.
// Merging is append-only: existing discoveries are never removed or
// overwritten, duplicates are dropped. Completeness and notes follow the
// newer record.
func (r *ReconRecord) Merge(add *ReconRecord) {
	if add == nil {
		return
	}

	seenServices := make(map[string]bool, len(r.Services))
	for _, s := range r.Services {
		seenServices[serviceKey(s)] = true
	}
	for _, s := range add.Services {
		if !seenServices[serviceKey(s)] {
			seenServices[serviceKey(s)] = true
			r.Services = append(r.Services, s)
		}
	}

	r.OpenPorts = mergeInts(r.OpenPorts, add.OpenPorts)
	r.Endpoints = mergeStrings(r.Endpoints, add.Endpoints)
	r.TechStack = mergeStrings(r.TechStack, add.TechStack)
	r.Capabilities = mergeStrings(r.Capabilities, add.Capabilities)

	for k, v := range add.Raw {
		if r.Raw == nil {
			r.Raw = make(map[string]any)
		}
		r.Raw[k] = v
	}

	r.Complete = add.Complete
	if add.Notes != "" {
		if r.Notes != "" {
			r.Notes += "\n"
		}
		r.Notes += add.Notes
	}
}

func serviceKey(s ServiceInfo) string {
	return s.Name + "|" + s.Version
}

func mergeStrings(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, v := range base {
		seen[v] = true
	}
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			base = append(base, v)
		}
	}
	return base
}

func mergeInts(base, add []int) []int {
	seen := make(map[int]bool, len(base))
	for _, v := range base {
		seen[v] = true
	}
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			base = append(base, v)
		}
	}
	return base
}
