package diagnostics

import "sort"

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func distinctSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
