package pipeline

import "strings"

// Separator joins the segments of a qualified task name.
const Separator = "@"

// RemoveDuplicated drops repeated entries. With keepLast the final
// occurrence of each value survives, otherwise the first one does; the
// relative order of survivors is preserved either way.
func RemoveDuplicated(list []string, keepLast bool) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	if !keepLast {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
		return out
	}
	for i := len(list) - 1; i >= 0; i-- {
		if _, ok := seen[list[i]]; ok {
			continue
		}
		seen[list[i]] = struct{}{}
		out = append(out, list[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// SplitName splits a qualified name into its segments, dropping empty ones
// and keeping only the last occurrence of a repeated segment.
func SplitName(name string) []string {
	parts := strings.Split(name, Separator)
	segs := parts[:0]
	for _, part := range parts {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return RemoveDuplicated(segs, true)
}

// JoinName joins segments into a qualified name.
func JoinName(segs []string) string {
	return strings.Join(segs, Separator)
}

// NormalizeName is JoinName(SplitName(name)).
func NormalizeName(name string) string {
	return JoinName(SplitName(name))
}
