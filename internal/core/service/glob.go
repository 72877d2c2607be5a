package service

// matchGlob reports whether s matches pattern. '*' matches any run of
// bytes, '?' matches one byte and '\' makes the next byte literal.
func matchGlob(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	pi, si := 0, 0
	starIdx, matchIdx := -1, 0
	for si < len(s) {
		if pi < len(pattern) {
			switch c := pattern[pi]; {
			case c == '*':
				starIdx = pi
				matchIdx = si
				pi++
				continue
			case c == '?':
				pi++
				si++
				continue
			case c == '\\' && pi+1 < len(pattern):
				if pattern[pi+1] == s[si] {
					pi += 2
					si++
					continue
				}
			case c == s[si]:
				pi++
				si++
				continue
			}
		}
		if starIdx == -1 {
			return false
		}
		// Backtrack: let the last star absorb one more byte.
		pi = starIdx + 1
		matchIdx++
		si = matchIdx
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
