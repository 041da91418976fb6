// Package validate implements the nickname validation rule shared by the
// /claim handler and the score/recent regenerators (which must skip any
// row whose nick fails the same rule).
package validate

// maxNickLen and the allowed character set match SPEC_FULL.md §3 /
// testable property 5.
const maxNickLen = 40

var nickCharOK [256]bool

func init() {
	allow := func(lo, hi byte) {
		for c := lo; c <= hi; c++ {
			nickCharOK[c] = true
		}
	}
	allow('A', 'Z')
	allow('a', 'z')
	allow('0', '9')
	for _, c := range []byte("@/:.^+!_*-") {
		nickCharOK[c] = true
	}
}

// IsValidNick reports whether s is a valid nickname: length 1..40 over
// [A-Za-z0-9@/:.^+!_*-], and nothing else.
func IsValidNick(s string) bool {
	if len(s) < 1 || len(s) > maxNickLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !nickCharOK[s[i]] {
			return false
		}
	}
	return true
}
