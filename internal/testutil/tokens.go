package testutil

import "fmt"

// Tokens returns n deterministic state tokens: "prefix-000001" through
// "prefix-00000n".
//
// Feed the result to cascade.NewFixedSource so every store minted in a
// test carries a known token. The same scenario with the same token
// list produces byte-identical golden traces.
//
// If prefix is empty, tokens use "test-token".
func Tokens(prefix string, n int) []string {
	if prefix == "" {
		prefix = "test-token"
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%06d", prefix, i+1)
	}
	return out
}
