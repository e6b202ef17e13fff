package agentstream

import "strings"

var noise = []string{`{input:{value:`, `,source:null}}`}

// Normalize strips double quotes and the input-echo wrapper the agent
// sometimes leaves around its answer. It repeats until nothing changes, so
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	for {
		out := strings.ReplaceAll(s, `"`, "")
		for _, n := range noise {
			out = strings.ReplaceAll(out, n, "")
		}
		if out == s {
			return out
		}
		s = out
	}
}
