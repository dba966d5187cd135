package sova

import (
	"strings"
	"testing"
)

func TestDump(t *testing.T) {
	env := setup(t)
	db := must(env.AddDatabase("kv", stringsSchema()))
	must(env.Open())
	ensure(db.Set("k1", "v1"))
	ensure(db.Set("k2", "v2"))

	out := env.Dump(DumpAll)
	for _, want := range []string{"kv (2 rows)", "kv.0: k1 = v1", "kv.1: k2 = v2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}

	out = env.Dump(DumpRows)
	if strings.Contains(out, "rows)") {
		t.Fatalf("rows-only dump printed a header:\n%s", out)
	}
}
