package knowledge

import (
	"testing"
	"time"
)

func TestTripleFromRecord(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name                            string
		s, pr, o, conf, src, first, last interface{}
		want                            bool
	}{
		{"complete record", "user", "lives_in", "berlin", 0.8, "dialogue", now, now, true},
		{"optional fields absent", "user", "lives_in", "berlin", 0.8, nil, nil, nil, true},
		{"nil subject", nil, "lives_in", "berlin", 0.8, "dialogue", now, now, false},
		{"integer confidence", "user", "lives_in", "berlin", int64(1), "dialogue", now, now, false},
		{"non-string predicate", "user", 42, "berlin", 0.8, "dialogue", now, now, false},
		{"non-time first_seen kept loose", "user", "lives_in", "berlin", 0.8, "dialogue", "not a time", now, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			triple, ok := tripleFromRecord(tc.s, tc.pr, tc.o, tc.conf, tc.src, tc.first, tc.last)
			if ok != tc.want {
				t.Fatalf("got ok=%v, want %v", ok, tc.want)
			}
			if !ok {
				return
			}
			if triple.Subject != "user" || triple.Confidence != 0.8 {
				t.Errorf("got %+v", triple)
			}
		})
	}
}
