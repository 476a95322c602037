package annotate

import "testing"

func TestLinemapRegister(t *testing.T) {
	tests := []struct {
		name string
		asm  []int // registered against one source line, in order
		want []span
	}{
		{
			name: "singleton",
			asm:  []int{7},
			want: []span{{7, 7}},
		},
		{
			name: "extend forward",
			asm:  []int{3, 4, 5},
			want: []span{{3, 5}},
		},
		{
			name: "prepend",
			asm:  []int{5, 4},
			want: []span{{4, 5}},
		},
		{
			name: "disjoint then bridge",
			asm:  []int{1, 2, 4, 3},
			want: []span{{1, 4}},
		},
		{
			name: "gap stays open",
			asm:  []int{1, 2, 5, 6},
			want: []span{{1, 2}, {5, 6}},
		},
		{
			name: "insert before existing",
			asm:  []int{5, 6, 2},
			want: []span{{2, 2}, {5, 6}},
		},
		{
			name: "bridge two ranges from the middle",
			asm:  []int{1, 3, 2},
			want: []span{{1, 3}},
		},
		{
			name: "duplicate is a no-op",
			asm:  []int{3, 3},
			want: []span{{3, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm := newLinemap()
			for _, a := range tt.asm {
				lm.register(10, a)
			}
			got := lm.m[10]
			if len(got) != len(tt.want) {
				t.Fatalf("got ranges %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
			// Disjoint and non-touching.
			for i := 1; i < len(got); i++ {
				if got[i].lo <= got[i-1].hi+1 {
					t.Errorf("ranges %v and %v touch or overlap", got[i-1], got[i])
				}
			}
		})
	}
}

func TestLinemapFlattenOrder(t *testing.T) {
	lm := newLinemap()
	lm.register(9, 4)
	lm.register(2, 7)
	lm.register(2, 1)
	lm.register(9, 5)

	got := lm.flatten()
	want := []Mapping{
		{SourceLine: 2, AsmStart: 1, AsmEnd: 1},
		{SourceLine: 2, AsmStart: 7, AsmEnd: 7},
		{SourceLine: 9, AsmStart: 4, AsmEnd: 5},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("triple %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
