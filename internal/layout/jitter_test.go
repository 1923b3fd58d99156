package layout

import "testing"

func TestJitter_SameSeedSameSequence(t *testing.T) {
	a := NewJitter(SeedFor("api-server"))
	b := NewJitter(SeedFor("api-server"))
	for i := 0; i < 1000; i++ {
		av, bv := a.Next(), b.Next()
		if av != bv {
			t.Fatalf("draw %d diverged: %v != %v", i, av, bv)
		}
	}
}

func TestJitter_Range(t *testing.T) {
	j := NewJitter(12345)
	for i := 0; i < 10000; i++ {
		v := j.Next()
		if v < 0 || v >= 1 {
			t.Fatalf("draw %d out of [0,1): %v", i, v)
		}
	}
}

func TestJitter_DifferentSeedsDiverge(t *testing.T) {
	a := NewJitter(SeedFor("api-server"))
	b := NewJitter(SeedFor("billing-worker"))
	same := true
	for i := 0; i < 10; i++ {
		if a.Next() != b.Next() {
			same = false
			break
		}
	}
	if same {
		t.Error("different center names produced identical first 10 draws")
	}
}

func TestSeedFor(t *testing.T) {
	for _, tc := range []struct {
		name string
		want uint32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 195},
		{"lodash", 108 + 111 + 100 + 97 + 115 + 104},
	} {
		if got := SeedFor(tc.name); got != tc.want {
			t.Errorf("SeedFor(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestJitter_AngleBounded(t *testing.T) {
	j := NewJitter(7)
	for i := 0; i < 1000; i++ {
		got := j.Angle(1.5, 0.12)
		if got < 1.5-0.12 || got > 1.5+0.12 {
			t.Fatalf("Angle out of bounds: %v", got)
		}
	}
}

func TestJitter_RadiusBounded(t *testing.T) {
	j := NewJitter(7)
	for i := 0; i < 1000; i++ {
		got := j.Radius(400, 0.10)
		if got < 360 || got > 440 {
			t.Fatalf("Radius out of bounds: %v", got)
		}
	}
}
