package mathutil

import (
	"math"
	"testing"
)

func TestSumVec(t *testing.T) {
	if got := SumVec(Vec{1, 2, 3.5}); got != 6.5 {
		t.Errorf("SumVec = %f, want 6.5", got)
	}
	if got := SumVec(nil); got != 0 {
		t.Errorf("SumVec(nil) = %f, want 0", got)
	}
}

func TestAxpyVec(t *testing.T) {
	dst := Vec{1, 1}
	AxpyVec(dst, 2, Vec{3, -1})
	if dst[0] != 7 || dst[1] != -1 {
		t.Errorf("AxpyVec = %v, want [7 -1]", dst)
	}
	AxpySqVec(dst, 0.5, Vec{2, 2})
	if dst[0] != 9 || dst[1] != 1 {
		t.Errorf("AxpySqVec = %v, want [9 1]", dst)
	}
}

func TestFloorVec(t *testing.T) {
	v := Vec{0, 0.5, 1e-9}
	if n := FloorVec(v, 1e-7); n != 2 {
		t.Errorf("FloorVec changed %d, want 2", n)
	}
	if v[0] != 1e-7 || v[1] != 0.5 || v[2] != 1e-7 {
		t.Errorf("FloorVec = %v", v)
	}
}

func TestScaleAndLog(t *testing.T) {
	v := Vec{2, 4}
	ScaleVec(v, 0.5)
	LogVec(v)
	if v[0] != 0 || math.Abs(v[1]-math.Log(2)) > 1e-12 {
		t.Errorf("ScaleVec+LogVec = %v, want [0 log2]", v)
	}
}
