package shapeinfo

import "testing"

func TestProduceInfosInclusiveBounds(t *testing.T) {
	cfg := Config{
		AngleRange: Range{Lo: 0, Hi: 10, Step: 5},
		ScaleRange: Range{Lo: 1, Hi: 1, Step: 1},
		Eps:        1e-6,
	}
	infos := produceInfos(cfg)
	wantAngles := []float64{0, 5, 10}
	if len(infos) != len(wantAngles) {
		t.Fatalf("got %d infos, want %d: %+v", len(infos), len(wantAngles), infos)
	}
	for i, want := range wantAngles {
		if infos[i].Angle != want {
			t.Errorf("infos[%d].Angle = %v, want %v", i, infos[i].Angle, want)
		}
		if infos[i].Scale != 1 {
			t.Errorf("infos[%d].Scale = %v, want 1", i, infos[i].Scale)
		}
	}
}

func TestProduceInfosScaleOuterAngleInner(t *testing.T) {
	cfg := Config{
		AngleRange: Range{Lo: 0, Hi: 1, Step: 1},
		ScaleRange: Range{Lo: 1, Hi: 2, Step: 1},
		Eps:        1e-6,
	}
	infos := produceInfos(cfg)
	// scale outer, angle inner: (1,0) (1,1) (2,0) (2,1)
	want := []Info{{Angle: 0, Scale: 1}, {Angle: 1, Scale: 1}, {Angle: 0, Scale: 2}, {Angle: 1, Scale: 2}}
	if len(infos) != len(want) {
		t.Fatalf("got %d infos, want %d", len(infos), len(want))
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("infos[%d] = %+v, want %+v", i, infos[i], want[i])
		}
	}
}

func TestProduceInfosEmptyRangeExhausted(t *testing.T) {
	cfg := Config{
		AngleRange: Range{Lo: 10, Hi: 0, Step: 1},
		ScaleRange: Range{Lo: 1, Hi: 1, Step: 1},
		Eps:        1e-6,
	}
	infos := produceInfos(cfg)
	if len(infos) != 0 {
		t.Fatalf("expected zero infos for an inverted angle range, got %d", len(infos))
	}
}
