package overlay

import (
	"math"
	"math/rand"
	"testing"
)

var testViewport = Viewport{Width: 800, Height: 1000}

func testElement() Element {
	return Element{ID: "sig", X: 40, Y: 40, Width: 20, AspectRatio: 2, Opacity: 1}
}

func env(locked bool) StepEnv {
	return StepEnv{Viewport: testViewport, Threshold: DefaultSnapThreshold, AspectLocked: locked}
}

func move(x, y float64) PointerEvent { return PointerEvent{Kind: EventMove, X: x, Y: y} }

func TestResizeAspectLockedEast(t *testing.T) {
	s := BeginResize(testElement(), HandleE, PixelPoint{100, 100})
	// 80px / 800px = +10 个百分点
	s, d := Step(s, move(180, 100), env(true))
	if !near(d.Element.Width, 30) {
		t.Fatalf("width = %v, want 30", d.Element.Width)
	}
	h := DerivedHeightPercent(d.Element, testViewport.Aspect())
	pixelRatio := (d.Element.Width / 100 * testViewport.Width) / (h / 100 * testViewport.Height)
	if math.Abs(pixelRatio-2) > 1e-9 {
		t.Errorf("pixel aspect ratio = %v, want 2", pixelRatio)
	}
	if d.Element.X != 40 || d.Element.Y != 40 {
		t.Errorf("east resize must not move origin, got (%v,%v)", d.Element.X, d.Element.Y)
	}
	if s.State != StateActive {
		t.Errorf("state = %v, want active", s.State)
	}
}

func TestResizeAspectLockedWestAnchorsRight(t *testing.T) {
	s := BeginResize(testElement(), HandleW, PixelPoint{100, 100})
	_, d := Step(s, move(20, 100), env(true))
	if !near(d.Element.Width, 30) || !near(d.Element.X, 30) {
		t.Errorf("got width=%v x=%v, want 30/30", d.Element.Width, d.Element.X)
	}
	if !near(d.Element.X+d.Element.Width, 60) {
		t.Errorf("right edge moved: %v", d.Element.X+d.Element.Width)
	}
}

func TestResizeAspectLockedNorthKeepsBottom(t *testing.T) {
	start := testElement()
	startBottom := start.Y + DerivedHeightPercent(start, testViewport.Aspect())
	s := BeginResize(start, HandleNE, PixelPoint{100, 100})
	_, d := Step(s, move(180, 60), env(true))
	bottom := d.Element.Y + DerivedHeightPercent(d.Element, testViewport.Aspect())
	if !near(bottom, startBottom) {
		t.Errorf("bottom edge moved from %v to %v", startBottom, bottom)
	}
	if !near(d.Element.Y, 36) {
		t.Errorf("y = %v, want 36", d.Element.Y)
	}
}

func TestResizeAspectLockedIgnoresVerticalHandle(t *testing.T) {
	s := BeginResize(testElement(), HandleS, PixelPoint{100, 100})
	_, d := Step(s, move(150, 300), env(true))
	if !d.Element.Equal(testElement()) {
		t.Errorf("locked 's' handle should not change geometry, got %+v", d.Element)
	}
}

func TestResizeAspectFreeRecomputesRatio(t *testing.T) {
	s := BeginResize(testElement(), HandleSE, PixelPoint{100, 100})
	_, d := Step(s, move(180, 150), env(false))
	if !near(d.Element.Width, 30) {
		t.Errorf("width = %v, want 30", d.Element.Width)
	}
	h := DerivedHeightPercent(d.Element, testViewport.Aspect())
	if !near(h, 13) {
		t.Errorf("height = %v, want 13", h)
	}
	// 自由缩放后宽高比随形状改变，后续锁定缩放会使用新的比例
	want := (0.30 * 800) / (0.13 * 1000)
	if math.Abs(d.Element.AspectRatio-want) > 1e-9 {
		t.Errorf("aspect ratio = %v, want %v", d.Element.AspectRatio, want)
	}
}

func TestResizeAspectFreeMinimums(t *testing.T) {
	s := BeginResize(testElement(), HandleNW, PixelPoint{100, 100})
	_, d := Step(s, move(900, 900), env(false))
	h := DerivedHeightPercent(d.Element, testViewport.Aspect())
	if !near(d.Element.Width, 1) {
		t.Errorf("width = %v, want minimum 1", d.Element.Width)
	}
	if !near(h, 0.5) {
		t.Errorf("height = %v, want minimum 0.5", h)
	}
	if !near(d.Element.X+d.Element.Width, 60) {
		t.Errorf("right edge should stay anchored at 60, got %v", d.Element.X+d.Element.Width)
	}
	if !near(d.Element.Y+h, 48) {
		t.Errorf("bottom edge should stay anchored at 48, got %v", d.Element.Y+h)
	}
}

func TestResizeMinimumWidthLocked(t *testing.T) {
	s := BeginResize(testElement(), HandleE, PixelPoint{100, 100})
	_, d := Step(s, move(-700, 100), env(true))
	if d.Element.Width != MinElementWidth {
		t.Errorf("width = %v, want %v", d.Element.Width, MinElementWidth)
	}
}

func TestDragBackToStartIsUnchanged(t *testing.T) {
	s := BeginDrag(testElement(), PixelPoint{100, 100})
	s, _ = Step(s, move(150, 130), env(true))
	s, _ = Step(s, move(100, 100), env(true))
	s, d := Step(s, PointerEvent{Kind: EventUp}, env(true))
	if !d.Done {
		t.Fatal("pointer up should finish the session")
	}
	if d.Changed {
		t.Errorf("drag ending at start must not report a change: %+v", d.Element)
	}
	if s.State != StateCommitting {
		t.Errorf("state = %v, want committing", s.State)
	}
}

func TestDragMovesAndReportsChange(t *testing.T) {
	s := BeginDrag(testElement(), PixelPoint{100, 100})
	s, d := Step(s, move(180, 200), env(true))
	if !near(d.Element.X, 50) || !near(d.Element.Y, 50) {
		t.Errorf("drag position = (%v,%v), want (50,50)", d.Element.X, d.Element.Y)
	}
	_, d = Step(s, PointerEvent{Kind: EventUp}, env(true))
	if !d.Changed {
		t.Error("moved element should report a change")
	}
}

func TestDragSnapsAndEmitsGuides(t *testing.T) {
	e := StepEnv{
		Viewport:  testViewport,
		Threshold: DefaultSnapThreshold,
		Siblings:  []Rect{{X: 10, Y: 10, Width: 20, Height: 5}},
	}
	s := BeginDrag(testElement(), PixelPoint{0, 0})
	// x: 40 → 10.2，吸附到兄弟元素左边缘 10
	_, d := Step(s, move(-238.4, 250), e)
	if d.Element.X != 10 {
		t.Errorf("x = %v, want snapped 10", d.Element.X)
	}
	if len(d.Guides) == 0 {
		t.Error("expected guides while snapping")
	}
}

func TestDragKeepsElementOnPage(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		s := BeginDrag(testElement(), PixelPoint{400, 500})
		var d Delta
		for j := 0; j < 5; j++ {
			s, d = Step(s, move(r.Float64()*3000-1000, r.Float64()*3000-1000), env(true))
		}
		el := d.Element
		h := DerivedHeightPercent(el, testViewport.Aspect())
		if el.X < 0 || el.Y < 0 || el.X+el.Width > 100+tolerance || el.Y+h > 100+tolerance || el.Width < 1 {
			t.Fatalf("element left the page: %+v", el)
		}
	}
}

func TestResizeKeepsElementOnPage(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	handles := []Handle{HandleN, HandleS, HandleE, HandleW, HandleNE, HandleNW, HandleSE, HandleSW}
	for i := 0; i < 400; i++ {
		h := handles[i%len(handles)]
		s := BeginResize(testElement(), h, PixelPoint{400, 500})
		_, d := Step(s, move(r.Float64()*3000-1000, r.Float64()*3000-1000), env(i%2 == 0))
		el := d.Element
		ht := DerivedHeightPercent(el, testViewport.Aspect())
		if el.X < 0 || el.Y < 0 || el.X+el.Width > 100+tolerance || el.Y+ht > 100+tolerance || el.Width < 1 {
			t.Fatalf("handle %s: element left the page: %+v", h, el)
		}
	}
}

func TestRotateAccumulates(t *testing.T) {
	// 中心：x = 50% * 800 = 400，y = 44% * 1000 = 440
	s := BeginRotate(testElement(), PixelPoint{500, 440}, testViewport)
	if !near(s.Center.X, 400) || !near(s.Center.Y, 440) {
		t.Fatalf("center = %+v, want (400,440)", s.Center)
	}
	_, d := Step(s, move(400, 540), env(true))
	if !near(d.Element.Rotation, 90) {
		t.Errorf("rotation = %v, want 90", d.Element.Rotation)
	}

	el := testElement()
	el.Rotation = 350
	s = BeginRotate(el, PixelPoint{500, 440}, testViewport)
	_, d = Step(s, move(400, 540), env(true))
	if !near(d.Element.Rotation, 440) {
		t.Errorf("rotation should accumulate without wrapping, got %v", d.Element.Rotation)
	}
}

func TestCancelRestoresStart(t *testing.T) {
	s := BeginDrag(testElement(), PixelPoint{0, 0})
	s, _ = Step(s, move(300, 300), env(true))
	_, d := Step(s, PointerEvent{Kind: EventCancel}, env(true))
	if !d.Done || d.Changed {
		t.Errorf("cancel should finish without change, got %+v", d)
	}
	if !d.Element.Equal(testElement()) {
		t.Errorf("cancel should restore start element, got %+v", d.Element)
	}
}

func TestStepIgnoredWhenNotActive(t *testing.T) {
	var s Session
	s2, d := Step(s, move(10, 10), env(true))
	if s2.State != StateIdle || d.Done {
		t.Errorf("idle session should ignore events, got %+v %+v", s2, d)
	}
}

func TestParseHandle(t *testing.T) {
	for _, in := range []string{"n", "s", "e", "w", "NE", "nw", "se", "sw"} {
		if _, err := ParseHandle(in); err != nil {
			t.Errorf("ParseHandle(%q) failed: %v", in, err)
		}
	}
	if _, err := ParseHandle("x"); err == nil {
		t.Error("ParseHandle(\"x\") should fail")
	}
}

func TestResizeSnapsMovingEdge(t *testing.T) {
	e := StepEnv{
		Viewport:     testViewport,
		Threshold:    DefaultSnapThreshold,
		AspectLocked: true,
		Siblings:     []Rect{{X: 75, Y: 5, Width: 10, Height: 5}},
	}
	s := BeginResize(testElement(), HandleE, PixelPoint{100, 100})
	// 右边缘 60 → 75.3，吸附到兄弟元素左边缘 75
	_, d := Step(s, move(222.4, 100), e)
	if !near(d.Element.Width, 35) || d.Element.X != 40 {
		t.Errorf("got x=%v width=%v, want 40/35", d.Element.X, d.Element.Width)
	}
	if len(d.Guides) != 1 || d.Guides[0] != (Guide{Orientation: Vertical, Position: 75}) {
		t.Errorf("guides = %+v, want one vertical at 75", d.Guides)
	}
}

func TestResizeFreeSnapsBottomToTarget(t *testing.T) {
	e := StepEnv{
		Viewport:  testViewport,
		Threshold: DefaultSnapThreshold,
		Targets:   []Rect{{X: 5, Y: 60, Width: 30, Height: 10}},
	}
	s := BeginResize(testElement(), HandleS, PixelPoint{100, 100})
	// 底边 48 → 60.2
	_, d := Step(s, move(100, 222), e)
	h := DerivedHeightPercent(d.Element, testViewport.Aspect())
	if !near(d.Element.Y+h, 60) || d.Element.Y != 40 {
		t.Errorf("bottom = %v (y=%v), want 60 with top anchored at 40", d.Element.Y+h, d.Element.Y)
	}
	if len(d.Guides) != 1 || d.Guides[0].Orientation != Horizontal || d.Guides[0].Position != 60 {
		t.Errorf("guides = %+v, want one horizontal at 60", d.Guides)
	}
}

func TestResizeWestSnapKeepsRightEdge(t *testing.T) {
	s := BeginResize(testElement(), HandleW, PixelPoint{100, 100})
	// 左边缘 40 → 49.7，吸附到页面中线
	_, d := Step(s, move(177.6, 100), env(true))
	if !near(d.Element.X, 50) || !near(d.Element.X+d.Element.Width, 60) {
		t.Errorf("got x=%v right=%v, want 50/60", d.Element.X, d.Element.X+d.Element.Width)
	}
}
