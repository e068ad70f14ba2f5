package overlay

import "math"

// DefaultSnapThreshold 吸附阈值（百分点）
const DefaultSnapThreshold = 0.5

// Orientation 辅助线方向
type Orientation int

const (
	// Vertical 竖直辅助线，位置为 X
	Vertical Orientation = iota
	// Horizontal 水平辅助线，位置为 Y
	Horizontal
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Guide 吸附时显示的对齐辅助线
type Guide struct {
	Orientation Orientation
	Position    float64 // 百分比
}

// pageCandidates 页面左/中/右（上/中/下）
var pageCandidates = []float64{0, 50, 100}

// snapCandidates 汇总页面、兄弟元素与表单域的对齐线
func snapCandidates(siblings, targets []Rect) (xs, ys []float64) {
	xs = make([]float64, 0, len(pageCandidates)+3*(len(siblings)+len(targets)))
	ys = make([]float64, 0, cap(xs))
	xs = append(xs, pageCandidates...)
	ys = append(ys, pageCandidates...)
	for _, group := range [][]Rect{siblings, targets} {
		for _, r := range group {
			xs = append(xs, r.X, r.X+r.Width/2, r.Right())
			ys = append(ys, r.Y, r.Y+r.Height/2, r.Bottom())
		}
	}
	return xs, ys
}

// Snap 计算移动矩形的吸附修正
// 每个轴按 前缘 → 中心 → 后缘 的顺序检查，第一个在阈值内命中的边生效，每轴最多吸附一次
func Snap(moving Rect, siblings, targets []Rect, threshold float64) (Rect, []Guide) {
	xs, ys := snapCandidates(siblings, targets)

	var guides []Guide
	snapped := moving

	xEdges := [3]float64{moving.X, moving.X + moving.Width/2, moving.Right()}
	for i, edge := range xEdges {
		c, ok := nearestCandidate(edge, xs, threshold)
		if !ok {
			continue
		}
		switch i {
		case 0:
			snapped.X = c
		case 1:
			snapped.X = c - moving.Width/2
		case 2:
			snapped.X = c - moving.Width
		}
		guides = append(guides, Guide{Orientation: Vertical, Position: c})
		break
	}

	yEdges := [3]float64{moving.Y, moving.Y + moving.Height/2, moving.Bottom()}
	for i, edge := range yEdges {
		c, ok := nearestCandidate(edge, ys, threshold)
		if !ok {
			continue
		}
		switch i {
		case 0:
			snapped.Y = c
		case 1:
			snapped.Y = c - moving.Height/2
		case 2:
			snapped.Y = c - moving.Height
		}
		guides = append(guides, Guide{Orientation: Horizontal, Position: c})
		break
	}

	return snapped, guides
}

// nearestCandidate 返回阈值内距离最近的候选值，距离相同时先出现者优先
func nearestCandidate(v float64, candidates []float64, threshold float64) (float64, bool) {
	best, bestDist := 0.0, math.Inf(1)
	for _, c := range candidates {
		d := math.Abs(c - v)
		if d <= threshold && d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// snapExtent 缩放时吸附移动边。anchor 为固定边，sign 为 +1 表示移动边在 anchor 之后，
// 吸附后的尺寸超出 [lo, hi] 时放弃吸附
func snapExtent(anchor, size, sign float64, candidates []float64, threshold, lo, hi float64, o Orientation) (float64, []Guide) {
	c, ok := nearestCandidate(anchor+sign*size, candidates, threshold)
	if !ok {
		return size, nil
	}
	snapped := sign * (c - anchor)
	if snapped < lo || snapped > hi {
		return size, nil
	}
	return snapped, []Guide{{Orientation: o, Position: c}}
}
