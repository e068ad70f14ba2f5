package overlay

// Point 归一化坐标，x、y 均在 [0,1]，原点在页面左上角
type Point struct {
	X, Y float64
}

// RGB 颜色，分量范围 [0,1]
type RGB struct {
	R, G, B float64
}

// Black 默认墨水颜色
var Black = RGB{}

// Stroke 一次连续的手写笔迹
type Stroke struct {
	Points []Point
	Color  RGB
	Width  float64 // 线宽，绘制时乘以当前渲染倍率
}

// MinStrokePoints 提交笔迹所需的最少点数
const MinStrokePoints = 2

// Valid 判断笔迹能否提交
func (s Stroke) Valid() bool {
	return len(s.Points) >= MinStrokePoints
}

// Clone 深拷贝笔迹
func (s Stroke) Clone() Stroke {
	c := s
	c.Points = append([]Point(nil), s.Points...)
	return c
}

// Equal 判断两条笔迹是否相同
func (s Stroke) Equal(o Stroke) bool {
	if s.Color != o.Color || s.Width != o.Width || len(s.Points) != len(o.Points) {
		return false
	}
	for i := range s.Points {
		if s.Points[i] != o.Points[i] {
			return false
		}
	}
	return true
}

// Drawings 页码到笔迹序列的映射，顺序即绘制顺序
type Drawings map[int][]Stroke

// Clone 深拷贝所有页面的笔迹
func (d Drawings) Clone() Drawings {
	c := make(Drawings, len(d))
	for page, strokes := range d {
		cs := make([]Stroke, len(strokes))
		for i, s := range strokes {
			cs[i] = s.Clone()
		}
		c[page] = cs
	}
	return c
}

// Equal 比较两组笔迹，空页与缺失页视为相同
func (d Drawings) Equal(o Drawings) bool {
	for page, strokes := range d {
		if !strokesEqual(strokes, o[page]) {
			return false
		}
	}
	for page, strokes := range o {
		if _, ok := d[page]; !ok && len(strokes) > 0 {
			return false
		}
	}
	return true
}

func strokesEqual(a, b []Stroke) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Append 向页面追加一条笔迹
func (d Drawings) Append(page int, s Stroke) {
	d[page] = append(d[page], s)
}
