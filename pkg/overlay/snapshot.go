package overlay

// Snapshot 某一时刻完整的叠加层状态
type Snapshot struct {
	Elements []Element
	Drawings Drawings
}

// NewSnapshot 创建空快照
func NewSnapshot() Snapshot {
	return Snapshot{Drawings: make(Drawings)}
}

// Clone 结构性深拷贝；图像字节不可变，因此共享
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Elements: append([]Element(nil), s.Elements...),
		Drawings: s.Drawings.Clone(),
	}
	if c.Drawings == nil {
		c.Drawings = make(Drawings)
	}
	return c
}

// Equal 判断两个快照是否表示相同状态
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Elements) != len(o.Elements) {
		return false
	}
	for i := range s.Elements {
		if !s.Elements[i].Equal(o.Elements[i]) {
			return false
		}
	}
	return s.Drawings.Equal(o.Drawings)
}

// Find 按 ID 查找元素下标，未找到返回 -1
func (s Snapshot) Find(id string) int {
	for i, e := range s.Elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// PageElements 返回某页的元素（按插入顺序）
func (s Snapshot) PageElements(page int) []Element {
	var out []Element
	for _, e := range s.Elements {
		if e.PageIndex == page {
			out = append(out, e)
		}
	}
	return out
}
