package editor

import (
	"fmt"
	"image/color"

	"github.com/novvoo/go-pdfsign/pkg/imaging"
	"github.com/novvoo/go-pdfsign/pkg/overlay"
)

// AddSignature 在当前页默认位置放置签名，返回新元素
// 图像会被规范化为 PNG，宽度超过 MaxImageWidth 时等比缩小
func (e *Editor) AddSignature(img []byte) (overlay.Element, error) {
	data, ar, err := imaging.Normalize(img, e.settings.MaxImageWidth)
	if err != nil {
		return overlay.Element{}, fmt.Errorf("failed to load signature image: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc == nil {
		return overlay.Element{}, ErrNoDocument
	}
	if err := e.mutable(); err != nil {
		return overlay.Element{}, err
	}

	before := e.live.Clone()
	el := overlay.ClampToPage(e.placement.Place(data, e.page, ar), e.viewportLocked().Aspect())
	e.live.Elements = append(e.live.Elements, el)
	e.commit(before)
	return el, nil
}

// Element 按 ID 查找元素
func (e *Editor) Element(id string) (overlay.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.live.Find(id)
	if i < 0 {
		return overlay.Element{}, ErrNotFound
	}
	return e.live.Elements[i], nil
}

// Elements 返回某页的元素（按绘制顺序）
func (e *Editor) Elements(page int) []overlay.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live.Clone().PageElements(page)
}

// update 对单个元素做一次可撤销的修改
func (e *Editor) update(id string, fn func(*overlay.Element) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.mutable(); err != nil {
		return err
	}
	i := e.live.Find(id)
	if i < 0 {
		return ErrNotFound
	}

	before := e.live.Clone()
	el := e.live.Elements[i]
	if err := fn(&el); err != nil {
		return err
	}
	e.live.Elements[i] = overlay.ClampToPage(el, e.pageAspect(el.PageIndex))
	e.commit(before)
	return nil
}

// pageAspect 元素所在页的宽高比
func (e *Editor) pageAspect(page int) float64 {
	if page == e.page {
		return e.viewportLocked().Aspect()
	}
	if e.doc != nil {
		if info, err := e.doc.Page(page); err == nil {
			return info.Viewport(1).Aspect()
		}
	}
	return 1
}

// ReplaceImage 替换签名图像，宽高比随新图像更新
func (e *Editor) ReplaceImage(id string, img []byte) error {
	data, ar, err := imaging.Normalize(img, e.settings.MaxImageWidth)
	if err != nil {
		return fmt.Errorf("failed to load signature image: %w", err)
	}
	return e.update(id, func(el *overlay.Element) error {
		el.Image = data
		el.AspectRatio = ar
		return nil
	})
}

// SetOpacity 设置不透明度，超出 [0,1] 时截断
func (e *Editor) SetOpacity(id string, opacity float64) error {
	return e.update(id, func(el *overlay.Element) error {
		el.Opacity = opacity
		return nil
	})
}

// SetRotation 直接设置旋转角度
func (e *Editor) SetRotation(id string, degrees float64) error {
	return e.update(id, func(el *overlay.Element) error {
		el.Rotation = degrees
		return nil
	})
}

// Recolor 把签名墨迹改为指定颜色
func (e *Editor) Recolor(id string, c color.NRGBA) error {
	return e.update(id, func(el *overlay.Element) error {
		data, err := imaging.Recolor(el.Image, c)
		if err != nil {
			return fmt.Errorf("failed to recolor signature: %w", err)
		}
		el.Image = data
		return nil
	})
}

// RemoveBackground 把浅色背景变为透明，threshold 为 0 时使用配置值
func (e *Editor) RemoveBackground(id string, threshold uint8) error {
	if threshold == 0 {
		threshold = e.settings.BackgroundThreshold
	}
	return e.update(id, func(el *overlay.Element) error {
		data, err := imaging.RemoveBackground(el.Image, threshold)
		if err != nil {
			return fmt.Errorf("failed to remove background: %w", err)
		}
		el.Image = data
		return nil
	})
}

// DeleteElement 删除元素
func (e *Editor) DeleteElement(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.mutable(); err != nil {
		return err
	}
	i := e.live.Find(id)
	if i < 0 {
		return ErrNotFound
	}

	before := e.live.Clone()
	e.live.Elements = append(e.live.Elements[:i:i], e.live.Elements[i+1:]...)
	e.commit(before)
	return nil
}

// DuplicateElement 复制元素，副本偏移 DuplicateOffset 并追加到末尾
func (e *Editor) DuplicateElement(id string) (overlay.Element, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.mutable(); err != nil {
		return overlay.Element{}, err
	}
	i := e.live.Find(id)
	if i < 0 {
		return overlay.Element{}, ErrNotFound
	}

	before := e.live.Clone()
	dup := overlay.DuplicateWith(e.live.Elements[i], e.settings.DuplicateOffset, e.settings.DuplicateMax)
	e.live.Elements = append(e.live.Elements, dup)
	e.commit(before)
	return dup, nil
}
