// Package testpdf 生成测试用的最小 PDF 文档（带正确的 xref 偏移）
package testpdf

import (
	"bytes"
	"fmt"
)

// Widget 页面上的一个表单控件注释
type Widget struct {
	Name string
	Rect [4]float64 // llx lly urx ury
	DA   string     // 默认外观，为空时不写 /DA
}

// Image 未压缩的 8 位 DeviceGray 图像 XObject
type Image struct {
	Name          string
	Width, Height int
	Gray          []byte
}

// Form 表单 XObject
type Form struct {
	Name    string
	BBox    [4]float64
	Content string
}

// Page 页面描述
type Page struct {
	Width, Height float64
	OffsetX       float64 // MediaBox 左下角
	OffsetY       float64
	Content       string
	Filter        string // 内容流的 /Filter 名称，Content 需已按其编码
	Widgets       []Widget
	Images        []Image
	Forms         []Form
	Fonts         []string // 以 Helvetica 声明的字体资源名
}

// Letter 612x792 空白页
func Letter() Page {
	return Page{Width: 612, Height: 792}
}

// Build 生成包含给定页面的 PDF
func Build(pages ...Page) []byte {
	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}

	catalog := add("") // 占位，稍后填充
	pagesObj := add("")

	var kids, fields bytes.Buffer
	for _, p := range pages {
		pageNr := len(objs) + 1
		objs = append(objs, "") // 页面对象占位

		content := p.Content
		filter := ""
		if p.Filter != "" {
			filter = " /Filter /" + p.Filter
		}
		contentNr := add(fmt.Sprintf("<< /Length %d%s >>\nstream\n%s\nendstream", len(content), filter, content))

		var xobjects, fonts bytes.Buffer
		for _, img := range p.Images {
			nr := add(fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Length %d >>\nstream\n%s\nendstream",
				img.Width, img.Height, len(img.Gray), img.Gray))
			fmt.Fprintf(&xobjects, "/%s %d 0 R ", img.Name, nr)
		}
		for _, f := range p.Forms {
			nr := add(fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [%g %g %g %g] /Length %d >>\nstream\n%s\nendstream",
				f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3], len(f.Content), f.Content))
			fmt.Fprintf(&xobjects, "/%s %d 0 R ", f.Name, nr)
		}
		for _, name := range p.Fonts {
			nr := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
			fmt.Fprintf(&fonts, "/%s %d 0 R ", name, nr)
		}
		resources := "<<"
		if xobjects.Len() > 0 {
			resources += fmt.Sprintf(" /XObject << %s>>", xobjects.String())
		}
		if fonts.Len() > 0 {
			resources += fmt.Sprintf(" /Font << %s>>", fonts.String())
		}
		resources += " >>"

		var annots bytes.Buffer
		for _, w := range p.Widgets {
			da := ""
			if w.DA != "" {
				da = fmt.Sprintf(" /DA (%s)", w.DA)
			}
			nr := add(fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Tx /T (%s)%s /P %d 0 R /Rect [%g %g %g %g] >>",
				w.Name, da, pageNr, w.Rect[0], w.Rect[1], w.Rect[2], w.Rect[3]))
			fmt.Fprintf(&annots, "%d 0 R ", nr)
			fmt.Fprintf(&fields, "%d 0 R ", nr)
		}

		page := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [%g %g %g %g] /Contents %d 0 R /Resources %s",
			pagesObj, p.OffsetX, p.OffsetY, p.OffsetX+p.Width, p.OffsetY+p.Height, contentNr, resources)
		if annots.Len() > 0 {
			page += fmt.Sprintf(" /Annots [%s]", bytes.TrimSpace(annots.Bytes()))
		}
		objs[pageNr-1] = page + " >>"
		fmt.Fprintf(&kids, "%d 0 R ", pageNr)
	}

	cat := fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R", pagesObj)
	if fields.Len() > 0 {
		cat += fmt.Sprintf(" /AcroForm << /Fields [%s] >>", bytes.TrimSpace(fields.Bytes()))
	}
	objs[catalog-1] = cat + " >>"
	objs[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", bytes.TrimSpace(kids.Bytes()), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalog, xref)
	return buf.Bytes()
}
