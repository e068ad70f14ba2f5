package pdfsource

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/novvoo/go-cairo/pkg/cairo"
	"github.com/novvoo/go-pdfsign/pkg/imaging"
	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// maxFormDepth 表单 XObject 嵌套上限
const maxFormDepth = 12

// graphicsState q/Q 保存与恢复的状态（CTM 由 cairo 上下文维护）
type graphicsState struct {
	fill, stroke           [3]float64
	fillAlpha, strokeAlpha float64
	lineWidth              float64

	font      pdfFont
	fontSize  float64
	leading   float64
	charSpace float64
	wordSpace float64
	hscale    float64
	rise      float64
	render    int
}

func defaultGraphicsState() graphicsState {
	return graphicsState{fillAlpha: 1, strokeAlpha: 1, lineWidth: 1, hscale: 1}
}

// pdfFont 文本绘制只区分字体族与是否为复合字体
type pdfFont struct {
	family    string
	composite bool
}

// painter 在 cairo 上下文上解释页面内容流
type painter struct {
	ctx    context.Context
	xt     *model.XRefTable
	cctx   cairo.Context
	canvas *image.RGBA

	gs    graphicsState
	stack []graphicsState

	tm, tlm cairo.Matrix // 文本矩阵与行矩阵，仅在 BT/ET 之间有效
	depth   int
	count   int
}

func newPainter(ctx context.Context, xt *model.XRefTable, cctx cairo.Context, canvas *image.RGBA) *painter {
	return &painter{ctx: ctx, xt: xt, cctx: cctx, canvas: canvas, gs: defaultGraphicsState()}
}

// run 执行一段内容流，只有取消与 cairo 状态错误会中止绘制
func (p *painter) run(res types.Dict, data []byte) error {
	for _, op := range parseContent(data) {
		p.count++
		if p.count%256 == 0 {
			if err := p.ctx.Err(); err != nil {
				return err
			}
		}
		if err := p.exec(res, op); err != nil {
			return err
		}
	}
	if st := p.cctx.Status(); st != cairo.StatusSuccess {
		return fmt.Errorf("cairo error: %v", st)
	}
	return nil
}

func (p *painter) exec(res types.Dict, op operation) error {
	a := op.args
	switch op.op {
	// 图形状态
	case "q":
		p.cctx.Save()
		p.stack = append(p.stack, p.gs)
	case "Q":
		if n := len(p.stack); n > 0 {
			p.cctx.Restore()
			p.gs = p.stack[n-1]
			p.stack = p.stack[:n-1]
		}
	case "cm":
		if n, ok := nums(a, 6); ok {
			m := cairo.Matrix{XX: n[0], YX: n[1], XY: n[2], YY: n[3], X0: n[4], Y0: n[5]}
			p.cctx.Transform(&m)
		}
	case "w":
		if n, ok := nums(a, 1); ok {
			p.gs.lineWidth = n[0]
		}
	case "J":
		if n, ok := nums(a, 1); ok {
			p.cctx.SetLineCap(lineCap(int(n[0])))
		}
	case "j":
		if n, ok := nums(a, 1); ok {
			p.cctx.SetLineJoin(lineJoin(int(n[0])))
		}
	case "gs":
		if len(a) == 1 {
			p.extGState(res, a[0])
		}

	// 路径
	case "m":
		if n, ok := nums(a, 2); ok {
			p.cctx.MoveTo(n[0], n[1])
		}
	case "l":
		if n, ok := nums(a, 2); ok {
			p.cctx.LineTo(n[0], n[1])
		}
	case "c":
		if n, ok := nums(a, 6); ok {
			p.cctx.CurveTo(n[0], n[1], n[2], n[3], n[4], n[5])
		}
	case "v":
		if n, ok := nums(a, 4); ok {
			x, y := p.cctx.GetCurrentPoint()
			p.cctx.CurveTo(x, y, n[0], n[1], n[2], n[3])
		}
	case "y":
		if n, ok := nums(a, 4); ok {
			p.cctx.CurveTo(n[0], n[1], n[2], n[3], n[2], n[3])
		}
	case "h":
		p.cctx.ClosePath()
	case "re":
		if n, ok := nums(a, 4); ok {
			p.cctx.Rectangle(n[0], n[1], n[2], n[3])
		}

	// 绘制；裁剪（W/W*）不影响预览
	case "S":
		p.strokePath()
	case "s":
		p.cctx.ClosePath()
		p.strokePath()
	case "f", "F", "f*":
		p.fillPath(false)
	case "B", "B*":
		p.fillPath(true)
		p.strokePath()
	case "b", "b*":
		p.cctx.ClosePath()
		p.fillPath(true)
		p.strokePath()
	case "n":
		p.cctx.NewPath()

	// 颜色
	case "cs":
		p.gs.fill = [3]float64{}
	case "CS":
		p.gs.stroke = [3]float64{}
	case "g", "rg", "k", "sc", "scn":
		if c, ok := colorOperands(a); ok {
			p.gs.fill = c
		}
	case "G", "RG", "K", "SC", "SCN":
		if c, ok := colorOperands(a); ok {
			p.gs.stroke = c
		}

	// 文本
	case "BT":
		p.tm = cairo.Matrix{XX: 1, YY: 1}
		p.tlm = p.tm
	case "Tf":
		if len(a) == 2 {
			if fn, ok := a[0].(name); ok {
				p.gs.font = p.font(res, string(fn))
			}
			if n, ok := a[1].(float64); ok {
				p.gs.fontSize = n
			}
		}
	case "TL":
		if n, ok := nums(a, 1); ok {
			p.gs.leading = n[0]
		}
	case "Tc":
		if n, ok := nums(a, 1); ok {
			p.gs.charSpace = n[0]
		}
	case "Tw":
		if n, ok := nums(a, 1); ok {
			p.gs.wordSpace = n[0]
		}
	case "Tz":
		if n, ok := nums(a, 1); ok && n[0] > 0 {
			p.gs.hscale = n[0] / 100
		}
	case "Ts":
		if n, ok := nums(a, 1); ok {
			p.gs.rise = n[0]
		}
	case "Tr":
		if n, ok := nums(a, 1); ok {
			p.gs.render = int(n[0])
		}
	case "Td":
		if n, ok := nums(a, 2); ok {
			p.nextLine(n[0], n[1])
		}
	case "TD":
		if n, ok := nums(a, 2); ok {
			p.gs.leading = -n[1]
			p.nextLine(n[0], n[1])
		}
	case "Tm":
		if n, ok := nums(a, 6); ok {
			p.tlm = cairo.Matrix{XX: n[0], YX: n[1], XY: n[2], YY: n[3], X0: n[4], Y0: n[5]}
			p.tm = p.tlm
		}
	case "T*":
		p.nextLine(0, -p.gs.leading)
	case "Tj":
		if len(a) == 1 {
			p.showText(a[0])
		}
	case "TJ":
		if len(a) == 1 {
			if arr, ok := a[0].([]interface{}); ok {
				for _, item := range arr {
					if n, ok := item.(float64); ok {
						p.advance(-n / 1000 * p.gs.fontSize * p.gs.hscale)
						continue
					}
					p.showText(item)
				}
			}
		}
	case "'":
		if len(a) == 1 {
			p.nextLine(0, -p.gs.leading)
			p.showText(a[0])
		}
	case "\"":
		if len(a) == 3 {
			if n, ok := nums(a[:2], 2); ok {
				p.gs.wordSpace, p.gs.charSpace = n[0], n[1]
			}
			p.nextLine(0, -p.gs.leading)
			p.showText(a[2])
		}

	// XObject
	case "Do":
		if len(a) == 1 {
			if xn, ok := a[0].(name); ok {
				return p.doXObject(res, string(xn))
			}
		}
	}
	return nil
}

// deviceLineWidth cairo 的线宽以设备像素计，需要按 CTM 换算；0 表示最细线
func (p *painter) deviceLineWidth() float64 {
	m := p.cctx.GetMatrix()
	w := p.gs.lineWidth * math.Sqrt(math.Abs(m.XX*m.YY-m.XY*m.YX))
	if w < 1 {
		w = 1
	}
	return w
}

func (p *painter) strokePath() {
	if p.gs.strokeAlpha <= 0 {
		p.cctx.NewPath()
		return
	}
	c := p.gs.stroke
	p.cctx.SetSourceRGBA(c[0], c[1], c[2], p.gs.strokeAlpha)
	p.cctx.SetLineWidth(p.deviceLineWidth())
	p.cctx.Stroke()
}

func (p *painter) fillPath(preserve bool) {
	if p.gs.fillAlpha <= 0 {
		if !preserve {
			p.cctx.NewPath()
		}
		return
	}
	c := p.gs.fill
	p.cctx.SetSourceRGBA(c[0], c[1], c[2], p.gs.fillAlpha)
	if preserve {
		p.cctx.FillPreserve()
		return
	}
	p.cctx.Fill()
}

// nextLine Tlm = translate(tx, ty) × Tlm
func (p *painter) nextLine(tx, ty float64) {
	t := cairo.Matrix{XX: 1, YY: 1, X0: tx, Y0: ty}
	cairo.MatrixMultiply(&p.tlm, &t, &p.tlm)
	p.tm = p.tlm
}

// advance 沿基线移动文本矩阵（文本空间单位）
func (p *painter) advance(tx float64) {
	t := cairo.Matrix{XX: 1, YY: 1, X0: tx}
	cairo.MatrixMultiply(&p.tm, &t, &p.tm)
}

// showText 以近似字体绘制简单字体的文本，复合字体只推进位置不绘制
func (p *painter) showText(v interface{}) {
	s, ok := v.(string)
	if !ok || s == "" {
		return
	}
	gs := p.gs
	size := gs.fontSize
	if size <= 0 {
		return
	}
	if gs.font.composite {
		// 无 CMap 时无法可靠解出字形，按每个 CID 半个字号估算宽度
		p.advance(float64(len(s)/2) * size * 0.5 * gs.hscale)
		return
	}

	text := latin1(s)
	spaces := strings.Count(s, " ")
	visible := gs.render != 3 && gs.render != 7

	p.cctx.Save()
	p.cctx.NewPath()
	p.cctx.Transform(&p.tm)
	p.cctx.Translate(0, gs.rise)
	p.cctx.Scale(gs.hscale, -1)

	c, alpha := gs.fill, gs.fillAlpha
	if gs.render == 1 || gs.render == 5 {
		c, alpha = gs.stroke, gs.strokeAlpha
	}
	p.cctx.SetSourceRGBA(c[0], c[1], c[2], alpha)
	p.cctx.MoveTo(0, 0)

	var width float64
	if visible && alpha > 0 {
		layout := cairo.PangoCairoCreateLayout(p.cctx)
		desc := cairo.NewPangoFontDescription()
		desc.SetFamily(gs.font.family)
		desc.SetSize(size)
		layout.SetFontDescription(desc)
		layout.SetText(text)
		cairo.PangoCairoShowText(p.cctx, layout)
		width, _ = p.cctx.GetCurrentPoint()
	} else {
		width = float64(len(text)) * size * 0.5
	}
	p.cctx.NewPath()
	p.cctx.Restore()

	n := float64(len(s))
	p.advance((width + n*gs.charSpace + float64(spaces)*gs.wordSpace) * gs.hscale)
}

// latin1 将单字节编码的文本逐字节映射为 Unicode
func latin1(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 {
			c = ' '
		}
		b.WriteRune(rune(c))
	}
	return b.String()
}

func (p *painter) font(res types.Dict, key string) pdfFont {
	f := pdfFont{family: "sans-serif"}
	d, ok := p.resourceDict(res, "Font", key)
	if !ok {
		return f
	}
	if st := d.NameEntry("Subtype"); st != nil && *st == "Type0" {
		f.composite = true
	}
	if bf := d.NameEntry("BaseFont"); bf != nil {
		f.family = fontFamily(*bf)
	}
	return f
}

// fontFamily 将标准 14 字体及常见子集名映射到通用字体族
func fontFamily(baseFont string) string {
	// 子集字体形如 ABCDEF+Name
	if i := strings.IndexByte(baseFont, '+'); i == 6 {
		baseFont = baseFont[i+1:]
	}
	lower := strings.ToLower(baseFont)
	switch {
	case strings.Contains(lower, "courier"), strings.Contains(lower, "mono"):
		return "monospace"
	case strings.Contains(lower, "times"), strings.Contains(lower, "serif") && !strings.Contains(lower, "sans"):
		return "serif"
	}
	return "sans-serif"
}

func (p *painter) extGState(res types.Dict, v interface{}) {
	gn, ok := v.(name)
	if !ok {
		return
	}
	d, ok := p.resourceDict(res, "ExtGState", string(gn))
	if !ok {
		return
	}
	if n, ok := p.number(d["ca"]); ok {
		p.gs.fillAlpha = clamp01(n)
	}
	if n, ok := p.number(d["CA"]); ok {
		p.gs.strokeAlpha = clamp01(n)
	}
	if n, ok := p.number(d["LW"]); ok {
		p.gs.lineWidth = n
	}
}

func (p *painter) doXObject(res types.Dict, key string) error {
	sub, ok := p.subDict(res, "XObject")
	if !ok {
		return nil
	}
	obj, err := p.xt.Dereference(sub[key])
	if err != nil || obj == nil {
		logging.Debug("xobject %s: %v", key, err)
		return nil
	}
	sd, ok := obj.(types.StreamDict)
	if !ok {
		return nil
	}

	switch st := sd.NameEntry("Subtype"); {
	case st != nil && *st == "Image":
		p.drawImage(key, sd)
		return nil
	case st != nil && *st == "Form":
		return p.drawForm(res, key, sd)
	}
	return nil
}

// drawImage 图像占据用户空间的单位正方形，源图第一行对应正方形顶边
func (p *painter) drawImage(key string, sd types.StreamDict) {
	img, err := decodeImage(p.xt, sd, p.gs.fill)
	if err != nil {
		logging.Debug("image %s: %v", key, err)
		return
	}
	b := img.Bounds()
	unit := cairo.Matrix{XX: 1 / float64(b.Dx()), YY: -1 / float64(b.Dy()), Y0: 1}
	var dev cairo.Matrix
	cairo.MatrixMultiply(&dev, &unit, p.cctx.GetMatrix())
	if err := imaging.Composite(p.canvas, img, dev, p.gs.fillAlpha); err != nil {
		logging.Debug("image %s: %v", key, err)
	}
}

func (p *painter) drawForm(parent types.Dict, key string, sd types.StreamDict) error {
	if p.depth >= maxFormDepth {
		logging.Debug("form %s: nesting too deep", key)
		return nil
	}
	if err := sd.Decode(); err != nil {
		logging.Debug("form %s: %v", key, err)
		return nil
	}

	res := parent
	if d, err := p.xt.DereferenceDict(sd.Dict["Resources"]); err == nil && d != nil {
		res = d
	}

	p.cctx.Save()
	saved, stack := p.gs, p.stack
	p.stack = nil
	if arr, err := p.xt.DereferenceArray(sd.Dict["Matrix"]); err == nil && len(arr) == 6 {
		if n, ok := numbers(arr); ok {
			m := cairo.Matrix{XX: n[0], YX: n[1], XY: n[2], YY: n[3], X0: n[4], Y0: n[5]}
			p.cctx.Transform(&m)
		}
	}

	p.depth++
	err := p.run(res, sd.Content)
	p.depth--

	// 表单内未配对的 q 不能泄漏到外层
	for range p.stack {
		p.cctx.Restore()
	}
	p.gs, p.stack = saved, stack
	p.cctx.Restore()
	return err
}

// subDict 读取资源字典中的一个分类（XObject、Font、ExtGState）
func (p *painter) subDict(res types.Dict, category string) (types.Dict, bool) {
	if res == nil {
		return nil, false
	}
	d, err := p.xt.DereferenceDict(res[category])
	if err != nil || d == nil {
		return nil, false
	}
	return d, true
}

func (p *painter) resourceDict(res types.Dict, category, key string) (types.Dict, bool) {
	sub, ok := p.subDict(res, category)
	if !ok {
		return nil, false
	}
	d, err := p.xt.DereferenceDict(sub[key])
	if err != nil || d == nil {
		return nil, false
	}
	return d, true
}

func (p *painter) number(o types.Object) (float64, bool) {
	return number(p.xt, o)
}

func number(xt *model.XRefTable, o types.Object) (float64, bool) {
	if o == nil {
		return 0, false
	}
	o, err := xt.Dereference(o)
	if err != nil {
		return 0, false
	}
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

// nums 要求恰好 n 个数字操作数
func nums(args []interface{}, n int) ([]float64, bool) {
	if len(args) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, a := range args {
		f, ok := a.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// colorOperands 按数字操作数个数推断颜色空间：1 灰度，3 RGB，4 CMYK
// scn 的图案名等非数字操作数被忽略
func colorOperands(args []interface{}) ([3]float64, bool) {
	var n []float64
	for _, a := range args {
		if f, ok := a.(float64); ok {
			n = append(n, f)
		}
	}
	switch len(n) {
	case 1:
		v := clamp01(n[0])
		return [3]float64{v, v, v}, true
	case 3:
		return [3]float64{clamp01(n[0]), clamp01(n[1]), clamp01(n[2])}, true
	case 4:
		return cmykToRGB(n[0], n[1], n[2], n[3]), true
	}
	return [3]float64{}, false
}

func cmykToRGB(c, m, y, k float64) [3]float64 {
	c, m, y, k = clamp01(c), clamp01(m), clamp01(y), clamp01(k)
	return [3]float64{(1 - c) * (1 - k), (1 - m) * (1 - k), (1 - y) * (1 - k)}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

func lineCap(v int) cairo.LineCap {
	switch v {
	case 1:
		return cairo.LineCapRound
	case 2:
		return cairo.LineCapSquare
	}
	return cairo.LineCapButt
}

func lineJoin(v int) cairo.LineJoin {
	switch v {
	case 1:
		return cairo.LineJoinRound
	case 2:
		return cairo.LineJoinBevel
	}
	return cairo.LineJoinMiter
}

// nrgba 将 [0,1] 颜色转换为 8 位颜色
func nrgba(c [3]float64, a uint8) color.NRGBA {
	return color.NRGBA{
		R: uint8(c[0]*255 + 0.5),
		G: uint8(c[1]*255 + 0.5),
		B: uint8(c[2]*255 + 0.5),
		A: a,
	}
}
