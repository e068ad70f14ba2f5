package flatten

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/novvoo/go-pdfsign/pkg/overlay"
	"github.com/novvoo/go-pdfsign/pkg/pdfsource"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// DocumentExporter 把叠加层写回源 PDF
type DocumentExporter struct{}

// placement 一条图像指令在页面资源中的名称
type placement struct {
	xobject string
	gstate  string // 不透明度为 1 时为空
}

// Export 返回合成后的 PDF，snap 不会被修改
// 任一元素图像无法嵌入时返回 ErrImageEmbed，不产生部分输出
func (DocumentExporter) Export(ctx context.Context, pdf []byte, snap overlay.Snapshot) ([]byte, error) {
	snap = snap.Clone()
	for _, e := range snap.Elements {
		if _, _, err := image.DecodeConfig(bytes.NewReader(e.Image)); err != nil {
			return nil, fmt.Errorf("%w: element %s: %v", ErrImageEmbed, e.ID, err)
		}
	}

	pctx, err := pdfsource.ReadContext(pdf)
	if err != nil {
		return nil, err
	}

	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		elements := snap.PageElements(pageNr - 1)
		strokes := snap.Drawings[pageNr-1]
		if len(elements) == 0 && len(strokes) == 0 {
			continue
		}
		if err := flattenPage(pctx, pageNr, elements, strokes); err != nil {
			return nil, err
		}
		logging.Debug("page %d: flattened %d elements, %d strokes", pageNr, len(elements), len(strokes))
	}

	var buf bytes.Buffer
	if err := api.WriteContext(pctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func flattenPage(pctx *model.Context, pageNr int, elements []overlay.Element, strokes []overlay.Stroke) error {
	xt := pctx.XRefTable
	pageDict, _, inh, err := xt.PageDict(pageNr, false)
	if err != nil {
		return fmt.Errorf("failed to get page dict %d: %w", pageNr, err)
	}

	size, llx, lly := PageSize{Width: 612, Height: 792}, 0.0, 0.0
	if inh != nil && inh.MediaBox != nil {
		size = PageSize{Width: inh.MediaBox.Width(), Height: inh.MediaBox.Height()}
		llx, lly = inh.MediaBox.LL.X, inh.MediaBox.LL.Y
	}

	instrs := PlanDocumentPage(size, elements, strokes)

	res, err := resourcesDict(xt, pageDict, inh)
	if err != nil {
		return err
	}
	xobjects, err := subDict(xt, res, "XObject")
	if err != nil {
		return err
	}
	gstates, err := subDict(xt, res, "ExtGState")
	if err != nil {
		return err
	}

	var placed []placement
	for _, in := range instrs {
		img, ok := in.(ImageInstruction)
		if !ok {
			continue
		}
		ref, _, _, err := model.CreateImageResource(xt, bytes.NewReader(img.Image))
		if err != nil {
			return fmt.Errorf("%w: element %s: %v", ErrImageEmbed, img.ElementID, err)
		}
		p := placement{xobject: freeName(xobjects, "Sig")}
		xobjects.Insert(p.xobject, *ref)

		if img.Opacity < 1 {
			gs := types.NewDict()
			gs.Insert("Type", types.Name("ExtGState"))
			gs.Insert("ca", types.Float(img.Opacity))
			gs.Insert("CA", types.Float(img.Opacity))
			gsRef, err := xt.IndRefForNewObject(gs)
			if err != nil {
				return fmt.Errorf("failed to add ExtGState: %w", err)
			}
			p.gstate = freeName(gstates, "SigGS")
			gstates.Insert(p.gstate, *gsRef)
		}
		placed = append(placed, p)
	}

	var ops bytes.Buffer
	if llx != 0 || lly != 0 {
		fmt.Fprintf(&ops, "1 0 0 1 %s %s cm\n", num(llx), num(lly))
	}
	ops.Write(contentOps(instrs, placed))

	return wrapContents(xt, pageDict, ops.Bytes())
}

// contentOps 生成叠加层内容流，placed 与 instrs 中的图像指令一一对应
func contentOps(instrs []DrawInstruction, placed []placement) []byte {
	var b bytes.Buffer
	next := 0
	for _, in := range instrs {
		switch v := in.(type) {
		case LineInstruction:
			fmt.Fprintf(&b, "q\n%s %s %s RG\n%s w\n1 J\n1 j\n%s %s m\n%s %s l\nS\nQ\n",
				num(v.Color.R), num(v.Color.G), num(v.Color.B), num(v.Thickness),
				num(v.From.X), num(v.From.Y), num(v.To.X), num(v.To.Y))
		case ImageInstruction:
			p := placed[next]
			next++
			b.WriteString("q\n")
			if p.gstate != "" {
				fmt.Fprintf(&b, "/%s gs\n", p.gstate)
			}
			fmt.Fprintf(&b, "%s cm\n/%s Do\nQ\n", v.ImageMatrix().Operands(), p.xobject)
		}
	}
	return b.Bytes()
}

// resourcesDict 返回页面自己的资源字典；页面从父节点继承资源时复制一份挂到页面上
func resourcesDict(xt *model.XRefTable, pageDict types.Dict, inh *model.InheritedPageAttrs) (types.Dict, error) {
	obj, found := pageDict.Find("Resources")
	if !found {
		res := types.NewDict()
		if inh != nil {
			for k, v := range inh.Resources {
				res[k] = v
			}
		}
		pageDict.Insert("Resources", res)
		return res, nil
	}
	res, err := xt.DereferenceDict(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Resources: %w", err)
	}
	if res == nil {
		res = types.NewDict()
		pageDict.Update("Resources", res)
	}
	return res, nil
}

func subDict(xt *model.XRefTable, res types.Dict, key string) (types.Dict, error) {
	obj, found := res.Find(key)
	if !found {
		d := types.NewDict()
		res.Insert(key, d)
		return d, nil
	}
	d, err := xt.DereferenceDict(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference %s: %w", key, err)
	}
	if d == nil {
		d = types.NewDict()
		res.Update(key, d)
	}
	return d, nil
}

// freeName 返回资源字典中未使用的名称
func freeName(d types.Dict, prefix string) string {
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, found := d.Find(name); !found {
			return name
		}
	}
}

// wrapContents 用 q/Q 包住原内容流，避免原内容遗留的图形状态影响叠加层
func wrapContents(xt *model.XRefTable, pageDict types.Dict, ops []byte) error {
	prefix, err := newContentStream(xt, []byte("q\n"))
	if err != nil {
		return err
	}
	suffix, err := newContentStream(xt, append([]byte("Q\n"), ops...))
	if err != nil {
		return err
	}

	arr := types.Array{*prefix}
	if obj, found := pageDict.Find("Contents"); found {
		switch c := obj.(type) {
		case types.IndirectRef:
			derefObj, err := xt.Dereference(c)
			if err != nil {
				return fmt.Errorf("failed to dereference Contents: %w", err)
			}
			if a, ok := derefObj.(types.Array); ok {
				arr = append(arr, a...)
			} else {
				arr = append(arr, c)
			}
		case types.Array:
			arr = append(arr, c...)
		}
	}
	arr = append(arr, *suffix)
	pageDict.Update("Contents", arr)
	return nil
}

func newContentStream(xt *model.XRefTable, content []byte) (*types.IndirectRef, error) {
	sd, err := xt.NewStreamDictForBuf(content)
	if err != nil {
		return nil, fmt.Errorf("failed to create content stream: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode content stream: %w", err)
	}
	ref, err := xt.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to add content stream: %w", err)
	}
	return ref, nil
}
