package pdfsource

import (
	"fmt"

	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// widgetRects 从页面的 Annots 中提取表单控件（Widget）的矩形
// 表单域的每个控件都会出现在所在页的 Annots 中，无需遍历 AcroForm 树
func widgetRects(ctx *model.Context, pageDict types.Dict) ([][4]float64, error) {
	annotsObj, found := pageDict.Find("Annots")
	if !found {
		return nil, nil
	}

	if indRef, ok := annotsObj.(types.IndirectRef); ok {
		derefObj, err := ctx.Dereference(indRef)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference Annots: %w", err)
		}
		annotsObj = derefObj
	}

	annotsArray, ok := annotsObj.(types.Array)
	if !ok {
		return nil, fmt.Errorf("annots is not an array")
	}

	var rects [][4]float64
	for _, annotObj := range annotsArray {
		if indRef, ok := annotObj.(types.IndirectRef); ok {
			derefObj, err := ctx.Dereference(indRef)
			if err != nil {
				logging.Debug("failed to dereference annotation: %v", err)
				continue
			}
			annotObj = derefObj
		}

		annotDict, ok := annotObj.(types.Dict)
		if !ok {
			continue
		}
		if subtype := annotDict.NameEntry("Subtype"); subtype == nil || *subtype != "Widget" {
			continue
		}
		if flags := annotDict.IntEntry("F"); flags != nil && *flags&hiddenFlag != 0 {
			continue
		}

		r, ok := rectEntry(ctx, annotDict)
		if !ok {
			logging.Debug("widget without usable Rect")
			continue
		}
		rects = append(rects, r)
	}
	return rects, nil
}

// 注释标志位 2：Hidden
const hiddenFlag = 1 << 1

func rectEntry(ctx *model.Context, d types.Dict) ([4]float64, bool) {
	obj, found := d.Find("Rect")
	if !found {
		return [4]float64{}, false
	}
	if indRef, ok := obj.(types.IndirectRef); ok {
		derefObj, err := ctx.Dereference(indRef)
		if err != nil {
			return [4]float64{}, false
		}
		obj = derefObj
	}
	arr, ok := obj.(types.Array)
	if !ok || len(arr) != 4 {
		return [4]float64{}, false
	}
	nums, ok := numbers(arr)
	if !ok {
		return [4]float64{}, false
	}
	r := [4]float64{nums[0], nums[1], nums[2], nums[3]}
	if r[0] == r[2] || r[1] == r[3] {
		return r, false
	}
	return r, true
}
