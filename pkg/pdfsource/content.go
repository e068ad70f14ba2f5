package pdfsource

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// name PDF 名称操作数（不含前导 /）
type name string

// operation 内容流中的一条操作
// 操作数类型：float64、name、string（字符串的原始字节）、bool、[]interface{}、nil（字典或 null）
type operation struct {
	op   string
	args []interface{}
}

// maxNesting 数组/字典嵌套上限
const maxNesting = 32

// contentStreams 解码页面 /Contents，可能是单个流或流数组
func contentStreams(xt *model.XRefTable, obj types.Object) ([][]byte, error) {
	switch v := obj.(type) {
	case nil:
		return nil, nil
	case types.IndirectRef:
		o, err := xt.Dereference(v)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference contents: %w", err)
		}
		return contentStreams(xt, o)
	case types.StreamDict:
		if err := v.Decode(); err != nil {
			return nil, fmt.Errorf("failed to decode content stream: %w", err)
		}
		return [][]byte{v.Content}, nil
	case types.Array:
		var out [][]byte
		for _, item := range v {
			s, err := contentStreams(xt, item)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected contents type %T", obj)
	}
}

// parseContent 将内容流切分为操作序列，无法识别的片段被跳过
func parseContent(data []byte) []operation {
	lx := lexer{data: data}
	var ops []operation
	var stack []interface{}
	for {
		tok, ok := lx.next(0)
		if !ok {
			return ops
		}
		kw, isKeyword := tok.(keyword)
		if !isKeyword {
			stack = append(stack, tok)
			continue
		}
		switch kw {
		case "true", "false":
			stack = append(stack, kw == "true")
			continue
		case "null":
			stack = append(stack, nil)
			continue
		case "BI":
			// 内联图像不参与预览
			lx.skipInlineImage()
			stack = stack[:0]
			continue
		}
		ops = append(ops, operation{op: string(kw), args: stack})
		stack = nil
	}
}

// keyword 操作符或其他裸关键字
type keyword string

type lexer struct {
	data []byte
	pos  int
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.data) {
		c := lx.data[lx.pos]
		if isSpace(c) {
			lx.pos++
			continue
		}
		if c == '%' {
			for lx.pos < len(lx.data) && lx.data[lx.pos] != '\n' && lx.data[lx.pos] != '\r' {
				lx.pos++
			}
			continue
		}
		return
	}
}

func (lx *lexer) regular() string {
	start := lx.pos
	for lx.pos < len(lx.data) && !isSpace(lx.data[lx.pos]) && !isDelimiter(lx.data[lx.pos]) {
		lx.pos++
	}
	return string(lx.data[start:lx.pos])
}

// next 读取下一个对象；ok 为 false 表示数据结束
func (lx *lexer) next(depth int) (interface{}, bool) {
	for {
		lx.skipSpace()
		if lx.pos >= len(lx.data) {
			return nil, false
		}
		c := lx.data[lx.pos]
		switch {
		case c == '(':
			lx.pos++
			return lx.literalString(), true
		case c == '<' && lx.pos+1 < len(lx.data) && lx.data[lx.pos+1] == '<':
			lx.pos += 2
			lx.skipUntil(">>", depth)
			return nil, true
		case c == '<':
			lx.pos++
			return lx.hexString(), true
		case c == '[':
			lx.pos++
			return lx.array(depth), true
		case c == '/':
			lx.pos++
			return name(decodeName(lx.regular())), true
		case c == ']' || c == '>' || c == ')' || c == '{' || c == '}':
			// 孤立的分隔符
			lx.pos++
		case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
			s := lx.regular()
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
			return 0.0, true
		default:
			return keyword(lx.regular()), true
		}
	}
}

func (lx *lexer) array(depth int) []interface{} {
	arr := []interface{}{}
	for {
		lx.skipSpace()
		if lx.pos >= len(lx.data) {
			return arr
		}
		if lx.data[lx.pos] == ']' {
			lx.pos++
			return arr
		}
		if depth >= maxNesting {
			lx.pos++
			continue
		}
		v, ok := lx.next(depth + 1)
		if !ok {
			return arr
		}
		if _, isKeyword := v.(keyword); isKeyword {
			continue
		}
		arr = append(arr, v)
	}
}

// skipUntil 跳过字典内容直到匹配的 >>
func (lx *lexer) skipUntil(end string, depth int) {
	for {
		lx.skipSpace()
		if lx.pos >= len(lx.data) {
			return
		}
		if bytes.HasPrefix(lx.data[lx.pos:], []byte(end)) {
			lx.pos += len(end)
			return
		}
		if depth >= maxNesting {
			lx.pos++
			continue
		}
		if _, ok := lx.next(depth + 1); !ok {
			return
		}
	}
}

func (lx *lexer) literalString() string {
	var buf []byte
	level := 1
	for lx.pos < len(lx.data) {
		c := lx.data[lx.pos]
		lx.pos++
		switch c {
		case '(':
			level++
		case ')':
			level--
			if level == 0 {
				return string(buf)
			}
		case '\\':
			if lx.pos >= len(lx.data) {
				return string(buf)
			}
			e := lx.data[lx.pos]
			lx.pos++
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '\r':
				if lx.pos < len(lx.data) && lx.data[lx.pos] == '\n' {
					lx.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && lx.pos < len(lx.data); i++ {
						d := lx.data[lx.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						lx.pos++
					}
					buf = append(buf, byte(v))
				} else {
					buf = append(buf, e)
				}
			}
			continue
		}
		buf = append(buf, c)
	}
	return string(buf)
}

func (lx *lexer) hexString() string {
	var buf []byte
	var hi byte
	half := false
	for lx.pos < len(lx.data) {
		c := lx.data[lx.pos]
		lx.pos++
		if c == '>' {
			break
		}
		v, ok := hexValue(c)
		if !ok {
			continue
		}
		if half {
			buf = append(buf, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		buf = append(buf, hi<<4)
	}
	return string(buf)
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodeName 处理名称中的 #xx 转义
func decodeName(s string) string {
	if !strings.Contains(s, "#") {
		return s
	}
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '#' && i+2 < len(s) {
			h, ok1 := hexValue(s[i+1])
			l, ok2 := hexValue(s[i+2])
			if ok1 && ok2 {
				out = append(out, h<<4|l)
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}

// skipInlineImage 跳过 BI 之后的参数与 ID ... EI 数据
func (lx *lexer) skipInlineImage() {
	i := bytes.Index(lx.data[lx.pos:], []byte("ID"))
	if i < 0 {
		lx.pos = len(lx.data)
		return
	}
	lx.pos += i + 2
	for lx.pos < len(lx.data) {
		j := bytes.Index(lx.data[lx.pos:], []byte("EI"))
		if j < 0 {
			lx.pos = len(lx.data)
			return
		}
		at := lx.pos + j
		lx.pos = at + 2
		before := at == 0 || isSpace(lx.data[at-1])
		after := lx.pos >= len(lx.data) || isSpace(lx.data[lx.pos]) || isDelimiter(lx.data[lx.pos])
		if before && after {
			return
		}
	}
}
