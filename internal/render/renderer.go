package render

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxDepth = 256

var (
	ErrPortalUnsupported = errors.New("Portals are not currently supported by the server renderer. Render them conditionally so that they only appear on the client render.")
	ErrTooDeep           = errors.New("maximum render depth exceeded")
)

type mode int

const (
	modeStatic mode = iota
	modeLive
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

var attrAliases = map[string]string{
	"className": "class",
	"htmlFor":   "for",
	"tabIndex":  "tabindex",
}

// walker converts an element tree into html nodes
type walker struct {
	vm   *goja.Runtime
	mode mode
}

// renderToString renders v and serializes the result
func (w *walker) renderToString(v goja.Value) (string, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	if err := w.render(v, root, 0); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func (w *walker) render(v goja.Value, parent *html.Node, depth int) error {
	if depth > maxDepth {
		return ErrTooDeep
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}

	obj, isObj := v.(*goja.Object)
	if !isObj {
		switch v.Export().(type) {
		case bool:
			return nil
		default:
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: v.String()})
			return nil
		}
	}

	if obj.ClassName() == "Array" {
		length := int(obj.Get("length").ToInteger())
		for i := 0; i < length; i++ {
			if err := w.render(obj.Get(strconv.Itoa(i)), parent, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if _, callable := goja.AssertFunction(obj); callable {
		// Functions are not valid children; they render nothing.
		return nil
	}

	switch kind := obj.Get("$$typeof"); {
	case kind != nil && kind.String() == ElementType:
		return w.renderElement(obj, parent, depth)
	case kind != nil && kind.String() == PortalType:
		if w.mode == modeStatic {
			return ErrPortalUnsupported
		}
		return w.render(obj.Get("children"), parent, depth+1)
	default:
		return fmt.Errorf("Objects are not valid as a child (found: object with keys {%s})", strings.Join(obj.Keys(), ", "))
	}
}

func (w *walker) renderElement(el *goja.Object, parent *html.Node, depth int) error {
	typ := el.Get("type")
	props := w.vm.NewObject()
	if p := el.Get("props"); p != nil && !goja.IsUndefined(p) && !goja.IsNull(p) {
		props = p.ToObject(w.vm)
	}

	if fn, ok := goja.AssertFunction(typ); ok {
		out, err := w.callComponent(typ.ToObject(w.vm), fn, props)
		if err != nil {
			return err
		}
		return w.render(out, parent, depth+1)
	}

	if typ == nil || goja.IsUndefined(typ) || goja.IsNull(typ) {
		return fmt.Errorf("Element type is invalid: expected a string or a function but got: %s", typ)
	}

	tag := typ.String()
	if tag == FragmentType {
		return w.render(props.Get("children"), parent, depth+1)
	}

	node := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     w.attributes(props),
	}
	parent.AppendChild(node)

	if voidElements[tag] {
		return nil
	}
	return w.render(props.Get("children"), node, depth+1)
}

// callComponent invokes a function or class component with props
func (w *walker) callComponent(ctor *goja.Object, fn goja.Callable, props *goja.Object) (goja.Value, error) {
	if proto := ctor.Get("prototype"); proto != nil && !goja.IsUndefined(proto) {
		if render, ok := goja.AssertFunction(proto.ToObject(w.vm).Get("render")); ok {
			inst, err := w.vm.New(ctor, props)
			if err != nil {
				return nil, err
			}
			return render(inst)
		}
	}
	return fn(goja.Undefined(), props)
}

func (w *walker) attributes(props *goja.Object) []html.Attribute {
	keys := props.Keys()
	sort.Strings(keys)

	attrs := make([]html.Attribute, 0, len(keys))
	for _, key := range keys {
		switch key {
		case "children", "key", "ref", "dangerouslySetInnerHTML":
			continue
		}
		v := props.Get(key)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			continue
		}
		if _, fn := goja.AssertFunction(v); fn {
			continue
		}

		name := key
		if alias, ok := attrAliases[key]; ok {
			name = alias
		}

		switch raw := v.Export().(type) {
		case bool:
			if raw {
				attrs = append(attrs, html.Attribute{Key: name})
			}
		case map[string]interface{}:
			if key == "style" {
				attrs = append(attrs, html.Attribute{Key: "style", Val: styleString(raw)})
			}
		default:
			attrs = append(attrs, html.Attribute{Key: name, Val: v.String()})
		}
	}
	return attrs
}

func styleString(style map[string]interface{}) string {
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s:%v;", kebab(k), style[k])
	}
	return sb.String()
}

func kebab(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
