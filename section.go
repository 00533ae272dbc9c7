package aspen

import "github.com/goliatone/go-aspen/raw"

// sectionCodec delegates loading and emission to a child schema.
type sectionCodec struct {
	child *Schema
}

func (c sectionCodec) ToPrimitive(_ *PropertyContext, _ any) (any, error) {
	obj, err := c.child.Emit()
	if err != nil {
		return nil, err
	}
	return obj.ToValue(), nil
}

func (c sectionCodec) FromPrimitive(ctx *PropertyContext, primitive any) (any, error) {
	return c.LoadNode(ctx, raw.FromValue(primitive))
}

func (c sectionCodec) LoadNode(ctx *PropertyContext, node raw.Node) (any, error) {
	obj, err := raw.Expect[*raw.Object](node)
	if err != nil {
		return nil, err
	}
	if ctx == nil || ctx.stage == nil {
		return c.child, c.child.Load(obj)
	}
	c.child.load(obj, ctx.stage)
	return c.child, nil
}

func (c sectionCodec) EmitNode(_ *PropertyContext, _ any) (raw.Node, error) {
	return c.child.Emit()
}
