package aspen

import "github.com/goliatone/go-aspen/raw"

// NodeTransformer rewrites raw trees between the format adapter and the
// schema: PreProcess runs on parsed documents before they are loaded,
// PostProcess on emitted trees before they are serialized.
type NodeTransformer interface {
	PreProcess(node raw.Node) (raw.Node, error)
	PostProcess(node raw.Node) (raw.Node, error)
}

// TransformerFuncs adapts plain functions to NodeTransformer. Nil hooks pass
// the node through.
type TransformerFuncs struct {
	Pre  func(raw.Node) (raw.Node, error)
	Post func(raw.Node) (raw.Node, error)
}

func (t TransformerFuncs) PreProcess(node raw.Node) (raw.Node, error) {
	if t.Pre == nil {
		return node, nil
	}
	return t.Pre(node)
}

func (t TransformerFuncs) PostProcess(node raw.Node) (raw.Node, error) {
	if t.Post == nil {
		return node, nil
	}
	return t.Post(node)
}

// WithTransformer appends a transformer. Pre-processors run in registration
// order; post-processors run in reverse.
func WithTransformer(t NodeTransformer) Option {
	return func(cfg *providerConfig) {
		if t != nil {
			cfg.transformers = append(cfg.transformers, t)
		}
	}
}

func (p *Provider) preProcess(node raw.Node) (raw.Node, error) {
	var err error
	for _, t := range p.cfg.transformers {
		if node, err = t.PreProcess(node); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *Provider) postProcess(node raw.Node) (raw.Node, error) {
	var err error
	for i := len(p.cfg.transformers) - 1; i >= 0; i-- {
		if node, err = p.cfg.transformers[i].PostProcess(node); err != nil {
			return nil, err
		}
	}
	return node, nil
}
