package generation

// Params is the uniform UI parameter set for a request.
type Params map[string]any

// Options is the provider-specific payload produced by a build.
type Options map[string]any

// TransformFunc maps a resolved parameter value to the provider's wire vocabulary.
type TransformFunc func(value any, bctx *BuildContext) any

// ConditionFunc gates whether a rule's output key is emitted at all.
type ConditionFunc func(bctx *BuildContext) bool

// ParamRule describes how one output key is derived from the request parameters.
//
// Resolution order: the first Source key present in Params, else Default, then Transform
// on whatever was found, then Condition which may discard the result.
type ParamRule struct {
	Source    []string
	Default   any
	Transform TransformFunc
	Condition ConditionFunc
}

// Key is a direct passthrough of a single parameter.
func Key(name string) ParamRule {
	return ParamRule{Source: []string{name}}
}

// From builds a rule reading the first present key among names.
func From(names ...string) ParamRule {
	return ParamRule{Source: names}
}

// WithDefault returns a copy of r with a default value.
func (r ParamRule) WithDefault(v any) ParamRule {
	r.Default = v
	return r
}

// WithTransform returns a copy of r with a transform.
func (r ParamRule) WithTransform(fn TransformFunc) ParamRule {
	r.Transform = fn
	return r
}

// When returns a copy of r gated by cond.
func (r ParamRule) When(cond ConditionFunc) ParamRule {
	r.Condition = cond
	return r
}

// Resolve evaluates the rule. ok is false when the output key must be absent.
func (r ParamRule) Resolve(bctx *BuildContext) (any, bool) {
	var (
		value any
		found bool
	)
	for _, key := range r.Source {
		if v, ok := bctx.Params[key]; ok && v != nil {
			value, found = v, true
			break
		}
	}
	if !found && r.Default != nil {
		value, found = r.Default, true
	}
	if found && r.Transform != nil {
		value = r.Transform(value, bctx)
		found = value != nil
	}
	if r.Condition != nil && !r.Condition(bctx) {
		return nil, false
	}
	return value, found
}

// Lookup returns a present, non-nil parameter.
func (p Params) Lookup(key string) (any, bool) {
	v, ok := p[key]
	return v, ok && v != nil
}

// String returns the parameter as a string, or "" if it is missing or not a string.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the parameter as an int, accepting any JSON number form.
func (p Params) Int(key string) (int, bool) {
	return toInt(p[key])
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
