// Package resolve binds every reference in the lowered bodies to its target
// declaration or member, with best-effort static typing of receivers.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/analyzer/flatten"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/panbanda/cohere/pkg/symbols"
)

// Resolver resolves references unit by unit.
type Resolver struct {
	workers   int
	externals map[string]bool
}

// Option is a functional option for configuring Resolver.
type Option func(*Resolver)

// WithWorkers sets the number of concurrent resolution workers.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		r.workers = n
	}
}

// WithExternals marks class and function names as known externals. References
// to them produce no reference and are not counted as unresolved.
func WithExternals(names []string) Option {
	return func(r *Resolver) {
		for _, n := range names {
			r.externals[strings.ToLower(strings.TrimLeft(n, `\`))] = true
		}
	}
}

// WithBuiltins marks the common PHP runtime classes and functions as known
// externals.
func WithBuiltins() Option {
	return WithExternals(Builtins)
}

// New creates a new Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{externals: make(map[string]bool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// job is the work of one unit: its imports and every declaration written in it.
type job struct {
	scope *symbols.Scope
	decls []*symbols.Declaration
}

type jobResult struct {
	refs       []Reference
	unresolved int
	malformed  []*MalformedInputWarning
}

// Resolve resolves every unit in parallel against the frozen table and
// flattening result. Each worker fills a private buffer; buffers are merged
// in unit order so the output does not depend on scheduling.
func (r *Resolver) Resolve(ctx context.Context, table *symbols.Table, flat *flatten.Result) *Result {
	byScope := make(map[*symbols.Scope][]*symbols.Declaration)
	for _, d := range table.Declarations() {
		byScope[d.Scope] = append(byScope[d.Scope], d)
	}
	jobs := make([]job, 0, len(table.Scopes()))
	for _, s := range table.Scopes() {
		jobs = append(jobs, job{scope: s, decls: byScope[s]})
	}

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.StartPhase(analyzer.PhaseResolve, len(jobs))
	}

	results := analyzer.Map(jobs, r.workers, func(_ int, j job) jobResult {
		w := &walker{table: table, flat: flat, externals: r.externals}
		w.unit(j)
		if tracker != nil {
			tracker.Tick(j.scope.Path)
		}
		return jobResult{refs: w.refs, unresolved: w.unresolved, malformed: w.malformed}
	})

	res := &Result{}
	for _, jr := range results {
		res.References = append(res.References, jr.refs...)
		res.Unresolved += jr.unresolved
		res.Malformed = append(res.Malformed, jr.malformed...)
	}
	return res
}

// walker resolves one unit. It is owned by a single worker.
type walker struct {
	table     *symbols.Table
	flat      *flatten.Result
	externals map[string]bool

	refs       []Reference
	unresolved int
	malformed  []*MalformedInputWarning

	// body context
	scope     *symbols.Scope
	class     *symbols.Declaration
	lexical   *symbols.Declaration
	site      Site
	inherited bool
	env       env
}

func (w *walker) unit(j job) {
	w.imports(j.scope)
	for _, d := range j.decls {
		if d.Kind == ir.DeclFunction {
			w.function(d)
			continue
		}
		w.hierarchy(d)
		if d.Kind != ir.DeclTrait {
			w.members(d)
		}
	}
}

func (w *walker) reset(scope *symbols.Scope, class, lexical *symbols.Declaration, site Site, inherited bool) {
	w.scope = scope
	w.class = class
	w.lexical = lexical
	w.site = site
	w.inherited = inherited
	w.env = nil
}

// imports emits a NamespaceUse reference for every `use` clause of the unit.
func (w *walker) imports(scope *symbols.Scope) {
	w.reset(scope, nil, nil, Site{Path: scope.Path, Namespace: scope.Namespace}, false)
	for _, imp := range scope.Imports {
		name := strings.TrimLeft(imp.Name, `\`)
		if w.external(name) {
			continue
		}
		switch imp.EffectiveKind() {
		case ir.ImportFunction:
			if f, ok := w.table.LookupFunction(name); ok {
				w.emit(KindNamespaceUse, imp.Line, declTarget(f))
				continue
			}
		case ir.ImportConst:
			if ns, ok := w.table.Namespace(ir.NamespaceOf(name)); ok {
				w.emit(KindNamespaceUse, imp.Line, Target{Kind: TargetNamespace, Namespace: ns})
				continue
			}
		default:
			if d, ok := w.table.Lookup(name); ok {
				w.emit(KindNamespaceUse, imp.Line, declTarget(d))
				continue
			}
			if ns, ok := w.table.Namespace(name); ok {
				w.emit(KindNamespaceUse, imp.Line, Target{Kind: TargetNamespace, Namespace: ns})
				continue
			}
		}
		w.unknown(KindNamespaceUse, imp.Line, name, "")
	}
}

// hierarchy emits Inheritance and TraitUse references of a class-like.
func (w *walker) hierarchy(d *symbols.Declaration) {
	w.reset(d.Scope, d, d, Site{
		Path: d.Location.Path, Line: d.Location.Line, Namespace: d.Namespace, Decl: d.FQN,
	}, false)

	extends := d.Extends
	if d.Kind == ir.DeclClass && len(extends) > 1 {
		extends = extends[:1]
	}
	for _, name := range extends {
		w.classRef(KindInheritance, 0, name)
	}
	for _, name := range d.Implements {
		w.classRef(KindInheritance, 0, name)
	}
	for _, name := range d.Traits {
		w.classRef(KindTraitUse, 0, name)
	}
}

// members walks the bodies of a class's effective members in the class's
// context. Copies inherited from a parent are walked too so that cohesion
// sees their communication with the rest of the class.
func (w *walker) members(d *symbols.Declaration) {
	members := d.Members
	if c, ok := w.flat.Class(d.FQN); ok && !c.Excluded {
		members = c.Members
	}

	for _, m := range members {
		lexical := d
		if m.Inherited {
			if origin, ok := w.table.Lookup(m.Origin); ok && origin.Kind == ir.DeclClass {
				lexical = origin
			}
		}
		w.reset(m.Scope, d, lexical, Site{
			Path:      m.Location.Path,
			Line:      m.Location.Line,
			Namespace: d.Namespace,
			Decl:      d.FQN,
			Member:    symbols.MemberID(d.FQN, m.Kind, m.Name),
		}, m.Inherited)

		switch m.Kind {
		case symbols.MemberMethod:
			if m.Method != nil {
				w.body(m.Method.Body, m.Method.Params)
			}
		case symbols.MemberProperty:
			if m.Property != nil && m.Property.Default != nil {
				w.body([]*ir.Node{m.Property.Default}, nil)
			}
		case symbols.MemberConstant:
			if m.Constant != nil && m.Constant.Value != nil {
				w.body([]*ir.Node{m.Constant.Value}, nil)
			}
		}
	}
}

func (w *walker) function(d *symbols.Declaration) {
	w.reset(d.Scope, nil, nil, Site{
		Path: d.Location.Path, Line: d.Location.Line, Namespace: d.Namespace, Decl: d.FQN,
	}, false)
	w.body(d.Decl.Body, d.Decl.Params)
}

func (w *walker) body(nodes []*ir.Node, params []ir.Param) {
	w.buildEnv(nodes, params)
	for _, n := range nodes {
		w.expr(n)
	}
}

func (w *walker) expr(n *ir.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ir.NodeVar:
	case ir.NodeExpr:
		w.exprs(n.Children)
	case ir.NodeAssign:
		w.assign(n)
	case ir.NodeNew:
		w.instantiation(n)
	case ir.NodeMethodCall:
		w.methodCall(n)
	case ir.NodeStaticCall:
		w.staticCall(n)
	case ir.NodeFuncCall:
		w.funcCall(n)
	case ir.NodeProperty:
		w.property(n, KindPropertyRead)
	case ir.NodeStaticProperty:
		w.staticMember(n, KindStaticPropertyAccess, symbols.MemberProperty)
	case ir.NodeClassConst:
		w.classConst(n)
	default:
		w.malformedNode(n, KindCall, fmt.Sprintf("unknown node kind %q", n.Kind))
		w.expr(n.Object)
		w.expr(n.Target)
		w.expr(n.Value)
		w.exprs(n.Children)
	}
}

func (w *walker) exprs(nodes []*ir.Node) {
	for _, n := range nodes {
		w.expr(n)
	}
}

func (w *walker) assign(n *ir.Node) {
	if n.Target == nil {
		w.malformedNode(n, KindPropertyWrite, "assignment without target")
		w.expr(n.Value)
		return
	}
	switch n.Target.Kind {
	case ir.NodeProperty:
		if n.Compound {
			w.property(n.Target, KindPropertyRead, KindPropertyWrite)
		} else {
			w.property(n.Target, KindPropertyWrite)
		}
	default:
		w.expr(n.Target)
	}
	w.expr(n.Value)
}

func (w *walker) instantiation(n *ir.Node) {
	if n.Class == "" {
		w.expr(n.Object)
		w.unknown(KindInstantiation, n.Line, "new (dynamic)", "")
	} else {
		w.classRef(KindInstantiation, n.Line, n.Class)
	}
	w.exprs(n.Children)
}

func (w *walker) methodCall(n *ir.Node) {
	if n.Object == nil {
		w.malformedNode(n, KindCall, "method call without object")
		w.exprs(n.Children)
		return
	}
	w.expr(n.Object)
	recv := w.typeOf(n.Object)
	switch {
	case n.Name == "":
		w.unknown(KindCall, n.Line, "->(dynamic)()", "")
	case recv == nil:
		w.unknown(KindCall, n.Line, "->"+n.Name+"()", "")
	default:
		w.memberRef(KindCall, n.Line, recv, symbols.MemberMethod, n.Name)
	}
	w.exprs(n.Children)
}

func (w *walker) staticCall(n *ir.Node) {
	w.staticMember(n, KindStaticCall, symbols.MemberMethod)
	w.exprs(n.Children)
}

// staticMember handles Class::method(), Class::$prop and $obj::method().
func (w *walker) staticMember(n *ir.Node, kind Kind, mk symbols.MemberKind) {
	var recv *symbols.Declaration
	switch {
	case n.Class != "":
		d, external, label := w.className(n.Class)
		if external {
			return
		}
		if d == nil {
			w.unknown(kind, n.Line, symbols.MemberID(label, mk, n.Name), "")
			return
		}
		recv = d
	case n.Object != nil:
		w.expr(n.Object)
		recv = w.typeOf(n.Object)
		if recv == nil {
			w.unknown(kind, n.Line, symbols.MemberID("?", mk, n.Name), "")
			return
		}
	default:
		w.malformedNode(n, kind, "static access without class or object")
		return
	}
	if n.Name == "" {
		w.unknown(kind, n.Line, recv.FQN+"::(dynamic)", recv.FQN)
		return
	}
	w.memberRef(kind, n.Line, recv, mk, n.Name)
}

func (w *walker) funcCall(n *ir.Node) {
	defer w.exprs(n.Children)

	if n.Name == "" {
		w.expr(n.Object)
		w.unknown(KindCall, n.Line, "(dynamic)()", "")
		return
	}
	if f, ok := w.table.ResolveFunction(w.scope, n.Name); ok {
		w.emit(KindCall, n.Line, declTarget(f))
		return
	}
	name := strings.TrimLeft(n.Name, `\`)
	if w.external(name) || w.external(ir.LastSegment(name)) {
		return
	}
	w.unknown(KindCall, n.Line, name+"()", "")
}

func (w *walker) property(n *ir.Node, kinds ...Kind) {
	if n.Object == nil {
		w.malformedNode(n, kinds[0], "property fetch without object")
		return
	}
	w.expr(n.Object)
	recv := w.typeOf(n.Object)
	for _, kind := range kinds {
		switch {
		case n.Name == "":
			w.unknown(kind, n.Line, "->(dynamic)", "")
		case recv == nil:
			w.unknown(kind, n.Line, "->$"+n.Name, "")
		default:
			w.memberRef(kind, n.Line, recv, symbols.MemberProperty, n.Name)
		}
	}
}

func (w *walker) classConst(n *ir.Node) {
	if strings.EqualFold(n.Name, "class") {
		if n.Class != "" {
			w.classRef(KindConstantAccess, n.Line, n.Class)
		} else {
			w.expr(n.Object)
		}
		return
	}
	w.staticMember(n, KindConstantAccess, symbols.MemberConstant)
}

// classRef emits a declaration-level reference to a class-like name.
func (w *walker) classRef(kind Kind, line int, name string) {
	d, external, label := w.className(name)
	switch {
	case external:
	case d == nil:
		w.unknown(kind, line, label, "")
	default:
		w.emit(kind, line, declTarget(d))
	}
}

// className resolves a class name used in the current body. external is
// set when the name is a configured external; label names unresolved
// classes.
func (w *walker) className(name string) (d *symbols.Declaration, external bool, label string) {
	if d, ok := w.lookupClass(name); ok {
		return d, false, d.FQN
	}
	switch strings.ToLower(name) {
	case "self", "static", "parent":
		return nil, false, name
	}
	qualified := symbols.QualifyClass(w.scope, name)
	if w.external(qualified) || w.external(strings.TrimLeft(name, `\`)) {
		return nil, true, qualified
	}
	return nil, false, qualified
}

func (w *walker) memberRef(kind Kind, line int, recv *symbols.Declaration, mk symbols.MemberKind, name string) {
	m, ok := w.lookupMember(recv, mk, name)
	if !ok {
		w.unknown(kind, line, symbols.MemberID(recv.FQN, mk, name), recv.FQN)
		return
	}
	w.emit(kind, line, Target{
		Kind:       TargetMember,
		Decl:       m.Owner,
		Member:     m.ID(),
		MemberKind: m.Kind,
	})
}

func (w *walker) external(name string) bool {
	return len(w.externals) > 0 && w.externals[strings.ToLower(name)]
}

func declTarget(d *symbols.Declaration) Target {
	return Target{Kind: TargetDecl, Decl: d.FQN}
}

func (w *walker) emit(kind Kind, line int, t Target) {
	site := w.site
	if line > 0 {
		site.Line = line
	}
	w.refs = append(w.refs, Reference{Kind: kind, Source: site, Target: t, Inherited: w.inherited})
}

// unknown emits an unresolved reference. decl carries the owner class when
// the class resolved but the member did not.
func (w *walker) unknown(kind Kind, line int, name, decl string) {
	w.unresolved++
	w.emit(kind, line, Target{Kind: TargetUnknown, Name: name, Decl: decl})
}

func (w *walker) malformedNode(n *ir.Node, kind Kind, reason string) {
	line := n.Line
	if line == 0 {
		line = w.site.Line
	}
	w.malformed = append(w.malformed, &MalformedInputWarning{Path: w.site.Path, Line: line, Reason: reason})
	w.emit(kind, n.Line, Target{Kind: TargetUnknown, Name: reason})
}
