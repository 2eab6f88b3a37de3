package eval

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/athena/internal/bitset"
	"github.com/roach88/athena/internal/store"
)

// Evaluator parses set-algebra expressions and computes their values in a
// store.
//
// Grammar, loosest binding first:
//
//	+ - ~      union, difference, symmetric difference (left associative)
//	* @        intersection, Cartesian product (left associative)
//	^          postfix powerset
//	{a, b}     set literal      [a, b]  tuple literal
//	(e)        grouping          N       scalar      name   bound set
//
// An Evaluator is safe for concurrent use; each call owns its own parse
// state.
type Evaluator struct {
	db     *store.DB
	limits Limits
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLimits sets the operator cost limits.
func WithLimits(l Limits) Option {
	return func(e *Evaluator) {
		e.limits = l
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// New creates an Evaluator over db.
func New(db *store.DB, opts ...Option) *Evaluator {
	e := &Evaluator{db: db, limits: DefaultLimits(), logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limits returns the configured operator limits.
func (e *Evaluator) Limits() Limits { return e.limits }

// Evaluate reads one expression from src starting at *cursor and returns
// the identifier of its value, pinned in sc.
//
// Reading stops at end of input or where a complete expression is
// followed by the start of another operand, so successive calls can read
// several expressions from one line. *cursor is left after the consumed
// text.
//
// On failure every object the call registered that nothing else keeps
// alive is discarded.
func (e *Evaluator) Evaluate(sc *store.Scope, src string, cursor *int) (store.ID, error) {
	sp := sc.Savepoint()
	lex := NewLexer(src, *cursor)
	p := &parser{e: e, sc: sc, lex: lex}

	id, err := p.parse()
	*cursor = lex.Pos()
	if err != nil {
		discarded := sc.Rollback(sp)
		e.logger.Debug("evaluation failed", "expr", src, "error", err, "discarded", discarded)
		return 0, err
	}
	return id, nil
}

// EvaluateAll evaluates src as exactly one expression.
func (e *Evaluator) EvaluateAll(sc *store.Scope, src string) (store.ID, error) {
	sp := sc.Savepoint()
	cursor := 0
	id, err := e.Evaluate(sc, src, &cursor)
	if err != nil {
		return 0, err
	}
	if rest := strings.TrimSpace(src[cursor:]); rest != "" {
		sc.Rollback(sp)
		return 0, syntaxErrorf(cursor, "unexpected trailing input %q", rest)
	}
	return id, nil
}

type frame struct {
	kind     TokenKind // TokenLBrace or TokenLBracket
	pos      int
	opBase   int
	opndBase int
	members  []store.ID
}

// parser holds the stacks for one expression or parenthesized group.
type parser struct {
	e      *Evaluator
	sc     *store.Scope
	lex    *Lexer
	nested bool

	operands  []store.ID
	operators []Token
	frames    []frame
}

func precedence(k TokenKind) int {
	switch k {
	case TokenUnion, TokenDifference, TokenSymmetricDifference:
		return 1
	case TokenIntersect, TokenProduct:
		return 2
	default:
		return 0
	}
}

var binaryOps = map[TokenKind]store.BinaryOp{
	TokenUnion:               store.Union,
	TokenDifference:          store.Difference,
	TokenIntersect:           store.Intersect,
	TokenSymmetricDifference: store.SymmetricDifference,
	TokenProduct:             store.Product,
}

func (p *parser) push(id store.ID) { p.operands = append(p.operands, id) }

func (p *parser) pop() store.ID {
	id := p.operands[len(p.operands)-1]
	p.operands = p.operands[:len(p.operands)-1]
	return id
}

// opBase is the operator stack floor of the innermost open container.
func (p *parser) opBase() int {
	if n := len(p.frames); n > 0 {
		return p.frames[n-1].opBase
	}
	return 0
}

func (p *parser) parse() (store.ID, error) {
	expectOperand := true
	justOpened := false

	for {
		start := p.lex.Pos()
		tok := p.lex.Next()
		opened := false

		switch tok.Kind {
		case TokenError:
			return 0, syntaxErrorf(tok.Pos, "unexpected character %q", tok.Text)

		case TokenInt, TokenIdent, TokenLParen, TokenLBrace, TokenLBracket:
			if !expectOperand {
				if !p.nested && len(p.frames) == 0 {
					// a second expression starts here
					p.lex.Reset(start)
					return p.finish(tok.Pos)
				}
				return 0, syntaxErrorf(tok.Pos, "missing operator before %s", tok.Kind)
			}
			switch tok.Kind {
			case TokenLBrace, TokenLBracket:
				p.frames = append(p.frames, frame{
					kind:     tok.Kind,
					pos:      tok.Pos,
					opBase:   len(p.operators),
					opndBase: len(p.operands),
				})
				opened = true
			default:
				if err := p.operand(tok); err != nil {
					return 0, err
				}
				expectOperand = false
			}

		case TokenRParen:
			if !p.nested {
				return 0, syntaxErrorf(tok.Pos, "unbalanced ')'")
			}
			if len(p.frames) > 0 {
				return 0, syntaxErrorf(p.frames[len(p.frames)-1].pos, "unclosed %s", p.frames[len(p.frames)-1].kind)
			}
			if expectOperand {
				return 0, p.missingOperand(tok)
			}
			return p.finish(tok.Pos)

		case TokenComma:
			if len(p.frames) == 0 {
				return 0, syntaxErrorf(tok.Pos, "',' outside of a set or tuple")
			}
			if expectOperand {
				return 0, syntaxErrorf(tok.Pos, "missing element before ','")
			}
			if err := p.endElement(tok.Pos); err != nil {
				return 0, err
			}
			expectOperand = true

		case TokenRBrace, TokenRBracket:
			if err := p.closeContainer(tok, expectOperand, justOpened); err != nil {
				return 0, err
			}
			expectOperand = false

		case TokenUnion, TokenDifference, TokenIntersect, TokenSymmetricDifference, TokenProduct:
			if expectOperand {
				return 0, syntaxErrorf(tok.Pos, "missing left operand for %s", tok.Kind)
			}
			base := p.opBase()
			for len(p.operators) > base && precedence(p.operators[len(p.operators)-1].Kind) >= precedence(tok.Kind) {
				if err := p.applyTop(); err != nil {
					return 0, err
				}
			}
			p.operators = append(p.operators, tok)
			expectOperand = true

		case TokenPowerset:
			if expectOperand {
				return 0, syntaxErrorf(tok.Pos, "missing operand for '^'")
			}
			if err := p.powerset(); err != nil {
				return 0, err
			}

		case TokenEnd:
			if len(p.frames) > 0 {
				f := p.frames[len(p.frames)-1]
				return 0, syntaxErrorf(f.pos, "unclosed %s", f.kind)
			}
			if expectOperand {
				return 0, p.missingOperand(tok)
			}
			return p.finish(tok.Pos)
		}
		justOpened = opened
	}
}

func (p *parser) missingOperand(tok Token) error {
	if len(p.operands) == 0 && len(p.operators) == 0 {
		return syntaxErrorf(tok.Pos, "empty expression")
	}
	return syntaxErrorf(tok.Pos, "missing right operand before %s", tok.Kind)
}

// operand pushes the value of a scalar, a name or a parenthesized group.
func (p *parser) operand(tok Token) error {
	switch tok.Kind {
	case TokenInt:
		v, err := strconv.ParseUint(tok.Text, 10, 64)
		if err != nil {
			return syntaxErrorf(tok.Pos, "integer %s out of range", tok.Text)
		}
		id, err := p.sc.Register(store.NewScalar(v))
		if err != nil {
			return err
		}
		p.push(id)
	case TokenIdent:
		id, err := p.sc.Resolve(tok.Text)
		if err != nil {
			return err
		}
		p.push(id)
	case TokenLParen:
		group := &parser{e: p.e, sc: p.sc, lex: p.lex, nested: true}
		id, err := group.parse()
		if err != nil {
			return err
		}
		p.push(id)
	}
	return nil
}

// finish reduces every pending operator and returns the single result.
func (p *parser) finish(pos int) (store.ID, error) {
	for len(p.operators) > 0 {
		if err := p.applyTop(); err != nil {
			return 0, err
		}
	}
	if len(p.operands) != 1 {
		return 0, syntaxErrorf(pos, "malformed expression")
	}
	return p.operands[0], nil
}

// endElement reduces the current element of the innermost container and
// moves it into the container's member list.
func (p *parser) endElement(pos int) error {
	f := &p.frames[len(p.frames)-1]
	for len(p.operators) > f.opBase {
		if err := p.applyTop(); err != nil {
			return err
		}
	}
	if len(p.operands) != f.opndBase+1 {
		return syntaxErrorf(pos, "malformed element")
	}
	f.members = append(f.members, p.pop())
	return nil
}

func (p *parser) closeContainer(tok Token, expectOperand, justOpened bool) error {
	want := TokenLBrace
	if tok.Kind == TokenRBracket {
		want = TokenLBracket
	}
	if len(p.frames) == 0 || p.frames[len(p.frames)-1].kind != want {
		return syntaxErrorf(tok.Pos, "unbalanced %s", tok.Kind)
	}
	if expectOperand && !justOpened {
		return syntaxErrorf(tok.Pos, "missing element before %s", tok.Kind)
	}
	if !expectOperand {
		if err := p.endElement(tok.Pos); err != nil {
			return err
		}
	}

	f := p.frames[len(p.frames)-1]
	p.frames = p.frames[:len(p.frames)-1]

	var obj *store.Object
	if f.kind == TokenLBrace {
		obj = store.NewSet(bitset.Of(f.members...))
	} else {
		obj = store.NewTuple(f.members...)
	}
	id, err := p.sc.Register(obj)
	if err != nil {
		return err
	}
	p.push(id)
	return nil
}

func (p *parser) applyTop() error {
	op := p.operators[len(p.operators)-1]
	p.operators = p.operators[:len(p.operators)-1]
	if len(p.operands) < 2 {
		return syntaxErrorf(op.Pos, "missing operand for %s", op.Kind)
	}
	right := p.pop()
	left := p.pop()

	if op.Kind == TokenProduct {
		l, errL := p.e.db.Card(left)
		r, errR := p.e.db.Card(right)
		if errL == nil && errR == nil {
			if err := p.e.limits.checkProduct(l, r); err != nil {
				return err
			}
		}
	}

	id, err := p.sc.Combine(binaryOps[op.Kind], left, right)
	if err != nil {
		return err
	}
	p.push(id)
	return nil
}

func (p *parser) powerset() error {
	a := p.pop()
	if card, err := p.e.db.Card(a); err == nil {
		if err := p.e.limits.checkPowerset(card); err != nil {
			return err
		}
	}
	id, err := p.sc.Powerset(a)
	if err != nil {
		return err
	}
	p.push(id)
	return nil
}
