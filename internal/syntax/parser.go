package syntax

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parse parses a Typst file in markup mode. It never fails: malformed input
// yields Error nodes in the returned tree.
func Parse(text string) *Node {
	p := &parser{src: text}
	root := p.markup(false)
	root.Start, root.End = 0, len(text)
	root.text = text
	return root
}

// ParseCode parses text as a sequence of code statements, as if it were
// the inside of a code block.
func ParseCode(text string) *Node {
	p := &parser{src: text}
	return p.code(0, false)
}

// ParseMath parses text as the inside of an equation.
func ParseMath(text string) *Node {
	p := &parser{src: text}
	return p.math(0, false)
}

type parser struct {
	src string
	pos int

	// newlines end the current expression (code blocks and statements
	// embedded in markup); inside delimiters they are plain whitespace.
	nlStops bool
}

// keywords that start a statement in code mode.
var statementKeywords = map[string]bool{
	"let": true, "set": true, "show": true, "import": true, "include": true,
	"if": true, "for": true, "while": true, "context": true,
	"return": true, "break": true, "continue": true,
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(offset int) byte {
	if p.pos+offset >= len(p.src) {
		return 0
	}
	return p.src[p.pos+offset]
}

func (p *parser) at(s string) bool { return strings.HasPrefix(p.src[p.pos:], s) }

func (p *parser) advanceRune() {
	_, size := utf8.DecodeRuneInString(p.src[p.pos:])
	if size == 0 {
		size = 1
	}
	p.pos += size
}

func (p *parser) node(kind Kind, start, end int, children ...*Node) *Node {
	return &Node{Kind: kind, Start: start, End: end, Children: children, text: p.src[start:end]}
}

func (p *parser) errorNode(start, end int, msg string) *Node {
	n := p.node(Error, start, end)
	n.Value = msg
	return n
}

// atWord reports whether the keyword w starts at the current position and
// is not a prefix of a longer identifier.
func (p *parser) atWord(w string) bool {
	if !p.at(w) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos+len(w):])
	return p.pos+len(w) == len(p.src) || !isIdentContinue(r)
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentContinue(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (p *parser) atIdentStart() bool {
	if p.eof() {
		return false
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return isIdentStart(r)
}

func (p *parser) scanIdent() string {
	start := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !isIdentContinue(r) {
			break
		}
		p.pos += size
	}
	// A trailing hyphen belongs to the surrounding expression.
	for p.pos > start+1 && p.src[p.pos-1] == '-' {
		p.pos--
	}
	return p.src[start:p.pos]
}

// skipTrivia skips whitespace and comments. Newlines are skipped only when
// they do not terminate the current expression.
func (p *parser) skipTrivia() {
	for !p.eof() {
		switch c := p.peek(); {
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '\n':
			if p.nlStops {
				return
			}
			p.pos++
		case p.at("//"):
			p.lineComment()
		case p.at("/*"):
			p.blockComment()
		default:
			return
		}
	}
}

func (p *parser) withNewlines(stops bool, fn func()) {
	saved := p.nlStops
	p.nlStops = stops
	fn()
	p.nlStops = saved
}

func (p *parser) lineComment() *Node {
	start := p.pos
	for !p.eof() && p.peek() != '\n' {
		p.pos++
	}
	return p.node(LineComment, start, p.pos)
}

func (p *parser) blockComment() *Node {
	start := p.pos
	p.pos += 2
	depth := 1
	for !p.eof() && depth > 0 {
		switch {
		case p.at("/*"):
			depth++
			p.pos += 2
		case p.at("*/"):
			depth--
			p.pos += 2
		default:
			p.advanceRune()
		}
	}
	if depth > 0 {
		return p.errorNode(start, p.pos, "unclosed block comment")
	}
	return p.node(BlockComment, start, p.pos)
}

// ---- markup ----

func (p *parser) markup(inBlock bool) *Node {
	start := p.pos
	var children []*Node
	depth := 0
	textStart := -1
	flush := func() {
		if textStart >= 0 {
			children = append(children, p.node(Text, textStart, p.pos))
			textStart = -1
		}
	}
	text := func() {
		if textStart < 0 {
			textStart = p.pos
		}
		p.advanceRune()
	}

	for !p.eof() {
		c := p.peek()
		switch {
		case c == ']' && inBlock && depth == 0:
			flush()
			return p.node(Markup, start, p.pos, children...)
		case c == '[':
			depth++
			text()
		case c == ']':
			if depth > 0 {
				depth--
			}
			text()
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			flush()
			s := p.pos
			for !p.eof() && strings.IndexByte(" \t\r\n", p.peek()) >= 0 {
				p.pos++
			}
			children = append(children, p.node(Space, s, p.pos))
		case c == '\\' && p.pos+1 < len(p.src):
			flush()
			children = append(children, p.escape())
		case p.at("//") && !(p.pos > 0 && p.src[p.pos-1] == ':'):
			flush()
			children = append(children, p.lineComment())
		case p.at("/*"):
			flush()
			children = append(children, p.blockComment())
		case c == '`':
			flush()
			children = append(children, p.raw())
		case c == '$':
			flush()
			children = append(children, p.equation())
		case c == '#' && p.embeddable():
			flush()
			p.pos++
			children = append(children, p.embeddedExpr())
		default:
			text()
		}
	}
	flush()
	return p.node(Markup, start, p.pos, children...)
}

func (p *parser) escape() *Node {
	start := p.pos
	p.pos++
	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	p.pos += size
	if r == 'u' && p.peek() == '{' {
		if end := strings.IndexByte(p.src[p.pos:], '}'); end > 0 {
			hex := p.src[p.pos+1 : p.pos+end]
			p.pos += end + 1
			if code, err := strconv.ParseUint(hex, 16, 32); err == nil && utf8.ValidRune(rune(code)) {
				n := p.node(Escape, start, p.pos)
				n.Value = string(rune(code))
				return n
			}
			return p.errorNode(start, p.pos, "invalid unicode escape")
		}
	}
	n := p.node(Escape, start, p.pos)
	n.Value = string(r)
	return n
}

func (p *parser) raw() *Node {
	start := p.pos
	ticks := 0
	for p.peekAt(ticks) == '`' {
		ticks++
	}
	p.pos += ticks
	if ticks == 2 {
		return p.node(Raw, start, p.pos)
	}
	fence := strings.Repeat("`", ticks)
	end := strings.Index(p.src[p.pos:], fence)
	if end < 0 {
		p.pos = len(p.src)
		return p.errorNode(start, p.pos, "unclosed raw text")
	}
	inner := p.src[p.pos : p.pos+end]
	p.pos += end + ticks
	n := p.node(Raw, start, p.pos)
	if ticks >= 3 {
		// The first word of a fenced block names its language.
		if nl := strings.IndexAny(inner, " \n"); nl >= 0 && !strings.ContainsAny(inner[:nl], "`") {
			inner = inner[nl+1:]
		} else if nl < 0 {
			inner = ""
		}
		inner = strings.TrimSuffix(inner, "\n")
	}
	n.Value = inner
	return n
}

func (p *parser) equation() *Node {
	start := p.pos
	p.pos++
	body := p.math(p.pos, true)
	if p.peek() != '$' {
		return p.errorNode(start, p.pos, "unclosed equation")
	}
	p.pos++
	return p.node(Equation, start, p.pos, body)
}

// math scans math content up to the closing dollar sign. Only embedded code
// and string literals become children; the rest is kept as source text.
func (p *parser) math(start int, delimited bool) *Node {
	var children []*Node
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '$' && delimited:
			return p.node(Math, start, p.pos, children...)
		case c == '\\' && p.pos+1 < len(p.src):
			p.escape()
		case c == '"':
			children = append(children, p.str())
		case p.at("//"):
			p.lineComment()
		case p.at("/*"):
			p.blockComment()
		case c == '#' && p.embeddable():
			p.pos++
			children = append(children, p.embeddedExpr())
		default:
			p.advanceRune()
		}
	}
	return p.node(Math, start, p.pos, children...)
}

// embeddable reports whether the '#' at the current position starts code.
func (p *parser) embeddable() bool {
	r, _ := utf8.DecodeRuneInString(p.src[p.pos+1:])
	return isIdentStart(r) || r == '(' || r == '[' || r == '{' || r == '"'
}

// embeddedExpr parses the expression after '#' in markup or math. Atoms end
// at the first character that cannot continue them; statements run until
// the end of the line or a semicolon.
func (p *parser) embeddedExpr() *Node {
	var n *Node
	p.withNewlines(true, func() {
		start := p.pos
		if p.atIdentStart() {
			save := p.pos
			word := p.scanIdent()
			p.pos = save
			if statementKeywords[word] {
				n = p.statement(word)
				if p.peek() == ';' {
					p.pos++
				}
				return
			}
		}
		n = p.postfix(p.primary(), start)
	})
	return n
}

// ---- code ----

// code parses statements until the closing brace (if delimited) or the end
// of input.
func (p *parser) code(start int, delimited bool) *Node {
	var children []*Node
	p.withNewlines(true, func() {
		for {
			p.skipSeparators()
			if p.eof() || (delimited && p.peek() == '}') {
				return
			}
			before := p.pos
			children = append(children, p.expr())
			p.skipTrivia()
			if p.eof() || p.peek() == '\n' || p.peek() == ';' || (delimited && p.peek() == '}') {
				continue
			}
			// Recover at the next statement boundary.
			s := p.pos
			for !p.eof() && p.peek() != '\n' && p.peek() != ';' && !(delimited && p.peek() == '}') {
				p.advanceRune()
			}
			if p.pos == before {
				p.advanceRune()
			}
			children = append(children, p.errorNode(s, p.pos, "expected end of statement"))
		}
	})
	return p.node(Code, start, p.pos, children...)
}

func (p *parser) skipSeparators() {
	for !p.eof() {
		p.skipTrivia()
		if c := p.peek(); c == '\n' || c == ';' {
			p.pos++
			continue
		}
		return
	}
}

func (p *parser) expr() *Node {
	return p.binary(0)
}

var binaryOps = []struct {
	op   string
	prec int
	word bool
}{
	{"==", 3, false}, {"!=", 3, false}, {"<=", 3, false}, {">=", 3, false},
	{"<", 3, false}, {">", 3, false},
	{"+", 4, false}, {"-", 4, false}, {"*", 5, false}, {"/", 5, false},
	{"or", 1, true}, {"and", 2, true}, {"in", 3, true},
}

func (p *parser) binaryOp() (string, int) {
	for _, o := range binaryOps {
		if o.word {
			if p.atWord(o.op) {
				return o.op, o.prec
			}
			continue
		}
		if p.at(o.op) && !p.at("=>") && !(o.op == "/" && (p.at("//") || p.at("/*"))) {
			return o.op, o.prec
		}
	}
	return "", 0
}

func (p *parser) binary(minPrec int) *Node {
	left := p.unary()
	for {
		save := p.pos
		p.skipTrivia()
		op, prec := p.binaryOp()
		if op == "" || prec < minPrec {
			p.pos = save
			return left
		}
		p.pos += len(op)
		p.skipTrivia()
		right := p.binary(prec + 1)
		n := p.node(Binary, left.Start, right.End, left, right)
		n.Value = op
		left = n
	}
}

func (p *parser) unary() *Node {
	start := p.pos
	var op string
	switch {
	case p.peek() == '-' || p.peek() == '+':
		op = p.src[p.pos : p.pos+1]
	case p.atWord("not"):
		op = "not"
	}
	if op == "" {
		return p.postfix(p.primary(), start)
	}
	p.pos += len(op)
	p.skipTrivia()
	operand := p.unary()
	n := p.node(Unary, start, operand.End, operand)
	n.Value = op
	return n
}

// postfix applies field accesses, calls and trailing content blocks. They
// must directly follow the expression.
func (p *parser) postfix(n *Node, start int) *Node {
	for !p.eof() {
		switch c := p.peek(); {
		case c == '.' && p.pos+1 < len(p.src):
			r, _ := utf8.DecodeRuneInString(p.src[p.pos+1:])
			if !isIdentStart(r) {
				return n
			}
			p.pos++
			fs := p.pos
			name := p.scanIdent()
			field := p.node(Ident, fs, p.pos)
			field.Value = name
			n = p.node(FieldAccess, start, p.pos, n, field)
		case c == '(':
			args := p.args()
			n = p.node(FuncCall, start, p.pos, n, args)
		case c == '[':
			block := p.contentBlock()
			if n.Kind == FuncCall && n.Child(1).Kind == Args && n.End == block.Start {
				args := n.Child(1)
				args.Children = append(args.Children, block)
				args.End = block.End
				args.text = p.src[args.Start:args.End]
				n = p.node(FuncCall, start, p.pos, n.Child(0), args)
			} else {
				args := p.node(Args, block.Start, block.End, block)
				n = p.node(FuncCall, start, p.pos, n, args)
			}
		default:
			return n
		}
	}
	return n
}

func (p *parser) primary() *Node {
	start := p.pos
	if p.eof() {
		return p.errorNode(start, start, "expected expression")
	}
	c := p.peek()
	switch {
	case p.atIdentStart():
		save := p.pos
		word := p.scanIdent()
		switch word {
		case "none":
			return p.node(None, start, p.pos)
		case "auto":
			return p.node(Auto, start, p.pos)
		case "true", "false":
			n := p.node(Bool, start, p.pos)
			n.Value = word
			return n
		}
		if statementKeywords[word] {
			p.pos = save
			return p.statement(word)
		}
		ident := p.node(Ident, start, p.pos)
		ident.Value = word
		if p.arrowFollows() {
			params := p.node(Params, start, p.pos, ident)
			return p.closureBody(start, params)
		}
		return ident
	case c >= '0' && c <= '9' || (c == '.' && p.peekAt(1) >= '0' && p.peekAt(1) <= '9'):
		return p.number()
	case c == '"':
		return p.str()
	case c == '(':
		return p.parenthesized()
	case c == '[':
		return p.contentBlock()
	case c == '{':
		return p.codeBlock()
	case c == '$':
		return p.equation()
	}
	p.advanceRune()
	return p.errorNode(start, p.pos, "unexpected character "+strconv.Quote(p.src[start:p.pos]))
}

func (p *parser) arrowFollows() bool {
	save := p.pos
	p.skipTrivia()
	ok := p.at("=>")
	p.pos = save
	return ok
}

func (p *parser) closureBody(start int, params *Node) *Node {
	p.skipTrivia()
	p.pos += len("=>")
	p.skipTrivia()
	body := p.expr()
	return p.node(Closure, start, body.End, params, body)
}

func (p *parser) number() *Node {
	start := p.pos
	kind := Int
	for !p.eof() && (p.peek() >= '0' && p.peek() <= '9') {
		p.pos++
	}
	if p.peek() == '.' && p.peekAt(1) >= '0' && p.peekAt(1) <= '9' {
		kind = Float
		p.pos++
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
	}
	if (p.peek() == 'e' || p.peek() == 'E') && p.peekAt(1) >= '0' && p.peekAt(1) <= '9' {
		kind = Float
		p.pos++
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
	}
	// Units and percentages.
	if p.peek() == '%' {
		p.pos++
		kind = Numeric
	} else if p.atIdentStart() {
		p.scanIdent()
		kind = Numeric
	}
	n := p.node(kind, start, p.pos)
	n.Value = n.text
	return n
}

func (p *parser) str() *Node {
	start := p.pos
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		switch c {
		case '"':
			p.pos++
			n := p.node(Str, start, p.pos)
			n.Value = b.String()
			return n
		case '\\':
			p.pos++
			switch e := p.peek(); e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\':
				b.WriteByte(e)
			case 'u':
				if p.peekAt(1) == '{' {
					if end := strings.IndexByte(p.src[p.pos:], '}'); end > 0 {
						if code, err := strconv.ParseUint(p.src[p.pos+2:p.pos+end], 16, 32); err == nil {
							b.WriteRune(rune(code))
						}
						p.pos += end
						break
					}
				}
				b.WriteByte('u')
			default:
				b.WriteByte('\\')
				continue
			}
			p.pos++
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
	return p.errorNode(start, p.pos, "unclosed string")
}

func (p *parser) contentBlock() *Node {
	start := p.pos
	p.pos++
	body := p.markup(true)
	if p.peek() != ']' {
		return p.errorNode(start, p.pos, "unclosed content block")
	}
	p.pos++
	return p.node(ContentBlock, start, p.pos, body)
}

func (p *parser) codeBlock() *Node {
	start := p.pos
	p.pos++
	body := p.code(p.pos, true)
	if p.peek() != '}' {
		return p.errorNode(start, p.pos, "unclosed code block")
	}
	p.pos++
	return p.node(CodeBlock, start, p.pos, body)
}

// items parses a comma-separated list up to the closing parenthesis, which
// must be the current character's counterpart. Named pairs become Named
// nodes.
func (p *parser) items() (items []*Node, trailingComma bool, closed bool) {
	p.pos++ // (
	p.withNewlines(false, func() {
		for {
			p.skipTrivia()
			if p.eof() {
				return
			}
			if p.peek() == ')' {
				p.pos++
				closed = true
				return
			}
			if p.peek() == ':' && p.peekAt(1) == ')' {
				// Empty dictionary.
				p.pos += 2
				closed = true
				items = append(items, p.node(Named, p.pos-2, p.pos-2))
				return
			}
			if p.at("..") {
				p.pos += 2
			}
			items = append(items, p.item())
			p.skipTrivia()
			trailingComma = false
			switch p.peek() {
			case ',':
				p.pos++
				trailingComma = true
			case ')':
			default:
				s := p.pos
				for !p.eof() && p.peek() != ',' && p.peek() != ')' {
					p.advanceRune()
				}
				items = append(items, p.errorNode(s, p.pos, "expected comma"))
			}
		}
	})
	return items, trailingComma, closed
}

func (p *parser) item() *Node {
	start := p.pos
	if p.atIdentStart() || p.peek() == '"' {
		save := p.pos
		var key *Node
		if p.peek() == '"' {
			key = p.str()
		} else {
			name := p.scanIdent()
			key = p.node(Ident, start, p.pos)
			key.Value = name
		}
		p.skipTrivia()
		if p.peek() == ':' {
			p.pos++
			p.skipTrivia()
			value := p.expr()
			return p.node(Named, start, value.End, key, value)
		}
		p.pos = save
	}
	return p.expr()
}

func (p *parser) args() *Node {
	start := p.pos
	items, _, closed := p.items()
	if !closed {
		return p.errorNode(start, p.pos, "unclosed argument list")
	}
	return p.node(Args, start, p.pos, items...)
}

func (p *parser) parenthesized() *Node {
	start := p.pos
	items, trailing, closed := p.items()
	if !closed {
		return p.errorNode(start, p.pos, "unclosed parenthesis")
	}
	if p.arrowFollows() {
		params := p.node(Params, start, p.pos, items...)
		return p.closureBody(start, params)
	}
	if len(items) == 1 && items[0].Kind == Named && items[0].Start == items[0].End {
		return p.node(Dict, start, p.pos)
	}
	if len(items) == 1 && !trailing && items[0].Kind != Named {
		return p.node(Parenthesized, start, p.pos, items[0])
	}
	for _, it := range items {
		if it.Kind == Named {
			return p.node(Dict, start, p.pos, items...)
		}
	}
	return p.node(Array, start, p.pos, items...)
}

// block parses the body of a conditional or loop.
func (p *parser) block() *Node {
	p.skipTrivia()
	switch p.peek() {
	case '[':
		return p.contentBlock()
	case '{':
		return p.codeBlock()
	}
	return p.errorNode(p.pos, p.pos, "expected block")
}

// ---- statements ----

func (p *parser) keyword(w string) {
	p.pos += len(w)
	p.skipTrivia()
}

func (p *parser) statement(word string) *Node {
	start := p.pos
	switch word {
	case "let":
		return p.letBinding(start)
	case "set":
		p.keyword(word)
		ts := p.pos
		target := p.postfix(p.primary(), ts)
		children := []*Node{target}
		save := p.pos
		p.skipTrivia()
		if p.atWord("if") {
			p.keyword("if")
			children = append(children, p.expr())
		} else {
			p.pos = save
		}
		return p.node(SetRule, start, p.pos, children...)
	case "show":
		p.keyword(word)
		var children []*Node
		if p.peek() != ':' {
			children = append(children, p.expr())
			p.skipTrivia()
		}
		if p.peek() != ':' {
			return p.errorNode(start, p.pos, "expected colon")
		}
		p.pos++
		p.skipTrivia()
		children = append(children, p.expr())
		return p.node(ShowRule, start, p.pos, children...)
	case "import":
		return p.moduleImport(start)
	case "include":
		p.keyword(word)
		source := p.expr()
		return p.node(ModuleInclude, start, source.End, source)
	case "if":
		return p.conditional(start)
	case "for":
		p.keyword(word)
		var pattern *Node
		if p.peek() == '(' {
			pattern = p.parenthesized()
		} else {
			pattern = p.primary()
		}
		p.skipTrivia()
		if !p.atWord("in") {
			return p.errorNode(start, p.pos, "expected keyword in")
		}
		p.keyword("in")
		iterable := p.expr()
		body := p.block()
		return p.node(ForLoop, start, body.End, pattern, iterable, body)
	case "while":
		p.keyword(word)
		cond := p.expr()
		body := p.block()
		return p.node(WhileLoop, start, body.End, cond, body)
	case "context":
		p.keyword(word)
		body := p.expr()
		return p.node(Contextual, start, body.End, body)
	case "return":
		p.pos += len(word)
		save := p.pos
		p.skipTrivia()
		if p.eof() || strings.IndexByte("\n;}])", p.peek()) >= 0 {
			p.pos = save
			return p.node(FuncReturn, start, p.pos)
		}
		value := p.expr()
		return p.node(FuncReturn, start, value.End, value)
	case "break":
		p.pos += len(word)
		return p.node(LoopBreak, start, p.pos)
	default: // continue
		p.pos += len(word)
		return p.node(LoopContinue, start, p.pos)
	}
}

func (p *parser) letBinding(start int) *Node {
	p.keyword("let")
	var children []*Node
	switch {
	case p.peek() == '(':
		children = append(children, p.parenthesized())
	case p.atIdentStart():
		s := p.pos
		name := p.scanIdent()
		ident := p.node(Ident, s, p.pos)
		ident.Value = name
		children = append(children, ident)
		if p.peek() == '(' {
			ps := p.pos
			items, _, closed := p.items()
			if !closed {
				return p.errorNode(start, p.pos, "unclosed parameter list")
			}
			children = append(children, p.node(Params, ps, p.pos, items...))
		}
	default:
		return p.errorNode(start, p.pos, "expected pattern")
	}
	save := p.pos
	p.skipTrivia()
	if p.peek() == '=' && p.peekAt(1) != '=' {
		p.pos++
		p.skipTrivia()
		children = append(children, p.expr())
	} else {
		p.pos = save
	}
	last := children[len(children)-1]
	return p.node(LetBinding, start, last.End, children...)
}

func (p *parser) moduleImport(start int) *Node {
	p.keyword("import")
	source := p.expr()
	children := []*Node{source}
	save := p.pos
	p.skipTrivia()
	if p.atWord("as") {
		p.keyword("as")
		s := p.pos
		alias := p.node(Ident, s, s)
		if p.atIdentStart() {
			alias.Value = p.scanIdent()
			alias.End = p.pos
			alias.text = p.src[s:p.pos]
		}
		children = append(children, alias)
		save = p.pos
		p.skipTrivia()
	}
	if p.peek() != ':' {
		p.pos = save
		return p.node(ModuleImport, start, p.pos, children...)
	}
	p.pos++
	p.skipTrivia()
	children = append(children, p.importItems())
	return p.node(ModuleImport, start, p.pos, children...)
}

func (p *parser) importItems() *Node {
	start := p.pos
	if p.peek() == '*' {
		p.pos++
		return p.node(ImportItems, start, p.pos, p.node(Star, start, p.pos))
	}
	parens := p.peek() == '('
	var items []*Node
	parse := func() {
		if parens {
			p.pos++
		}
		for {
			p.skipTrivia()
			if !p.atIdentStart() {
				break
			}
			s := p.pos
			name := p.scanIdent()
			for p.peek() == '.' {
				// Nested submodule item paths: keep the last component.
				p.pos++
				name = p.scanIdent()
			}
			item := p.node(Ident, s, p.pos)
			item.Value = name
			save := p.pos
			p.skipTrivia()
			if p.atWord("as") {
				p.keyword("as")
				as := p.pos
				alias := p.node(Ident, as, as)
				alias.Value = p.scanIdent()
				alias.End = p.pos
				alias.text = p.src[as:p.pos]
				item = p.node(RenamedImportItem, s, p.pos, item, alias)
				save = p.pos
				p.skipTrivia()
			}
			items = append(items, item)
			if p.peek() != ',' {
				p.pos = save
				break
			}
			p.pos++
		}
		if parens {
			p.skipTrivia()
			if p.peek() == ')' {
				p.pos++
			}
		}
	}
	if parens {
		p.withNewlines(false, parse)
	} else {
		parse()
	}
	if len(items) == 0 {
		return p.errorNode(start, p.pos, "expected import items")
	}
	return p.node(ImportItems, start, p.pos, items...)
}

func (p *parser) conditional(start int) *Node {
	p.keyword("if")
	cond := p.expr()
	then := p.block()
	children := []*Node{cond, then}
	save := p.pos
	p.skipTrivia()
	if p.atWord("else") {
		p.keyword("else")
		if p.atWord("if") {
			children = append(children, p.conditional(p.pos))
		} else {
			children = append(children, p.block())
		}
	} else {
		p.pos = save
	}
	last := children[len(children)-1]
	return p.node(Conditional, start, last.End, children...)
}
