package syntax

// Kind is the type of a syntax node.
type Kind int

const (
	Error Kind = iota

	// Markup mode
	Markup
	Text
	Space
	Escape
	LineComment
	BlockComment
	Raw
	Equation

	// Math mode
	Math

	// Code mode: literals and atoms
	Ident
	None
	Auto
	Bool
	Int
	Float
	Numeric
	Str
	Star

	// Code mode: compound expressions
	Code
	CodeBlock
	ContentBlock
	Parenthesized
	Array
	Dict
	Named
	Unary
	Binary
	FieldAccess
	FuncCall
	Args
	Params
	Closure

	// Code mode: statements
	LetBinding
	SetRule
	ShowRule
	ModuleImport
	ImportItems
	RenamedImportItem
	ModuleInclude
	Conditional
	ForLoop
	WhileLoop
	Contextual
	FuncReturn
	LoopBreak
	LoopContinue
)

var kindNames = map[Kind]string{
	Error:             "error",
	Markup:            "markup",
	Text:              "text",
	Space:             "space",
	Escape:            "escape",
	LineComment:       "line comment",
	BlockComment:      "block comment",
	Raw:               "raw",
	Equation:          "equation",
	Math:              "math",
	Ident:             "identifier",
	None:              "none",
	Auto:              "auto",
	Bool:              "boolean",
	Int:               "integer",
	Float:             "float",
	Numeric:           "numeric",
	Str:               "string",
	Star:              "star",
	Code:              "code",
	CodeBlock:         "code block",
	ContentBlock:      "content block",
	Parenthesized:     "parenthesized",
	Array:             "array",
	Dict:              "dictionary",
	Named:             "named pair",
	Unary:             "unary expression",
	Binary:            "binary expression",
	FieldAccess:       "field access",
	FuncCall:          "function call",
	Args:              "call arguments",
	Params:            "closure parameters",
	Closure:           "closure",
	LetBinding:        "let binding",
	SetRule:           "set rule",
	ShowRule:          "show rule",
	ModuleImport:      "module import",
	ImportItems:       "import items",
	RenamedImportItem: "renamed import item",
	ModuleInclude:     "module include",
	Conditional:       "conditional",
	ForLoop:           "for loop",
	WhileLoop:         "while loop",
	Contextual:        "context expression",
	FuncReturn:        "return expression",
	LoopBreak:         "break",
	LoopContinue:      "continue",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Role classifies a node for traversals that only care whether it links
// another file, is the node being extracted, or neither.
type Role int

const (
	RoleOther Role = iota
	RoleImport
	RoleInclude
	RoleTarget
)

func (r Role) String() string {
	switch r {
	case RoleImport:
		return "import"
	case RoleInclude:
		return "include"
	case RoleTarget:
		return "target"
	default:
		return "other"
	}
}

// ParseTargetKind maps a configuration name to an extractable node kind.
func ParseTargetKind(name string) (Kind, bool) {
	switch name {
	case "equation", "equations":
		return Equation, true
	case "raw":
		return Raw, true
	}
	return Error, false
}
