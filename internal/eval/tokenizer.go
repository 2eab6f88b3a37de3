package eval

import (
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a token.
type TokenKind uint8

const (
	TokenEnd TokenKind = iota
	TokenError

	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenRBracket // ]
	TokenLParen   // (
	TokenRParen   // )
	TokenComma    // ,

	TokenUnion               // +
	TokenDifference          // -
	TokenIntersect           // *
	TokenSymmetricDifference // ~
	TokenProduct             // @
	TokenPowerset            // ^

	TokenIdent
	TokenInt
)

var kindNames = map[TokenKind]string{
	TokenEnd:                 "end of input",
	TokenError:               "invalid character",
	TokenLBrace:              "'{'",
	TokenRBrace:              "'}'",
	TokenLBracket:            "'['",
	TokenRBracket:            "']'",
	TokenLParen:              "'('",
	TokenRParen:              "')'",
	TokenComma:               "','",
	TokenUnion:               "'+'",
	TokenDifference:          "'-'",
	TokenIntersect:           "'*'",
	TokenSymmetricDifference: "'~'",
	TokenProduct:             "'@'",
	TokenPowerset:            "'^'",
	TokenIdent:               "identifier",
	TokenInt:                 "integer",
}

func (k TokenKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown token"
}

var punctuation = map[rune]TokenKind{
	'{': TokenLBrace,
	'}': TokenRBrace,
	'[': TokenLBracket,
	']': TokenRBracket,
	'(': TokenLParen,
	')': TokenRParen,
	',': TokenComma,
	'+': TokenUnion,
	'-': TokenDifference,
	'*': TokenIntersect,
	'~': TokenSymmetricDifference,
	'@': TokenProduct,
	'^': TokenPowerset,
}

// Token is one lexeme. Pos is the byte offset of its first character.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// Lexer splits expression text into tokens. Its position can be saved and
// restored, so several expressions can be read from one buffer.
type Lexer struct {
	src string
	pos int
}

// NewLexer starts reading src at byte offset pos.
func NewLexer(src string, pos int) *Lexer {
	return &Lexer{src: src, pos: min(max(pos, 0), len(src))}
}

// Pos returns the offset of the next unread byte.
func (l *Lexer) Pos() int { return l.pos }

// Reset moves the read position.
func (l *Lexer) Reset(pos int) { l.pos = pos }

func isIdentStart(r rune) bool { return unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Next returns the next token. At end of input it keeps returning
// TokenEnd.
func (l *Lexer) Next() Token {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	if l.pos >= len(l.src) {
		return Token{Kind: TokenEnd, Pos: l.pos}
	}

	start := l.pos
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	if kind, ok := punctuation[r]; ok {
		l.pos += size
		return Token{Kind: kind, Text: l.src[start:l.pos], Pos: start}
	}

	switch {
	case isDigit(r):
		l.consume(isDigit)
		return Token{Kind: TokenInt, Text: l.src[start:l.pos], Pos: start}
	case isIdentStart(r):
		l.consume(isIdentPart)
		return Token{Kind: TokenIdent, Text: l.src[start:l.pos], Pos: start}
	default:
		l.pos += size
		return Token{Kind: TokenError, Text: l.src[start:l.pos], Pos: start}
	}
}

func (l *Lexer) consume(accept func(rune) bool) {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !accept(r) {
			return
		}
		l.pos += size
	}
}
