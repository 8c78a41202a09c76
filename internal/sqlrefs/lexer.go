package sqlrefs

import (
	"fmt"
	"strings"
	"unicode"
)

// lexer tokenizes SQL input, skipping whitespace and comments.
type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	err     error
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// next returns the next token. After an error it returns EOF; check l.err.
func (l *lexer) next() token {
	l.skipWhitespaceAndComments()
	if l.err != nil {
		return token{typ: tokenEOF, offset: l.pos}
	}

	start := l.pos
	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return token{typ: tokenEOF, offset: start}
	case l.ch == '.':
		l.readChar()
		return token{typ: tokenDot, literal: ".", offset: start}
	case l.ch == ',':
		l.readChar()
		return token{typ: tokenComma, literal: ",", offset: start}
	case l.ch == '(':
		l.readChar()
		return token{typ: tokenLParen, literal: "(", offset: start}
	case l.ch == ')':
		l.readChar()
		return token{typ: tokenRParen, literal: ")", offset: start}
	case l.ch == '\'':
		lit := l.readDelimited('\'', "string literal")
		return token{typ: tokenString, literal: lit, offset: start}
	case l.ch == '"':
		lit := l.readDelimited('"', "quoted identifier")
		return token{typ: tokenQuotedIdent, literal: lit, offset: start}
	case l.ch == '`':
		lit := l.readDelimited('`', "quoted identifier")
		return token{typ: tokenQuotedIdent, literal: lit, offset: start}
	case isLetter(l.ch) || l.ch == '_':
		lit := l.readIdentifier()
		lower := strings.ToLower(lit)
		if _, ok := keywords[lower]; ok {
			return token{typ: tokenKeyword, literal: lower, offset: start}
		}
		return token{typ: tokenIdent, literal: lit, offset: start}
	case isDigit(l.ch):
		return token{typ: tokenNumber, literal: l.readNumber(), offset: start}
	default:
		l.readChar()
		return token{typ: tokenOther, literal: l.input[start:l.pos], offset: start}
	}
}

// skipWhitespaceAndComments skips whitespace, -- line comments and /* */ block comments.
func (l *lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			start := l.pos
			l.readChar() // skip '/'
			l.readChar() // skip '*'
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 && l.pos >= len(l.input) {
					l.err = fmt.Errorf("unterminated block comment at offset %d", start)
					return
				}
				l.readChar()
			}
			l.readChar() // skip '*'
			l.readChar() // skip '/'
			continue
		}

		break
	}
}

// readDelimited reads a literal enclosed in quote, where a doubled quote is an escape.
func (l *lexer) readDelimited(quote byte, what string) string {
	start := l.pos
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		if l.ch == 0 && l.pos >= len(l.input) {
			l.err = fmt.Errorf("unterminated %s at offset %d", what, start)
			return result.String()
		}
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String()
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
}

func (l *lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) || l.ch == '.' || l.ch == 'e' || l.ch == 'E' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// tokenize returns all tokens of input, ending with EOF.
func tokenize(input string) ([]token, error) {
	l := newLexer(input)
	var tokens []token
	for {
		tok := l.next()
		if l.err != nil {
			return nil, l.err
		}
		tokens = append(tokens, tok)
		if tok.typ == tokenEOF {
			return tokens, nil
		}
	}
}
