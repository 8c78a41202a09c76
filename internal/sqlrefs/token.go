package sqlrefs

// tokenType is the lexical class of a token.
type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenQuotedIdent // "name" or `name`; never a keyword
	tokenKeyword
	tokenNumber
	tokenString
	tokenDot
	tokenComma
	tokenLParen
	tokenRParen
	tokenOther // operators, semicolons, anything not needed for table refs
)

// token is a lexical token. Keywords carry their lower-cased text.
type token struct {
	typ     tokenType
	literal string
	offset  int
}

// keywords that end or structure a FROM clause. Identifiers outside this set
// are treated as names.
var keywords = map[string]struct{}{
	"all": {}, "and": {}, "as": {}, "by": {}, "case": {}, "cross": {}, "else": {},
	"end": {}, "except": {}, "fetch": {}, "from": {}, "full": {}, "group": {},
	"having": {}, "inner": {}, "intersect": {}, "join": {}, "lateral": {},
	"left": {}, "limit": {}, "materialized": {}, "natural": {}, "not": {},
	"offset": {}, "on": {}, "or": {}, "order": {}, "outer": {}, "pivot": {},
	"qualify": {}, "recursive": {}, "returning": {}, "right": {}, "select": {},
	"set": {}, "then": {}, "union": {}, "unpivot": {}, "using": {}, "values": {},
	"when": {}, "where": {}, "window": {}, "with": {},
}

// fromFunctions take a FROM keyword inside their argument list.
var fromFunctions = map[string]struct{}{
	"extract": {}, "substring": {}, "trim": {}, "position": {}, "overlay": {},
}
