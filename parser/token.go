package parser

import "strings"

// TokenType identifies the kind of token produced by the lexer.
type TokenType int

const (
	// Special tokens.
	TokenEOF     TokenType = iota
	TokenIllegal           // unrecognized character

	// Literals.
	TokenIdent  // bare word (field name, view name)
	TokenIntLit // integer literal
	TokenStrLit // single-quoted string literal

	// Punctuation.
	TokenEq        // =
	TokenComma     // ,
	TokenSemicolon // ;
	TokenMinus     // -

	keywordStart

	// Keywords.
	TokenAdd
	TokenFind
	TokenSearch
	TokenList
	TokenCount
	TokenBorrow
	TokenReturn
	TokenTop
	TokenShow
	TokenSet
	TokenBook
	TokenBooks
	TokenUser
	TokenUsers
	TokenEmail
	TokenBy
	TokenTitle
	TokenAuthor
	TokenCategory
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIllegal:   "ILLEGAL",
	TokenIdent:     "IDENT",
	TokenIntLit:    "INT",
	TokenStrLit:    "STRING",
	TokenEq:        "=",
	TokenComma:     ",",
	TokenSemicolon: ";",
	TokenMinus:     "-",
	TokenAdd:       "ADD",
	TokenFind:      "FIND",
	TokenSearch:    "SEARCH",
	TokenList:      "LIST",
	TokenCount:     "COUNT",
	TokenBorrow:    "BORROW",
	TokenReturn:    "RETURN",
	TokenTop:       "TOP",
	TokenShow:      "SHOW",
	TokenSet:       "SET",
	TokenBook:      "BOOK",
	TokenBooks:     "BOOKS",
	TokenUser:      "USER",
	TokenUsers:     "USERS",
	TokenEmail:     "EMAIL",
	TokenBy:        "BY",
	TokenTitle:     "TITLE",
	TokenAuthor:    "AUTHOR",
	TokenCategory:  "CATEGORY",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t > keywordStart
}

// Token is a single lexical unit produced by the lexer.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // byte offset in the input
}

var keywords = map[string]TokenType{
	"ADD":      TokenAdd,
	"FIND":     TokenFind,
	"SEARCH":   TokenSearch,
	"LIST":     TokenList,
	"COUNT":    TokenCount,
	"BORROW":   TokenBorrow,
	"RETURN":   TokenReturn,
	"TOP":      TokenTop,
	"SHOW":     TokenShow,
	"SET":      TokenSet,
	"BOOK":     TokenBook,
	"BOOKS":    TokenBooks,
	"USER":     TokenUser,
	"USERS":    TokenUsers,
	"EMAIL":    TokenEmail,
	"BY":       TokenBy,
	"TITLE":    TokenTitle,
	"AUTHOR":   TokenAuthor,
	"CATEGORY": TokenCategory,
}

// LookupKeyword returns the keyword token type for ident, or TokenIdent
// if it is not a keyword.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToUpper(ident)]; ok {
		return tok
	}
	return TokenIdent
}
