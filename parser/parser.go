package parser

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// parser is the internal recursive-descent parser. Use the exported Parse
// function as the public entry point.
type parser struct {
	lexer *Lexer
	cur   Token
}

// Parse parses a single command from input.
func Parse(input string) (Statement, error) {
	p := &parser{lexer: NewLexer(input)}
	p.next()

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	// Allow an optional trailing semicolon.
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	if p.cur.Type != TokenEOF {
		return nil, errors.Newf("unexpected %q after statement at position %d",
			p.cur.Literal, p.cur.Pos)
	}
	return stmt, nil
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func (p *parser) next() {
	p.cur = p.lexer.NextToken()
}

func (p *parser) expect(t TokenType) (Token, error) {
	tok := p.cur
	if tok.Type != t {
		return tok, errors.Newf("expected %s, got %q at position %d",
			t, tok.Literal, tok.Pos)
	}
	p.next()
	return tok, nil
}

func (p *parser) unexpected() error {
	switch p.cur.Type {
	case TokenEOF:
		return errors.New("unexpected end of input")
	case TokenIllegal:
		return errors.Newf("invalid input %q at position %d", p.cur.Literal, p.cur.Pos)
	}
	return errors.Newf("unexpected %q at position %d", p.cur.Literal, p.cur.Pos)
}

// parseWord accepts an identifier or a keyword and returns its lower-cased
// literal. Field and view names may collide with keywords (title, email).
func (p *parser) parseWord() (string, error) {
	if p.cur.Type != TokenIdent && !p.cur.Type.IsKeyword() {
		return "", p.unexpected()
	}
	w := strings.ToLower(p.cur.Literal)
	p.next()
	return w, nil
}

// parseInt reads an integer literal with an optional leading minus.
func (p *parser) parseInt() (int64, error) {
	neg := false
	if p.cur.Type == TokenMinus {
		neg = true
		p.next()
	}
	tok, err := p.expect(TokenIntLit)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		return 0, errors.Newf("integer %s out of range at position %d", tok.Literal, tok.Pos)
	}
	if neg {
		n = -n
	}
	return n, nil
}

func (p *parser) parseString() (string, error) {
	tok, err := p.expect(TokenStrLit)
	if err != nil {
		return "", err
	}
	return tok.Literal, nil
}

// parseTarget accepts the singular or plural record keyword.
func (p *parser) parseTarget() (Target, error) {
	switch p.cur.Type {
	case TokenBook, TokenBooks:
		p.next()
		return TargetBooks, nil
	case TokenUser, TokenUsers:
		p.next()
		return TargetUsers, nil
	default:
		return 0, p.unexpected()
	}
}

// -------------------------------------------------------------------------
// Statement parsing
// -------------------------------------------------------------------------

func (p *parser) parseStatement() (Statement, error) {
	switch p.cur.Type {
	case TokenAdd:
		return p.parseAdd()
	case TokenFind:
		return p.parseFind()
	case TokenSearch:
		return p.parseSearch()
	case TokenList:
		p.next()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		return &ListStmt{Target: target}, nil
	case TokenCount:
		p.next()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		return &CountStmt{Target: target}, nil
	case TokenBorrow:
		p.next()
		userID, bookID, err := p.parseLoanIDs()
		if err != nil {
			return nil, err
		}
		return &BorrowStmt{UserID: userID, BookID: bookID}, nil
	case TokenReturn:
		p.next()
		userID, bookID, err := p.parseLoanIDs()
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{UserID: userID, BookID: bookID}, nil
	case TokenTop:
		return p.parseTop()
	case TokenShow:
		p.next()
		name, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		return &ShowStmt{Name: name}, nil
	case TokenSet:
		// Session settings are swallowed whole.
		for p.cur.Type != TokenEOF && p.cur.Type != TokenSemicolon {
			p.next()
		}
		return &SetStmt{}, nil
	default:
		return nil, p.unexpected()
	}
}

func (p *parser) parseAdd() (*AddStmt, error) {
	p.next() // skip ADD
	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}

	stmt := &AddStmt{Target: target}
	for {
		pos := p.cur.Pos
		field, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenEq); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		stmt.Fields = append(stmt.Fields, Assignment{Field: field, Value: val, Pos: pos})
		if p.cur.Type != TokenComma {
			break
		}
		p.next() // skip comma
	}
	return stmt, nil
}

func (p *parser) parseValue() (Value, error) {
	switch p.cur.Type {
	case TokenStrLit:
		s := p.cur.Literal
		p.next()
		return Value{Str: s}, nil
	case TokenIntLit, TokenMinus:
		n, err := p.parseInt()
		if err != nil {
			return Value{}, err
		}
		return Value{IsInt: true, Int: n}, nil
	default:
		return Value{}, p.unexpected()
	}
}

func (p *parser) parseFind() (*FindStmt, error) {
	p.next() // skip FIND
	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}

	if target == TargetUsers && p.cur.Type == TokenEmail {
		p.next()
		email, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return &FindStmt{Target: target, Email: email, ByEmail: true}, nil
	}

	id, err := p.parseInt()
	if err != nil {
		return nil, err
	}
	return &FindStmt{Target: target, ID: id}, nil
}

func (p *parser) parseSearch() (*SearchStmt, error) {
	p.next() // skip SEARCH
	if p.cur.Type != TokenBooks && p.cur.Type != TokenBook {
		return nil, p.unexpected()
	}
	p.next()
	if _, err := p.expect(TokenBy); err != nil {
		return nil, err
	}

	var field SearchField
	switch p.cur.Type {
	case TokenTitle:
		field = SearchTitle
	case TokenAuthor:
		field = SearchAuthor
	case TokenCategory:
		field = SearchCategory
	default:
		return nil, p.unexpected()
	}
	p.next()

	text, err := p.parseString()
	if err != nil {
		return nil, err
	}
	return &SearchStmt{Field: field, Text: text}, nil
}

func (p *parser) parseLoanIDs() (userID, bookID int64, err error) {
	if userID, err = p.parseInt(); err != nil {
		return 0, 0, err
	}
	if bookID, err = p.parseInt(); err != nil {
		return 0, 0, err
	}
	return userID, bookID, nil
}

func (p *parser) parseTop() (*TopStmt, error) {
	p.next() // skip TOP
	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}
	stmt := &TopStmt{Target: target}
	if p.cur.Type == TokenIntLit || p.cur.Type == TokenMinus {
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		stmt.Limit = int(max(min(n, 1<<31-1), -1<<31))
		stmt.HasLimit = true
	}
	return stmt, nil
}
