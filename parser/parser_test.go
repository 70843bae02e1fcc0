package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Statement
	}{
		{"FIND BOOK 101", &FindStmt{Target: TargetBooks, ID: 101}},
		{"find user 1002;", &FindStmt{Target: TargetUsers, ID: 1002}},
		{"FIND USER EMAIL 'bob@library.com'", &FindStmt{Target: TargetUsers, Email: "bob@library.com", ByEmail: true}},
		{"SEARCH BOOKS BY TITLE 'the'", &SearchStmt{Field: SearchTitle, Text: "the"}},
		{"search books by author 'Orwell'", &SearchStmt{Field: SearchAuthor, Text: "Orwell"}},
		{"SEARCH BOOKS BY CATEGORY 'Fantasy'", &SearchStmt{Field: SearchCategory, Text: "Fantasy"}},
		{"LIST BOOKS", &ListStmt{Target: TargetBooks}},
		{"LIST USERS", &ListStmt{Target: TargetUsers}},
		{"COUNT USERS", &CountStmt{Target: TargetUsers}},
		{"BORROW 1002 101", &BorrowStmt{UserID: 1002, BookID: 101}},
		{"RETURN 1002 101 -- done", &ReturnStmt{UserID: 1002, BookID: 101}},
		{"TOP BOOKS", &TopStmt{Target: TargetBooks}},
		{"TOP USERS 3", &TopStmt{Target: TargetUsers, Limit: 3, HasLimit: true}},
		{"TOP BOOKS -1", &TopStmt{Target: TargetBooks, Limit: -1, HasLimit: true}},
		{"SHOW Dashboard", &ShowStmt{Name: "dashboard"}},
		{"SHOW version", &ShowStmt{Name: "version"}},
		{"SET client_encoding TO 'UTF8'", &SetStmt{}},
		{"SET datestyle = ISO, MDY;", &SetStmt{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAdd(t *testing.T) {
	stmt, err := Parse("ADD BOOK id=7, title='Dune', author='Frank Herbert', copies=3, available=-1")
	require.NoError(t, err)

	add, ok := stmt.(*AddStmt)
	require.True(t, ok, "got %T", stmt)
	assert.Equal(t, TargetBooks, add.Target)

	fields := make(map[string]Value)
	for _, f := range add.Fields {
		fields[f.Field] = f.Value
	}
	assert.Equal(t, map[string]Value{
		"id":        {IsInt: true, Int: 7},
		"title":     {Str: "Dune"},
		"author":    {Str: "Frank Herbert"},
		"copies":    {IsInt: true, Int: 3},
		"available": {IsInt: true, Int: -1},
	}, fields)
	assert.Equal(t, 9, add.Fields[0].Pos)
}

func TestParseAddUserKeywordFields(t *testing.T) {
	stmt, err := Parse("add user EMAIL='a@x.com', name='Ada'")
	require.NoError(t, err)

	add := stmt.(*AddStmt)
	assert.Equal(t, TargetUsers, add.Target)
	require.Len(t, add.Fields, 2)
	assert.Equal(t, "email", add.Fields[0].Field)
	assert.Equal(t, "name", add.Fields[1].Field)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input   string
		wantErr string
	}{
		{"", "unexpected end of input"},
		{"SELECT 1", `unexpected "SELECT"`},
		{"FIND BOOK", "expected INT"},
		{"FIND BOOK 'x'", "expected INT"},
		{"FIND USER EMAIL 5", "expected STRING"},
		{"BORROW 1", "expected INT"},
		{"SEARCH BOOKS TITLE 'x'", "expected BY"},
		{"SEARCH BOOKS BY ISBN 'x'", `unexpected "ISBN"`},
		{"SEARCH BOOKS BY TITLE 'open", "expected STRING"},
		{"FIND BOOK ?", "expected INT"},
		{"? BOOKS", "invalid input"},
		{"LIST LOANS", `unexpected "LOANS"`},
		{"ADD BOOK", "unexpected end of input"},
		{"ADD BOOK title", "expected ="},
		{"ADD BOOK title=", "unexpected end of input"},
		{"COUNT BOOKS extra", `unexpected "extra" after statement`},
		{"FIND BOOK 99999999999999999999", "out of range"},
		{"BORROW 1 2 # 3", "after statement"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
