package storage

import (
	"fmt"
	"slices"
)

// Book is a catalog entry. Books are ordered by case-folded title.
type Book struct {
	ID        int64
	Title     string
	Author    string
	ISBN      string
	Category  string
	Copies    int
	Available int
}

// User is a library patron. BorrowedBooks lists the IDs of the books the
// user currently holds, in the order they were borrowed.
type User struct {
	ID            int64
	Name          string
	Email         string
	Role          string
	BorrowedBooks []int64
}

// clone returns a deep copy so callers never share the borrowed-list
// backing array with the store.
func (u User) clone() User {
	u.BorrowedBooks = slices.Clone(u.BorrowedBooks)
	return u
}

// HasBorrowed reports whether bookID is in the user's borrowed list.
func (u User) HasBorrowed(bookID int64) bool {
	return slices.Contains(u.BorrowedBooks, bookID)
}

// Loan is the outcome of a successful borrow or return: the user as
// written back to the store, the book involved and the book's circulation
// count as of the same transaction.
type Loan struct {
	User        User
	Book        Book
	Circulation int64
}

// Tally pairs a record ID with a count, as returned by the top-N queries.
type Tally struct {
	ID    int64
	Count int64
}

// Overview summarizes the catalog.
type Overview struct {
	TotalBooks       int
	AvailableBooks   int // books with at least one available copy
	UnavailableBooks int
	TotalUsers       int
	BorrowedCopies   int // sum of all users' borrowed lists
}

// CategoryStat is the per-category breakdown of the catalog.
type CategoryStat struct {
	Category    string
	Total       int
	Available   int
	Unavailable int
	BorrowRate  float64 // percentage of titles with no copy available
}

// IndexMemory is the estimated footprint of one store index.
type IndexMemory struct {
	Name    string
	Kind    string // "btree" or "hash"
	Entries int
	Bytes   int64
}

// RecordKind identifies which kind of record an error refers to.
type RecordKind uint8

const (
	KindBook RecordKind = iota
	KindUser
)

func (k RecordKind) String() string {
	switch k {
	case KindBook:
		return "book"
	case KindUser:
		return "user"
	default:
		return "record"
	}
}

// -------------------------------------------------------------------------
// Typed errors, mapped to SQLSTATE codes by the executor
// -------------------------------------------------------------------------

// NotFoundError is returned when a transaction references a book or user
// that does not exist.
type NotFoundError struct {
	Kind RecordKind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// AlreadyBorrowedError is returned when a user tries to borrow a book they
// already hold.
type AlreadyBorrowedError struct{ UserID, BookID int64 }

func (e *AlreadyBorrowedError) Error() string {
	return fmt.Sprintf("user %d has already borrowed book %d", e.UserID, e.BookID)
}

// NotBorrowedError is returned when a user returns a book they do not hold.
type NotBorrowedError struct{ UserID, BookID int64 }

func (e *NotBorrowedError) Error() string {
	return fmt.Sprintf("user %d has not borrowed book %d", e.UserID, e.BookID)
}

// UnavailableError is returned when a book has no copies available.
type UnavailableError struct {
	BookID int64
	Title  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("no copies available for %q (book %d)", e.Title, e.BookID)
}

// DuplicateKeyError is returned when adding a user whose ID or email is
// already taken.
type DuplicateKeyError struct {
	Kind  RecordKind
	Field string
	Value any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s %s %v", e.Kind, e.Field, e.Value)
}

// InvalidRecordError is returned when a record fails validation on add.
type InvalidRecordError struct {
	Kind   RecordKind
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
}

// Catalog is the store interface. The executor depends on this contract,
// never on the concrete implementation.
type Catalog interface {
	AddBook(b Book) (Book, error)
	AddUser(u User) (User, error)
	SearchByTitle(text string) []Book
	SearchByAuthor(text string) []Book
	SearchByCategory(category string) []Book
	FindBook(id int64) (Book, bool)
	FindUser(id int64) (User, bool)
	FindUserByEmail(email string) (User, bool)
	Borrow(userID, bookID int64) (Loan, error)
	Return(userID, bookID int64) (Loan, error)
	MostBorrowedBooks(n int) []Tally
	MostActiveUsers(n int) []Tally
	Circulation(bookID int64) int64
	Books() []Book
	Users() []User
	BookCount() int
	UserCount() int
	Dashboard() Overview
	Categories() []CategoryStat
	MemoryUsage() []IndexMemory
}
