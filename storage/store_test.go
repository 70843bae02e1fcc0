package storage

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(zaptest.NewLogger(t))
}

func mustAddBook(t *testing.T, s *Store, b Book) Book {
	t.Helper()
	got, err := s.AddBook(b)
	require.NoError(t, err)
	return got
}

func mustAddUser(t *testing.T, s *Store, u User) User {
	t.Helper()
	got, err := s.AddUser(u)
	require.NoError(t, err)
	return got
}

func titles(books []Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

// -------------------------------------------------------------------------
// Borrow / return
// -------------------------------------------------------------------------

func TestBorrowReturnLifecycle(t *testing.T) {
	s := newTestStore(t)
	mustAddBook(t, s, Book{ID: 1, Title: "1984", Copies: 2, Available: 2})
	mustAddBook(t, s, Book{ID: 2, Title: "Animal Farm", Copies: 1, Available: 1})
	mustAddUser(t, s, User{ID: 101, Email: "a@x.com"})

	loan, err := s.Borrow(101, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, loan.User.BorrowedBooks)
	assert.Equal(t, "1984", loan.Book.Title)
	assert.Equal(t, int64(1), loan.Circulation)
	assert.Equal(t, []Tally{{ID: 1, Count: 1}}, s.MostBorrowedBooks(1))

	_, err = s.Borrow(101, 1)
	var already *AlreadyBorrowedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, int64(101), already.UserID)
	assert.Equal(t, int64(1), already.BookID)

	loan, err = s.Return(101, 1)
	require.NoError(t, err)
	assert.Empty(t, loan.User.BorrowedBooks)
	assert.Equal(t, int64(1), loan.Circulation)

	_, err = s.Return(101, 1)
	var notBorrowed *NotBorrowedError
	require.ErrorAs(t, err, &notBorrowed)

	// Circulation is cumulative.
	assert.Equal(t, int64(1), s.Circulation(1))
}

func TestBorrowUnknownRecords(t *testing.T) {
	s := newTestStore(t)
	mustAddBook(t, s, Book{ID: 1, Title: "1984", Copies: 1, Available: 1})
	mustAddUser(t, s, User{ID: 7, Email: "u@x.com"})

	var nf *NotFoundError
	_, err := s.Borrow(99, 1)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindUser, nf.Kind)

	_, err = s.Borrow(7, 99)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindBook, nf.Kind)
	assert.Equal(t, int64(99), nf.ID)

	_, err = s.Return(99, 1)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindUser, nf.Kind)

	u, ok := s.FindUser(7)
	require.True(t, ok)
	assert.Empty(t, u.BorrowedBooks)
	assert.Equal(t, int64(0), s.Circulation(99))
}

func TestBorrowUnavailable(t *testing.T) {
	s := newTestStore(t)
	mustAddBook(t, s, Book{ID: 5, Title: "Fahrenheit 451", Copies: 0, Available: 0})
	mustAddUser(t, s, User{ID: 1, Email: "u@x.com"})

	_, err := s.Borrow(1, 5)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "Fahrenheit 451", unavailable.Title)
	assert.Empty(t, s.MostBorrowedBooks(10))
}

func TestAvailabilityNotDecremented(t *testing.T) {
	s := newTestStore(t)
	mustAddBook(t, s, Book{ID: 1, Title: "Solo", Copies: 1, Available: 1})
	for i := int64(1); i <= 3; i++ {
		mustAddUser(t, s, User{ID: i, Email: fmt.Sprintf("u%d@x.com", i)})
		_, err := s.Borrow(i, 1)
		require.NoError(t, err)
	}
	b, ok := s.FindBook(1)
	require.True(t, ok)
	assert.Equal(t, 1, b.Available)
	assert.Equal(t, int64(3), s.Circulation(1))
}

func TestReturnChecksLoanBeforeBook(t *testing.T) {
	s := newTestStore(t)
	mustAddUser(t, s, User{ID: 1, Email: "u@x.com"})

	_, err := s.Return(1, 404)
	var notBorrowed *NotBorrowedError
	assert.ErrorAs(t, err, &notBorrowed)
}

func TestBorrowOrderPreserved(t *testing.T) {
	s := newTestStore(t)
	for _, b := range []Book{
		{ID: 1, Title: "A", Copies: 1, Available: 1},
		{ID: 2, Title: "B", Copies: 1, Available: 1},
		{ID: 3, Title: "C", Copies: 1, Available: 1},
	} {
		mustAddBook(t, s, b)
	}
	mustAddUser(t, s, User{ID: 1, Email: "u@x.com"})

	for _, id := range []int64{3, 1, 2} {
		_, err := s.Borrow(1, id)
		require.NoError(t, err)
	}
	_, err := s.Return(1, 1)
	require.NoError(t, err)

	u, _ := s.FindUser(1)
	assert.Equal(t, []int64{3, 2}, u.BorrowedBooks)
}

// -------------------------------------------------------------------------
// Users
// -------------------------------------------------------------------------

func TestUserLookupsAgree(t *testing.T) {
	s := newTestStore(t)
	mustAddBook(t, s, Book{ID: 1, Title: "1984", Copies: 1, Available: 1})
	mustAddUser(t, s, User{ID: 42, Name: "Ada", Email: "ada@x.com", Role: "member"})

	_, err := s.Borrow(42, 1)
	require.NoError(t, err)

	byID, ok := s.FindUser(42)
	require.True(t, ok)
	byEmail, ok := s.FindUserByEmail("ada@x.com")
	require.True(t, ok)
	assert.Equal(t, byID, byEmail)
	assert.Equal(t, []int64{1}, byEmail.BorrowedBooks)
}

func TestAddUserDuplicates(t *testing.T) {
	s := newTestStore(t)
	mustAddUser(t, s, User{ID: 1, Email: "a@x.com"})

	var dup *DuplicateKeyError
	_, err := s.AddUser(User{ID: 1, Email: "b@x.com"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "id", dup.Field)

	_, err = s.AddUser(User{ID: 2, Email: "a@x.com"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)

	assert.Equal(t, 1, s.UserCount())
	_, ok := s.FindUser(2)
	assert.False(t, ok)
}

func TestAddUserAssignsID(t *testing.T) {
	s := newTestStore(t)
	a := mustAddUser(t, s, User{Email: "a@x.com"})
	b := mustAddUser(t, s, User{Email: "b@x.com"})
	assert.Equal(t, firstUserID, a.ID)
	assert.Equal(t, firstUserID+1, b.ID)

	c := mustAddUser(t, s, User{ID: 9000, Email: "c@x.com"})
	d := mustAddUser(t, s, User{Email: "d@x.com"})
	assert.Equal(t, int64(9000), c.ID)
	assert.Equal(t, int64(9001), d.ID)
}

func TestAddUserDropsBorrowedList(t *testing.T) {
	s := newTestStore(t)
	u := mustAddUser(t, s, User{ID: 1, Email: "a@x.com", BorrowedBooks: []int64{1, 2}})
	assert.Empty(t, u.BorrowedBooks)
	assert.Equal(t, []Tally{{ID: 1, Count: 0}}, s.MostActiveUsers(5))
}

func TestAddUserValidation(t *testing.T) {
	s := newTestStore(t)
	var invalid *InvalidRecordError

	_, err := s.AddUser(User{ID: 1})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, KindUser, invalid.Kind)

	_, err = s.AddUser(User{ID: -1, Email: "a@x.com"})
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, s.UserCount())
}

// -------------------------------------------------------------------------
// Books
// -------------------------------------------------------------------------

func TestAddBookValidation(t *testing.T) {
	tests := []struct {
		name string
		book Book
	}{
		{"empty title", Book{ID: 1, Copies: 1, Available: 1}},
		{"negative id", Book{ID: -1, Title: "X", Copies: 1, Available: 1}},
		{"negative copies", Book{ID: 1, Title: "X", Copies: -1}},
		{"available above copies", Book{ID: 1, Title: "X", Copies: 1, Available: 2}},
		{"negative available", Book{ID: 1, Title: "X", Copies: 1, Available: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			_, err := s.AddBook(tt.book)
			var invalid *InvalidRecordError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, KindBook, invalid.Kind)
			assert.Zero(t, s.BookCount())
		})
	}
}

func TestAddBookAssignsID(t *testing.T) {
	s := newTestStore(t)
	a := mustAddBook(t, s, Book{Title: "A"})
	assert.Equal(t, firstBookID, a.ID)

	mustAddBook(t, s, Book{ID: 2000, Title: "B"})
	c := mustAddBook(t, s, Book{Title: "C"})
	assert.Equal(t, int64(2001), c.ID)
}

func TestIDSequencesNeverWrap(t *testing.T) {
	s := newTestStore(t)
	var invalid *InvalidRecordError

	_, err := s.AddBook(Book{ID: math.MaxInt64, Title: "Max"})
	require.ErrorAs(t, err, &invalid)
	_, err = s.AddUser(User{ID: math.MaxInt64, Email: "max@x.com"})
	require.ErrorAs(t, err, &invalid)

	// The largest accepted IDs leave both sequences at their end.
	mustAddBook(t, s, Book{ID: math.MaxInt64 - 1, Title: "Last"})
	mustAddUser(t, s, User{ID: math.MaxInt64 - 1, Email: "last@x.com"})

	_, err = s.AddBook(Book{Title: "Next"})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, KindBook, invalid.Kind)
	_, err = s.AddUser(User{Email: "next@x.com"})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, KindUser, invalid.Kind)

	// Explicit IDs still work, and nothing negative was ever stored.
	mustAddBook(t, s, Book{ID: 5, Title: "Five"})
	mustAddUser(t, s, User{ID: 5, Email: "five@x.com"})
	for _, b := range s.Books() {
		assert.Positive(t, b.ID)
	}
	for _, u := range s.Users() {
		assert.Positive(t, u.ID)
	}
	assert.Equal(t, 2, s.BookCount())
	assert.Equal(t, 2, s.UserCount())
}

func TestBooksInTitleOrder(t *testing.T) {
	s := newTestStore(t)
	for i, title := range []string{"zebra", "Apple", "mango", "banana", "Cherry", "apple pie"} {
		mustAddBook(t, s, Book{ID: int64(i + 1), Title: title})
	}
	assert.Equal(t,
		[]string{"Apple", "apple pie", "banana", "Cherry", "mango", "zebra"},
		titles(s.Books()))
	assert.Equal(t, 6, s.BookCount())
}

func TestDuplicateBookIDsRetained(t *testing.T) {
	s := newTestStore(t)
	mustAddBook(t, s, Book{ID: 1, Title: "Beta"})
	mustAddBook(t, s, Book{ID: 1, Title: "Alpha"})
	assert.Equal(t, 2, s.BookCount())

	// The first match in title order wins.
	b, ok := s.FindBook(1)
	require.True(t, ok)
	assert.Equal(t, "Alpha", b.Title)
}

func TestFindBookRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := Book{ID: 7, Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", Category: "Science Fiction", Copies: 3, Available: 2}
	mustAddBook(t, s, want)

	got, ok := s.FindBook(7)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = s.FindBook(8)
	assert.False(t, ok)
}

// -------------------------------------------------------------------------
// Search
// -------------------------------------------------------------------------

func TestSearchByTitleIgnoresCase(t *testing.T) {
	s := newTestStore(t)
	mustAddBook(t, s, Book{ID: 1, Title: "The Hobbit"})
	mustAddBook(t, s, Book{ID: 2, Title: "Brave New World"})

	for _, q := range []string{"the", "THE", "ThE"} {
		got := s.SearchByTitle(q)
		assert.Equal(t, []string{"The Hobbit"}, titles(got), "query %q", q)
	}
}

func TestSearchByAuthorAndCategory(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Seed(s))

	assert.Equal(t, []string{"1984", "Animal Farm"}, titles(s.SearchByAuthor("orwell")))
	assert.Equal(t, []string{"1984", "Brave New World"}, titles(s.SearchByCategory("DYSTOPIAN")))
	assert.Empty(t, s.SearchByCategory("Dysto"))
	assert.Empty(t, s.SearchByTitle("no such title"))
}

func TestSearchEmptyMatchesAll(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Seed(s))
	assert.Len(t, s.SearchByTitle(""), 10)
}

// -------------------------------------------------------------------------
// Statistics
// -------------------------------------------------------------------------

func TestTopNClamps(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Seed(s))

	assert.Empty(t, s.MostBorrowedBooks(0))
	assert.Empty(t, s.MostBorrowedBooks(-3))
	assert.Len(t, s.MostBorrowedBooks(100), 3)
	assert.Len(t, s.MostActiveUsers(100), 3)
}

func TestMostActiveUsers(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Seed(s))

	top := s.MostActiveUsers(2)
	require.Len(t, top, 2)
	assert.Equal(t, Tally{ID: 1002, Count: 2}, top[0])
	assert.Equal(t, Tally{ID: 1003, Count: 1}, top[1])
}

func TestMostBorrowedBooksOrdering(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Seed(s))

	_, err := s.Borrow(1001, 109)
	require.NoError(t, err)
	_, err = s.Return(1003, 109)
	require.NoError(t, err)
	_, err = s.Borrow(1003, 109)
	require.NoError(t, err)

	top := s.MostBorrowedBooks(1)
	assert.Equal(t, []Tally{{ID: 109, Count: 3}}, top)
}

func TestDashboard(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Seed(s))

	assert.Equal(t, Overview{
		TotalBooks:       10,
		AvailableBooks:   9,
		UnavailableBooks: 1,
		TotalUsers:       3,
		BorrowedCopies:   3,
	}, s.Dashboard())
}

func TestCategories(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Seed(s))

	stats := s.Categories()
	names := make([]string, len(stats))
	for i, st := range stats {
		names[i] = st.Category
	}
	assert.Equal(t, []string{
		"Adventure", "Dystopian", "Fantasy", "Fiction",
		"Political Fiction", "Romance", "Science Fiction",
	}, names)

	var scifi CategoryStat
	for _, st := range stats {
		if st.Category == "Science Fiction" {
			scifi = st
		}
	}
	assert.Equal(t, CategoryStat{Category: "Science Fiction", Total: 1, Unavailable: 1, BorrowRate: 100}, scifi)
	assert.Equal(t, CategoryStat{Category: "Fiction", Total: 3, Available: 3}, stats[3])
}

func TestEmptyStoreStats(t *testing.T) {
	s := New(nil)
	assert.Empty(t, s.MostBorrowedBooks(5))
	assert.Empty(t, s.MostActiveUsers(5))
	assert.Empty(t, s.Categories())
	assert.Equal(t, Overview{}, s.Dashboard())
}

func TestMemoryUsageGrows(t *testing.T) {
	s := newTestStore(t)
	before := s.MemoryUsage()
	require.Len(t, before, 4)
	for _, m := range before {
		assert.Zero(t, m.Entries, m.Name)
		assert.Positive(t, m.Bytes, m.Name)
	}

	require.NoError(t, Seed(s))
	after := s.MemoryUsage()
	for i, m := range after {
		assert.Equal(t, before[i].Name, m.Name)
		assert.Greater(t, m.Bytes, before[i].Bytes, m.Name)
	}
	assert.Equal(t, 10, after[0].Entries)
	assert.Equal(t, "btree", after[0].Kind)
}

// -------------------------------------------------------------------------
// Snapshots and concurrency
// -------------------------------------------------------------------------

func TestSnapshotsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Seed(s))

	u, ok := s.FindUser(1002)
	require.True(t, ok)
	u.BorrowedBooks[0] = 999
	u.BorrowedBooks = append(u.BorrowedBooks, 998)

	again, _ := s.FindUser(1002)
	assert.Equal(t, []int64{101, 103}, again.BorrowedBooks)

	all := s.Users()
	for i := range all {
		all[i].BorrowedBooks = nil
	}
	again, _ = s.FindUserByEmail("bob@library.com")
	assert.Equal(t, []int64{101, 103}, again.BorrowedBooks)
}

func TestConcurrentBorrowReturn(t *testing.T) {
	s := New(nil)
	require.NoError(t, Seed(s))

	const workers = 8
	const rounds = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			u, err := s.AddUser(User{Email: fmt.Sprintf("worker%d@x.com", w)})
			if err != nil {
				t.Error(err)
				return
			}
			for i := 0; i < rounds; i++ {
				if _, err := s.Borrow(u.ID, 102); err != nil {
					t.Error(err)
					return
				}
				s.SearchByTitle("mock")
				s.MostBorrowedBooks(3)
				if _, err := s.Return(u.ID, 102); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(workers*rounds), s.Circulation(102))
	assert.Equal(t, 3, s.Dashboard().BorrowedCopies)
}

func TestConcurrentBorrowCirculationPerLoan(t *testing.T) {
	s := New(nil)
	mustAddBook(t, s, Book{ID: 1, Title: "Dune", Copies: 1, Available: 1})
	const users = 32
	for i := 1; i <= users; i++ {
		mustAddUser(t, s, User{ID: int64(i), Email: fmt.Sprintf("u%d@x.com", i)})
	}

	counts := make([]int64, users)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			loan, err := s.Borrow(int64(i+1), 1)
			if assert.NoError(t, err) {
				counts[i] = loan.Circulation
			}
		}()
	}
	wg.Wait()

	// Each borrow sees its own increment, so the counts are exactly 1..users.
	seen := make(map[int64]bool, users)
	for _, c := range counts {
		assert.False(t, seen[c], "count %d reported twice", c)
		seen[c] = true
		assert.True(t, c >= 1 && c <= users, "count %d out of range", c)
	}
	assert.Equal(t, int64(users), s.Circulation(1))
}

func TestErrorsSurviveWrapping(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Borrow(1, 1)
	wrapped := errors.Wrap(err, "exec")

	var nf *NotFoundError
	require.True(t, errors.As(wrapped, &nf))
	assert.Equal(t, "user 1 not found", nf.Error())
}
