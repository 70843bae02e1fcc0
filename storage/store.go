package storage

import (
	"math"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"shelfdb/deepsize"
	"shelfdb/storage/index"
)

const (
	// titleDegree is the minimum degree of the title index.
	titleDegree = 3

	// First IDs handed out when a record is added without one.
	firstBookID int64 = 1000
	firstUserID int64 = 5000

	// maxID is reserved so a sequence can always advance past any stored ID.
	maxID int64 = math.MaxInt64
)

// Store is the in-memory catalog. It owns the title-ordered book index,
// the user table, the email index and the circulation counters, and hands
// out snapshots only.
//
// Users live in exactly one place, the ID table. The email table maps an
// email to a user ID, so a transaction writes the user once and both
// lookups always observe the same record.
//
// Concurrency: a sync.RWMutex provides single-writer / multi-reader
// access. A borrow or return holds the write lock for the whole
// transaction, so no reader sees the user table and the counters out of
// step.
type Store struct {
	mu          sync.RWMutex
	log         *zap.Logger
	books       index.Ordered[Book]
	users       index.Keyed[int64, User]
	emails      index.Keyed[string, int64]
	circulation index.Keyed[int64, int64]
	nextBookID  int64
	nextUserID  int64
}

var _ Catalog = (*Store)(nil)

// New creates an empty store. A nil logger disables logging.
func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		log:         log.Named("store"),
		books:       index.NewBTree(titleDegree, CompareTitles),
		users:       index.NewHashTable[int64, User](index.DefaultCapacity, index.IntHash[int64]),
		emails:      index.NewHashTable[string, int64](index.DefaultCapacity, index.StringHash),
		circulation: index.NewHashTable[int64, int64](index.DefaultCapacity, index.IntHash[int64]),
		nextBookID:  firstBookID,
		nextUserID:  firstUserID,
	}
}

// -------------------------------------------------------------------------
// Records
// -------------------------------------------------------------------------

// AddBook inserts b into the title index. A zero ID is replaced by the next
// value of the book sequence. IDs are not checked for uniqueness.
func (s *Store) AddBook(b Book) (Book, error) {
	switch {
	case b.Title == "":
		return Book{}, &InvalidRecordError{Kind: KindBook, Reason: "title is required"}
	case b.ID < 0:
		return Book{}, &InvalidRecordError{Kind: KindBook, Reason: "id must not be negative"}
	case b.ID == maxID:
		return Book{}, &InvalidRecordError{Kind: KindBook, Reason: "id out of range"}
	case b.Copies < 0:
		return Book{}, &InvalidRecordError{Kind: KindBook, Reason: "copies must not be negative"}
	case b.Available < 0 || b.Available > b.Copies:
		return Book{}, &InvalidRecordError{Kind: KindBook, Reason: "available copies must be between 0 and copies"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == 0 {
		if s.nextBookID == maxID {
			return Book{}, &InvalidRecordError{Kind: KindBook, Reason: "id sequence exhausted"}
		}
		b.ID = s.nextBookID
	}
	if b.ID >= s.nextBookID {
		s.nextBookID = b.ID + 1
	}
	s.books.Insert(b)
	s.log.Debug("book added", zap.Int64("book_id", b.ID), zap.String("title", b.Title))
	return b, nil
}

// AddUser inserts u into the user table and the email index. A zero ID is
// replaced by the next value of the user sequence. Any borrowed list on u
// is discarded: loans are only created by Borrow.
func (s *Store) AddUser(u User) (User, error) {
	if u.Email == "" {
		return User{}, &InvalidRecordError{Kind: KindUser, Reason: "email is required"}
	}
	if u.ID < 0 {
		return User{}, &InvalidRecordError{Kind: KindUser, Reason: "id must not be negative"}
	}
	if u.ID == maxID {
		return User{}, &InvalidRecordError{Kind: KindUser, Reason: "id out of range"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID != 0 && s.users.Has(u.ID) {
		return User{}, &DuplicateKeyError{Kind: KindUser, Field: "id", Value: u.ID}
	}
	if s.emails.Has(u.Email) {
		return User{}, &DuplicateKeyError{Kind: KindUser, Field: "email", Value: u.Email}
	}

	if u.ID == 0 {
		u.ID = s.nextUserID
		for u.ID != maxID && s.users.Has(u.ID) {
			u.ID++
		}
		if u.ID == maxID {
			return User{}, &InvalidRecordError{Kind: KindUser, Reason: "id sequence exhausted"}
		}
	}
	if u.ID >= s.nextUserID {
		s.nextUserID = u.ID + 1
	}
	u.BorrowedBooks = nil

	s.users.Put(u.ID, u)
	s.emails.Put(u.Email, u.ID)
	s.log.Debug("user added", zap.Int64("user_id", u.ID), zap.String("email", u.Email))
	return u.clone(), nil
}

// -------------------------------------------------------------------------
// Lookups
// -------------------------------------------------------------------------

// SearchByTitle returns books whose title contains text, ignoring case.
func (s *Store) SearchByTitle(text string) []Book {
	needle := fold(text)
	return s.collect(func(b Book) bool { return containsFold(b.Title, needle) })
}

// SearchByAuthor returns books whose author contains text, ignoring case.
func (s *Store) SearchByAuthor(text string) []Book {
	needle := fold(text)
	return s.collect(func(b Book) bool { return containsFold(b.Author, needle) })
}

// SearchByCategory returns books whose category equals category, ignoring
// case.
func (s *Store) SearchByCategory(category string) []Book {
	want := fold(category)
	return s.collect(func(b Book) bool { return fold(b.Category) == want })
}

func (s *Store) collect(pred func(Book) bool) []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books.Collect(pred)
}

// FindBook returns the first book, in title order, with the given ID.
func (s *Store) FindBook(id int64) (Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findBook(id)
}

// findBook scans the title index for id. The index is keyed by title, so
// this is a full scan. Callers must hold s.mu.
func (s *Store) findBook(id int64) (Book, bool) {
	matches := s.books.Collect(func(b Book) bool { return b.ID == id })
	if len(matches) == 0 {
		return Book{}, false
	}
	return matches[0], true
}

// FindUser returns a snapshot of the user with the given ID.
func (s *Store) FindUser(id int64) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users.Get(id)
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

// FindUserByEmail returns a snapshot of the user with the given email.
func (s *Store) FindUserByEmail(email string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails.Get(email)
	if !ok {
		return User{}, false
	}
	u, ok := s.users.Get(id)
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

// -------------------------------------------------------------------------
// Transactions
// -------------------------------------------------------------------------

// Borrow records that userID has taken out bookID and bumps the book's
// circulation counter. The book's available-copies field is not changed.
func (s *Store) Borrow(userID, bookID int64) (Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Get(userID)
	if !ok {
		return s.reject("borrow", userID, bookID, &NotFoundError{Kind: KindUser, ID: userID})
	}
	if u.HasBorrowed(bookID) {
		return s.reject("borrow", userID, bookID, &AlreadyBorrowedError{UserID: userID, BookID: bookID})
	}
	b, ok := s.findBook(bookID)
	if !ok {
		return s.reject("borrow", userID, bookID, &NotFoundError{Kind: KindBook, ID: bookID})
	}
	if b.Available <= 0 {
		return s.reject("borrow", userID, bookID, &UnavailableError{BookID: bookID, Title: b.Title})
	}

	u = u.clone()
	u.BorrowedBooks = append(u.BorrowedBooks, bookID)
	s.users.Put(userID, u)

	count, _ := s.circulation.Get(bookID)
	s.circulation.Put(bookID, count+1)

	s.log.Info("book borrowed",
		zap.Int64("user_id", userID),
		zap.Int64("book_id", bookID),
		zap.Int64("circulation", count+1))
	return Loan{User: u.clone(), Book: b, Circulation: count + 1}, nil
}

// Return removes bookID from userID's borrowed list. Circulation counters
// are cumulative and are not decremented.
func (s *Store) Return(userID, bookID int64) (Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Get(userID)
	if !ok {
		return s.reject("return", userID, bookID, &NotFoundError{Kind: KindUser, ID: userID})
	}
	if !u.HasBorrowed(bookID) {
		return s.reject("return", userID, bookID, &NotBorrowedError{UserID: userID, BookID: bookID})
	}
	b, ok := s.findBook(bookID)
	if !ok {
		return s.reject("return", userID, bookID, &NotFoundError{Kind: KindBook, ID: bookID})
	}

	u = u.clone()
	i := slices.Index(u.BorrowedBooks, bookID)
	u.BorrowedBooks = slices.Delete(u.BorrowedBooks, i, i+1)
	s.users.Put(userID, u)

	count, _ := s.circulation.Get(bookID)
	s.log.Info("book returned", zap.Int64("user_id", userID), zap.Int64("book_id", bookID))
	return Loan{User: u.clone(), Book: b, Circulation: count}, nil
}

func (s *Store) reject(op string, userID, bookID int64, err error) (Loan, error) {
	s.log.Info(op+" rejected",
		zap.Int64("user_id", userID),
		zap.Int64("book_id", bookID),
		zap.String("reason", err.Error()))
	return Loan{}, err
}

// -------------------------------------------------------------------------
// Statistics
// -------------------------------------------------------------------------

// MostBorrowedBooks returns up to n (book ID, circulation) pairs, highest
// count first.
func (s *Store) MostBorrowedBooks(n int) []Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tallies := make([]Tally, 0, s.circulation.Len())
	for _, id := range s.circulation.Keys() {
		count, _ := s.circulation.Get(id)
		tallies = append(tallies, Tally{ID: id, Count: count})
	}
	return topN(tallies, n)
}

// MostActiveUsers returns up to n (user ID, books currently held) pairs,
// highest count first.
func (s *Store) MostActiveUsers(n int) []Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := s.users.Values()
	tallies := make([]Tally, 0, len(users))
	for _, u := range users {
		tallies = append(tallies, Tally{ID: u.ID, Count: int64(len(u.BorrowedBooks))})
	}
	return topN(tallies, n)
}

// topN sorts tallies by descending count, keeping the extraction order for
// ties, and truncates to n.
func topN(tallies []Tally, n int) []Tally {
	sort.SliceStable(tallies, func(i, j int) bool {
		return tallies[i].Count > tallies[j].Count
	})
	n = max(0, min(n, len(tallies)))
	return tallies[:n]
}

// Circulation returns how many times bookID has been borrowed.
func (s *Store) Circulation(bookID int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, _ := s.circulation.Get(bookID)
	return count
}

// Books returns every book in title order.
func (s *Store) Books() []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books.Items()
}

// Users returns a snapshot of every user. The order is unspecified.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := s.users.Values()
	for i := range users {
		users[i] = users[i].clone()
	}
	return users
}

// BookCount returns the number of books, duplicates included.
func (s *Store) BookCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books.Len()
}

// UserCount returns the number of users.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.Len()
}

// Dashboard summarizes books, users and outstanding loans.
func (s *Store) Dashboard() Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ov := Overview{
		TotalBooks: s.books.Len(),
		TotalUsers: s.users.Len(),
	}
	s.books.Traverse(func(b Book) {
		if b.Available > 0 {
			ov.AvailableBooks++
		} else {
			ov.UnavailableBooks++
		}
	})
	for _, u := range s.users.Values() {
		ov.BorrowedCopies += len(u.BorrowedBooks)
	}
	return ov
}

// Categories returns per-category counts sorted by category name.
func (s *Store) Categories() []CategoryStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string]*CategoryStat)
	s.books.Traverse(func(b Book) {
		st, ok := byName[b.Category]
		if !ok {
			st = &CategoryStat{Category: b.Category}
			byName[b.Category] = st
		}
		st.Total++
		if b.Available > 0 {
			st.Available++
		} else {
			st.Unavailable++
		}
	})

	stats := make([]CategoryStat, 0, len(byName))
	for _, st := range byName {
		st.BorrowRate = float64(st.Unavailable) * 100 / float64(st.Total)
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Category < stats[j].Category
	})
	return stats
}

// MemoryUsage estimates the memory held by each index, records included.
func (s *Store) MemoryUsage() []IndexMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return []IndexMemory{
		{Name: "books_by_title", Kind: "btree", Entries: s.books.Len(), Bytes: deepsize.Of(s.books)},
		{Name: "users_by_id", Kind: "hash", Entries: s.users.Len(), Bytes: deepsize.Of(s.users)},
		{Name: "users_by_email", Kind: "hash", Entries: s.emails.Len(), Bytes: deepsize.Of(s.emails)},
		{Name: "circulation", Kind: "hash", Entries: s.circulation.Len(), Bytes: deepsize.Of(s.circulation)},
	}
}
