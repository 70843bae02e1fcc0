package storage

import "github.com/cockroachdb/errors"

var sampleBooks = []Book{
	{ID: 101, Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "9780743273565", Category: "Fiction", Copies: 3, Available: 3},
	{ID: 102, Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "9780061120084", Category: "Fiction", Copies: 2, Available: 2},
	{ID: 103, Title: "1984", Author: "George Orwell", ISBN: "9780451524935", Category: "Dystopian", Copies: 4, Available: 4},
	{ID: 104, Title: "Pride and Prejudice", Author: "Jane Austen", ISBN: "9780141439518", Category: "Romance", Copies: 2, Available: 2},
	{ID: 105, Title: "The Catcher in the Rye", Author: "J.D. Salinger", ISBN: "9780316769488", Category: "Fiction", Copies: 1, Available: 1},
	{ID: 106, Title: "Animal Farm", Author: "George Orwell", ISBN: "9780451526342", Category: "Political Fiction", Copies: 2, Available: 2},
	{ID: 107, Title: "Lord of the Flies", Author: "William Golding", ISBN: "9780399501487", Category: "Adventure", Copies: 1, Available: 1},
	{ID: 108, Title: "Brave New World", Author: "Aldous Huxley", ISBN: "9780060850524", Category: "Dystopian", Copies: 2, Available: 2},
	{ID: 109, Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780547928227", Category: "Fantasy", Copies: 3, Available: 3},
	{ID: 110, Title: "Fahrenheit 451", Author: "Ray Bradbury", ISBN: "9781451673319", Category: "Science Fiction", Copies: 0, Available: 0},
}

var sampleUsers = []User{
	{ID: 1001, Name: "Alice Johnson", Email: "alice@library.com", Role: "librarian"},
	{ID: 1002, Name: "Bob Smith", Email: "bob@library.com", Role: "member"},
	{ID: 1003, Name: "Carol Davis", Email: "carol@library.com", Role: "member"},
}

var sampleLoans = [][2]int64{
	{1002, 101},
	{1002, 103},
	{1003, 109},
}

// Seed installs the sample catalog: ten books, three users and three
// loans.
func Seed(c Catalog) error {
	for _, b := range sampleBooks {
		if _, err := c.AddBook(b); err != nil {
			return errors.Wrapf(err, "seed book %d", b.ID)
		}
	}
	for _, u := range sampleUsers {
		if _, err := c.AddUser(u); err != nil {
			return errors.Wrapf(err, "seed user %d", u.ID)
		}
	}
	for _, l := range sampleLoans {
		if _, err := c.Borrow(l[0], l[1]); err != nil {
			return errors.Wrapf(err, "seed loan %d/%d", l[0], l[1])
		}
	}
	return nil
}
