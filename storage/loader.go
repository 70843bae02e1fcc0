package storage

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
)

// catalogFile is the on-disk seed format:
//
//	{"books": [{"id": 1, "title": "...", ...}], "users": [{"id": 1, ...}]}
type catalogFile struct {
	Books []bookRecord `json:"books"`
	Users []userRecord `json:"users"`
}

type bookRecord struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Category        string `json:"category"`
	Copies          int    `json:"copies"`
	AvailableCopies int    `json:"availableCopies"`
}

type userRecord struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoadStats reports how many records a load added and skipped.
type LoadStats struct {
	Books, Users               int
	SkippedBooks, SkippedUsers int
}

// LoadFile reads a catalog file from path into c.
func LoadFile(c Catalog, path string) (LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadStats{}, errors.Wrap(err, "open catalog file")
	}
	defer f.Close()

	stats, err := Load(c, f)
	if err != nil {
		return stats, errors.Wrapf(err, "load %s", path)
	}
	return stats, nil
}

// Load decodes a catalog document from r and adds its records to c.
// Records without a positive ID, books without a title and users without a
// name are skipped. Books that fail validation or users that collide with
// an existing ID or email are skipped as well.
func Load(c Catalog, r io.Reader) (LoadStats, error) {
	var doc catalogFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return LoadStats{}, errors.Wrap(err, "decode catalog")
	}

	var stats LoadStats
	for _, rec := range doc.Books {
		if rec.ID <= 0 || rec.Title == "" {
			stats.SkippedBooks++
			continue
		}
		_, err := c.AddBook(Book{
			ID:        rec.ID,
			Title:     rec.Title,
			Author:    rec.Author,
			ISBN:      rec.ISBN,
			Category:  rec.Category,
			Copies:    rec.Copies,
			Available: rec.AvailableCopies,
		})
		if err != nil {
			if !isRecordError(err) {
				return stats, errors.Wrapf(err, "book %d", rec.ID)
			}
			stats.SkippedBooks++
			continue
		}
		stats.Books++
	}

	for _, rec := range doc.Users {
		if rec.ID <= 0 || rec.Name == "" {
			stats.SkippedUsers++
			continue
		}
		_, err := c.AddUser(User{ID: rec.ID, Name: rec.Name, Email: rec.Email, Role: rec.Role})
		if err != nil {
			if !isRecordError(err) {
				return stats, errors.Wrapf(err, "user %d", rec.ID)
			}
			stats.SkippedUsers++
			continue
		}
		stats.Users++
	}
	return stats, nil
}

func isRecordError(err error) bool {
	var invalid *InvalidRecordError
	var dup *DuplicateKeyError
	return errors.As(err, &invalid) || errors.As(err, &dup)
}
