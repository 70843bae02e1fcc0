package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"shelfdb/config"
	"shelfdb/executor"
	"shelfdb/server"
	"shelfdb/storage"
)

const (
	numBooks = 20
	numUsers = 20
)

func main() {
	fmt.Println("shelfdb concurrency test")
	fmt.Println("========================")

	port, shutdown := startServer()
	defer shutdown()

	fmt.Printf("Starting server on port %d...\n\n", port)

	passed, failed := 0, 0
	for _, sc := range []struct {
		name string
		fn   func(int) bool
	}{
		{"Setup", scenarioSetup},
		{"Concurrent reads", scenarioConcurrentReads},
		{"Concurrent borrow/return", scenarioBorrowReturn},
		{"Duplicate borrow race", scenarioDuplicateBorrow},
		{"Lookup agreement", scenarioLookupAgreement},
	} {
		if sc.fn(port) {
			passed++
		} else {
			failed++
		}
	}

	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func startServer() (port int, shutdown func()) {
	cfg := &config.Config{
		Port:     0, // OS-assigned
		User:     "admin",
		Password: "test",
		LogLevel: "info",
	}

	srv := server.New(cfg, executor.New(storage.New(nil)), nil)
	if err := srv.Listen(); err != nil {
		fatalf("listen: %v", err)
	}
	go func() {
		if err := srv.Serve(); err != nil {
			fatalf("server: %v", err)
		}
	}()
	port = srv.Addr().(*net.TCPAddr).Port

	shutdown = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return port, shutdown
}

func connect(port int) *pgx.Conn {
	connStr := fmt.Sprintf("host=127.0.0.1 port=%d user=admin password=test sslmode=disable", port)
	cfg, err := pgx.ParseConfig(connStr)
	if err != nil {
		fatalf("parse config: %v", err)
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	conn, err := pgx.ConnectConfig(context.Background(), cfg)
	if err != nil {
		fatalf("connect: %v", err)
	}
	return conn
}

func bookID(i int) int64 { return int64(100 + i) }
func userID(i int) int64 { return int64(500 + i) }

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func count(conn *pgx.Conn, cmd string) (int64, error) {
	var n int64
	err := conn.QueryRow(context.Background(), cmd).Scan(&n)
	return n, err
}

func scenarioSetup(port int) bool {
	start := time.Now()
	conn := connect(port)
	defer conn.Close(context.Background())

	for i := 0; i < numBooks; i++ {
		_, err := conn.Exec(context.Background(), fmt.Sprintf(
			"ADD BOOK id=%d, title='Book %02d', author='Author %d', category='Cat %d', copies=5",
			bookID(i), i, i%4, i%3))
		if err != nil {
			return fail("Setup", "ADD BOOK %d: %v", i, err)
		}
	}
	for i := 0; i < numUsers; i++ {
		_, err := conn.Exec(context.Background(), fmt.Sprintf(
			"ADD USER id=%d, name='User %d', email='user%d@shelf.test'", userID(i), i, i))
		if err != nil {
			return fail("Setup", "ADD USER %d: %v", i, err)
		}
	}

	books, err := count(conn, "COUNT BOOKS")
	if err != nil {
		return fail("Setup", "COUNT BOOKS: %v", err)
	}
	users, err := count(conn, "COUNT USERS")
	if err != nil {
		return fail("Setup", "COUNT USERS: %v", err)
	}
	if books != numBooks || users != numUsers {
		return fail("Setup", "expected %d books and %d users, got %d and %d", numBooks, numUsers, books, users)
	}

	return pass("Setup", fmt.Sprintf("added %d books, %d users", numBooks, numUsers), time.Since(start))
}

func scenarioConcurrentReads(port int) bool {
	start := time.Now()
	const goroutines = 10
	const queriesPerGoroutine = 50

	var wg sync.WaitGroup
	var errCount atomic.Int64

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := connect(port)
			defer conn.Close(context.Background())

			for q := 0; q < queriesPerGoroutine; q++ {
				cmd := "LIST BOOKS"
				want := numBooks
				if q%2 == 1 {
					cmd = "SEARCH BOOKS BY TITLE 'book'"
				}
				rows, err := conn.Query(context.Background(), cmd)
				if err != nil {
					errCount.Add(1)
					continue
				}
				n := 0
				for rows.Next() {
					n++
				}
				rows.Close()
				if rows.Err() != nil || n != want {
					errCount.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	errs := errCount.Load()
	total := goroutines * queriesPerGoroutine
	if errs > 0 {
		return fail("Concurrent reads", "%d errors out of %d queries", errs, total)
	}
	return pass("Concurrent reads",
		fmt.Sprintf("%d goroutines × %d queries = %d total, 0 errors", goroutines, queriesPerGoroutine, total),
		time.Since(start))
}

// scenarioBorrowReturn has every user cycle through the catalog, borrowing
// and returning books while others do the same. Each successful borrow is
// counted per book; the server's circulation totals must match exactly.
func scenarioBorrowReturn(port int) bool {
	start := time.Now()
	const rounds = numBooks // each user touches every book once

	var wg sync.WaitGroup
	var errCount atomic.Int64
	var borrows [numBooks]atomic.Int64

	for u := 0; u < numUsers; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			conn := connect(port)
			defer conn.Close(context.Background())

			for r := 0; r < rounds; r++ {
				b := (u + r) % numBooks
				_, err := conn.Exec(context.Background(), fmt.Sprintf("BORROW %d %d", userID(u), bookID(b)))
				if err != nil {
					errCount.Add(1)
					continue
				}
				borrows[b].Add(1)
				// Return every other loan so some stay outstanding.
				if r%2 == 0 {
					continue
				}
				if _, err := conn.Exec(context.Background(), fmt.Sprintf("RETURN %d %d", userID(u), bookID(b))); err != nil {
					errCount.Add(1)
				}
			}
		}(u)
	}
	wg.Wait()

	if errs := errCount.Load(); errs > 0 {
		return fail("Concurrent borrow/return", "%d errors", errs)
	}

	conn := connect(port)
	defer conn.Close(context.Background())

	rows, err := conn.Query(context.Background(), fmt.Sprintf("TOP BOOKS %d", numBooks))
	if err != nil {
		return fail("Concurrent borrow/return", "TOP BOOKS: %v", err)
	}
	var total int64
	for rows.Next() {
		var id, circulation int64
		var title string
		if err := rows.Scan(&id, &title, &circulation); err != nil {
			rows.Close()
			return fail("Concurrent borrow/return", "scan: %v", err)
		}
		if want := borrows[id-bookID(0)].Load(); circulation != want {
			rows.Close()
			return fail("Concurrent borrow/return", "book %d circulation %d, expected %d", id, circulation, want)
		}
		total += circulation
	}
	rows.Close()
	if rows.Err() != nil {
		return fail("Concurrent borrow/return", "TOP BOOKS: %v", rows.Err())
	}

	var metric string
	var outstanding int64
	dash, err := conn.Query(context.Background(), "SHOW dashboard")
	if err != nil {
		return fail("Concurrent borrow/return", "SHOW dashboard: %v", err)
	}
	for dash.Next() {
		var v int64
		if err := dash.Scan(&metric, &v); err == nil && metric == "borrowed_copies" {
			outstanding = v
		}
	}
	dash.Close()
	if want := int64(numUsers * rounds / 2); outstanding != want {
		return fail("Concurrent borrow/return", "%d outstanding loans, expected %d", outstanding, want)
	}

	return pass("Concurrent borrow/return",
		fmt.Sprintf("%d users × %d rounds, circulation total %d, %d outstanding", numUsers, rounds, total, outstanding),
		time.Since(start))
}

// scenarioDuplicateBorrow races many connections on the same loan. Exactly
// one borrow may succeed; the rest must fail with a unique violation.
func scenarioDuplicateBorrow(port int) bool {
	start := time.Now()
	const goroutines = 16

	conn := connect(port)
	defer conn.Close(context.Background())
	if _, err := conn.Exec(context.Background(), "ADD USER id=9000, name='Racer', email='racer@shelf.test'"); err != nil {
		return fail("Duplicate borrow race", "ADD USER: %v", err)
	}

	var wg sync.WaitGroup
	var ok, dup, other atomic.Int64
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := connect(port)
			defer c.Close(context.Background())
			_, err := c.Exec(context.Background(), fmt.Sprintf("BORROW 9000 %d", bookID(0)))
			switch {
			case err == nil:
				ok.Add(1)
			case sqlState(err) == "23505":
				dup.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || dup.Load() != goroutines-1 || other.Load() != 0 {
		return fail("Duplicate borrow race", "ok=%d duplicate=%d other=%d", ok.Load(), dup.Load(), other.Load())
	}
	return pass("Duplicate borrow race",
		fmt.Sprintf("%d concurrent attempts, 1 succeeded", goroutines),
		time.Since(start))
}

// scenarioLookupAgreement checks that the ID and email lookups return the
// same borrowed list for every user.
func scenarioLookupAgreement(port int) bool {
	start := time.Now()
	conn := connect(port)
	defer conn.Close(context.Background())

	for u := 0; u < numUsers; u++ {
		var byID, byEmail string
		var id int64
		var name, email, role string
		err := conn.QueryRow(context.Background(), fmt.Sprintf("FIND USER %d", userID(u))).
			Scan(&id, &name, &email, &role, &byID)
		if err != nil {
			return fail("Lookup agreement", "FIND USER %d: %v", userID(u), err)
		}
		err = conn.QueryRow(context.Background(), fmt.Sprintf("FIND USER EMAIL '%s'", email)).
			Scan(&id, &name, &email, &role, &byEmail)
		if err != nil {
			return fail("Lookup agreement", "FIND USER EMAIL %s: %v", email, err)
		}
		if byID != byEmail {
			return fail("Lookup agreement", "user %d: borrowed %q by id, %q by email", userID(u), byID, byEmail)
		}
	}
	return pass("Lookup agreement", fmt.Sprintf("%d users consistent", numUsers), time.Since(start))
}

func pass(name, detail string, d time.Duration) bool {
	fmt.Printf("[PASS] %s: %s (%dms)\n", name, detail, d.Milliseconds())
	return true
}

func fail(name, format string, args ...any) bool {
	fmt.Printf("[FAIL] %s: %s\n", name, fmt.Sprintf(format, args...))
	return false
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(2)
}
