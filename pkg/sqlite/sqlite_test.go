package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rtemka/comments/domain"
)

var tdb *SQLite

func restoreDB(tdb *SQLite) error {
	b, err := os.ReadFile(filepath.Join("testdata", "t.sql"))
	if err != nil {
		return err
	}

	if err := tdb.exec(context.Background(), string(b)); err != nil {
		return err
	}

	return tdb.Migrate(context.Background())
}

func TestMain(m *testing.M) {

	var err error
	tdb, err = New("file:test.db?cache=shared&mode=memory&_fk=on")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := restoreDB(tdb); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func TestSQLite(t *testing.T) {
	if tdb == nil {
		t.Skip("you must open connection to SQLite DB to run this test")
	}
	ctx := context.Background()

	got, err := tdb.Comments(ctx)
	if err != nil {
		t.Fatalf("Comments() = err %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Comments() = %v, want empty non-nil slice", got)
	}

	want := []domain.Comment{testcom, testcom2, testcom3}
	for i := range want {
		err := tdb.Create(ctx, &want[i])
		if err != nil {
			t.Fatalf("Create() = err %v", err)
		}
		if want[i].ID == "" || want[i].Date.IsZero() {
			t.Fatalf("Create() = %v, want id and date assigned", want[i])
		}
	}

	got, err = tdb.Comments(ctx)
	if err != nil {
		t.Fatalf("Comments() = err %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("Comments() = %d records, want %d records", len(got), len(want))
	}

	for i := range want {
		if !equal(got[i], want[i]) {
			t.Errorf("Comments() = %v, want %v", got[i], want[i])
		}
	}

	c, err := tdb.Comment(ctx, want[1].ID)
	if err != nil {
		t.Fatalf("Comment() = err %v", err)
	}
	if !equal(c, want[1]) {
		t.Errorf("Comment() = %v, want %v", c, want[1])
	}
	c, err = tdb.Comment(ctx, strings.ToUpper(want[1].ID))
	if err != nil || !equal(c, want[1]) {
		t.Errorf("Comment() = %v, err %v, want %v", c, err, want[1])
	}

	if _, err := tdb.Comment(ctx, domain.NewID()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Comment() = err %v, want %v", err, domain.ErrNotFound)
	}
	if _, err := tdb.Comment(ctx, "123"); !errors.Is(err, domain.ErrInvalidID) {
		t.Errorf("Comment() = err %v, want %v", err, domain.ErrInvalidID)
	}

	if err := tdb.Delete(ctx, strings.ToUpper(want[1].ID)); err != nil {
		t.Fatalf("Delete() = err %v", err)
	}
	if err := tdb.Delete(ctx, want[1].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete() = err %v, want %v", err, domain.ErrNotFound)
	}
	if err := tdb.Delete(ctx, "123"); !errors.Is(err, domain.ErrInvalidID) {
		t.Errorf("Delete() = err %v, want %v", err, domain.ErrInvalidID)
	}

	got, err = tdb.Comments(ctx)
	if err != nil {
		t.Fatalf("Comments() = err %v", err)
	}
	if len(got) != 2 || !equal(got[0], want[0]) || !equal(got[1], want[2]) {
		t.Errorf("Comments() = %v, want %v", got, []domain.Comment{want[0], want[2]})
	}
}

func TestNew_PingError(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "missing", "comments.db"))
	if err == nil {
		t.Fatalf("New() = nil error, want error for unreachable file")
	}
	if db != nil {
		t.Errorf("New() = %v, want nil handle on error", db)
	}
}

func equal(a, b domain.Comment) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Email == b.Email &&
		a.Comment == b.Comment && a.Date.Equal(b.Date)
}

var testcom = domain.Comment{
	Name:    "alice",
	Email:   "alice@example.com",
	Comment: "this is simple test comment",
}
var testcom2 = domain.Comment{
	Name:    "john",
	Email:   "john@example.com",
	Comment: "this is another test comment",
}
var testcom3 = domain.Comment{
	Name:    "bob",
	Email:   "bob@example.com",
	Comment: "this is simple another test comment",
}
