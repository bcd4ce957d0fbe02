package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rtemka/comments/domain"
)

//go:embed schema.sql
var schema string

// SQLite выполняет операции CRUD в БД.
type SQLite struct {
	// это поле экпортируемое, чтобы пользователь
	// мог установить такие важные параметры подлючения как
	// SetConnMaxIdleTime, SetMaxOpenConns, SetMaxIdleConns...
	DB *sql.DB
}

// New производит подключение к [*SQLite] БД.
func New(connstr string) (*SQLite, error) {

	db, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, err
	}

	// соединение устанавливается лениво, проверяем его сразу
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{DB: db}, nil
}

// Close closes db connection.
func (l *SQLite) Close() error {
	return l.DB.Close()
}

// Migrate создает таблицы, если их еще нет.
func (l *SQLite) Migrate(ctx context.Context) error {
	return l.exec(ctx, schema)
}

// Comments получает все комментарии в порядке создания.
func (l *SQLite) Comments(ctx context.Context) ([]domain.Comment, error) {
	stmt := `SELECT id, name, email, comment, date FROM comments ORDER BY seq;`

	rows, err := l.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	coms := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		var ms int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Comment, &ms); err != nil {
			return nil, unavailable(err)
		}
		c.Date = time.UnixMilli(ms).UTC()
		coms = append(coms, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}

	return coms, nil
}

// Comment получает комментарий по id.
func (l *SQLite) Comment(ctx context.Context, id string) (domain.Comment, error) {
	id, err := domain.NormalizeID(id)
	if err != nil {
		return domain.Comment{}, err
	}

	stmt := `SELECT id, name, email, comment, date FROM comments WHERE id = $1;`

	var c domain.Comment
	var ms int64
	err = l.DB.QueryRowContext(ctx, stmt, id).Scan(&c.ID, &c.Name, &c.Email, &c.Comment, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Comment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Comment{}, unavailable(err)
	}
	c.Date = time.UnixMilli(ms).UTC()

	return c, nil
}

// Create создает комментарий.
func (l *SQLite) Create(ctx context.Context, c *domain.Comment) error {
	id, date := domain.NewID(), domain.Now()

	stmt := `INSERT INTO comments(id, name, email, comment, date) VALUES($1, $2, $3, $4, $5);`
	_, err := l.DB.ExecContext(ctx, stmt, id, c.Name, c.Email, c.Comment, date.UnixMilli())
	if err != nil {
		return unavailable(err)
	}

	c.ID, c.Date = id, date
	return nil
}

// Delete удаляет комментарий по id.
func (l *SQLite) Delete(ctx context.Context, id string) error {
	id, err := domain.NormalizeID(id)
	if err != nil {
		return err
	}

	res, err := l.DB.ExecContext(ctx, `DELETE FROM comments WHERE id = $1;`, id)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// exec вспомогательная функция, выполняет
// *tx.Exec() в транзакции.
func (l *SQLite) exec(ctx context.Context, stmt string, args ...any) error {
	tx, err := l.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: sqlite: %v", domain.ErrUnavailable, err)
}
