package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rtemka/comments/domain"
)

//go:embed schema.sql
var schema string

// Postgres выполняет CRUD операции с БД
type Postgres struct {
	db *pgxpool.Pool
}

// New выполняет подключение
// и возвращает объект для взаимодействия с БД
func New(connString string) (*Postgres, error) {

	pool, err := pgxpool.Connect(context.Background(), connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	return &Postgres{db: pool}, nil
}

// Close выполняет закрытие подключения к БД
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

// Migrate создает таблицы, если их еще нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.exec(ctx, schema)
}

// Comments возвращает все комментарии в порядке создания.
func (p *Postgres) Comments(ctx context.Context) ([]domain.Comment, error) {
	stmt := `SELECT id, name, email, comment, date FROM comments ORDER BY seq;`

	rows, err := p.db.Query(ctx, stmt)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	coms := []domain.Comment{}
	for rows.Next() {

		var c domain.Comment

		err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Comment, &c.Date)
		if err != nil {
			return nil, unavailable(err)
		}
		c.Date = c.Date.UTC()

		coms = append(coms, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}

	return coms, nil
}

// Comment находит по id и возвращает комментарий
func (p *Postgres) Comment(ctx context.Context, id string) (domain.Comment, error) {
	id, err := domain.NormalizeID(id)
	if err != nil {
		return domain.Comment{}, err
	}

	stmt := `SELECT id, name, email, comment, date FROM comments WHERE id = $1;`

	var c domain.Comment

	err = p.db.QueryRow(ctx, stmt, id).Scan(&c.ID, &c.Name, &c.Email, &c.Comment, &c.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Comment{}, unavailable(err)
	}
	c.Date = c.Date.UTC()

	return c, nil
}

// Create добавляет комментарий в БД
func (p *Postgres) Create(ctx context.Context, c *domain.Comment) error {
	id, date := domain.NewID(), domain.Now()

	stmt := `INSERT INTO comments(id, name, email, comment, date) VALUES ($1, $2, $3, $4, $5);`

	if _, err := p.db.Exec(ctx, stmt, id, c.Name, c.Email, c.Comment, date); err != nil {
		return unavailable(err)
	}

	c.ID, c.Date = id, date
	return nil
}

// Delete удаляет комментарий по id
func (p *Postgres) Delete(ctx context.Context, id string) error {
	id, err := domain.NormalizeID(id)
	if err != nil {
		return err
	}

	tag, err := p.db.Exec(ctx, `DELETE FROM comments WHERE id = $1;`, id)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// exec вспомогательная функция, выполняет
// *pgx.Tx.Exec() в транзакции
func (p *Postgres) exec(ctx context.Context, sql string, args ...any) error {
	return p.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	})
}

func unavailable(err error) error {
	return fmt.Errorf("%w: postgres: %v", domain.ErrUnavailable, err)
}
