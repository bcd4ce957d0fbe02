package domain

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ошибки хранилища. Реализации [Repository] возвращают
// только их (или обернутые в них ошибки).
var (
	ErrNotFound    = errors.New("comment not found")
	ErrInvalidID   = errors.New("invalid comment id")
	ErrUnavailable = errors.New("storage unavailable")
)

// Comment - модель данных комментария.
type Comment struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Comment string    `json:"comment"`
	Date    time.Time `json:"date"`
}

// Repository - контракт на работу с хранилищем комментариев.
type Repository interface {
	Comments(ctx context.Context) ([]Comment, error)         // получить все комментарии в порядке создания
	Comment(ctx context.Context, id string) (Comment, error) // получить комментарий по id
	Create(ctx context.Context, c *Comment) error            // создать комментарий, назначает ID и Date
	Delete(ctx context.Context, id string) error             // удалить комментарий по id
	Close() error                                            // закрыть соединение с БД.
}

// NewID возвращает новый идентификатор документа.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ParseID проверяет формат идентификатора.
// Возвращает [ErrInvalidID], если строка не является
// идентификатором документа.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// NormalizeID проверяет идентификатор и приводит его
// к каноническому виду (hex в нижнем регистре), в котором
// он хранится в БД.
func NormalizeID(id string) (string, error) {
	oid, err := ParseID(id)
	if err != nil {
		return "", err
	}
	return oid.Hex(), nil
}

// Now возвращает время создания комментария,
// округленное до миллисекунд (точность хранения во всех БД).
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
