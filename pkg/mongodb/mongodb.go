// пакет mongodb реализует хранилище комментариев в MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rtemka/comments/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultDatabase используется, если имя БД не задано.
const DefaultDatabase = "comments"

const collection = "comments"

// document - представление комментария в коллекции.
type document struct {
	ID      primitive.ObjectID `bson:"_id"`
	Name    string             `bson:"name"`
	Email   string             `bson:"email"`
	Comment string             `bson:"comment"`
	Date    time.Time          `bson:"date"`
}

func (d *document) toComment() domain.Comment {
	return domain.Comment{
		ID:      d.ID.Hex(),
		Name:    d.Name,
		Email:   d.Email,
		Comment: d.Comment,
		Date:    d.Date.UTC(),
	}
}

// Mongo выполняет CRUD операции с коллекцией комментариев.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New выполняет подключение к MongoDB по uri
// и возвращает объект для работы с коллекцией комментариев в БД database.
func New(uri, database string) (*Mongo, error) {
	if database == "" {
		database = DefaultDatabase
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Mongo{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// Close закрывает соединение с БД.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Comments возвращает все комментарии в порядке создания.
func (m *Mongo) Comments(ctx context.Context) ([]domain.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, unavailable(err)
	}

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, unavailable(err)
	}

	coms := make([]domain.Comment, 0, len(docs))
	for i := range docs {
		coms = append(coms, docs[i].toComment())
	}

	return coms, nil
}

// Comment находит комментарий по id.
func (m *Mongo) Comment(ctx context.Context, id string) (domain.Comment, error) {
	oid, err := domain.ParseID(id)
	if err != nil {
		return domain.Comment{}, err
	}

	var doc document
	err = m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Comment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Comment{}, unavailable(err)
	}

	return doc.toComment(), nil
}

// Create сохраняет новый комментарий.
func (m *Mongo) Create(ctx context.Context, c *domain.Comment) error {
	doc := document{
		ID:      primitive.NewObjectID(),
		Name:    c.Name,
		Email:   c.Email,
		Comment: c.Comment,
		Date:    domain.Now(),
	}

	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return unavailable(err)
	}

	*c = doc.toComment()
	return nil
}

// Delete удаляет комментарий по id.
func (m *Mongo) Delete(ctx context.Context, id string) error {
	oid, err := domain.ParseID(id)
	if err != nil {
		return err
	}

	res, err := m.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return unavailable(err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// drop удаляет коллекцию, используется в тестах.
func (m *Mongo) drop(ctx context.Context) error {
	return m.coll.Drop(ctx)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: mongodb: %v", domain.ErrUnavailable, err)
}
