// Package mongo stores transactions in a MongoDB collection and exposes the
// collection's change stream as a live-subscription feed.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/ports"
)

// Ensure interface conformance
var (
	_ ports.TransactionWriter  = (*Store)(nil)
	_ ports.TransactionLister  = (*Store)(nil)
	_ ports.TransactionDeleter = (*Store)(nil)
	_ ports.ChangeFeed         = (*Store)(nil)
)

const collectionName = "transactions"

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// transactionDoc is the shape this service writes. Reads go through fromRaw
// so documents written by other clients with looser types still load.
type transactionDoc struct {
	ID              string               `bson:"_id"`
	UserID          string               `bson:"userId"`
	Type            string               `bson:"type"`
	Amount          primitive.Decimal128 `bson:"amount"`
	Category        string               `bson:"category"`
	Description     string               `bson:"description,omitempty"`
	TransactionDate time.Time            `bson:"transactionDate"`
	CreatedAt       time.Time            `bson:"createdAt"`
}

// Connect dials uri and ensures the per-user date index exists.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collectionName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "transactionDate", Value: -1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Store{client: client, coll: coll}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping implements the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Append implements ports.TransactionWriter.
func (s *Store) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	amount, err := primitive.ParseDecimal128(t.Amount.String())
	if err != nil {
		return "", fmt.Errorf("encode amount: %w", err)
	}

	doc := transactionDoc{
		ID:              t.ID,
		UserID:          t.UserID,
		Type:            string(t.Type),
		Amount:          amount,
		Category:        t.Category,
		Description:     t.Description,
		TransactionDate: t.TransactionDate.UTC(),
		CreatedAt:       t.CreatedAt.UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to MongoDB", "id", t.ID, "user_id", t.UserID, "type", t.Type)
	return t.ID, nil
}

// ListTransactions implements ports.TransactionLister, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "transactionDate", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer cur.Close(ctx)

	out := []core.Transaction{}
	for cur.Next(ctx) {
		out = append(out, fromRaw(cur.Current))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Delete implements ports.TransactionDeleter.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type changeEvent struct {
	OperationType            string              `bson:"operationType"`
	DocumentKey              bson.Raw            `bson:"documentKey"`
	FullDocument             bson.Raw            `bson:"fullDocument"`
	FullDocumentBeforeChange bson.Raw            `bson:"fullDocumentBeforeChange"`
	ClusterTime              primitive.Timestamp `bson:"clusterTime"`
}

// ErrStreamClosed is returned by Watch when the server ends the change
// stream, for example after the collection is dropped or renamed.
var ErrStreamClosed = errors.New("change stream closed by server")

// changeStream is the part of *mongo.ChangeStream that Watch consumes.
type changeStream interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
}

// Watch follows the collection's change stream. Deletes only carry the owner
// when pre-images are enabled on the collection; otherwise the change has an
// empty UserID and subscribers must treat every user as affected.
func (s *Store) Watch(ctx context.Context, handler func(ports.Change) error) error {
	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	stream, err := s.coll.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	defer stream.Close(context.Background())
	return consume(ctx, stream, handler)
}

// consume feeds every decodable event to handler until the stream ends. It
// returns ctx's error on cancellation and ErrStreamClosed when the stream
// ends on its own, so callers never mistake a dead feed for a clean stop.
func consume(ctx context.Context, stream changeStream, handler func(ports.Change) error) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentMongo)
	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			logger.WarnContext(ctx, "Skipping undecodable change event", log.FieldError, err)
			continue
		}
		c, ok := changeFromEvent(ev)
		if !ok {
			continue
		}
		if err := handler(c); err != nil {
			fields := log.NewFields().WithUser(c.UserID).WithError(err)
			fields[log.FieldTransactionID] = c.ID
			logger.WarnContext(ctx, "Change handler failed", fields.ToSlice()...)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("change stream: %w", err)
	}
	logger.ErrorContext(ctx, "Change stream ended without an error")
	return ErrStreamClosed
}

func changeFromEvent(ev changeEvent) (ports.Change, bool) {
	var op ports.ChangeOp
	switch ev.OperationType {
	case "insert", "replace", "update":
		op = ports.OpCreate
	case "delete":
		op = ports.OpDelete
	default:
		return ports.Change{}, false
	}

	c := ports.Change{Op: op, At: time.Unix(int64(ev.ClusterTime.T), 0).UTC()}
	if ev.DocumentKey != nil {
		c.ID = idString(ev.DocumentKey.Lookup("_id"))
	}
	for _, doc := range []bson.Raw{ev.FullDocument, ev.FullDocumentBeforeChange} {
		if doc == nil {
			continue
		}
		if v, ok := doc.Lookup("userId").StringValueOK(); ok {
			c.UserID = v
			break
		}
	}
	return c, true
}

// fromRaw maps a stored document onto a Transaction, tolerating numeric or
// string amounts and string dates.
func fromRaw(raw bson.Raw) core.Transaction {
	str := func(key string) string {
		v, _ := raw.Lookup(key).StringValueOK()
		return v
	}
	return core.Transaction{
		ID:              idString(raw.Lookup("_id")),
		Type:            core.ParseTransactionType(str("type")),
		Amount:          amountFromValue(raw.Lookup("amount")),
		Category:        str("category"),
		Description:     str("description"),
		TransactionDate: timeFromValue(raw.Lookup("transactionDate")),
		UserID:          str("userId"),
		CreatedAt:       timeFromValue(raw.Lookup("createdAt")),
	}
}

func idString(v bson.RawValue) string {
	switch v.Type {
	case bson.TypeString:
		return v.StringValue()
	case bson.TypeObjectID:
		return v.ObjectID().Hex()
	case bson.TypeInt32, bson.TypeInt64:
		return fmt.Sprint(v.AsInt64())
	}
	return ""
}

func amountFromValue(v bson.RawValue) decimal.Decimal {
	switch v.Type {
	case bson.TypeDecimal128:
		if d, err := decimal.NewFromString(v.Decimal128().String()); err == nil {
			return d
		}
	case bson.TypeDouble:
		return decimal.NewFromFloat(v.Double())
	case bson.TypeInt32, bson.TypeInt64:
		return decimal.NewFromInt(v.AsInt64())
	case bson.TypeString:
		quoted, _ := json.Marshal(v.StringValue())
		return core.ParseAmount(quoted)
	}
	return decimal.Zero
}

func timeFromValue(v bson.RawValue) time.Time {
	switch v.Type {
	case bson.TypeDateTime:
		return v.Time().UTC()
	case bson.TypeString:
		quoted, _ := json.Marshal(v.StringValue())
		return core.ParseTimestamp(quoted)
	}
	return time.Time{}
}
