package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg"
)

const (
	threadCollection  = "chat_threads"
	messageCollection = "chat_messages"
	counterCollection = "chat_counters"
)

type counter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

type mongoThreadRepository struct {
	threads  *mongo.Collection
	messages *mongo.Collection
	counters *mongo.Collection
	appendMu *pkg.StripedMutex
	now      func() time.Time
}

// NewMongoThreadRepository create a ThreadRepository on MongoDB. Appends are serialized
// per thread inside this process; run one writer node per database.
func NewMongoThreadRepository(db *mongo.Database) ThreadRepository {
	return &mongoThreadRepository{
		threads:  db.Collection(threadCollection),
		messages: db.Collection(messageCollection),
		counters: db.Collection(counterCollection),
		appendMu: pkg.NewStripedMutex(64),
		now:      time.Now,
	}
}

// EnsureThreadIndexes creates the unique pair index and the history index
func EnsureThreadIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(threadCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "first_person", Value: 1}, {Key: "second_person", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pair"),
		},
		{Keys: bson.D{{Key: "second_person", Value: 1}}},
		{Keys: bson.D{{Key: "updated", Value: -1}}},
	})
	if err != nil {
		return domain.StoreError("ensure thread indexes", err)
	}
	_, err = db.Collection(messageCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return domain.StoreError("ensure message indexes", err)
	}
	return nil
}

func (r *mongoThreadRepository) nextID(ctx context.Context, name string) (int64, error) {
	var c counter
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, domain.StoreError("next "+name+" id", err)
	}
	return c.Seq, nil
}

func (r *mongoThreadRepository) GetOrCreateThread(ctx context.Context, userA, userB string) (*domain.Thread, error) {
	first, second, err := validatePair(userA, userB)
	if err != nil {
		return nil, err
	}

	pair := bson.M{"first_person": first, "second_person": second}
	t, err := r.findThread(ctx, pair)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrThreadNotFound) {
		return nil, err
	}

	id, err := r.nextID(ctx, "thread")
	if err != nil {
		return nil, err
	}
	created := domain.Thread{
		ID:           id,
		FirstPerson:  first,
		SecondPerson: second,
		Updated:      r.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := r.threads.InsertOne(ctx, created); err != nil {
		// 另一個請求先建立了同一組 pair
		if mongo.IsDuplicateKeyError(err) {
			return r.findThread(ctx, pair)
		}
		return nil, domain.StoreError("create thread", err)
	}
	return &created, nil
}

func (r *mongoThreadRepository) GetThread(ctx context.Context, threadID int64) (*domain.Thread, error) {
	return r.findThread(ctx, bson.M{"_id": threadID})
}

func (r *mongoThreadRepository) findThread(ctx context.Context, filter bson.M) (*domain.Thread, error) {
	var t domain.Thread
	err := r.threads.FindOne(ctx, filter).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrThreadNotFound
	}
	if err != nil {
		return nil, domain.StoreError("find thread", err)
	}
	t.Updated = t.Updated.UTC()
	if t.LastMessage, err = r.lastMessage(ctx, t.ID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *mongoThreadRepository) AppendMessage(ctx context.Context, threadID int64, senderID, body string) (*domain.Message, error) {
	text, err := domain.NormalizeBody(body)
	if err != nil {
		return nil, err
	}

	unlock := r.appendMu.Lock(threadID)
	defer unlock()

	var t domain.Thread
	err = r.threads.FindOne(ctx, bson.M{"_id": threadID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrThreadNotFound
	}
	if err != nil {
		return nil, domain.StoreError("find thread", err)
	}

	id, err := r.nextID(ctx, "message")
	if err != nil {
		return nil, err
	}
	ts := r.now().UTC().Truncate(time.Millisecond)
	if ts.Before(t.Updated) {
		ts = t.Updated.UTC()
	}
	msg := domain.Message{ID: id, ThreadID: threadID, SenderID: senderID, Body: text, Timestamp: ts}
	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return nil, domain.StoreError("insert message", err)
	}
	if _, err := r.threads.UpdateOne(ctx,
		bson.M{"_id": threadID},
		bson.M{"$max": bson.M{"updated": ts}},
	); err != nil {
		return nil, domain.StoreError("touch thread", err)
	}
	return &msg, nil
}

func (r *mongoThreadRepository) ListMessages(ctx context.Context, threadID int64, cursor string, limit int) (*domain.MessagePage, error) {
	after, err := domain.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = ClampPageSize(limit)

	n, err := r.threads.CountDocuments(ctx, bson.M{"_id": threadID})
	if err != nil {
		return nil, domain.StoreError("find thread", err)
	}
	if n == 0 {
		return nil, domain.ErrThreadNotFound
	}

	cur, err := r.messages.Find(ctx,
		bson.M{"thread_id": threadID, "_id": bson.M{"$gt": after}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit+1)),
	)
	if err != nil {
		return nil, domain.StoreError("list messages", err)
	}
	msgs := make([]domain.Message, 0, limit+1)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, domain.StoreError("decode messages", err)
	}
	for i := range msgs {
		msgs[i].Timestamp = msgs[i].Timestamp.UTC()
	}

	page := &domain.MessagePage{Messages: msgs}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		page.NextCursor = domain.EncodeCursor(msgs[limit-1].ID)
	}
	return page, nil
}

func (r *mongoThreadRepository) ListThreadsForUser(ctx context.Context, userID string) ([]domain.Thread, error) {
	cur, err := r.threads.Find(ctx,
		bson.M{"$or": bson.A{bson.M{"first_person": userID}, bson.M{"second_person": userID}}},
		options.Find().SetSort(bson.D{{Key: "updated", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, domain.StoreError("list threads", err)
	}
	threads := make([]domain.Thread, 0)
	if err := cur.All(ctx, &threads); err != nil {
		return nil, domain.StoreError("decode threads", err)
	}
	for i := range threads {
		threads[i].Updated = threads[i].Updated.UTC()
		if threads[i].LastMessage, err = r.lastMessage(ctx, threads[i].ID); err != nil {
			return nil, err
		}
	}
	return threads, nil
}

func (r *mongoThreadRepository) LastMessage(ctx context.Context, threadID int64) (*domain.LastMessage, error) {
	if _, err := r.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	return r.lastMessage(ctx, threadID)
}

func (r *mongoThreadRepository) lastMessage(ctx context.Context, threadID int64) (*domain.LastMessage, error) {
	var m domain.Message
	err := r.messages.FindOne(ctx,
		bson.M{"thread_id": threadID},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}),
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StoreError("last message", err)
	}
	m.Timestamp = m.Timestamp.UTC()
	return m.Summary(), nil
}
