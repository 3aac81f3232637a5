package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/repository"
)

const (
	materialsCollection = "raw_materials"
	logsCollection      = "production_logs"
)

var _ repository.Store = (*MongoDBRepository)(nil)

// MongoDBRepository implements repository.Store on top of MongoDB. Multi
// document transactions require a replica set or a sharded cluster.
type MongoDBRepository struct {
	client    *mongo.Client
	materials *mongo.Collection
	logs      *mongo.Collection
	logger    *zap.Logger
}

// NewMongoDBRepository connects to MongoDB, verifies the connection and
// ensures the indexes used by the queries below.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	r := &MongoDBRepository{
		client:    client,
		materials: db.Collection(materialsCollection),
		logs:      db.Collection(logsCollection),
		logger:    logger,
	}

	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("mongodb repository ready", zap.String("database", dbName))
	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.materials.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}, {Key: "price", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create %s indexes: %w", materialsCollection, err)
	}

	_, err = r.logs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "wagesPaid", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create %s indexes: %w", logsCollection, err)
	}
	return nil
}

var byCreation = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

// ListBatches returns every batch ordered by creation time.
func (r *MongoDBRepository) ListBatches(ctx context.Context) ([]models.RawMaterialBatch, error) {
	return r.findBatches(ctx, bson.M{})
}

// BatchesByName returns the batches of one material ordered by creation time.
func (r *MongoDBRepository) BatchesByName(ctx context.Context, name string) ([]models.RawMaterialBatch, error) {
	return r.findBatches(ctx, bson.M{"name": name})
}

func (r *MongoDBRepository) findBatches(ctx context.Context, filter bson.M) ([]models.RawMaterialBatch, error) {
	cursor, err := r.materials.Find(ctx, filter, options.Find().SetSort(byCreation))
	if err != nil {
		return nil, models.Persistence("find batches", err)
	}

	batches := make([]models.RawMaterialBatch, 0)
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, models.Persistence("decode batches", err)
	}
	return batches, nil
}

// GetBatch loads one batch by id.
func (r *MongoDBRepository) GetBatch(ctx context.Context, id string) (models.RawMaterialBatch, error) {
	return r.findOneBatch(ctx, bson.M{"_id": id}, fmt.Sprintf("raw material %s", id))
}

// FindBatchByPrice loads the oldest batch of a material bought at exactly price.
func (r *MongoDBRepository) FindBatchByPrice(ctx context.Context, name string, price float64) (models.RawMaterialBatch, error) {
	return r.findOneBatch(ctx, bson.M{"name": name, "price": price}, fmt.Sprintf("%s batch at price %v", name, price))
}

func (r *MongoDBRepository) findOneBatch(ctx context.Context, filter bson.M, what string) (models.RawMaterialBatch, error) {
	var batch models.RawMaterialBatch
	err := r.materials.FindOne(ctx, filter, options.FindOne().SetSort(byCreation)).Decode(&batch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RawMaterialBatch{}, models.NotFoundf("%s", what)
	}
	if err != nil {
		return models.RawMaterialBatch{}, models.Persistence("find batch", err)
	}
	return batch, nil
}

// InsertBatch stores a new batch.
func (r *MongoDBRepository) InsertBatch(ctx context.Context, batch models.RawMaterialBatch) error {
	if batch.DailyUsage == nil {
		// $push needs an array, not null.
		batch.DailyUsage = []models.UsageRecord{}
	}
	if _, err := r.materials.InsertOne(ctx, batch); err != nil {
		return models.Persistence("insert batch", err)
	}
	return nil
}

// AddStock merges a repeat purchase into an existing batch.
func (r *MongoDBRepository) AddStock(ctx context.Context, id string, quantity int, at time.Time) error {
	update := bson.M{
		"$inc": bson.M{"initialStock": quantity, "currentStock": quantity},
		"$set": bson.M{"pricedAt": at, "lastUpdated": at},
	}
	res, err := r.materials.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return models.Persistence("add stock", err)
	}
	if res.MatchedCount == 0 {
		return models.NotFoundf("raw material %s", id)
	}
	return nil
}

// ConsumeStock decrements a batch only if it still holds expected units.
func (r *MongoDBRepository) ConsumeStock(ctx context.Context, id string, expected int, usage models.UsageRecord) error {
	filter := bson.M{"_id": id, "currentStock": expected}
	update := bson.M{
		"$inc":  bson.M{"currentStock": -usage.Quantity},
		"$push": bson.M{"dailyUsage": usage},
		"$set":  bson.M{"lastUpdated": usage.Date},
	}
	res, err := r.materials.UpdateOne(ctx, filter, update)
	if err != nil {
		return models.Persistence("consume stock", err)
	}
	if res.MatchedCount == 0 {
		return models.Persistence("consume stock", fmt.Errorf("batch %s: %w", id, repository.ErrStockConflict))
	}
	return nil
}

// ReplaceBatch overwrites the mutable fields of a batch.
func (r *MongoDBRepository) ReplaceBatch(ctx context.Context, batch models.RawMaterialBatch) error {
	update := bson.M{"$set": bson.M{
		"name":         batch.Name,
		"price":        batch.Price,
		"initialStock": batch.InitialStock,
		"currentStock": batch.CurrentStock,
		"pricedAt":     batch.PricedAt,
		"lastUpdated":  batch.LastUpdated,
	}}
	res, err := r.materials.UpdateOne(ctx, bson.M{"_id": batch.ID}, update)
	if err != nil {
		return models.Persistence("update batch", err)
	}
	if res.MatchedCount == 0 {
		return models.NotFoundf("raw material %s", batch.ID)
	}
	return nil
}

// InsertLog stores a production log.
func (r *MongoDBRepository) InsertLog(ctx context.Context, log models.ProductionLog) error {
	if log.MaterialsUsed == nil {
		log.MaterialsUsed = []models.MaterialUsage{}
	}
	if _, err := r.logs.InsertOne(ctx, log); err != nil {
		return models.Persistence("insert production log", err)
	}
	return nil
}

// LogsBetween returns logs dated in [start, end).
func (r *MongoDBRepository) LogsBetween(ctx context.Context, start, end time.Time) ([]models.ProductionLog, error) {
	filter := bson.M{"date": bson.M{"$gte": start, "$lt": end}}
	return r.findLogs(ctx, filter)
}

// UnpaidLogs returns every log whose wages are still owed.
func (r *MongoDBRepository) UnpaidLogs(ctx context.Context) ([]models.ProductionLog, error) {
	return r.findLogs(ctx, bson.M{"wagesPaid": false})
}

func (r *MongoDBRepository) findLogs(ctx context.Context, filter bson.M) ([]models.ProductionLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.logs.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.Persistence("find production logs", err)
	}

	logs := make([]models.ProductionLog, 0)
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, models.Persistence("decode production logs", err)
	}
	return logs, nil
}

// MarkShiftPaid flags the unpaid logs of a shift in [start, end) as paid.
func (r *MongoDBRepository) MarkShiftPaid(ctx context.Context, shift string, start, end time.Time, at time.Time) (int64, error) {
	filter := bson.M{
		"shift":     shift,
		"date":      bson.M{"$gte": start, "$lt": end},
		"wagesPaid": false,
	}
	return r.markPaid(ctx, filter, at)
}

// MarkLogsPaid flags the given logs as paid.
func (r *MongoDBRepository) MarkLogsPaid(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.markPaid(ctx, bson.M{"_id": bson.M{"$in": ids}, "wagesPaid": false}, at)
}

func (r *MongoDBRepository) markPaid(ctx context.Context, filter bson.M, at time.Time) (int64, error) {
	update := bson.M{"$set": bson.M{"wagesPaid": true, "lastUpdated": at}}
	res, err := r.logs.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, models.Persistence("mark wages paid", err)
	}
	return res.ModifiedCount, nil
}

// WithTransaction runs fn inside a multi-document transaction. Errors
// returned by fn abort the transaction and are returned unchanged.
func (r *MongoDBRepository) WithTransaction(ctx context.Context, fn repository.TxFunc) error {
	session, err := r.client.StartSession()
	if err != nil {
		return models.Persistence("start session", err)
	}
	defer session.EndSession(ctx)

	var fnErr error
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		fnErr = fn(sc)
		return nil, fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		r.logger.Error("transaction aborted", zap.Error(err))
		return models.Persistence("commit transaction", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
