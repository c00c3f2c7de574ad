package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/prepwise/auth-service/internal/core/domain"
)

// MongoLoginRecordRepository implements domain.LoginRecordRepository on
// the login_stats collection. One document per user, keyed by _id, with
// last-write-wins semantics — the same contract the rest of the
// platform's document data uses.
type MongoLoginRecordRepository struct {
	coll *mongo.Collection
}

// NewLoginRecordRepository creates a new MongoLoginRecordRepository.
func NewLoginRecordRepository(db *mongo.Database) *MongoLoginRecordRepository {
	return &MongoLoginRecordRepository{coll: db.Collection("login_stats")}
}

// Get returns the user's login record.
// Returns (nil, nil) when the user has no record yet.
func (r *MongoLoginRecordRepository) Get(ctx context.Context, userID string) (*domain.LoginRecord, error) {
	var rec domain.LoginRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	return &rec, nil
}

// Upsert persists the full record in a single write, conditional on the
// stored last_login_date differing from rec.LastLoginDate.
//
// When a concurrent writer already recorded the same date, the filter
// matches nothing and the upsert attempts an insert with the same _id;
// the resulting duplicate-key error is mapped to ErrConcurrentUpdate.
func (r *MongoLoginRecordRepository) Upsert(ctx context.Context, rec *domain.LoginRecord) error {
	filter := bson.M{
		"_id":             rec.UserID,
		"last_login_date": bson.M{"$ne": rec.LastLoginDate},
	}
	update := bson.M{"$set": bson.M{
		"last_login_date": rec.LastLoginDate,
		"daily_logins":    rec.DailyLogins,
		"login_streak":    rec.LoginStreak,
	}}

	_, err := r.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConcurrentUpdate
		}
		return err
	}

	return nil
}
