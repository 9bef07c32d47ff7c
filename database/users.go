package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"roomchat/backend/apperr"
	"roomchat/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStore 使用者目錄
type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(UsersCollection)}
}

// NormalizeEmail email 一律小寫、去空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create 新增使用者，email 重複時回傳 Conflict
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	ts := now()
	user.ID = primitive.NewObjectID()
	user.Email = NormalizeEmail(user.Email)
	user.Name = strings.TrimSpace(user.Name)
	user.LastSeen = ts
	user.CreatedAt = ts
	user.UpdatedAt = ts

	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("User already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var user models.User
	err := s.coll.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// FindByIDs 批次取得使用者，找不到的 ID 直接略過
func (s *UserStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
}

// Update 更新名稱或頭像
func (s *UserStore) Update(ctx context.Context, id primitive.ObjectID, patch models.UpdateProfileRequest) (*models.User, error) {
	set := bson.M{"updatedAt": now()}
	if patch.Name != nil {
		set["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Avatar != nil {
		set["avatar"] = *patch.Avatar
	}
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": set})
}

// SetOnline 更新上線狀態並記錄 lastSeen
func (s *UserStore) SetOnline(ctx context.Context, id primitive.ObjectID, online bool) error {
	_, err := s.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"isOnline": online, "lastSeen": now()}})
	return err
}

func (s *UserStore) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("update user %s: %w", id.Hex(), err)
	}
	return &user, nil
}

func (s *UserStore) ListOnline(ctx context.Context) ([]models.User, error) {
	return s.find(ctx, bson.M{"isOnline": true}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

// Search 以名稱或 email 搜尋（不分大小寫），排除 exclude 本人
func (s *UserStore) Search(ctx context.Context, query string, exclude primitive.ObjectID, limit int64) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(query)), Options: "i"}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"email": pattern},
		},
	}
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}
	return s.find(ctx, filter, options.Find().SetLimit(limit))
}

func (s *UserStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}
