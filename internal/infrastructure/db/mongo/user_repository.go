package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/ports"
)

const (
	collectionUsers = "users"
	usersSequence   = "users"

	emailIndexName = "users_email_unique"
	idIndexName    = "users_id_unique"
)

// safeProjection never includes the password hash or the storage _id.
var safeProjection = bson.M{
	"id":          1,
	"email":       1,
	"name":        1,
	"role":        1,
	"status":      1,
	"createdAt":   1,
	"updatedAt":   1,
	"lastLoginAt": 1,
	"_id":         0,
}

type UserRepository struct {
	col *mongo.Collection
	seq ports.SequenceGenerator
	now func() time.Time
}

func NewUserRepository(db *mongo.Database, seq ports.SequenceGenerator) *UserRepository {
	return &UserRepository{
		col: db.Collection(collectionUsers),
		seq: seq,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

type userDocument struct {
	ObjectID     primitive.ObjectID `bson:"_id,omitempty"`
	ID           int64              `bson:"id"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	PasswordHash string             `bson:"passwordHash,omitempty"`
	Role         string             `bson:"role"`
	Status       string             `bson:"status"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
	LastLoginAt  *time.Time         `bson:"lastLoginAt"`
}

func (d *userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:           d.ID,
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		Status:       d.Status,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.LastLoginAt != nil {
		t := d.LastLoginAt.UTC()
		u.LastLoginAt = &t
	}
	return u
}

// FindByID returns domain.ErrUserNotFound for unknown or non-positive ids.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"id": id})
}

// FindByEmail normalizes email before the lookup; an empty email is not found.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"email": normalized})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) IsEmailTaken(ctx context.Context, email string, excludeID *int64) (bool, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return false, nil
	}

	filter := bson.M{"email": normalized}
	if excludeID != nil {
		filter["id"] = bson.M{"$ne": *excludeID}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.M{"id": 1, "_id": 0})
	err := r.col.FindOne(ctx, filter, opts).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return false, nil
	default:
		return false, fmt.Errorf("check email: %w", err)
	}
}

// Create inserts a new user in a single write. A violation of the unique email
// index becomes domain.ErrEmailInUse; any other duplicate key is a real fault.
func (r *UserRepository) Create(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	id, err := r.seq.Next(ctx, usersSequence)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	now := r.now()
	doc := userDocument{
		ID:           id,
		Email:        domain.NormalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: in.PasswordHash,
		Role:         domain.RoleOrDefault(in.Role),
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if isEmailConflict(err) {
			return nil, domain.ErrEmailInUse
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

// isEmailConflict reports whether err is a duplicate key on the email index.
// The server names the violated index in the E11000 message.
func isEmailConflict(err error) bool {
	if !mongo.IsDuplicateKeyError(err) {
		return false
	}
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		if e.Code == 11000 && strings.Contains(e.Message, emailIndexName) {
			return true
		}
	}
	return false
}

// UpdateLastLogin stamps lastLoginAt and updatedAt atomically and returns the
// updated record through the safe projection.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.now()
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(safeProjection)

	var doc userDocument
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"lastLoginAt": now, "updatedAt": now}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("update last login: %w", err)
	}
	return doc.toDomain(), nil
}

// RenameRole moves every user holding role from to role to.
func (r *UserRepository) RenameRole(ctx context.Context, from, to string) (int64, int64, error) {
	return r.setRole(ctx, bson.M{"role": from}, to)
}

// SetRoleByEmail assigns role to the user with the given email.
func (r *UserRepository) SetRoleByEmail(ctx context.Context, email, role string) (int64, int64, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return 0, 0, fmt.Errorf("set role: %w: email is required", domain.ErrInvalidInput)
	}
	return r.setRole(ctx, bson.M{"email": normalized}, role)
}

func (r *UserRepository) setRole(ctx context.Context, filter bson.M, role string) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"role": role, "updatedAt": r.now()}})
	if err != nil {
		return 0, 0, fmt.Errorf("set role: %w", err)
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

// EnsureIndexes creates the unique indexes that make email and id authoritative.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndexName),
		},
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(idIndexName),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
