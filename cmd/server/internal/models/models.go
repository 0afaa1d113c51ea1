// Package models maps the store tables to gorm structs and back to wire types.
package models

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const name string = "github.com/Ashutoshbind15/dev-iterate-sub000/cmd/server/internal/models"

var tracer = otel.Tracer(name)

// Common columns. IDs are uuidv7 generated by postgres so they sort by creation time.
type Model struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        uuid.UUID `gorm:"primaryKey;default:uuidv7_sub_ms()"`
}

// Anything stored with a Model
type Record interface {
	GetID() uuid.UUID
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// ByID loads one row, gorm.ErrRecordNotFound when there is none. Scopes run before the
// lookup, for preloads.
func ByID[T Record](
	ctx context.Context,
	db *gorm.DB,
	id uuid.UUID,
	scopes ...func(*gorm.DB) *gorm.DB,
) (*T, error) {
	ctx, span := tracer.Start(ctx, "ByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("id", id.String()),
		attribute.String("type", typeName[T]()),
	)

	var record T
	if err := db.WithContext(ctx).Scopes(scopes...).Take(&record, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "found record")
	return &record, nil
}

// Exists reports whether any row of T matches the condition
func Exists[T Record](ctx context.Context, db *gorm.DB, query any, args ...any) (bool, error) {
	ctx, span := tracer.Start(ctx, "Exists")
	defer span.End()

	span.SetAttributes(
		attribute.String("query", fmt.Sprint(query)),
		attribute.Int("args", len(args)),
		attribute.String("type", typeName[T]()),
	)

	var found bool
	err := db.WithContext(ctx).Model(new(T)).Select("1").Where(query, args...).Take(&found).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "no match")
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "existence check failed")
		return false, fmt.Errorf("checking %s: %w", typeName[T](), err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "matched")
	return found, nil
}

// NewNull is the nullable column for an optional value
func NewNull[T any](v *T) datatypes.Null[T] {
	if v == nil {
		return datatypes.Null[T]{}
	}
	return datatypes.NewNull(*v)
}

// NewNullFromData is a set nullable column
func NewNullFromData[T any](v T) datatypes.Null[T] {
	return datatypes.NewNull(v)
}

// PtrFromNull is the optional value of a nullable column
func PtrFromNull[T any](v datatypes.Null[T]) *T {
	if v.Valid {
		return &v.V
	}
	return nil
}
