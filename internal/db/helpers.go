package db

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"rsschool/api/internal/model"
	"rsschool/api/internal/store"
)

const foreignKeyViolation = "23503"

// normalize maps driver errors onto the store error values.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return store.ErrNotFound
	}
	return err
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// courseKey stores a missing course id as NULL. Course ids are opaque text.
func courseKey(id string) pgtype.Text {
	return pgtype.Text{String: id, Valid: id != ""}
}

// pgUUIDFromString returns NULL for empty or malformed ids, which never match a row.
func pgUUIDFromString(id string) pgtype.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func encodeFields(fields model.Fields) ([]byte, error) {
	if fields == nil {
		fields = model.Fields{}
	}
	return json.Marshal(fields)
}

func decodeFields(raw []byte) (model.Fields, error) {
	if len(raw) == 0 {
		return model.Fields{}, nil
	}
	return model.DecodeFields(bytes.NewReader(raw))
}
