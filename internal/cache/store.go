package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"univer-schedule/internal/db"
	"univer-schedule/internal/timetable"
)

// ErrNoSession means nobody is signed in, the caller has to ask for
// credentials again. There is no anonymous view of the schedule.
var ErrNoSession = errors.New("no cached session")

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func ParseTheme(text string) (Theme, bool) {
	switch Theme(text) {
	case ThemeLight, ThemeDark:
		return Theme(text), true
	}
	return "", false
}

// Snapshot is everything cached about the signed in student.
type Snapshot struct {
	Credentials timetable.Credentials
	Matrix      timetable.Matrix
	FetchedAt   time.Time
}

// Store persists the client state.
//
// note: fault injection point
type Store interface {
	// Load returns ErrNoSession when nobody is signed in.
	Load(ctx context.Context) (Snapshot, error)
	// Save replaces the signed in student with snapshot.
	Save(ctx context.Context, snapshot Snapshot) error
	// UpdateSchedule overwrites the schedule only if username is still the
	// one signed in, it reports whether it did.
	UpdateSchedule(ctx context.Context, username string, matrix timetable.Matrix, fetchedAt time.Time) (bool, error)
	Theme(ctx context.Context) (Theme, error)
	SetTheme(ctx context.Context, theme Theme) error
	// Wipe removes credentials, schedule and settings in one step.
	Wipe(ctx context.Context) error
}

type SQLiteStore struct {
	qry    *db.Queries
	makeTx db.MakeTx
}

func NewSQLiteStore(database *sql.DB) SQLiteStore {
	return SQLiteStore{
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
	}
}

func (s SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	row, err := s.qry.GetSession(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSession
	}
	if err != nil {
		return Snapshot{}, err
	}

	var matrix timetable.Matrix
	err = json.Unmarshal([]byte(row.Schedule), &matrix)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode cached schedule: %w", err)
	}

	return Snapshot{
		Credentials: timetable.Credentials{
			Username: row.Username,
			Password: row.Password,
		},
		Matrix:    matrix.Normalize(),
		FetchedAt: time.UnixMilli(row.FetchedAt),
	}, nil
}

func encodeMatrix(matrix timetable.Matrix) (string, error) {
	if matrix == nil {
		matrix = timetable.Matrix{}
	}
	buff, err := json.Marshal(matrix.Normalize())
	if err != nil {
		return "", err
	}
	return string(buff), nil
}

func (s SQLiteStore) Save(ctx context.Context, snapshot Snapshot) error {
	schedule, err := encodeMatrix(snapshot.Matrix)
	if err != nil {
		return err
	}
	return s.qry.UpsertSession(ctx, db.UpsertSessionParams{
		Username:  snapshot.Credentials.Username,
		Password:  snapshot.Credentials.Password,
		Schedule:  schedule,
		FetchedAt: snapshot.FetchedAt.UnixMilli(),
	})
}

func (s SQLiteStore) UpdateSchedule(ctx context.Context, username string, matrix timetable.Matrix, fetchedAt time.Time) (bool, error) {
	schedule, err := encodeMatrix(matrix)
	if err != nil {
		return false, err
	}
	affected, err := s.qry.UpdateSchedule(ctx, db.UpdateScheduleParams{
		Schedule:  schedule,
		FetchedAt: fetchedAt.UnixMilli(),
		Username:  username,
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s SQLiteStore) Theme(ctx context.Context) (Theme, error) {
	value, err := s.qry.GetSetting(ctx, db.SETTING_THEME)
	if errors.Is(err, sql.ErrNoRows) {
		return ThemeLight, nil
	}
	if err != nil {
		return "", err
	}
	theme, ok := ParseTheme(value)
	if !ok {
		return ThemeLight, nil
	}
	return theme, nil
}

func (s SQLiteStore) SetTheme(ctx context.Context, theme Theme) error {
	return s.qry.SetSetting(ctx, db.SetSettingParams{
		Key:   db.SETTING_THEME,
		Value: string(theme),
	})
}

func (s SQLiteStore) Wipe(ctx context.Context) error {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return err
	}
	defer discard()

	err = tx.DeleteSession(ctx)
	if err != nil {
		return err
	}
	err = tx.DeleteSettings(ctx)
	if err != nil {
		return err
	}
	return commit()
}
