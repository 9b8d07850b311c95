package db

import (
	"context"
)

const getSession = `-- name: GetSession :one
select username, password, schedule, fetched_at from session
where id = 1
`

func (q *Queries) GetSession(ctx context.Context) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSession)
	var i Session
	err := row.Scan(
		&i.Username,
		&i.Password,
		&i.Schedule,
		&i.FetchedAt,
	)
	return i, err
}

const upsertSession = `-- name: UpsertSession :exec
insert into session (id, username, password, schedule, fetched_at)
values (1, ?, ?, ?, ?)
on conflict (id) do update set
    username = excluded.username,
    password = excluded.password,
    schedule = excluded.schedule,
    fetched_at = excluded.fetched_at
`

type UpsertSessionParams struct {
	Username  string
	Password  string
	Schedule  string
	FetchedAt int64
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSession,
		arg.Username,
		arg.Password,
		arg.Schedule,
		arg.FetchedAt,
	)
	return err
}

const updateSchedule = `-- name: UpdateSchedule :execrows
update session set schedule = ?, fetched_at = ?
where id = 1 and username = ?
`

type UpdateScheduleParams struct {
	Schedule  string
	FetchedAt int64
	Username  string
}

func (q *Queries) UpdateSchedule(ctx context.Context, arg UpdateScheduleParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSchedule, arg.Schedule, arg.FetchedAt, arg.Username)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSession = `-- name: DeleteSession :exec
delete from session
`

func (q *Queries) DeleteSession(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteSession)
	return err
}

const getSetting = `-- name: GetSetting :one
select value from setting
where key = ?
`

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getSetting, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const setSetting = `-- name: SetSetting :exec
insert into setting (key, value) values (?, ?)
on conflict (key) do update set value = excluded.value
`

type SetSettingParams struct {
	Key   string
	Value string
}

func (q *Queries) SetSetting(ctx context.Context, arg SetSettingParams) error {
	_, err := q.db.ExecContext(ctx, setSetting, arg.Key, arg.Value)
	return err
}

const deleteSettings = `-- name: DeleteSettings :exec
delete from setting
`

func (q *Queries) DeleteSettings(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteSettings)
	return err
}
