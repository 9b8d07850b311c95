package db

type Session struct {
	Username  string
	Password  string
	Schedule  string
	FetchedAt int64
}
