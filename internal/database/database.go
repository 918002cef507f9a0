package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const tableName = "match_results"

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Service stores finished match results in sqlite3 or postgres (pgx).
type Service struct {
	db         *sql.DB
	m          *sync.Mutex
	driver     string
	table_name string
}

const columns = "id, created_at, room_code, player1, player2, player3, joker_seat, joker_points, result, player1_total, player2_total, player3_total, tournament_winner"

// New opens the database and creates the results table when missing.
func New(driver, dsn string) (*Service, error) {
	if driver != "sqlite3" && driver != "pgx" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlStmt := `
	create table if not exists ` + tableName + ` (
		id text not null primary key,
		created_at text,
		room_code text,
		player1 text,
		player2 text,
		player3 text,
		joker_seat integer,
		joker_points integer,
		result text,
		player1_total integer,
		player2_total integer,
		player3_total integer,
		tournament_winner text
	);
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s: %w", tableName, err)
	}

	return &Service{
		db:         db,
		m:          &sync.Mutex{},
		driver:     driver,
		table_name: tableName,
	}, nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

// rebind turns ? placeholders into $n for postgres.
func (s *Service) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (MatchResult, error) {
	var result MatchResult
	err := row.Scan(
		&result.ID,
		&result.CreatedAt,
		&result.RoomCode,
		&result.Player1,
		&result.Player2,
		&result.Player3,
		&result.JokerSeat,
		&result.JokerPoints,
		&result.Result,
		&result.Player1Total,
		&result.Player2Total,
		&result.Player3Total,
		&result.TournamentWinner)
	return result, err
}

func (s *Service) query(query string, args ...any) ([]MatchResult, error) {
	rows, err := s.db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MatchResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *Service) GetAll() ([]MatchResult, error) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.query("SELECT " + columns + " FROM " + s.table_name + " ORDER BY created_at")
}

// GetByID returns one match, or sql.ErrNoRows.
func (s *Service) GetByID(id string) (MatchResult, error) {
	s.m.Lock()
	defer s.m.Unlock()
	row := s.db.QueryRow(s.rebind("SELECT "+columns+" FROM "+s.table_name+" WHERE id = ?"), id)
	return scanResult(row)
}

func (s *Service) Insert(result MatchResult) error {
	s.m.Lock()
	defer s.m.Unlock()
	_, err := s.db.Exec(s.rebind("INSERT INTO "+s.table_name+
		" ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		result.ID,
		result.CreatedAt,
		result.RoomCode,
		result.Player1,
		result.Player2,
		result.Player3,
		result.JokerSeat,
		result.JokerPoints,
		result.Result,
		result.Player1Total,
		result.Player2Total,
		result.Player3Total,
		result.TournamentWinner)
	return err
}

// GetByPlayer returns every match the player sat in, or sql.ErrNoRows.
func (s *Service) GetByPlayer(playerName string) ([]MatchResult, error) {
	s.m.Lock()
	defer s.m.Unlock()
	results, err := s.query("SELECT "+columns+" FROM "+s.table_name+
		" WHERE player1 = ? OR player2 = ? OR player3 = ? ORDER BY created_at",
		playerName,
		playerName,
		playerName)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, sql.ErrNoRows
	}
	return results, nil
}
