package mirror

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Source reads the Messages database (chat.db) without ever writing to it.
// The schema varies between macOS releases, so optional tables and columns
// are probed once at open and the row query is shaped accordingly.
type Source struct {
	db *sql.DB

	hasAttributedBody bool
	hasChatJoin       bool
}

// Row is one message row lifted out of chat.db, before conversion into the
// mirror's model.
type Row struct {
	RowID          int64
	HandleID       sql.NullString // handle.id, the external contact id
	Text           sql.NullString
	AttributedBody []byte
	Date           sql.NullInt64 // Apple-epoch nanoseconds
	IsFromMe       bool
	CacheRoomnames sql.NullString
	GroupTitle     sql.NullString
	ChatIdentifier sql.NullString // registry-backed id, group chats only
}

// OpenSource opens chat.db read-only.
func OpenSource(path string) (*Source, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open source db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping source db: %w", err)
	}

	s := &Source{db: db}
	if err := s.probe(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the source connection.
func (s *Source) Close() error {
	return s.db.Close()
}

func (s *Source) probe() error {
	var err error
	if s.hasAttributedBody, err = s.hasColumn("message", "attributedBody"); err != nil {
		return err
	}
	joinExists, err := s.hasTable("chat_message_join")
	if err != nil {
		return err
	}
	chatExists, err := s.hasTable("chat")
	if err != nil {
		return err
	}
	s.hasChatJoin = joinExists && chatExists
	return nil
}

func (s *Source) hasTable(name string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", name, err)
	}
	return true, nil
}

func (s *Source) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("probe column %s.%s: %w", table, column, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// ReadAfter returns up to limit message rows with ROWID strictly greater
// than the watermark, ascending, so a pass can resume where the last one
// stopped.
func (s *Source) ReadAfter(watermark int64, limit int) ([]Row, error) {
	bodyCol := "NULL"
	if s.hasAttributedBody {
		bodyCol = "m.attributedBody"
	}

	// chat.db marks group chats with style 43; a direct chat's identifier
	// is just the counterpart handle and must not masquerade as a
	// registry-backed thread id.
	join, chatCol := "", "NULL"
	if s.hasChatJoin {
		join = `
			LEFT JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
			LEFT JOIN chat c ON c.ROWID = cmj.chat_id`
		chatCol = "MAX(CASE WHEN c.style = 43 THEN c.chat_identifier END)"
	}

	q := fmt.Sprintf(`
		SELECT m.ROWID, h.id, m.text, %s, m.date, m.is_from_me,
		       m.cache_roomnames, m.group_title, %s
		FROM message m
		LEFT JOIN handle h ON m.handle_id = h.ROWID
		%s
		WHERE m.ROWID > ?
		GROUP BY m.ROWID
		ORDER BY m.ROWID ASC
		LIMIT ?`, bodyCol, chatCol, join)

	rows, err := s.db.Query(q, watermark, limit)
	if err != nil {
		return nil, fmt.Errorf("read source rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.RowID, &r.HandleID, &r.Text, &r.AttributedBody, &r.Date,
			&r.IsFromMe, &r.CacheRoomnames, &r.GroupTitle, &r.ChatIdentifier); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
