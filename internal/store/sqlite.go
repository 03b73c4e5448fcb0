package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jacherr/assystbot/internal/domain"
	"github.com/jacherr/assystbot/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writes to dodge SQLITE_BUSY under WAL
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(dbPath string) (Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS guild_prefixes (
		guild_id TEXT PRIMARY KEY,
		prefix TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reminders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		due_at INTEGER NOT NULL,
		body TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(due_at);

	CREATE TABLE IF NOT EXISTS command_uses (
		guild_id TEXT NOT NULL,
		command_name TEXT NOT NULL,
		uses INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (guild_id, command_name)
	);

	CREATE TABLE IF NOT EXISTS command_disabled (
		guild_id TEXT NOT NULL,
		command_name TEXT NOT NULL,
		disabled INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (guild_id, command_name)
	);

	CREATE TABLE IF NOT EXISTS blacklist (
		user_id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS bt_channels (
		channel_id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		webhook_id TEXT,
		webhook_token TEXT,
		translated_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS tags (
		guild_id TEXT NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		creator_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (guild_id, name)
	);

	CREATE TABLE IF NOT EXISTS color_roles (
		guild_id TEXT NOT NULL,
		hex TEXT NOT NULL,
		role_id TEXT NOT NULL,
		PRIMARY KEY (guild_id, hex)
	);

	CREATE TABLE IF NOT EXISTS free_requests (
		user_id TEXT PRIMARY KEY,
		remaining INTEGER NOT NULL,
		reset_day TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS patrons (
		user_id TEXT PRIMARY KEY,
		tier INTEGER NOT NULL,
		admin INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withRetry runs fn up to 3 times with exponential backoff (100ms, then
// 200ms) on SQLITE_BUSY/"database is locked", matching the teacher's
// DeleteAgentSession retry shape.
func withRetry(ctx context.Context, op string, fn func() error) error {
	const maxRetries = 3
	const baseDelay = 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if shared.IsSQLiteBusyError(err) || shared.IsSQLiteLockedError(err) || strings.Contains(err.Error(), "database is locked") {
			if i < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<i)
				slog.Debug("store operation busy, retrying", "op", op, "attempt", i+1, "delay", delay)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
		}
		return lastErr
	}
	return fmt.Errorf("%s: %w after retries", op, lastErr)
}

// GetOrSetPrefix returns the guild's prefix, inserting def on first use.
func (s *SQLiteStore) GetOrSetPrefix(ctx context.Context, guildID, def string) (string, error) {
	var prefix string
	err := withRetry(ctx, "GetOrSetPrefix", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		row := s.db.QueryRowContext(ctx, `SELECT prefix FROM guild_prefixes WHERE guild_id = ?`, guildID)
		scanErr := row.Scan(&prefix)
		if scanErr == nil {
			return nil
		}
		if scanErr != sql.ErrNoRows {
			return fmt.Errorf("get prefix: %w", scanErr)
		}
		prefix = def
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO guild_prefixes (guild_id, prefix) VALUES (?, ?)
			ON CONFLICT(guild_id) DO NOTHING`, guildID, def)
		if execErr != nil {
			return fmt.Errorf("insert default prefix: %w", execErr)
		}
		return nil
	})
	return prefix, err
}

// FetchDueReminders returns reminders due by the given time.
func (s *SQLiteStore) FetchDueReminders(ctx context.Context, before time.Time) ([]*domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, guild_id, channel_id, message_id, due_at, body
		FROM reminders WHERE due_at <= ?`, before.Unix())
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Reminder
	for rows.Next() {
		var r domain.Reminder
		var dueAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.GuildID, &r.ChannelID, &r.MessageID, &dueAt, &r.Body); err != nil {
			return nil, fmt.Errorf("scan reminder row: %w", err)
		}
		r.DueAt = time.Unix(dueAt, 0)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

// DeleteReminders removes the given ids in a single transaction, giving the
// scheduler at-least-once semantics (spec.md §4.I).
func (s *SQLiteStore) DeleteReminders(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return withRetry(ctx, "DeleteReminders", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete reminders tx: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `DELETE FROM reminders WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare delete reminders: %w", err)
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return fmt.Errorf("delete reminder %d: %w", id, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit delete reminders tx: %w", err)
		}
		return nil
	})
}

// IncrementCommandUses bumps the per-guild usage counter for a command.
func (s *SQLiteStore) IncrementCommandUses(ctx context.Context, guildID, commandName string) error {
	return withRetry(ctx, "IncrementCommandUses", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO command_uses (guild_id, command_name, uses) VALUES (?, ?, 1)
			ON CONFLICT(guild_id, command_name) DO UPDATE SET uses = uses + 1`,
			guildID, commandName)
		if err != nil {
			return fmt.Errorf("increment command uses: %w", err)
		}
		return nil
	})
}

// GetCommandDisabled reports whether a command is disabled in a guild.
func (s *SQLiteStore) GetCommandDisabled(ctx context.Context, guildID, commandName string) (bool, error) {
	var disabled bool
	row := s.db.QueryRowContext(ctx, `
		SELECT disabled FROM command_disabled WHERE guild_id = ? AND command_name = ?`,
		guildID, commandName)
	err := row.Scan(&disabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get command disabled: %w", err)
	}
	return disabled, nil
}

// SetCommandDisabled sets or clears a guild's disabled flag for a command.
func (s *SQLiteStore) SetCommandDisabled(ctx context.Context, guildID, commandName string, disabled bool) error {
	return withRetry(ctx, "SetCommandDisabled", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO command_disabled (guild_id, command_name, disabled) VALUES (?, ?, ?)
			ON CONFLICT(guild_id, command_name) DO UPDATE SET disabled = excluded.disabled`,
			guildID, commandName, disabled)
		if err != nil {
			return fmt.Errorf("set command disabled: %w", err)
		}
		return nil
	})
}

// AddBlacklist adds a user to the global blacklist.
func (s *SQLiteStore) AddBlacklist(ctx context.Context, userID string) error {
	return withRetry(ctx, "AddBlacklist", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO blacklist (user_id) VALUES (?) ON CONFLICT(user_id) DO NOTHING`, userID)
		if err != nil {
			return fmt.Errorf("add blacklist: %w", err)
		}
		return nil
	})
}

// RemoveBlacklist removes a user from the global blacklist.
func (s *SQLiteStore) RemoveBlacklist(ctx context.Context, userID string) error {
	return withRetry(ctx, "RemoveBlacklist", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("remove blacklist: %w", err)
		}
		return nil
	})
}

// IsBlacklisted reports whether a user is on the global blacklist.
func (s *SQLiteStore) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	var exists int
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM blacklist WHERE user_id = ?`, userID)
	err := row.Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is blacklisted: %w", err)
	}
	return true, nil
}

// GetBTChannel retrieves a channel's BadTranslator subscription and cached
// webhook, if any.
func (s *SQLiteStore) GetBTChannel(ctx context.Context, channelID string) (*domain.BTChannel, error) {
	var ch domain.BTChannel
	var webhookID, webhookToken sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, guild_id, target_lang, webhook_id, webhook_token
		FROM bt_channels WHERE channel_id = ?`, channelID)
	err := row.Scan(&ch.ChannelID, &ch.GuildID, &ch.TargetLang, &webhookID, &webhookToken)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bt channel: %w", err)
	}
	ch.WebhookID = webhookID.String
	ch.WebhookToken = webhookToken.String
	return &ch, nil
}

// UpsertBTChannel subscribes a channel or updates its cached webhook
// (spec.md §4.H step 5: self-healing webhook discovery/cache).
func (s *SQLiteStore) UpsertBTChannel(ctx context.Context, ch *domain.BTChannel) error {
	return withRetry(ctx, "UpsertBTChannel", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		var webhookID, webhookToken interface{}
		if ch.WebhookID != "" {
			webhookID = ch.WebhookID
		}
		if ch.WebhookToken != "" {
			webhookToken = ch.WebhookToken
		}

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO bt_channels (channel_id, guild_id, target_lang, webhook_id, webhook_token)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(channel_id) DO UPDATE SET
				target_lang = excluded.target_lang,
				webhook_id = excluded.webhook_id,
				webhook_token = excluded.webhook_token`,
			ch.ChannelID, ch.GuildID, ch.TargetLang, webhookID, webhookToken)
		if err != nil {
			return fmt.Errorf("upsert bt channel: %w", err)
		}
		return nil
	})
}

// DeleteBTChannel unsubscribes a channel (spec.md §4.H step 5: remove a
// stale entry when its webhook can no longer be obtained).
func (s *SQLiteStore) DeleteBTChannel(ctx context.Context, channelID string) error {
	return withRetry(ctx, "DeleteBTChannel", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `DELETE FROM bt_channels WHERE channel_id = ?`, channelID)
		if err != nil {
			return fmt.Errorf("delete bt channel: %w", err)
		}
		return nil
	})
}

// IncrementBTTranslated bumps a guild's translated-message counter
// (spec.md §4.H step 9).
func (s *SQLiteStore) IncrementBTTranslated(ctx context.Context, guildID string) error {
	return withRetry(ctx, "IncrementBTTranslated", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO command_uses (guild_id, command_name, uses) VALUES (?, '__bt_translated__', 1)
			ON CONFLICT(guild_id, command_name) DO UPDATE SET uses = uses + 1`, guildID)
		if err != nil {
			return fmt.Errorf("increment bt translated: %w", err)
		}
		return nil
	})
}

// GetTag retrieves a guild tag by name.
func (s *SQLiteStore) GetTag(ctx context.Context, guildID, name string) (*domain.Tag, error) {
	var tag domain.Tag
	var createdAt int64
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, name, content, creator_id, created_at
		FROM tags WHERE guild_id = ? AND name = ?`, guildID, name)
	err := row.Scan(&tag.GuildID, &tag.Name, &tag.Content, &tag.CreatorID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	tag.CreatedAt = time.Unix(createdAt, 0)
	return &tag, nil
}

// UpsertTag creates or replaces a guild tag.
func (s *SQLiteStore) UpsertTag(ctx context.Context, tag *domain.Tag) error {
	return withRetry(ctx, "UpsertTag", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		created := tag.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tags (guild_id, name, content, creator_id, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(guild_id, name) DO UPDATE SET
				content = excluded.content,
				creator_id = excluded.creator_id`,
			tag.GuildID, tag.Name, tag.Content, tag.CreatorID, created.Unix())
		if err != nil {
			return fmt.Errorf("upsert tag: %w", err)
		}
		return nil
	})
}

// DeleteTag removes a guild tag.
func (s *SQLiteStore) DeleteTag(ctx context.Context, guildID, name string) error {
	return withRetry(ctx, "DeleteTag", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE guild_id = ? AND name = ?`, guildID, name)
		if err != nil {
			return fmt.Errorf("delete tag: %w", err)
		}
		return nil
	})
}

// ListTags returns every tag defined in a guild.
func (s *SQLiteStore) ListTags(ctx context.Context, guildID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, name, content, creator_id, created_at
		FROM tags WHERE guild_id = ? ORDER BY name`, guildID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*domain.Tag
	for rows.Next() {
		var tag domain.Tag
		var createdAt int64
		if err := rows.Scan(&tag.GuildID, &tag.Name, &tag.Content, &tag.CreatorID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		tag.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return out, nil
}

// GetColorRole retrieves a guild's role id mapped to a hex color.
func (s *SQLiteStore) GetColorRole(ctx context.Context, guildID, hex string) (*domain.ColorRole, error) {
	var role domain.ColorRole
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, hex, role_id FROM color_roles WHERE guild_id = ? AND hex = ?`, guildID, hex)
	err := row.Scan(&role.GuildID, &role.Hex, &role.RoleID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get color role: %w", err)
	}
	return &role, nil
}

// UpsertColorRole creates or replaces a guild's hex-to-role mapping.
func (s *SQLiteStore) UpsertColorRole(ctx context.Context, role *domain.ColorRole) error {
	return withRetry(ctx, "UpsertColorRole", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO color_roles (guild_id, hex, role_id) VALUES (?, ?, ?)
			ON CONFLICT(guild_id, hex) DO UPDATE SET role_id = excluded.role_id`,
			role.GuildID, role.Hex, role.RoleID)
		if err != nil {
			return fmt.Errorf("upsert color role: %w", err)
		}
		return nil
	})
}

// DeleteColorRole removes a guild's hex-to-role mapping.
func (s *SQLiteStore) DeleteColorRole(ctx context.Context, guildID, hex string) error {
	return withRetry(ctx, "DeleteColorRole", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `DELETE FROM color_roles WHERE guild_id = ? AND hex = ?`, guildID, hex)
		if err != nil {
			return fmt.Errorf("delete color role: %w", err)
		}
		return nil
	})
}

// ListColorRoles returns every hex-to-role mapping in a guild.
func (s *SQLiteStore) ListColorRoles(ctx context.Context, guildID string) ([]*domain.ColorRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, hex, role_id FROM color_roles WHERE guild_id = ? ORDER BY hex`, guildID)
	if err != nil {
		return nil, fmt.Errorf("list color roles: %w", err)
	}
	defer rows.Close()

	var out []*domain.ColorRole
	for rows.Next() {
		var role domain.ColorRole
		if err := rows.Scan(&role.GuildID, &role.Hex, &role.RoleID); err != nil {
			return nil, fmt.Errorf("scan color role row: %w", err)
		}
		out = append(out, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate color roles: %w", err)
	}
	return out, nil
}

// GetFreeRequests returns a non-patron's remaining daily allowance,
// resetting it to dailyAllowance if the stored reset day is not today.
func (s *SQLiteStore) GetFreeRequests(ctx context.Context, userID string, dailyAllowance int) (int, error) {
	today := time.Now().UTC().Format("2006-01-02")
	var remaining int

	err := withRetry(ctx, "GetFreeRequests", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		var resetDay string
		row := s.db.QueryRowContext(ctx, `SELECT remaining, reset_day FROM free_requests WHERE user_id = ?`, userID)
		scanErr := row.Scan(&remaining, &resetDay)
		if scanErr != nil && scanErr != sql.ErrNoRows {
			return fmt.Errorf("get free requests: %w", scanErr)
		}

		if scanErr == sql.ErrNoRows || resetDay != today {
			remaining = dailyAllowance
			_, execErr := s.db.ExecContext(ctx, `
				INSERT INTO free_requests (user_id, remaining, reset_day) VALUES (?, ?, ?)
				ON CONFLICT(user_id) DO UPDATE SET remaining = excluded.remaining, reset_day = excluded.reset_day`,
				userID, remaining, today)
			if execErr != nil {
				return fmt.Errorf("reset free requests: %w", execErr)
			}
		}
		return nil
	})
	return remaining, err
}

// ConsumeFreeRequest decrements a user's remaining daily allowance, clamped
// at zero.
func (s *SQLiteStore) ConsumeFreeRequest(ctx context.Context, userID string) error {
	return withRetry(ctx, "ConsumeFreeRequest", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, `
			UPDATE free_requests SET remaining = MAX(0, remaining - 1) WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("consume free request: %w", err)
		}
		return nil
	})
}

// GetPatron looks up a user's subscription tier; nil, nil if not a patron.
func (s *SQLiteStore) GetPatron(ctx context.Context, userID string) (*domain.Patron, error) {
	var p domain.Patron
	var admin int
	row := s.db.QueryRowContext(ctx, `SELECT user_id, tier, admin FROM patrons WHERE user_id = ?`, userID)
	err := row.Scan(&p.UserID, &p.Tier, &admin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get patron: %w", err)
	}
	p.Admin = admin != 0
	return &p, nil
}
