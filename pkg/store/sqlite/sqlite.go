package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/store"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// IN lists are split so a batch never exceeds the bound parameter limit
const idBatchSize = 400

// SQLiteStorage implements store.GraphStorage on a single SQLite file.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check that SQLiteStorage implements store.GraphStorage.
var _ store.GraphStorage = (*SQLiteStorage)(nil)

// New opens (or creates) the database at dbPath and applies the schema.
// Foreign keys are switched on for every connection and write transactions
// take the database lock up front.
func New(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	logger.Debug("[SQLite] Opened database", "path", dbPath)

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) timestamp(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// translateErr maps constraint failures onto the store error kinds.
func translateErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", store.ErrMissingEntity, err)
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %v", store.ErrInvalidConfidence, err)
		}
	}
	return err
}

// --- Entities ---

const entityColumns = `id, type, data, created_at`

func scanEntities(rows *sql.Rows) ([]common.Entity, error) {
	defer rows.Close()
	out := make([]common.Entity, 0)
	for rows.Next() {
		var (
			e         common.Entity
			typ       string
			data      string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &typ, &data, &createdAt); err != nil {
			return nil, err
		}
		e.Type = common.EntityType(typ)
		e.CreatedAt = parseTime(createdAt)
		e.Data = map[string]any{}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("decoding data of entity %q: %w", e.ID, err)
		}
		if e.Data == nil {
			e.Data = map[string]any{}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) UpsertEntity(ctx context.Context, entity common.Entity) error {
	data, err := json.Marshal(store.CloneData(entity.Data))
	if err != nil {
		return fmt.Errorf("encoding data of entity %q: %w", entity.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, type, data, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			data = excluded.data
	`, entity.ID, string(entity.Type), string(data), s.timestamp(time.Time{}))
	return err
}

func (s *SQLiteStorage) GetEntity(ctx context.Context, id string) (*common.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	entities, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

func (s *SQLiteStorage) GetEntities(ctx context.Context, ids []string) ([]common.Entity, error) {
	ids = store.DedupeStrings(ids)
	out := make([]common.Entity, 0, len(ids))
	err := store.ChunkRange(len(ids), idBatchSize, func(start, end int) error {
		batch := ids[start:end]
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+entityColumns+` FROM entities WHERE id IN (`+placeholders(len(batch))+`)`,
			stringArgs(batch)...)
		if err != nil {
			return err
		}
		entities, err := scanEntities(rows)
		if err != nil {
			return err
		}
		out = append(out, entities...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	store.SortEntities(out)
	return out, nil
}

func (s *SQLiteStorage) GetEntitiesByType(ctx context.Context, entityType common.EntityType) ([]common.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE type = ? ORDER BY id`, string(entityType))
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

func (s *SQLiteStorage) GetAllEntities(ctx context.Context) ([]common.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

func (s *SQLiteStorage) GetOrphanEntities(ctx context.Context) ([]common.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entityColumns+` FROM entities e
		WHERE NOT EXISTS (
			SELECT 1 FROM relationships r
			WHERE r.source_entity = e.id OR r.target_entity = e.id
		)
		ORDER BY e.id
	`)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

func (s *SQLiteStorage) CountEntities(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&n)
	return n, err
}

func (s *SQLiteStorage) DeleteEntity(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- Relationships ---

const relationshipColumns = `id, source_entity, target_entity, relation, confidence, source_document_id, source_text, created_at`

func scanRelationships(rows *sql.Rows) ([]common.Relationship, error) {
	defer rows.Close()
	out := make([]common.Relationship, 0)
	for rows.Next() {
		var (
			r          common.Relationship
			relation   string
			docID      sql.NullInt64
			sourceText sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Target, &relation, &r.Confidence, &docID, &sourceText, &createdAt); err != nil {
			return nil, err
		}
		r.Relation = common.RelationType(relation)
		r.CreatedAt = parseTime(createdAt)
		if docID.Valid {
			id := docID.Int64
			r.SourceDocumentID = &id
		}
		if sourceText.Valid {
			text := sourceText.String
			r.SourceText = &text
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) UpsertRelationship(ctx context.Context, rel common.Relationship) (store.UpsertResult, error) {
	result := store.Unchanged
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM relationships
				WHERE source_entity = ? AND relation = ? AND target_entity = ?
			)
		`, rel.Source, string(rel.Relation), rel.Target).Scan(&exists)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO relationships (source_entity, target_entity, relation, confidence, source_document_id, source_text, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_entity, relation, target_entity) DO UPDATE SET
				confidence = excluded.confidence,
				source_text = excluded.source_text
			WHERE relationships.confidence < excluded.confidence
		`, rel.Source, rel.Target, string(rel.Relation), rel.Confidence, rel.SourceDocumentID, rel.SourceText, s.timestamp(time.Time{}))
		if err != nil {
			return translateErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		switch {
		case n == 0:
			result = store.Unchanged
		case exists:
			result = store.Updated
		default:
			result = store.Inserted
		}
		return nil
	})
	if err != nil {
		return store.Unchanged, err
	}
	return result, nil
}

func (s *SQLiteStorage) GetRelationships(ctx context.Context, source string, relation common.RelationType) ([]common.Relationship, error) {
	query := `SELECT ` + relationshipColumns + ` FROM relationships WHERE source_entity = ?`
	args := []any{source}
	if relation != "" {
		query += ` AND relation = ?`
		args = append(args, string(relation))
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	return scanRelationships(rows)
}

func (s *SQLiteStorage) GetIncidentRelationships(ctx context.Context, ids []string) ([]common.Relationship, error) {
	ids = store.DedupeStrings(ids)
	seen := make(map[int64]struct{})
	out := make([]common.Relationship, 0)
	err := store.ChunkRange(len(ids), idBatchSize, func(start, end int) error {
		batch := ids[start:end]
		in := placeholders(len(batch))
		args := append(stringArgs(batch), stringArgs(batch)...)
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+relationshipColumns+` FROM relationships
			WHERE source_entity IN (`+in+`) OR target_entity IN (`+in+`)`, args...)
		if err != nil {
			return err
		}
		rels, err := scanRelationships(rows)
		if err != nil {
			return err
		}
		for _, r := range rels {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRelationships(out)
	return out, nil
}

func sortRelationships(rels []common.Relationship) {
	slices.SortFunc(rels, func(a, b common.Relationship) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

func (s *SQLiteStorage) GetAllRelationships(ctx context.Context) ([]common.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+relationshipColumns+` FROM relationships ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanRelationships(rows)
}

func (s *SQLiteStorage) CountRelationships(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&n)
	return n, err
}

func (s *SQLiteStorage) DeleteRelationship(ctx context.Context, source string, relation common.RelationType, target string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM relationships
		WHERE source_entity = ? AND relation = ? AND target_entity = ?
	`, source, string(relation), target)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- Documents ---

const documentColumns = `id, filename, content, uploaded_at, triple_count`

func scanDocuments(rows *sql.Rows) ([]common.Document, error) {
	defer rows.Close()
	out := make([]common.Document, 0)
	for rows.Next() {
		var (
			d          common.Document
			uploadedAt string
		)
		if err := rows.Scan(&d.ID, &d.Filename, &d.Content, &uploadedAt, &d.TripleCount); err != nil {
			return nil, err
		}
		d.UploadedAt = parseTime(uploadedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc common.Document) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (filename, content, uploaded_at, triple_count)
		VALUES (?, ?, ?, ?)
	`, doc.Filename, doc.Content, s.timestamp(doc.UploadedAt), doc.TripleCount)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*common.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (s *SQLiteStorage) GetDocuments(ctx context.Context) ([]common.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) ([]string, error) {
	reclaimed := make([]string, 0)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT source_entity FROM relationships WHERE source_document_id = ?
			UNION
			SELECT target_entity FROM relationships WHERE source_document_id = ?
		`, id, id)
		if err != nil {
			return err
		}
		var candidates []string
		for rows.Next() {
			var entityID string
			if err := rows.Scan(&entityID); err != nil {
				rows.Close()
				return err
			}
			candidates = append(candidates, entityID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		// relationships go with the document through ON DELETE CASCADE
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return err
		}

		for _, entityID := range candidates {
			res, err := tx.ExecContext(ctx, `
				DELETE FROM entities
				WHERE id = ? AND NOT EXISTS (
					SELECT 1 FROM relationships r
					WHERE r.source_entity = entities.id OR r.target_entity = entities.id
				)
			`, entityID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				reclaimed = append(reclaimed, entityID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reclaimed, nil
}

func (s *SQLiteStorage) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"relationships", "entities", "documents"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		return nil
	})
}
