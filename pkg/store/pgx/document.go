package pgx

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const documentColumns = `id, filename, content, uploaded_at, triple_count`

func scanDocuments(rows pgxv5.Rows) ([]common.Document, error) {
	defer rows.Close()
	out := make([]common.Document, 0)
	for rows.Next() {
		var d common.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Content, &d.UploadedAt, &d.TripleCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) SaveDocument(ctx context.Context, doc common.Document) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	uploadedAt := doc.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	var id int64
	err := s.conn.QueryRow(ctx, `
		INSERT INTO documents (filename, content, uploaded_at, triple_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, store.SanitizeText(doc.Filename), store.SanitizeText(doc.Content), uploadedAt, doc.TripleCount).Scan(&id)
	return id, err
}

func (s *GraphDBStorage) GetDocument(ctx context.Context, id int64) (*common.Document, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
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

func (s *GraphDBStorage) GetDocuments(ctx context.Context) ([]common.Document, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (s *GraphDBStorage) DeleteDocument(ctx context.Context, id int64) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT source_entity FROM relationships WHERE source_document_id = $1
		UNION
		SELECT target_entity FROM relationships WHERE source_document_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	candidates, err := pgxv5.CollectRows(rows, pgxv5.RowTo[string])
	if err != nil {
		return nil, err
	}

	// relationships go with the document through ON DELETE CASCADE
	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	reclaimed := []string{}
	if len(candidates) > 0 {
		rows, err = tx.Query(ctx, `
			DELETE FROM entities e
			WHERE e.id = ANY($1)
			  AND NOT EXISTS (
				SELECT 1 FROM relationships r
				WHERE r.source_entity = e.id OR r.target_entity = e.id
			  )
			RETURNING e.id
		`, candidates)
		if err != nil {
			return nil, err
		}
		reclaimed, err = pgxv5.CollectRows(rows, pgxv5.RowTo[string])
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Debug("[Graph][DeleteDocument] Deleted document", "id", id, "found", tag.RowsAffected() > 0, "candidates", len(candidates), "reclaimed", len(reclaimed))
	return reclaimed, nil
}
