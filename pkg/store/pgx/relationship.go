package pgx

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const relationshipColumns = `id, source_entity, target_entity, relation, confidence, source_document_id, source_text, created_at`

// upsertRelationshipSQL only touches an existing row when the new confidence
// is strictly higher; RETURNING yields no row when nothing changed.
const upsertRelationshipSQL = `
INSERT INTO relationships (source_entity, target_entity, relation, confidence, source_document_id, source_text)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (source_entity, relation, target_entity) DO UPDATE
SET confidence  = EXCLUDED.confidence,
    source_text = EXCLUDED.source_text
WHERE relationships.confidence < EXCLUDED.confidence
RETURNING (xmax = 0) AS inserted;
`

func scanRelationships(rows pgxv5.Rows) ([]common.Relationship, error) {
	defer rows.Close()
	out := make([]common.Relationship, 0)
	for rows.Next() {
		var (
			r        common.Relationship
			relation string
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Target, &relation, &r.Confidence, &r.SourceDocumentID, &r.SourceText, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Relation = common.RelationType(relation)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *GraphDBStorage) queryRelationships(ctx context.Context, sql string, args ...any) ([]common.Relationship, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanRelationships(rows)
}

func (s *GraphDBStorage) UpsertRelationship(ctx context.Context, rel common.Relationship) (store.UpsertResult, error) {
	if err := s.ready(); err != nil {
		return store.Unchanged, err
	}

	sourceText := rel.SourceText
	if sourceText != nil {
		clean := store.SanitizeText(*sourceText)
		sourceText = &clean
	}

	var inserted bool
	err := s.conn.QueryRow(ctx, upsertRelationshipSQL,
		rel.Source, rel.Target, string(rel.Relation), rel.Confidence, rel.SourceDocumentID, sourceText,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return store.Unchanged, nil
		}
		return store.Unchanged, translateErr(err)
	}
	if inserted {
		return store.Inserted, nil
	}
	logger.Debug("[Graph][UpsertRelationship] Raised confidence", "source", rel.Source, "relation", rel.Relation, "target", rel.Target, "confidence", rel.Confidence)
	return store.Updated, nil
}

func (s *GraphDBStorage) GetRelationships(ctx context.Context, source string, relation common.RelationType) ([]common.Relationship, error) {
	if relation == "" {
		return s.queryRelationships(ctx, `SELECT `+relationshipColumns+` FROM relationships WHERE source_entity = $1 ORDER BY id`, source)
	}
	return s.queryRelationships(ctx,
		`SELECT `+relationshipColumns+` FROM relationships WHERE source_entity = $1 AND relation = $2 ORDER BY id`,
		source, string(relation))
}

func (s *GraphDBStorage) GetIncidentRelationships(ctx context.Context, ids []string) ([]common.Relationship, error) {
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return []common.Relationship{}, nil
	}
	return s.queryRelationships(ctx, `
		SELECT `+relationshipColumns+` FROM relationships
		WHERE source_entity = ANY($1) OR target_entity = ANY($1)
		ORDER BY id
	`, ids)
}

func (s *GraphDBStorage) GetAllRelationships(ctx context.Context) ([]common.Relationship, error) {
	return s.queryRelationships(ctx, `SELECT `+relationshipColumns+` FROM relationships ORDER BY id`)
}

func (s *GraphDBStorage) CountRelationships(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int64
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&n)
	return n, err
}

func (s *GraphDBStorage) DeleteRelationship(ctx context.Context, source string, relation common.RelationType, target string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	tag, err := s.conn.Exec(ctx, `
		DELETE FROM relationships
		WHERE source_entity = $1 AND relation = $2 AND target_entity = $3
	`, source, string(relation), target)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
