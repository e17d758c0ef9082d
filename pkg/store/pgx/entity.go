package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const entityColumns = `id, type, data::text, created_at`

func scanEntities(rows pgxv5.Rows) ([]common.Entity, error) {
	defer rows.Close()
	out := make([]common.Entity, 0)
	for rows.Next() {
		var (
			e    common.Entity
			typ  string
			data string
		)
		if err := rows.Scan(&e.ID, &typ, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = common.EntityType(typ)
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

func (s *GraphDBStorage) queryEntities(ctx context.Context, sql string, args ...any) ([]common.Entity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

func (s *GraphDBStorage) UpsertEntity(ctx context.Context, entity common.Entity) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(store.CloneData(entity.Data))
	if err != nil {
		return fmt.Errorf("encoding data of entity %q: %w", entity.ID, err)
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO entities (id, type, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (id) DO UPDATE
		SET type = EXCLUDED.type,
		    data = EXCLUDED.data
	`, entity.ID, string(entity.Type), string(data))
	return err
}

func (s *GraphDBStorage) GetEntity(ctx context.Context, id string) (*common.Entity, error) {
	entities, err := s.queryEntities(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

func (s *GraphDBStorage) GetEntities(ctx context.Context, ids []string) ([]common.Entity, error) {
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return []common.Entity{}, nil
	}
	return s.queryEntities(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ANY($1) ORDER BY id`, ids)
}

func (s *GraphDBStorage) GetEntitiesByType(ctx context.Context, entityType common.EntityType) ([]common.Entity, error) {
	return s.queryEntities(ctx, `SELECT `+entityColumns+` FROM entities WHERE type = $1 ORDER BY id`, string(entityType))
}

func (s *GraphDBStorage) GetAllEntities(ctx context.Context) ([]common.Entity, error) {
	return s.queryEntities(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY id`)
}

func (s *GraphDBStorage) GetOrphanEntities(ctx context.Context) ([]common.Entity, error) {
	return s.queryEntities(ctx, `
		SELECT `+entityColumns+` FROM entities e
		WHERE NOT EXISTS (
			SELECT 1 FROM relationships r
			WHERE r.source_entity = e.id OR r.target_entity = e.id
		)
		ORDER BY e.id
	`)
}

func (s *GraphDBStorage) CountEntities(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int64
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM entities`).Scan(&n)
	return n, err
}

func (s *GraphDBStorage) DeleteEntity(ctx context.Context, id string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	tag, err := s.conn.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
