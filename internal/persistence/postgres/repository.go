package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/events"
)

// Repository provides Postgres-backed persistence for avatar states, morph
// sequences, and outbox events. Stored states carry parameters and provenance
// only; meshes live on disk and are re-synthesized from parameters on demand.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const avatarColumns = `avatar_id, tenant_id, user_id, gender, backend, betas, scale, regional_bias,
        assumed_bmi, personalization_applied, glb_path, metadata_path, created_at`

// FindByIdempotency checks if an avatar already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*domain.AvatarState, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + avatarColumns + `
        FROM avatars WHERE tenant_id=$1 AND user_id=$2 AND idempotency_key=$3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, query, tenantID, userID, idempotencyKey)
	state, err := scanAvatar(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

// CreateAvatar persists the state and records the generation event inside a
// single transaction.
func (r *Repository) CreateAvatar(ctx context.Context, state domain.AvatarState, idempotencyKey string) error {
	betas, bias, err := encodeParams(state.Params)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", state.TenantID); err != nil {
		return err
	}

	insertAvatar := `INSERT INTO avatars (avatar_id, tenant_id, user_id, gender, backend, betas, scale, regional_bias,
        assumed_bmi, personalization_applied, glb_path, metadata_path, idempotency_key, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err = tx.Exec(ctx, insertAvatar,
		state.ID,
		state.TenantID,
		state.UserID,
		string(state.Gender),
		string(state.Backend),
		betas,
		state.Params.Scale,
		bias,
		state.Params.AssumedBMI,
		state.Params.PersonalizationApplied,
		state.GLBPath,
		state.MetadataPath,
		nullIfEmpty(idempotencyKey),
		state.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, state.TenantID, "avatar", state.ID, "avatar.generated",
		partitionByUser(state.TenantID, state.UserID), events.AvatarGenerated{
			AvatarID:               state.ID,
			TenantID:               state.TenantID,
			UserID:                 state.UserID,
			Backend:                string(state.Backend),
			Gender:                 string(state.Gender),
			Scale:                  state.Params.Scale,
			PersonalizationApplied: state.Params.PersonalizationApplied,
			GeneratedAt:            state.CreatedAt,
		}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetAvatar retrieves avatar metadata by ID.
func (r *Repository) GetAvatar(ctx context.Context, tenantID, avatarID string) (*domain.AvatarState, error) {
	query := `SELECT ` + avatarColumns + ` FROM avatars WHERE tenant_id=$1 AND avatar_id=$2`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, query, tenantID, avatarID)
	state, err := scanAvatar(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

// ListAvatarsByUser returns avatar metadata for a user ordered by creation time.
func (r *Repository) ListAvatarsByUser(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.AvatarState, *domain.Cursor, error) {
	args := []interface{}{tenantID, userID, limit}
	query := `SELECT ` + avatarColumns + ` FROM avatars WHERE tenant_id=$1 AND user_id=$2`

	if cursor != nil {
		query += ` AND (created_at, avatar_id) < ($4, $5)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY created_at DESC, avatar_id DESC LIMIT $3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.AvatarState, 0, limit)
	for rows.Next() {
		state, err := scanAvatar(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	return results, nextCursor, nil
}

// CreateMorphSequence persists sequence metadata and records the completion
// event inside a single transaction.
func (r *Repository) CreateMorphSequence(ctx context.Context, seq domain.MorphSequence) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", seq.TenantID); err != nil {
		return err
	}

	insert := `INSERT INTO morph_sequences (sequence_id, tenant_id, user_id, start_avatar_id, end_avatar_id,
        steps, backend, directory, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, insert,
		seq.ID,
		seq.TenantID,
		seq.UserID,
		seq.StartAvatarID,
		seq.EndAvatarID,
		seq.Steps,
		string(seq.Backend),
		seq.Directory,
		seq.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, seq.TenantID, "morph_sequence", seq.ID, "morph.completed",
		seq.ID, events.MorphCompleted{
			SequenceID:    seq.ID,
			TenantID:      seq.TenantID,
			UserID:        seq.UserID,
			StartAvatarID: seq.StartAvatarID,
			EndAvatarID:   seq.EndAvatarID,
			Steps:         seq.Steps,
			Backend:       string(seq.Backend),
			CompletedAt:   seq.CreatedAt,
		}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetMorphSequence retrieves sequence metadata by ID.
func (r *Repository) GetMorphSequence(ctx context.Context, tenantID, sequenceID string) (*domain.MorphSequence, error) {
	const query = `SELECT sequence_id, tenant_id, user_id, start_avatar_id, end_avatar_id, steps, backend, directory, created_at
        FROM morph_sequences WHERE tenant_id=$1 AND sequence_id=$2`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, query, tenantID, sequenceID)
	var seq domain.MorphSequence
	var backend string
	if err := row.Scan(&seq.ID, &seq.TenantID, &seq.UserID, &seq.StartAvatarID, &seq.EndAvatarID, &seq.Steps, &backend, &seq.Directory, &seq.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}
	seq.Backend = domain.BackendVariant(backend)

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &seq, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, tenantID, aggregateType, aggregateID, eventType, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		tenantID,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAvatar(row rowScanner) (*domain.AvatarState, error) {
	var (
		state           domain.AvatarState
		gender, backend string
		betas, bias     []byte
	)
	if err := row.Scan(&state.ID, &state.TenantID, &state.UserID, &gender, &backend, &betas, &state.Params.Scale,
		&bias, &state.Params.AssumedBMI, &state.Params.PersonalizationApplied,
		&state.GLBPath, &state.MetadataPath, &state.CreatedAt); err != nil {
		return nil, err
	}

	state.Gender = domain.GenderVariant(gender)
	state.Backend = domain.BackendVariant(backend)

	var values []float64
	if err := json.Unmarshal(betas, &values); err != nil {
		return nil, fmt.Errorf("corrupt betas for avatar %s: %w", state.ID, err)
	}
	if len(values) != domain.NumShapeParams {
		return nil, fmt.Errorf("avatar %s has %d betas, expected %d", state.ID, len(values), domain.NumShapeParams)
	}
	copy(state.Params.Betas[:], values)

	state.Params.RegionalBias = make(map[string]bool)
	if len(bias) > 0 {
		if err := json.Unmarshal(bias, &state.Params.RegionalBias); err != nil {
			return nil, fmt.Errorf("corrupt regional bias for avatar %s: %w", state.ID, err)
		}
	}

	return &state, nil
}

func encodeParams(params domain.ShapeParameters) ([]byte, []byte, error) {
	betas, err := json.Marshal(params.Betas[:])
	if err != nil {
		return nil, nil, err
	}
	bias, err := json.Marshal(params.RegionalBias)
	if err != nil {
		return nil, nil, err
	}
	return betas, bias, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func partitionByUser(tenantID, userID string) string {
	return fmt.Sprintf("%s:%s", tenantID, userID)
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"avatar.generated": {
		Topic:         "avatar_events",
		SchemaSubject: "avatar_events-value",
	},
	"morph.completed": {
		Topic:         "morph_events",
		SchemaSubject: "morph_events-value",
	},
}
