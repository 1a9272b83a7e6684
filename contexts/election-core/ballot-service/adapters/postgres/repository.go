package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"caucus/contexts/election-core/ballot-service/domain/entities"
	domainerrors "caucus/contexts/election-core/ballot-service/domain/errors"
	"caucus/contexts/election-core/ballot-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SaveBallot(ctx context.Context, ballot entities.Ballot) error {
	row, err := ballotModelFromEntity(ballot)
	if err != nil {
		return r.logError("ballot_repo_encode_rankings_failed", err,
			"poll_id", strings.TrimSpace(ballot.PollID),
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "poll_id"}, {Name: "voter_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"rankings":   row.Rankings,
			"submitted":  row.Submitted,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("ballot_repo_save_ballot_failed", create.Error,
			"poll_id", row.PollID,
		)
	}
	return nil
}

func (r *Repository) GetBallot(ctx context.Context, pollID string, voterID string) (entities.Ballot, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", strings.TrimSpace(pollID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, domainerrors.ErrBallotNotFound
		}
		return entities.Ballot{}, r.logError("ballot_repo_get_ballot_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	return row.toEntity()
}

func (r *Repository) ListSubmittedByPoll(ctx context.Context, pollID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", strings.TrimSpace(pollID)).
		Where("submitted = ?", true).
		Order("voter_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_submitted_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		ballot, err := row.toEntity()
		if err != nil {
			return nil, r.logError("ballot_repo_decode_rankings_failed", err,
				"poll_id", row.PollID,
			)
		}
		items = append(items, ballot)
	}
	return items, nil
}

// SubmittedRankings satisfies the poll module's ballot reader.
func (r *Repository) SubmittedRankings(ctx context.Context, pollID string) (map[string][]string, error) {
	ballots, err := r.ListSubmittedByPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	rankings := make(map[string][]string, len(ballots))
	for _, ballot := range ballots {
		rankings[ballot.VoterID] = ballot.Rankings
	}
	return rankings, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("ballot_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("ballot_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		BallotRef:   row.BallotRef,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		BallotRef:   strings.TrimSpace(record.BallotRef),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("ballot_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.BallotRef != row.BallotRef {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election-core/ballot-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ballot repository operation failed", fields...)
	return err
}

type ballotModel struct {
	PollID    string    `gorm:"column:poll_id;primaryKey"`
	VoterID   string    `gorm:"column:voter_id;primaryKey"`
	Rankings  []byte    `gorm:"column:rankings"`
	Submitted bool      `gorm:"column:submitted"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) (ballotModel, error) {
	rankings, err := json.Marshal(ballot.Rankings)
	if err != nil {
		return ballotModel{}, err
	}
	row := ballotModel{
		PollID:    strings.TrimSpace(ballot.PollID),
		VoterID:   strings.TrimSpace(ballot.VoterID),
		Rankings:  rankings,
		Submitted: ballot.Submitted,
		CreatedAt: ballot.CreatedAt.UTC(),
		UpdatedAt: ballot.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m ballotModel) toEntity() (entities.Ballot, error) {
	var rankings []string
	if len(m.Rankings) > 0 {
		if err := json.Unmarshal(m.Rankings, &rankings); err != nil {
			return entities.Ballot{}, err
		}
	}
	return entities.Ballot{
		PollID:    m.PollID,
		VoterID:   m.VoterID,
		Rankings:  rankings,
		Submitted: m.Submitted,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	BallotRef   string    `gorm:"column:ballot_ref"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "ballot_idempotency"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.BallotRepository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
