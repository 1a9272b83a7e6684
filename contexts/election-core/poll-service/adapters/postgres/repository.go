package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"caucus/contexts/election-core/poll-service/domain/entities"
	domainerrors "caucus/contexts/election-core/poll-service/domain/errors"
	"caucus/contexts/election-core/poll-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
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

func (r *Repository) SavePoll(ctx context.Context, poll entities.Poll) error {
	row := pollModelFromEntity(poll)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"channel_id":       row.ChannelID,
			"title":            row.Title,
			"description":      row.Description,
			"status":           row.Status,
			"created_by":       row.CreatedBy,
			"winner_option_id": row.WinnerOptionID,
			"closed_at":        row.ClosedAt,
			"updated_at":       row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("poll_repo_save_poll_failed", create.Error,
			"poll_id", strings.TrimSpace(poll.PollID),
			"channel_id", strings.TrimSpace(poll.ChannelID),
		)
	}

	// Options are immutable once declared, so conflicts are left untouched.
	for position, option := range poll.Options {
		optionRow := pollOptionModel{
			PollID:   row.ID,
			OptionID: strings.TrimSpace(option.OptionID),
			Label:    strings.TrimSpace(option.Label),
			Position: position,
		}
		insert := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poll_id"}, {Name: "option_id"}},
			DoNothing: true,
		}).Create(&optionRow)
		if insert.Error != nil {
			return r.logError("poll_repo_save_option_failed", insert.Error,
				"poll_id", row.ID,
				"option_id", optionRow.OptionID,
			)
		}
	}
	return nil
}

func (r *Repository) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	var row pollModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(pollID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("poll_repo_get_poll_failed", err, "poll_id", strings.TrimSpace(pollID))
	}
	options, err := r.loadOptions(ctx, row.ID)
	if err != nil {
		return entities.Poll{}, err
	}
	return row.toEntity(options), nil
}

func (r *Repository) GetOpenPollByChannel(ctx context.Context, channelID string) (entities.Poll, bool, error) {
	var row pollModel
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", strings.TrimSpace(channelID)).
		Where("status = ?", string(entities.PollStatusOpen)).
		Order("created_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, false, nil
		}
		return entities.Poll{}, false, r.logError("poll_repo_get_open_poll_by_channel_failed", err,
			"channel_id", strings.TrimSpace(channelID),
		)
	}
	options, err := r.loadOptions(ctx, row.ID)
	if err != nil {
		return entities.Poll{}, false, err
	}
	return row.toEntity(options), true, nil
}

func (r *Repository) ListOpenPolls(ctx context.Context) ([]entities.Poll, error) {
	var rows []pollModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.PollStatusOpen)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("poll_repo_list_open_polls_failed", err)
	}
	items := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		options, err := r.loadOptions(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, row.toEntity(options))
	}
	return items, nil
}

func (r *Repository) loadOptions(ctx context.Context, pollID string) ([]entities.PollOption, error) {
	var rows []pollOptionModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("poll_repo_load_options_failed", err, "poll_id", pollID)
	}
	options := make([]entities.PollOption, 0, len(rows))
	for _, row := range rows {
		options = append(options, entities.PollOption{
			OptionID: row.OptionID,
			Label:    row.Label,
		})
	}
	return options, nil
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
		return ports.IdempotencyRecord{}, false, r.logError("poll_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("poll_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		PollID:      row.PollID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		PollID:      strings.TrimSpace(record.PollID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("poll_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("poll_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.PollID != row.PollID {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("poll_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("poll_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("poll_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("poll_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("poll_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

// ReserveEvent backs consumer-side dedup. The notifier module borrows this
// store through its own port so each event is rendered at most once.
func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("poll_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("poll_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election-core/poll-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("poll repository operation failed", fields...)
	return err
}

type pollModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	ChannelID      string     `gorm:"column:channel_id"`
	Title          string     `gorm:"column:title"`
	Description    string     `gorm:"column:description"`
	Status         string     `gorm:"column:status"`
	CreatedBy      string     `gorm:"column:created_by"`
	WinnerOptionID string     `gorm:"column:winner_option_id"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	ClosedAt       *time.Time `gorm:"column:closed_at"`
}

func (pollModel) TableName() string {
	return "polls"
}

func pollModelFromEntity(poll entities.Poll) pollModel {
	row := pollModel{
		ID:             strings.TrimSpace(poll.PollID),
		ChannelID:      strings.TrimSpace(poll.ChannelID),
		Title:          strings.TrimSpace(poll.Title),
		Description:    strings.TrimSpace(poll.Description),
		Status:         string(poll.Status),
		CreatedBy:      strings.TrimSpace(poll.CreatedBy),
		WinnerOptionID: strings.TrimSpace(poll.WinnerOptionID),
		CreatedAt:      poll.CreatedAt.UTC(),
		UpdatedAt:      poll.UpdatedAt.UTC(),
		ClosedAt:       normalizeOptionalTime(poll.ClosedAt),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m pollModel) toEntity(options []entities.PollOption) entities.Poll {
	return entities.Poll{
		PollID:         m.ID,
		ChannelID:      m.ChannelID,
		Title:          m.Title,
		Description:    m.Description,
		Options:        options,
		Status:         entities.PollStatus(m.Status),
		CreatedBy:      m.CreatedBy,
		WinnerOptionID: m.WinnerOptionID,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		ClosedAt:       normalizeOptionalTime(m.ClosedAt),
	}
}

type pollOptionModel struct {
	PollID   string `gorm:"column:poll_id;primaryKey"`
	OptionID string `gorm:"column:option_id;primaryKey"`
	Label    string `gorm:"column:label"`
	Position int    `gorm:"column:position"`
}

func (pollOptionModel) TableName() string {
	return "poll_options"
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	PollID      string    `gorm:"column:poll_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "poll_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "poll_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "poll_event_dedup"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.PollRepository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
