package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"propsync/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id UUID PRIMARY KEY,
		external_source TEXT NOT NULL,
		external_id TEXT NOT NULL,
		title TEXT,
		purpose TEXT,
		category TEXT,
		price DOUBLE PRECISION,
		rooms INTEGER,
		baths INTEGER,
		area_sqft DOUBLE PRECISION,
		location_id TEXT,
		location_name TEXT,
		is_furnished BOOLEAN DEFAULT FALSE,
		completion_status TEXT,
		images JSONB,
		gallery_urls JSONB,
		floor_plan_urls JSONB,
		agent_info JSONB,
		agency_info JSONB,
		building_info JSONB,
		raw_data JSONB,
		last_synced_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(external_source, external_id)
	);

	CREATE TABLE IF NOT EXISTS agents (
		id UUID PRIMARY KEY,
		external_source TEXT NOT NULL,
		external_id TEXT NOT NULL,
		name TEXT,
		email TEXT,
		phone TEXT,
		whatsapp TEXT,
		photo_url TEXT,
		experience_years INTEGER,
		is_verified BOOLEAN DEFAULT FALSE,
		agency_external_id TEXT,
		first_seen_at TIMESTAMPTZ,
		last_seen_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(external_source, external_id)
	);

	CREATE TABLE IF NOT EXISTS agencies (
		id UUID PRIMARY KEY,
		external_source TEXT NOT NULL,
		external_id TEXT NOT NULL,
		name TEXT,
		logo_url TEXT,
		phone TEXT,
		property_count INTEGER,
		is_featured BOOLEAN DEFAULT FALSE,
		first_seen_at TIMESTAMPTZ,
		last_seen_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(external_source, external_id)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		external_source TEXT NOT NULL,
		external_id TEXT NOT NULL,
		location_external_id TEXT,
		purpose TEXT,
		price DOUBLE PRECISION,
		area_sqft DOUBLE PRECISION,
		rooms INTEGER,
		date TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(external_source, external_id)
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id BIGSERIAL PRIMARY KEY,
		sync_type TEXT,
		target TEXT,
		status TEXT,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		properties_found INTEGER DEFAULT 0,
		properties_synced INTEGER DEFAULT 0,
		photos_rehosted INTEGER DEFAULT 0,
		photos_cdn_referenced INTEGER DEFAULT 0,
		floor_plans_rehosted INTEGER DEFAULT 0,
		agents_discovered INTEGER DEFAULT 0,
		agencies_discovered INTEGER DEFAULT 0,
		api_calls_used INTEGER DEFAULT 0,
		storage_saved_mb DOUBLE PRECISION DEFAULT 0,
		errors JSONB
	);

	CREATE TABLE IF NOT EXISTS rate_limit_windows (
		id BIGSERIAL PRIMARY KEY,
		key TEXT NOT NULL,
		count INTEGER DEFAULT 0,
		window_start TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_properties_location ON properties(location_id);
	CREATE INDEX IF NOT EXISTS idx_properties_synced ON properties(external_source, last_synced_at);
	CREATE INDEX IF NOT EXISTS idx_agents_agency ON agents(agency_external_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_location ON transactions(location_external_id, date);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON sync_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_rate_windows_key ON rate_limit_windows(key, window_start);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Properties
// =============================================================================

// UpsertProperty inserts or refreshes a property keyed by
// (external_source, external_id), preserving the existing row's primary id.
func (s *PostgresStore) UpsertProperty(ctx context.Context, p *models.Property) error {
	query := `
		INSERT INTO properties (
			id, external_source, external_id, title, purpose, category, price,
			rooms, baths, area_sqft, location_id, location_name, is_furnished,
			completion_status, images, gallery_urls, floor_plan_urls,
			agent_info, agency_info, building_info, raw_data,
			last_synced_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		ON CONFLICT (external_source, external_id) DO UPDATE SET
			title = COALESCE(NULLIF(EXCLUDED.title, ''), properties.title),
			purpose = COALESCE(NULLIF(EXCLUDED.purpose, ''), properties.purpose),
			category = COALESCE(NULLIF(EXCLUDED.category, ''), properties.category),
			price = COALESCE(EXCLUDED.price, properties.price),
			rooms = COALESCE(EXCLUDED.rooms, properties.rooms),
			baths = COALESCE(EXCLUDED.baths, properties.baths),
			area_sqft = COALESCE(EXCLUDED.area_sqft, properties.area_sqft),
			location_id = COALESCE(NULLIF(EXCLUDED.location_id, ''), properties.location_id),
			location_name = COALESCE(NULLIF(EXCLUDED.location_name, ''), properties.location_name),
			is_furnished = EXCLUDED.is_furnished,
			completion_status = COALESCE(NULLIF(EXCLUDED.completion_status, ''), properties.completion_status),
			images = EXCLUDED.images,
			gallery_urls = EXCLUDED.gallery_urls,
			floor_plan_urls = EXCLUDED.floor_plan_urls,
			agent_info = COALESCE(EXCLUDED.agent_info, properties.agent_info),
			agency_info = COALESCE(EXCLUDED.agency_info, properties.agency_info),
			building_info = COALESCE(EXCLUDED.building_info, properties.building_info),
			raw_data = EXCLUDED.raw_data,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		p.ID, p.ExternalSource, p.ExternalID, p.Title, p.Purpose, p.Category, p.Price,
		p.Rooms, p.Baths, p.AreaSqFt, p.LocationID, p.LocationName, p.IsFurnished,
		p.CompletionStatus, p.Images, p.GalleryURLs, p.FloorPlanURLs,
		p.AgentInfo, p.AgencyInfo, p.BuildingInfo, p.RawData,
		p.LastSyncedAt, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (s *PostgresStore) GetPropertyByExternalID(ctx context.Context, source, externalID string) (*models.Property, error) {
	query := `
		SELECT id, external_source, external_id, title, purpose, category, price,
			rooms, baths, area_sqft, location_id, location_name, is_furnished,
			completion_status, images, gallery_urls, floor_plan_urls,
			agent_info, agency_info, building_info, raw_data,
			last_synced_at, created_at, updated_at
		FROM properties WHERE external_source = $1 AND external_id = $2`

	var p models.Property
	err := s.pool.QueryRow(ctx, query, source, externalID).Scan(
		&p.ID, &p.ExternalSource, &p.ExternalID, &p.Title, &p.Purpose, &p.Category, &p.Price,
		&p.Rooms, &p.Baths, &p.AreaSqFt, &p.LocationID, &p.LocationName, &p.IsFurnished,
		&p.CompletionStatus, &p.Images, &p.GalleryURLs, &p.FloorPlanURLs,
		&p.AgentInfo, &p.AgencyInfo, &p.BuildingInfo, &p.RawData,
		&p.LastSyncedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// Agents
// =============================================================================

func (s *PostgresStore) UpsertAgent(ctx context.Context, a *models.Agent) error {
	query := `
		INSERT INTO agents (
			id, external_source, external_id, name, email, phone, whatsapp,
			photo_url, experience_years, is_verified, agency_external_id,
			first_seen_at, last_seen_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (external_source, external_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), agents.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), agents.email),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), agents.phone),
			whatsapp = COALESCE(NULLIF(EXCLUDED.whatsapp, ''), agents.whatsapp),
			photo_url = COALESCE(NULLIF(EXCLUDED.photo_url, ''), agents.photo_url),
			experience_years = COALESCE(EXCLUDED.experience_years, agents.experience_years),
			is_verified = EXCLUDED.is_verified,
			agency_external_id = COALESCE(NULLIF(EXCLUDED.agency_external_id, ''), agents.agency_external_id),
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		a.ID, a.ExternalSource, a.ExternalID, a.Name, a.Email, a.Phone, a.WhatsApp,
		a.PhotoURL, a.ExperienceYears, a.IsVerified, a.AgencyExternalID,
		a.FirstSeenAt, a.LastSeenAt, a.CreatedAt,
	).Scan(&a.ID)
}

// =============================================================================
// Agencies
// =============================================================================

func (s *PostgresStore) UpsertAgency(ctx context.Context, a *models.Agency) error {
	query := `
		INSERT INTO agencies (
			id, external_source, external_id, name, logo_url, phone,
			property_count, is_featured, first_seen_at, last_seen_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_source, external_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), agencies.name),
			logo_url = COALESCE(NULLIF(EXCLUDED.logo_url, ''), agencies.logo_url),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), agencies.phone),
			property_count = COALESCE(EXCLUDED.property_count, agencies.property_count),
			is_featured = EXCLUDED.is_featured,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		a.ID, a.ExternalSource, a.ExternalID, a.Name, a.LogoURL, a.Phone,
		a.PropertyCount, a.IsFeatured, a.FirstSeenAt, a.LastSeenAt, a.CreatedAt,
	).Scan(&a.ID)
}

// =============================================================================
// Transactions
// =============================================================================

func (s *PostgresStore) UpsertTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, external_source, external_id, location_external_id, purpose,
			price, area_sqft, rooms, date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (external_source, external_id) DO UPDATE SET
			price = COALESCE(EXCLUDED.price, transactions.price),
			area_sqft = COALESCE(EXCLUDED.area_sqft, transactions.area_sqft),
			rooms = COALESCE(EXCLUDED.rooms, transactions.rooms),
			date = EXCLUDED.date
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		t.ID, t.ExternalSource, t.ExternalID, t.LocationExternalID, t.Purpose,
		t.Price, t.AreaSqFt, t.Rooms, t.Date, t.CreatedAt,
	).Scan(&t.ID)
}

// =============================================================================
// Sync Runs
// =============================================================================

func (s *PostgresStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `
		INSERT INTO sync_runs (
			sync_type, target, status, started_at, properties_found,
			properties_synced, photos_rehosted, photos_cdn_referenced,
			floor_plans_rehosted, agents_discovered, agencies_discovered,
			api_calls_used, storage_saved_mb, errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.SyncType, run.Target, run.Status, run.StartedAt, run.PropertiesFound,
		run.PropertiesSynced, run.PhotosRehosted, run.PhotosCDNReferenced,
		run.FloorPlansRehosted, run.AgentsDiscovered, run.AgenciesDiscovered,
		run.APICallsUsed, run.StorageSavedMB, run.Errors,
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `
		UPDATE sync_runs SET
			status = $2, completed_at = $3, properties_found = $4,
			properties_synced = $5, photos_rehosted = $6,
			photos_cdn_referenced = $7, floor_plans_rehosted = $8,
			agents_discovered = $9, agencies_discovered = $10,
			api_calls_used = $11, storage_saved_mb = $12, errors = $13
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Status, run.CompletedAt, run.PropertiesFound,
		run.PropertiesSynced, run.PhotosRehosted, run.PhotosCDNReferenced,
		run.FloorPlansRehosted, run.AgentsDiscovered, run.AgenciesDiscovered,
		run.APICallsUsed, run.StorageSavedMB, run.Errors,
	)
	return err
}

func (s *PostgresStore) ListSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	query := `
		SELECT id, sync_type, target, status, started_at, completed_at,
			properties_found, properties_synced, photos_rehosted,
			photos_cdn_referenced, floor_plans_rehosted, agents_discovered,
			agencies_discovered, api_calls_used, storage_saved_mb, errors
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var r models.SyncRun
		if err := rows.Scan(
			&r.ID, &r.SyncType, &r.Target, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.PropertiesFound, &r.PropertiesSynced, &r.PhotosRehosted,
			&r.PhotosCDNReferenced, &r.FloorPlansRehosted, &r.AgentsDiscovered,
			&r.AgenciesDiscovered, &r.APICallsUsed, &r.StorageSavedMB, &r.Errors,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// Rate Limit Windows
// =============================================================================

// ActiveWindow returns the most recent window for key whose start is at or
// after since, or nil when none exists.
func (s *PostgresStore) ActiveWindow(ctx context.Context, key string, since time.Time) (*models.RateLimitWindow, error) {
	query := `
		SELECT id, key, count, window_start, expires_at
		FROM rate_limit_windows
		WHERE key = $1 AND window_start >= $2
		ORDER BY window_start DESC
		LIMIT 1`

	var w models.RateLimitWindow
	err := s.pool.QueryRow(ctx, query, key, since).Scan(
		&w.ID, &w.Key, &w.Count, &w.WindowStart, &w.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *PostgresStore) CreateWindow(ctx context.Context, w *models.RateLimitWindow) error {
	query := `
		INSERT INTO rate_limit_windows (key, count, window_start, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.pool.QueryRow(ctx, query, w.Key, w.Count, w.WindowStart, w.ExpiresAt).Scan(&w.ID)
}

// SetWindowCount writes back an incremented count. Deliberately a plain
// write, not an atomic increment: under concurrent callers two requests can
// both read count < max before either writes, a bounded over-admission the
// limiter accepts.
func (s *PostgresStore) SetWindowCount(ctx context.Context, id int64, count int) error {
	query := `UPDATE rate_limit_windows SET count = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, count)
	return err
}

// DeleteExpiredWindows removes windows whose span has fully elapsed.
func (s *PostgresStore) DeleteExpiredWindows(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rate_limit_windows WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
