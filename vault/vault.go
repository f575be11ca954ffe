package vault

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/fanyicharllson/whichemail/rowstore"
	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrWrongPassphrase is returned by Open when the passphrase does not
	// match the one the vault was created with.
	ErrWrongPassphrase = errors.New("vault passphrase does not match", errors.CategoryAuth).
				WithTextCode("VAULT_WRONG_PASSPHRASE")
	// ErrCorrupted is returned when a stored secret fails authentication.
	ErrCorrupted = errors.New("stored secret is corrupted", errors.CategoryInternal).
			WithTextCode("VAULT_CORRUPTED")
)

// credentialNamespace scopes deterministic credential ids.
var credentialNamespace = uuid.MustParse("6f1c7a52-41b6-4c55-9a55-3f2a0f9f7d10")

const (
	saltMetaKey  = "kdf_salt"
	checkMetaKey = "passphrase_check"
	checkText    = "whichemail-vault"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:credentials,alias:cr"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	OwnerID   string    `bun:"owner_id,notnull"`
	ServiceID string    `bun:"service_id,notnull"`
	Secret    []byte    `bun:"secret,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type metaRecord struct {
	bun.BaseModel `bun:"table:vault_meta,alias:vm"`

	Name  string `bun:"name,pk"`
	Value []byte `bun:"value,notnull"`
}

// Vault stores service passwords encrypted at rest, scoped to the acting
// user of each request.
type Vault struct {
	repo   repository.Repository[*credentialRecord]
	key    []byte
	now    func() time.Time
	logger *slog.Logger
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	params KDFParams
	now    func() time.Time
	logger *slog.Logger
}

// WithKDFParams overrides the argon2id cost parameters.
func WithKDFParams(p KDFParams) Option {
	return func(c *openConfig) { c.params = p }
}

// WithClock overrides the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *openConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *openConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open prepares the vault tables in db and unlocks the vault with
// passphrase. The first Open fixes the passphrase for the database.
func Open(ctx context.Context, db *bun.DB, passphrase string, opts ...Option) (*Vault, error) {
	if passphrase == "" {
		return nil, errors.New("vault passphrase is required", errors.CategoryValidation).
			WithTextCode("VAULT_PASSPHRASE_REQUIRED")
	}

	cfg := openConfig{params: DefaultKDFParams(), now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := createSchema(ctx, db); err != nil {
		return nil, err
	}

	salt, fresh, err := loadOrCreateSalt(ctx, db)
	if err != nil {
		return nil, err
	}
	key := DeriveKey(passphrase, salt, cfg.params)

	if err := verifyPassphrase(ctx, db, key, fresh); err != nil {
		return nil, err
	}

	repo := repository.NewRepository[*credentialRecord](db, repository.ModelHandlers[*credentialRecord]{
		NewRecord: func() *credentialRecord { return &credentialRecord{} },
		GetID: func(r *credentialRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *credentialRecord, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "service_id"
		},
	})

	return &Vault{repo: repo, key: key, now: cfg.now, logger: cfg.logger}, nil
}

func createSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*credentialRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "create credentials table")
	}
	if _, err := db.NewCreateIndex().Model((*credentialRecord)(nil)).
		Index("credentials_owner_idx").IfNotExists().Column("owner_id").Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "create credentials index")
	}
	if _, err := db.NewCreateTable().Model((*metaRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "create vault meta table")
	}
	return nil
}

func loadOrCreateSalt(ctx context.Context, db *bun.DB) ([]byte, bool, error) {
	meta := new(metaRecord)
	err := db.NewSelect().Model(meta).Where("name = ?", saltMetaKey).Scan(ctx)
	if err == nil {
		return meta.Value, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, errors.Wrap(err, errors.CategoryExternal, "load vault salt")
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, false, err
	}
	if _, err := db.NewInsert().Model(&metaRecord{Name: saltMetaKey, Value: salt}).Exec(ctx); err != nil {
		return nil, false, errors.Wrap(err, errors.CategoryExternal, "store vault salt")
	}
	return salt, true, nil
}

// verifyPassphrase stores an encrypted marker on first use and checks it on
// every later Open.
func verifyPassphrase(ctx context.Context, db *bun.DB, key []byte, fresh bool) error {
	aad := []byte(checkMetaKey)
	if fresh {
		sealed, err := seal(key, []byte(checkText), aad)
		if err != nil {
			return err
		}
		if _, err := db.NewInsert().Model(&metaRecord{Name: checkMetaKey, Value: sealed}).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryExternal, "store vault check")
		}
		return nil
	}

	meta := new(metaRecord)
	if err := db.NewSelect().Model(meta).Where("name = ?", checkMetaKey).Scan(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "load vault check")
	}
	plain, err := open(key, meta.Value, aad)
	if err != nil || string(plain) != checkText {
		return ErrWrongPassphrase
	}
	return nil
}

func credentialID(ownerID, serviceID string) uuid.UUID {
	return uuid.NewSHA1(credentialNamespace, []byte(ownerID+"/"+serviceID))
}

func aadFor(ownerID, serviceID string) []byte {
	return []byte(ownerID + "/" + serviceID)
}

func actor(ctx context.Context) (string, error) {
	owner := rowstore.ActorFrom(ctx)
	if owner == "" {
		return "", rowstore.Unauthorized()
	}
	return owner, nil
}

// Set stores secret for serviceID, replacing any previous one.
func (v *Vault) Set(ctx context.Context, serviceID, secret string) error {
	owner, err := actor(ctx)
	if err != nil {
		return err
	}

	sealed, err := seal(v.key, []byte(secret), aadFor(owner, serviceID))
	if err != nil {
		return err
	}

	now := v.now().UTC()
	existing, err := v.lookup(ctx, owner, serviceID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Secret = sealed
		existing.UpdatedAt = now
		if _, err := v.repo.Update(ctx, existing); err != nil {
			return errors.Wrap(err, errors.CategoryExternal, "update credential")
		}
	} else {
		rec := &credentialRecord{
			ID:        credentialID(owner, serviceID),
			OwnerID:   owner,
			ServiceID: serviceID,
			Secret:    sealed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := v.repo.Create(ctx, rec); err != nil {
			return errors.Wrap(err, errors.CategoryExternal, "create credential")
		}
	}

	v.logger.Debug("credential stored", "owner_id", owner, "service_id", serviceID)
	return nil
}

// Get returns the secret stored for serviceID.
func (v *Vault) Get(ctx context.Context, serviceID string) (string, error) {
	owner, err := actor(ctx)
	if err != nil {
		return "", err
	}

	rec, err := v.lookup(ctx, owner, serviceID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", notFound(serviceID)
	}

	plain, err := open(v.key, rec.Secret, aadFor(owner, serviceID))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Has reports whether a secret is stored for serviceID.
func (v *Vault) Has(ctx context.Context, serviceID string) (bool, error) {
	owner, err := actor(ctx)
	if err != nil {
		return false, err
	}
	n, err := v.repo.Count(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", credentialID(owner, serviceID).String())
	})
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryExternal, "count credentials")
	}
	return n > 0, nil
}

// Delete removes the secret stored for serviceID.
func (v *Vault) Delete(ctx context.Context, serviceID string) error {
	owner, err := actor(ctx)
	if err != nil {
		return err
	}

	rec, err := v.lookup(ctx, owner, serviceID)
	if err != nil {
		return err
	}
	if rec == nil {
		return notFound(serviceID)
	}
	if err := v.repo.Delete(ctx, rec); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "delete credential")
	}
	return nil
}

// DeleteMany removes the secrets of serviceIDs and returns how many existed.
func (v *Vault) DeleteMany(ctx context.Context, serviceIDs []string) (int, error) {
	owner, err := actor(ctx)
	if err != nil {
		return 0, err
	}
	if len(serviceIDs) == 0 {
		return 0, nil
	}

	n, err := v.repo.Count(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.owner_id = ?", owner).
			Where("?TableAlias.service_id IN (?)", bun.In(serviceIDs))
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryExternal, "count credentials")
	}
	if n == 0 {
		return 0, nil
	}

	err = v.repo.DeleteMany(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("owner_id = ?", owner).
			Where("service_id IN (?)", bun.In(serviceIDs))
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryExternal, "delete credentials")
	}
	v.logger.Info("credentials deleted", "owner_id", owner, "count", n)
	return n, nil
}

func notFound(serviceID string) error {
	return errors.New("No password saved for this service", errors.CategoryNotFound).
		WithTextCode("CREDENTIAL_NOT_FOUND").
		WithMetadata(map[string]any{"service_id": serviceID})
}

// lookup returns the credential of serviceID for owner, or nil.
func (v *Vault) lookup(ctx context.Context, owner, serviceID string) (*credentialRecord, error) {
	id := credentialID(owner, serviceID).String()
	recs, _, err := v.repo.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id).Limit(1)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "load credential")
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}
