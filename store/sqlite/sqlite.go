/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (numbering.Store, numbering.TxStore,
  numbering.ViewStore) plus the member/payment/series records the admin
  surface needs. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  numbering.DocumentStore:     Document persistence and serial queries
  numbering.TransactionSource: Payment reads for the issuance engine
  numbering.TxStore:           One store transaction around check + insert
  numbering.ViewStore:         Document/owner join for rendering

APPEND-ONLY ENFORCEMENT:
  The documents table is append-only:
  - No UPDATE statements on documents
  - No DELETE statements on documents (outside the dev-only Reset)
  Corrective documents are issued against new payments by the billing
  surface; this store never revises an issued document.

KEY TABLES:
  members:    Owners (the multi-tenant dimension)
  payments:   Source transactions (mutable by the billing surface)
  documents:  Issued documents (append-only, both uniqueness constraints)
  series:     Registered document series definitions

UNIQUENESS CONSTRAINTS:
  documents.payment_id UNIQUE:    at most one document per payment
  documents.serial_number UNIQUE: no two documents share a serial

  These two constraints are the engine's entire concurrency mechanism.
  InsertDocument classifies which one fired by inspecting the violation
  message and maps it onto numbering.ErrDuplicateDocument or
  numbering.ErrDuplicateSerial.

SERIAL QUERIES:
  MaxSerialCounter casts the trailing counter to INTEGER and takes the
  numeric maximum, so serials that widened past the padding width
  (RCP-202501-1000) still compare correctly against padded ones.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.WithTx(ctx, func(s numbering.Store) error {
      doc, err := issuer.EnsureDocument(ctx, s, paymentID, actor)
      ...
  })

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - numbering/store.go: Interface definitions
  - numbering/issuer.go: Issuance logic using this store
  - numbering/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/billing-engine/numbering"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Members (owners, the multi-tenant dimension)
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	-- Payments (source transactions, owned by the billing surface)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_member
		ON payments(member_id);
	CREATE INDEX IF NOT EXISTS idx_payments_effective_at
		ON payments(effective_at);

	-- Documents (append-only issuance record)
	-- CRITICAL: the two UNIQUE constraints below are the engine's entire
	-- concurrency mechanism. payment_id enforces at-most-one document per
	-- payment; serial_number enforces global serial uniqueness.
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		serial_number TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		issued_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_kind
		ON documents(kind);

	-- Series (registered document series definitions)
	CREATE TABLE IF NOT EXISTS series (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		domain TEXT NOT NULL,
		counter_width INTEGER NOT NULL DEFAULT 3,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx so the numbering store
// methods can run inside or outside a store transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// DOCUMENT STORE (numbering.DocumentStore interface)
// =============================================================================

// GetDocumentByTransaction returns the document issued for a payment, or
// (nil, nil) when none exists.
func (s *Store) GetDocumentByTransaction(ctx context.Context, id numbering.TransactionID) (*numbering.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getDocumentByTransaction(ctx, s.db, id)
}

func getDocumentByTransaction(ctx context.Context, q querier, id numbering.TransactionID) (*numbering.Document, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, payment_id, kind, serial_number, amount, currency, issued_by, created_at
		FROM documents
		WHERE payment_id = ?
	`, string(id))

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document for payment %s: %w", id, err)
	}
	return doc, nil
}

// MaxSerialCounter returns the highest counter issued within a prefix,
// comparing numerically. Returns 0 when the prefix has no documents.
func (s *Store) MaxSerialCounter(ctx context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maxSerialCounter(ctx, s.db, prefix)
}

func maxSerialCounter(ctx context.Context, q querier, prefix string) (int, error) {
	// substr is 1-based: the counter starts after "{prefix}-".
	query := `
		SELECT COALESCE(MAX(CAST(substr(serial_number, ?) AS INTEGER)), 0)
		FROM documents
		WHERE serial_number LIKE ?
	`

	var max int
	err := q.QueryRowContext(ctx, query, len(prefix)+2, prefix+"-%").Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max serial for %s: %w", prefix, err)
	}
	return max, nil
}

// InsertDocument persists a new document. Classifies uniqueness violations:
// a payment_id collision means another caller already issued the document,
// a serial_number collision means the allocation race was lost.
func (s *Store) InsertDocument(ctx context.Context, doc numbering.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertDocument(ctx, s.db, doc)
}

func insertDocument(ctx context.Context, q querier, doc numbering.Document) error {
	query := `
		INSERT INTO documents
		(id, payment_id, kind, serial_number, amount, currency, issued_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		string(doc.ID),
		string(doc.TransactionID),
		doc.Kind.KindCode(),
		doc.SerialNumber,
		doc.Amount.Value.String(),
		doc.Amount.Currency,
		nullString(doc.IssuedBy),
		doc.CreatedAt.UTC().Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			// Distinguish which constraint fired: the recoveries differ.
			if strings.Contains(err.Error(), "documents.payment_id") {
				return numbering.ErrDuplicateDocument
			}
			if strings.Contains(err.Error(), "documents.serial_number") {
				return numbering.ErrDuplicateSerial
			}
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

// ListDocuments returns all issued documents ordered by serial number.
func (s *Store) ListDocuments(ctx context.Context) ([]numbering.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payment_id, kind, serial_number, amount, currency, issued_by, created_at
		FROM documents
		ORDER BY serial_number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []numbering.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*numbering.Document, error) {
	var (
		doc       numbering.Document
		id        string
		paymentID string
		kindCode  string
		amount    string
		currency  string
		issuedBy  sql.NullString
		createdAt string
	)

	err := row.Scan(&id, &paymentID, &kindCode, &doc.SerialNumber,
		&amount, &currency, &issuedBy, &createdAt)
	if err != nil {
		return nil, err
	}

	doc.ID = numbering.DocumentID(id)
	doc.TransactionID = numbering.TransactionID(paymentID)
	// Convert string to DocumentKind via registry
	doc.Kind = numbering.GetOrCreateKind(kindCode)
	doc.Amount = numbering.Money{Value: numbering.MustParseDecimal(amount), Currency: currency}
	doc.IssuedBy = issuedBy.String
	doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &doc, nil
}

// =============================================================================
// TRANSACTION SOURCE (numbering.TransactionSource interface)
// =============================================================================

// GetTransaction returns a payment as the engine's source transaction, or
// (nil, nil) when it does not exist.
func (s *Store) GetTransaction(ctx context.Context, id numbering.TransactionID) (*numbering.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getTransaction(ctx, s.db, id)
}

func getTransaction(ctx context.Context, q querier, id numbering.TransactionID) (*numbering.Transaction, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, member_id, amount, currency, effective_at, note, created_at, updated_at
		FROM payments
		WHERE id = ?
	`, string(id))

	tx, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment %s: %w", id, err)
	}
	return tx, nil
}

func scanPayment(row rowScanner) (*numbering.Transaction, error) {
	var (
		tx          numbering.Transaction
		id          string
		memberID    string
		amount      string
		currency    string
		effectiveAt string
		note        sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(&id, &memberID, &amount, &currency, &effectiveAt, &note, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	tx.ID = numbering.TransactionID(id)
	tx.OwnerID = numbering.OwnerID(memberID)
	tx.Amount = numbering.Money{Value: numbering.MustParseDecimal(amount), Currency: currency}
	tx.EffectiveAt, _ = time.Parse(time.RFC3339, effectiveAt)
	tx.Note = note.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (numbering.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. Handlers wrap
// EnsureDocument in this so the existence check and the insert share one
// transaction; the engine itself never commits or rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(store numbering.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs the numbering store surface against an open *sql.Tx, giving
// the issuer read-your-writes within the caller's transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetDocumentByTransaction(ctx context.Context, id numbering.TransactionID) (*numbering.Document, error) {
	return getDocumentByTransaction(ctx, ts.tx, id)
}

func (ts *txStore) MaxSerialCounter(ctx context.Context, prefix string) (int, error) {
	return maxSerialCounter(ctx, ts.tx, prefix)
}

func (ts *txStore) InsertDocument(ctx context.Context, doc numbering.Document) error {
	return insertDocument(ctx, ts.tx, doc)
}

func (ts *txStore) GetTransaction(ctx context.Context, id numbering.TransactionID) (*numbering.Transaction, error) {
	return getTransaction(ctx, ts.tx, id)
}

// =============================================================================
// VIEW STORE (numbering.ViewStore interface)
// =============================================================================

// GetDocumentView returns the document for a payment joined with member
// contact data. When ownerFilter is non-empty, documents belonging to a
// different member are treated as not found.
func (s *Store) GetDocumentView(ctx context.Context, id numbering.TransactionID, ownerFilter numbering.OwnerID) (*numbering.DocumentView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT d.id, d.payment_id, d.kind, d.serial_number, d.amount, d.currency,
		       d.issued_by, d.created_at,
		       p.member_id, COALESCE(m.name, ''), COALESCE(m.email, '')
		FROM documents d
		JOIN payments p ON p.id = d.payment_id
		LEFT JOIN members m ON m.id = p.member_id
		WHERE d.payment_id = ?
	`
	args := []any{string(id)}
	if ownerFilter != "" {
		query += " AND p.member_id = ?"
		args = append(args, string(ownerFilter))
	}

	var (
		view      numbering.DocumentView
		docID     string
		paymentID string
		kindCode  string
		amount    string
		currency  string
		issuedBy  sql.NullString
		createdAt string
		memberID  string
	)

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&docID, &paymentID, &kindCode, &view.SerialNumber, &amount, &currency,
		&issuedBy, &createdAt, &memberID, &view.OwnerName, &view.OwnerEmail,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document view for payment %s: %w", id, err)
	}

	view.ID = numbering.DocumentID(docID)
	view.TransactionID = numbering.TransactionID(paymentID)
	view.Kind = numbering.GetOrCreateKind(kindCode)
	view.Amount = numbering.Money{Value: numbering.MustParseDecimal(amount), Currency: currency}
	view.IssuedBy = issuedBy.String
	view.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	view.OwnerID = numbering.OwnerID(memberID)
	return &view, nil
}

// =============================================================================
// MEMBER STORE
// =============================================================================

// Member represents an owner record.
type Member struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// SaveMember saves a member.
func (s *Store) SaveMember(ctx context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO members (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Name, m.Email,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetMember retrieves a member by ID.
func (s *Store) GetMember(ctx context.Context, id string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m Member
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM members WHERE id = ?",
		id,
	).Scan(&m.ID, &m.Name, &m.Email, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &m, nil
}

// ListMembers returns all members.
func (s *Store) ListMembers(ctx context.Context) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM members ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		members = append(members, m)
	}
	return members, rows.Err()
}

// =============================================================================
// PAYMENT STORE (the billing surface's side of the house)
// =============================================================================

// SavePayment inserts a new payment.
func (s *Store) SavePayment(ctx context.Context, p numbering.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO payments (id, member_id, amount, currency, effective_at, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		string(p.ID),
		string(p.OwnerID),
		p.Amount.Value.String(),
		p.Amount.Currency,
		p.EffectiveAt.UTC().Format(time.RFC3339),
		nullString(p.Note),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// UpdatePaymentAmount adjusts a payment's amount and note. Documents already
// issued for the payment keep their snapshot amount; only the source record
// changes.
func (s *Store) UpdatePaymentAmount(ctx context.Context, id numbering.TransactionID, amount numbering.Money, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET amount = ?, currency = ?, note = ?, updated_at = ?
		WHERE id = ?
	`,
		amount.Value.String(),
		amount.Currency,
		nullString(note),
		time.Now().UTC().Format(time.RFC3339),
		string(id),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return numbering.ErrTransactionNotFound
	}
	return nil
}

// ListPayments returns all payments ordered by effective date.
func (s *Store) ListPayments(ctx context.Context) ([]numbering.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, amount, currency, effective_at, note, created_at, updated_at
		FROM payments
		ORDER BY effective_at ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []numbering.Transaction
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// =============================================================================
// SERIES STORE
// =============================================================================

// SeriesRecord is a stored document series definition.
type SeriesRecord struct {
	Code         string
	Name         string
	Domain       string
	CounterWidth int
	CreatedAt    time.Time
}

// SaveSeries saves a series definition.
func (s *Store) SaveSeries(ctx context.Context, sr SeriesRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO series (code, name, domain, counter_width, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			domain = excluded.domain,
			counter_width = excluded.counter_width
	`

	width := sr.CounterWidth
	if width <= 0 {
		width = numbering.DefaultCounterWidth
	}
	_, err := s.db.ExecContext(ctx, query,
		sr.Code, sr.Name, sr.Domain, width,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListSeries returns all registered series definitions.
func (s *Store) ListSeries(ctx context.Context) ([]SeriesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT code, name, domain, counter_width, created_at FROM series ORDER BY code",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SeriesRecord
	for rows.Next() {
		var sr SeriesRecord
		var createdAt string
		if err := rows.Scan(&sr.Code, &sr.Name, &sr.Domain, &sr.CounterWidth, &createdAt); err != nil {
			return nil, err
		}
		sr.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, sr)
	}
	return records, rows.Err()
}

// =============================================================================
// RESET (dev only)
// =============================================================================

// Reset deletes all data. Dev-only, used by the demo scenario loader.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"documents", "payments", "members", "series"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: str, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
