package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"furgocasa/internal/config"
	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates a payment store on an existing
// database connection.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	log.Info("DATABASE", "Creating payment storage with existing database connection")

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment tables: %w", err)
	}

	log.Info("DATABASE", "Payment storage initialized successfully")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL at %s", cfg.Addr))

	sslmode := "require"
	if cfg.Insecure {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Addr, cfg.Database, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established and tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "payments", "Creating payments table if not exists")

	paymentsQuery := `
    CREATE TABLE IF NOT EXISTS payments (
        id VARCHAR(64) PRIMARY KEY,
        booking_id VARCHAR(36) NOT NULL,
        order_number VARCHAR(12) NOT NULL UNIQUE,
        gateway VARCHAR(20) NOT NULL,
        payment_method VARCHAR(50),
        amount DECIMAL(10,2) NOT NULL,
        fee DECIMAL(10,2) NOT NULL DEFAULT 0,
        currency VARCHAR(3) NOT NULL DEFAULT 'EUR',
        status VARCHAR(20) NOT NULL,
        gateway_session_id VARCHAR(255),
        authorization_code VARCHAR(20),
        response_code VARCHAR(10),
        notes TEXT,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err := s.db.Exec(paymentsQuery); err != nil {
		return err
	}

	indexQuery := `CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments (booking_id);`
	_, err := s.db.Exec(indexQuery)
	return err
}

func (s *PostgreSQLStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("Creating payment %s for booking %s", payment.ID, payment.BookingID))

	query := `
        INSERT INTO payments (id, booking_id, order_number, gateway, payment_method, amount, fee, currency, status, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := s.db.ExecContext(ctx, query,
		payment.ID, payment.BookingID, payment.OrderNumber, payment.Gateway, payment.PaymentMethod,
		payment.Amount, payment.Fee, payment.Currency, payment.Status, payment.Notes,
		payment.CreatedAt, payment.UpdatedAt)
	return err
}

const paymentColumns = `id, booking_id, order_number, gateway, COALESCE(payment_method, ''), amount, fee, currency, status,
        COALESCE(gateway_session_id, ''), COALESCE(authorization_code, ''), COALESCE(response_code, ''), COALESCE(notes, ''), created_at, updated_at`

func (s *PostgreSQLStore) scanPayment(row *sql.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.OrderNumber, &p.Gateway, &p.PaymentMethod,
		&p.Amount, &p.Fee, &p.Currency, &p.Status,
		&p.GatewaySessionID, &p.AuthorizationCode, &p.ResponseCode, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgreSQLStore) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return s.scanPayment(row)
}

func (s *PostgreSQLStore) GetPaymentByOrderNumber(ctx context.Context, orderNumber string) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_number = $1`, orderNumber)
	return s.scanPayment(row)
}

func (s *PostgreSQLStore) GetPaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_session_id = $1`, sessionID)
	return s.scanPayment(row)
}

func (s *PostgreSQLStore) ListPaymentsByBooking(ctx context.Context, bookingID string) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		err := rows.Scan(&p.ID, &p.BookingID, &p.OrderNumber, &p.Gateway, &p.PaymentMethod,
			&p.Amount, &p.Fee, &p.Currency, &p.Status,
			&p.GatewaySessionID, &p.AuthorizationCode, &p.ResponseCode, &p.Notes,
			&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *PostgreSQLStore) UpdatePaymentStatus(ctx context.Context, id, status, notes string) error {
	s.log.LogDatabase("UPDATE", "payments", fmt.Sprintf("Payment %s -> %s", id, status))

	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $2, notes = $3, updated_at = NOW() WHERE id = $1`,
		id, status, notes)
	return err
}

func (s *PostgreSQLStore) SetGatewaySession(ctx context.Context, id, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET gateway_session_id = $2, updated_at = NOW() WHERE id = $1`,
		id, sessionID)
	return err
}

// ApplyAuthorizedPayment settles a pending payment and credits the
// booking in one transaction. The payment's status gates the whole
// operation: a second delivery of the same notification finds no
// pending row and returns ErrDuplicateNotification without touching
// the booking. Processing fees never count toward amount_paid.
func (s *PostgreSQLStore) ApplyAuthorizedPayment(ctx context.Context, paymentID, authorizationCode, responseCode string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE payments
        SET status = $2, authorization_code = $3, response_code = $4, updated_at = NOW()
        WHERE id = $1 AND status = $5
    `, paymentID, models.PaymentAuthorized, authorizationCode, responseCode, models.PaymentPending)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrDuplicateNotification
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE bookings b
        SET amount_paid = b.amount_paid + p.amount,
            payment_status = CASE
                WHEN b.amount_paid + p.amount >= b.total_amount THEN 'paid'
                ELSE 'partial'
            END,
            status = CASE WHEN b.status = 'pending' THEN 'confirmed' ELSE b.status END,
            updated_at = NOW()
        FROM payments p
        WHERE p.id = $1 AND b.id = p.booking_id
    `, paymentID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.LogDatabase("UPDATE", "payments", fmt.Sprintf("Payment %s authorized and applied to booking", paymentID))
	return nil
}

// ApplyRefund reverses an authorized payment. amount_paid never goes
// below zero even if the refunded payment exceeds what the booking
// shows as paid.
func (s *PostgreSQLStore) ApplyRefund(ctx context.Context, paymentID, notes string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE payments
        SET status = $2, notes = $3, updated_at = NOW()
        WHERE id = $1 AND status = $4
    `, paymentID, models.PaymentRefunded, notes, models.PaymentAuthorized)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrDuplicateNotification
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE bookings b
        SET amount_paid = GREATEST(b.amount_paid - p.amount, 0),
            payment_status = CASE
                WHEN b.amount_paid - p.amount <= 0 THEN 'refunded'
                ELSE 'partial'
            END,
            updated_at = NOW()
        FROM payments p
        WHERE p.id = $1 AND b.id = p.booking_id
    `, paymentID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.LogDatabase("UPDATE", "payments", fmt.Sprintf("Payment %s refunded", paymentID))
	return nil
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

func (s *PostgreSQLStore) GetBookingSummary(ctx context.Context, bookingID string) (*BookingSummary, error) {
	var b BookingSummary
	err := s.db.QueryRowContext(ctx, `
        SELECT id, booking_number, customer_email, status, payment_status, total_amount, amount_paid
        FROM bookings WHERE id = $1
    `, bookingID).Scan(&b.ID, &b.BookingNumber, &b.CustomerEmail, &b.Status, &b.PaymentStatus, &b.TotalAmount, &b.AmountPaid)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
