package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/events"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

// DB abstracts the pgx pool for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores products and stock_movements. ApplyMovement
// locks the product row, so concurrent movements on one product queue up.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `id, clinic_id, name, unit, current_stock, min_stock, purchase_price, sale_price, created_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var purchase, sale int64
	if err := row.Scan(&p.ID, &p.ClinicID, &p.Name, &p.Unit, &p.CurrentStock, &p.MinStock, &purchase, &sale, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.PurchasePrice = money.Amount(purchase)
	p.SalePrice = money.Amount(sale)
	return &p, nil
}

func (s *PostgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO products (id, clinic_id, name, name_folded, unit, current_stock, min_stock, purchase_price, sale_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.ClinicID, p.Name, textnorm.Fold(p.Name), p.Unit, p.CurrentStock, p.MinStock,
		int64(p.PurchasePrice), int64(p.SalePrice), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inventory: create product: %w", err)
	}
	return nil
}

func (s *PostgresRepository) GetProduct(ctx context.Context, clinicID, id string) (*Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE clinic_id = $1 AND id = $2`, clinicID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: get product: %w", err)
	}
	return p, nil
}

func (s *PostgresRepository) ListProducts(ctx context.Context, clinicID string) ([]Product, error) {
	return s.queryProducts(ctx, "list products",
		`SELECT `+productColumns+` FROM products WHERE clinic_id = $1 ORDER BY name_folded`, clinicID)
}

func (s *PostgresRepository) SearchProducts(ctx context.Context, clinicID, fragment string) ([]Product, error) {
	return s.queryProducts(ctx, "search products", `
		SELECT `+productColumns+`
		FROM products
		WHERE clinic_id = $1 AND name_folded LIKE '%' || $2 || '%' ESCAPE '\'
		ORDER BY created_at ASC, id ASC`, clinicID, textnorm.LikeFolded(fragment))
}

func (s *PostgresRepository) queryProducts(ctx context.Context, op, sql string, args ...any) ([]Product, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: %s: %w", op, err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("inventory: scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresRepository) ApplyMovement(ctx context.Context, mv *StockMovement) (*Product, error) {
	if mv.ID == "" {
		mv.ID = uuid.NewString()
	}
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	product, err := scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE clinic_id = $1 AND id = $2 FOR UPDATE`,
		mv.ClinicID, mv.ProductID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: lock product: %w", err)
	}

	next, err := nextStock(*product, *mv)
	if err != nil {
		return nil, err
	}
	mv.ProductName = product.Name
	product.CurrentStock = next

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (id, clinic_id, product_id, type, quantity, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		mv.ID, mv.ClinicID, mv.ProductID, string(mv.Type), mv.Quantity, mv.Note, mv.CreatedAt); err != nil {
		return nil, fmt.Errorf("inventory: insert movement: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET current_stock = $1 WHERE clinic_id = $2 AND id = $3`,
		next, mv.ClinicID, mv.ProductID); err != nil {
		return nil, fmt.Errorf("inventory: update stock: %w", err)
	}
	if product.Low() {
		if _, err := events.AppendCanonicalEvent(ctx, tx, product.ClinicID, lowStockEvent(*product, *mv)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("inventory: commit: %w", err)
	}
	return product, nil
}

func (s *PostgresRepository) ListMovements(ctx context.Context, clinicID, productID string, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.clinic_id, m.product_id, p.name, m.type, m.quantity, m.note, m.created_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id
		WHERE m.clinic_id = $1 AND ($2 = '' OR m.product_id = $2)
		ORDER BY m.created_at DESC
		LIMIT $3`, clinicID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("inventory: list movements: %w", err)
	}
	defer rows.Close()
	var out []StockMovement
	for rows.Next() {
		var mv StockMovement
		var kind string
		if err := rows.Scan(&mv.ID, &mv.ClinicID, &mv.ProductID, &mv.ProductName, &kind, &mv.Quantity, &mv.Note, &mv.CreatedAt); err != nil {
			return nil, fmt.Errorf("inventory: scan movement: %w", err)
		}
		mv.Type = catalog.MovementType(kind)
		out = append(out, mv)
	}
	return out, rows.Err()
}
