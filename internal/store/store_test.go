package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	"clinicstock/m/domain"
	"clinicstock/m/internal/database"
	"clinicstock/m/internal/ledger"
	"clinicstock/m/internal/migrations"
	"clinicstock/m/internal/store"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Apply(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func str(s string) *string { return &s }

func TestInventoryRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := store.NewInventoryRepo(memdb(t))

	created, err := repo.Create(ctx, domain.InventoryItem{
		Kind:             domain.KindVaccine,
		ProductName:      "Pentavalent",
		BeginningBalance: 100,
		Consumption:      30,
		StockTransferIn:  10,
		StockTransferOut: 5,
		RemainingBalance: 999, // ignored, always recomputed
		ExpirationDate:   str("2024-06-15"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || created.RemainingBalance != 75 {
		t.Fatalf("Expected id and remaining 75, got %+v", created)
	}
	if created.CreatedAt == "" {
		t.Errorf("Expected created_at to be set")
	}

	if _, err := repo.Get(ctx, domain.KindContraceptive, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected kind mismatch to be not found, got %v", err)
	}

	created.Consumption = 50
	updated, err := repo.Update(ctx, created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RemainingBalance != 55 {
		t.Errorf("Expected remaining 55 after update, got %d", updated.RemainingBalance)
	}

	list, err := repo.List(ctx, domain.KindVaccine, "penta")
	if err != nil || len(list) != 1 {
		t.Fatalf("Expected 1 match, got %d (%v)", len(list), err)
	}
	if list, _ := repo.List(ctx, domain.KindVaccine, "measles"); len(list) != 0 {
		t.Errorf("Expected no match, got %d", len(list))
	}

	if err := repo.Delete(ctx, domain.KindVaccine, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, domain.KindVaccine, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected second delete to be not found, got %v", err)
	}
}

func TestInventoryRepo_Consume(t *testing.T) {
	ctx := context.Background()
	repo := store.NewInventoryRepo(memdb(t))

	item, err := repo.Create(ctx, domain.InventoryItem{Kind: domain.KindContraceptive, ProductName: "Implant", BeginningBalance: 20})
	if err != nil {
		t.Fatal(err)
	}

	used, err := repo.Consume(ctx, domain.KindContraceptive, item.ID, 5)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if used.Consumption != 5 || used.RemainingBalance != 15 {
		t.Errorf("Expected consumption 5 / remaining 15, got %+v", used)
	}

	if _, err := repo.Consume(ctx, domain.KindContraceptive, item.ID, 16); !errors.Is(err, ledger.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got %v", err)
	}
	if _, err := repo.Consume(ctx, domain.KindContraceptive, item.ID, 0); !errors.Is(err, ledger.ErrInvalidQuantity) {
		t.Fatalf("Expected invalid quantity, got %v", err)
	}
	after, _ := repo.Get(ctx, domain.KindContraceptive, item.ID)
	if after.Consumption != 5 || after.RemainingBalance != 15 {
		t.Errorf("Rejected consumption must not write, got %+v", after)
	}

	if _, err := repo.Consume(ctx, domain.KindContraceptive, 999, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestInventoryRepo_AllAndExists(t *testing.T) {
	ctx := context.Background()
	repo := store.NewInventoryRepo(memdb(t))

	_, _ = repo.Create(ctx, domain.InventoryItem{Kind: domain.KindVaccine, ProductName: "BCG", ExpirationDate: str("2025-01-01")})
	_, _ = repo.Create(ctx, domain.InventoryItem{Kind: domain.KindContraceptive, ProductName: "Pills"})

	all, err := repo.All(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("Expected 2 lots, got %d (%v)", len(all), err)
	}

	ok, err := repo.Exists(ctx, domain.KindVaccine, "BCG", str("2025-01-01"))
	if err != nil || !ok {
		t.Errorf("Expected BCG lot to exist (%v)", err)
	}
	ok, _ = repo.Exists(ctx, domain.KindContraceptive, "Pills", nil)
	if !ok {
		t.Errorf("Expected lot without expiration to match nil")
	}
	ok, _ = repo.Exists(ctx, domain.KindVaccine, "BCG", nil)
	if ok {
		t.Errorf("Expected different expiration not to match")
	}
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := store.NewUserRepo(memdb(t))

	u, err := repo.Create(ctx, domain.User{Username: "nurse", Email: "Nurse@clinic.test", Password: "hash", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Password != "" {
		t.Errorf("Expected password hash to be omitted by ByID")
	}
	if _, err := repo.Create(ctx, domain.User{Username: "dup", Email: "Nurse@clinic.test", Password: "x", Role: domain.RoleStaff}); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected conflict, got %v", err)
	}

	byEmail, err := repo.ByEmail(ctx, "nurse@CLINIC.test")
	if err != nil || byEmail.Password != "hash" {
		t.Fatalf("Expected case-insensitive lookup with hash, got %+v (%v)", byEmail, err)
	}

	u.Role = domain.RoleAdmin
	if u, err = repo.Update(ctx, u); err != nil || u.Role != domain.RoleAdmin {
		t.Fatalf("update: %+v %v", u, err)
	}
	if err := repo.SetPassword(ctx, u.ID, "new"); err != nil {
		t.Fatal(err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("Expected 1 user, got %d", n)
	}
	if err := repo.Delete(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.ByID(ctx, u.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
}

func TestUserRepo_CreateFirst(t *testing.T) {
	ctx := context.Background()
	repo := store.NewUserRepo(memdb(t))

	first, err := repo.CreateFirst(ctx, domain.User{Username: "boss", Email: "boss@clinic.test", Password: "hash", Role: domain.RoleAdmin})
	if err != nil || first.ID == 0 {
		t.Fatalf("Expected first user to be stored, got %+v (%v)", first, err)
	}
	_, err = repo.CreateFirst(ctx, domain.User{Username: "late", Email: "late@clinic.test", Password: "hash", Role: domain.RoleAdmin})
	if !errors.Is(err, store.ErrUsersExist) {
		t.Errorf("Expected ErrUsersExist, got %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("Expected 1 user, got %d", n)
	}
}

func TestAuditRepo(t *testing.T) {
	ctx := context.Background()
	db := memdb(t)
	repo := store.NewAuditRepo(db)

	for _, action := range []string{"create", "use", "delete"} {
		if _, err := repo.Record(ctx, domain.AuditLog{Action: action, Entity: "vaccine", EntityID: "1"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	logs, err := repo.Latest(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].Action != "delete" || logs[1].Action != "use" {
		t.Errorf("Expected newest first, got %+v", logs)
	}
	if logs[0].ID == "" || logs[0].ID == logs[1].ID {
		t.Errorf("Expected unique ids, got %q and %q", logs[0].ID, logs[1].ID)
	}
}
