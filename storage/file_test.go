package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront/models"
)

func testProducts(t *testing.T) *FileCollection[models.Product, *models.Product] {
	t.Helper()
	c, err := NewFileCollection[models.Product](filepath.Join(t.TempDir(), "data", "products.json"), "product")
	require.NoError(t, err)
	return c
}

func saree(name string) models.Product {
	return models.Product{Name: name, Description: "d", Price: 10, Category: models.CategorySaree, Stock: 5}
}

func TestNewFileCollectionCreatesEmptyArray(t *testing.T) {
	c := testProducts(t)
	raw, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	all, err := c.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NotNil(t, all)
}

func TestFileCreateThenFindByID(t *testing.T) {
	c := testProducts(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	created, err := c.Create(ctx, saree("A"))
	require.NoError(t, err)
	assert.Equal(t, "product_1717200000000", created.ID)
	assert.Equal(t, []string{}, created.Images)
	require.NotNil(t, created.Position)
	assert.Equal(t, 0, *created.Position)
	assert.Equal(t, 0.0, created.Discount)

	got, err := c.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Stock, got.Stock)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	// Same millisecond: the id moves forward instead of colliding
	second, err := c.Create(ctx, saree("B"))
	require.NoError(t, err)
	assert.Equal(t, "product_1717200000001", second.ID)
	assert.Equal(t, 1, *second.Position)
}

func TestFileCreateRejectsInvalid(t *testing.T) {
	c := testProducts(t)
	_, err := c.Create(context.Background(), models.Product{Description: "no name"})

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.False(t, IsStorageFailure(err))

	n, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFilePatchLeavesOtherFields(t *testing.T) {
	c := testProducts(t)
	ctx := context.Background()
	created, err := c.Create(ctx, saree("A"))
	require.NoError(t, err)

	updated, err := c.FindByIDAndUpdate(ctx, created.ID, Patch{"price": 42.5, "id": "hijack", "createdAt": "2000-01-01T00:00:00Z"})
	require.NoError(t, err)

	assert.Equal(t, 42.5, updated.Price)
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.Category, updated.Category)
	assert.Equal(t, created.Stock, updated.Stock)
	assert.Equal(t, *created.Position, *updated.Position)

	stored, err := c.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.5, stored.Price)
}

func TestFilePatchValidates(t *testing.T) {
	c := testProducts(t)
	ctx := context.Background()
	created, err := c.Create(ctx, saree("A"))
	require.NoError(t, err)

	_, err = c.FindByIDAndUpdate(ctx, created.ID, Patch{"discount": 150})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))

	_, err = c.FindByIDAndUpdate(ctx, created.ID, Patch{"price": "free"})
	require.True(t, errors.As(err, &verr))

	stored, err := c.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stored.Discount)
	assert.Equal(t, 10.0, stored.Price)
}

func TestFileUpdateMissingLeavesFileUntouched(t *testing.T) {
	c := testProducts(t)
	ctx := context.Background()
	_, err := c.Create(ctx, saree("A"))
	require.NoError(t, err)

	before, err := os.ReadFile(c.Path())
	require.NoError(t, err)

	_, err = c.FindByIDAndUpdate(ctx, "x", Patch{"price": 1})
	assert.ErrorIs(t, err, ErrNotFound)

	after, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileDelete(t *testing.T) {
	c := testProducts(t)
	ctx := context.Background()
	created, err := c.Create(ctx, saree("A"))
	require.NoError(t, err)

	removed, err := c.FindByIDAndDelete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, removed.ID)

	_, err = c.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.FindByIDAndDelete(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsStorageFailure(err))
}

func TestFileFindByQuery(t *testing.T) {
	c := testProducts(t)
	ctx := context.Background()
	_, err := c.Create(ctx, saree("A"))
	require.NoError(t, err)
	kids := saree("B")
	kids.Category = models.CategoryKids
	_, err = c.Create(ctx, kids)
	require.NoError(t, err)

	sarees, err := c.Find(ctx, Query{"category": "saree"})
	require.NoError(t, err)
	require.Len(t, sarees, 1)
	assert.Equal(t, "A", sarees[0].Name)

	all, err := c.Find(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// numbers compare by value whatever their Go type
	stocked, err := c.Find(ctx, Query{"stock": 5, "category": "kids"})
	require.NoError(t, err)
	require.Len(t, stocked, 1)
	assert.Equal(t, "B", stocked[0].Name)

	none, err := c.Find(ctx, Query{"category": "mens"})
	require.NoError(t, err)
	assert.Empty(t, none)

	one, err := c.FindOne(ctx, Query{"_id": sarees[0].ID})
	require.NoError(t, err)
	assert.Equal(t, "A", one.Name)

	_, err = c.FindOne(ctx, Query{"name": "nobody"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileUnique(t *testing.T) {
	users, err := NewFileCollection[models.User](filepath.Join(t.TempDir(), "users.json"), "user")
	require.NoError(t, err)
	users.Unique("email")
	ctx := context.Background()

	_, err = users.Create(ctx, models.User{Name: "A", Email: "a@example.com", Password: "h"})
	require.NoError(t, err)

	_, err = users.Create(ctx, models.User{Name: "B", Email: "A@Example.com", Password: "h"})
	assert.ErrorIs(t, err, ErrDuplicate)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFileConcurrentCreatesKeepEveryRecord(t *testing.T) {
	c := testProducts(t)
	ctx := context.Background()

	const writers = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Create(ctx, saree("P")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("create: %v", err)
	}

	all, err := c.Find(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, writers)

	ids := map[string]bool{}
	for _, p := range all {
		ids[p.ID] = true
	}
	assert.Len(t, ids, writers)
}

func TestFileCorruptIsStorageFailure(t *testing.T) {
	c := testProducts(t)
	require.NoError(t, os.WriteFile(c.Path(), []byte("{not json"), 0o644))

	_, err := c.Find(context.Background(), Query{})
	require.Error(t, err)
	assert.True(t, IsStorageFailure(err))
}

func TestFileIncrement(t *testing.T) {
	c := testProducts(t)
	ctx := context.Background()

	created, err := c.Create(ctx, saree("A"))
	require.NoError(t, err)

	got, err := c.Increment(ctx, created.ID, "stock", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	_, err = c.Increment(ctx, created.ID, "stock", -1)
	assert.ErrorIs(t, err, ErrInsufficient)
	assert.False(t, IsStorageFailure(err))

	got, err = c.Increment(ctx, created.ID, "stock", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
	assert.Equal(t, "A", got.Name)

	_, err = c.Increment(ctx, "product_missing", "stock", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	var verr *models.ValidationError
	_, err = c.Increment(ctx, created.ID, "name", 1)
	assert.True(t, errors.As(err, &verr))
	_, err = c.Increment(ctx, created.ID, "createdAt", 1)
	assert.True(t, errors.As(err, &verr))
}

func TestFileConcurrentIncrementNeverOversells(t *testing.T) {
	c := testProducts(t)
	ctx := context.Background()

	p := saree("A")
	p.Stock = 10
	created, err := c.Create(ctx, p)
	require.NoError(t, err)

	const buyers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	sold, refused := 0, 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Increment(ctx, created.ID, "stock", -1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				sold++
			case errors.Is(err, ErrInsufficient):
				refused++
			default:
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, sold)
	assert.Equal(t, buyers-10, refused)
	got, err := c.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}
