package catalog

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

func newCatalogMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db), mock
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func menuRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "branch_id", "name", "category", "price", "recommended", "image_url", "active",
	}).AddRow("itm-1", "branch-1", "Tacos de Asada", "tacos", 85.0, true, "", true).
		AddRow("itm-7", "branch-1", "Agua de Horchata", "bebidas", 35.0, false, "", true)
}

func TestActiveMenuMissPopulatesCache(t *testing.T) {
	repo, mock := newCatalogMock(t)
	mr, client := newTestRedis(t)
	cache := NewCache(repo, client, time.Minute, logging.New("error"))

	mock.ExpectQuery(`(?s)SELECT .+ FROM menu_items.+WHERE branch_id = \$1 AND active = true`).
		WithArgs("branch-1").
		WillReturnRows(menuRows())

	items, err := cache.ActiveMenu(context.Background(), "branch-1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	cached, err := mr.Get("menu:branch-1")
	require.NoError(t, err)
	var stored []MenuItem
	require.NoError(t, json.Unmarshal([]byte(cached), &stored))
	assert.Len(t, stored, 2)
}

func TestActiveMenuHitSkipsRepository(t *testing.T) {
	repo, mock := newCatalogMock(t)
	mr, client := newTestRedis(t)
	cache := NewCache(repo, client, time.Minute, logging.New("error"))

	items := []MenuItem{{ID: "itm-1", BranchID: "branch-1", Name: "Tacos de Asada", Category: "tacos", Price: 85, Active: true}}
	data, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, mr.Set("menu:branch-1", string(data)))

	got, err := cache.ActiveMenu(context.Background(), "branch-1")
	require.NoError(t, err)
	assert.Equal(t, items, got)
	assert.NoError(t, mock.ExpectationsWereMet(), "no repository query expected on hit")
}

func TestActiveMenuCorruptEntryRefetches(t *testing.T) {
	repo, mock := newCatalogMock(t)
	mr, client := newTestRedis(t)
	cache := NewCache(repo, client, time.Minute, logging.New("error"))

	require.NoError(t, mr.Set("menu:branch-1", "{not json"))
	mock.ExpectQuery(`(?s)SELECT .+ FROM menu_items`).
		WithArgs("branch-1").
		WillReturnRows(menuRows())

	items, err := cache.ActiveMenu(context.Background(), "branch-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestActiveMenuNilRedisDegradesToRepository(t *testing.T) {
	repo, mock := newCatalogMock(t)
	cache := NewCache(repo, nil, time.Minute, logging.New("error"))

	mock.ExpectQuery(`(?s)SELECT .+ FROM menu_items`).
		WithArgs("branch-1").
		WillReturnRows(menuRows())

	items, err := cache.ActiveMenu(context.Background(), "branch-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestInvalidateDropsCachedMenu(t *testing.T) {
	repo, _ := newCatalogMock(t)
	mr, client := newTestRedis(t)
	cache := NewCache(repo, client, time.Minute, logging.New("error"))

	require.NoError(t, mr.Set("menu:branch-1", "[]"))
	require.NoError(t, cache.Invalidate(context.Background(), "branch-1"))
	assert.False(t, mr.Exists("menu:branch-1"))
}

func TestBranchByNumber(t *testing.T) {
	repo, mock := newCatalogMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM branches.+WHERE whatsapp_number = \$1`).
		WithArgs("+5218100000000").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "restaurant_id", "name", "whatsapp_number", "cashier_phone",
			"qr_token", "default_language",
		}).AddRow("branch-1", "rest-1", "Centro", "+5218100000000", "+5218199999999",
			"QR-1700000000000-a1b2c3", "es"))

	b, err := repo.BranchByNumber(context.Background(), "+5218100000000")
	require.NoError(t, err)
	assert.Equal(t, "branch-1", b.ID)
	assert.Equal(t, "QR-1700000000000-a1b2c3", b.QRToken)
}

func TestBranchByNumberAbsent(t *testing.T) {
	repo, mock := newCatalogMock(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM branches`).
		WithArgs("+5210000000000").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "restaurant_id", "name", "whatsapp_number", "cashier_phone",
			"qr_token", "default_language",
		}))

	_, err := repo.BranchByNumber(context.Background(), "+5210000000000")
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestRotateQRTokenIssuesFreshToken(t *testing.T) {
	repo, mock := newCatalogMock(t)

	mock.ExpectExec(`UPDATE branches SET qr_token = \$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	token, err := repo.RotateQRToken(context.Background(), "branch-1")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^QR-\d+-[0-9a-f]{12}$`), token)
}

func TestRotateQRTokenUnknownBranch(t *testing.T) {
	repo, mock := newCatalogMock(t)

	mock.ExpectExec(`UPDATE branches SET qr_token`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.RotateQRToken(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrBranchNotFound)
}
