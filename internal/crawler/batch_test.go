package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trydiscs/inventory-crawler/internal/events"
	"github.com/trydiscs/inventory-crawler/internal/harvest"
	"github.com/trydiscs/inventory-crawler/internal/models"
	"github.com/trydiscs/inventory-crawler/internal/validate"
)

type fakeStore struct {
	mu        sync.Mutex
	deleted   []string
	inserted  [][]models.InventoryRecord
	insertErr error
}

func (f *fakeStore) DeleteRecords(ctx context.Context, retailerKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, retailerKey)
	return nil
}

func (f *fakeStore) InsertRecords(ctx context.Context, records []models.InventoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, records)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []*events.InventoryDiscoveredPayload
}

func (f *fakePublisher) PublishInventoryDiscovered(ctx context.Context, payload *events.InventoryDiscoveredPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

const searchInput = `<input type="text" name="q" placeholder="Search">`

func TestBatchRunStoresAndPublishes(t *testing.T) {
	pageURL := "https://shop.example.com/search?q=innova"
	store := &fakeStore{}
	publisher := &fakePublisher{}

	batch, err := NewBatch(BatchOptions{
		Drivers: func(ctx context.Context) (PageDriver, error) {
			return &stubDriver{
				url:             pageURL,
				inputCandidates: []string{searchInput},
				snaps:           []*harvest.PageSnapshot{snapshotOf(pageURL, "Aviar", "Destroyer")},
			}, nil
		},
		Oracle:    &stubOracle{answers: []string{searchInput}},
		Validator: validate.New(controllerCatalog()),
		Store:     store,
		Publisher: publisher,
		Workers:   1,
		Controller: Config{
			MinNewListings: 1,
			MaxCycles:      5,
		},
	})
	require.NoError(t, err)

	err = batch.Run(context.Background(), []string{"https://shop.example.com"}, []string{"Innova"})
	require.NoError(t, err)

	require.Len(t, store.deleted, 1)
	assert.Equal(t, "shop.example.com", store.deleted[0])

	require.Len(t, store.inserted, 1)
	assert.Len(t, store.inserted[0], 2)

	require.Len(t, publisher.payloads, 1)
	assert.Equal(t, "shop.example.com", publisher.payloads[0].Retailer)
	assert.Equal(t, 2, publisher.payloads[0].RecordCount)

	results := batch.Results()
	assert.Equal(t, 2, results["https://shop.example.com"])
}

func TestBatchRunRequiresTargets(t *testing.T) {
	batch, err := NewBatch(BatchOptions{
		Drivers: func(ctx context.Context) (PageDriver, error) {
			return &stubDriver{}, nil
		},
	})
	require.NoError(t, err)

	err = batch.Run(context.Background(), nil, []string{"Innova"})
	require.Error(t, err)

	err = batch.Run(context.Background(), []string{"https://shop.example.com"}, nil)
	require.Error(t, err)
}

func TestBatchRunContainsFailedRetailer(t *testing.T) {
	batch, err := NewBatch(BatchOptions{
		Drivers: func(ctx context.Context) (PageDriver, error) {
			return nil, errors.New("browser crashed")
		},
		Oracle:    &stubOracle{},
		Validator: validate.New(controllerCatalog()),
		Workers:   2,
		Controller: Config{
			MinNewListings: 1,
			MaxCycles:      5,
		},
	})
	require.NoError(t, err)

	err = batch.Run(context.Background(), []string{"https://a.example.com", "https://b.example.com"}, []string{"Innova"})
	require.NoError(t, err)
	assert.Empty(t, batch.Results())
}

func TestBatchStoreFailureSurfaced(t *testing.T) {
	pageURL := "https://shop.example.com/search?q=innova"
	store := &fakeStore{insertErr: errors.New("connection reset")}

	batch, err := NewBatch(BatchOptions{
		Drivers: func(ctx context.Context) (PageDriver, error) {
			return &stubDriver{
				url:             pageURL,
				inputCandidates: []string{searchInput},
				snaps:           []*harvest.PageSnapshot{snapshotOf(pageURL, "Aviar")},
			}, nil
		},
		Oracle:    &stubOracle{answers: []string{searchInput}},
		Validator: validate.New(controllerCatalog()),
		Store:     store,
		Workers:   1,
		Controller: Config{
			MinNewListings: 1,
			MaxCycles:      5,
		},
	})
	require.NoError(t, err)

	err = batch.Run(context.Background(), []string{"https://shop.example.com"}, []string{"Innova"})
	require.NoError(t, err)

	// Session results are not recorded when persistence failed.
	assert.Empty(t, batch.Results())
}

func TestBatchCachesStrategyAcrossSessions(t *testing.T) {
	page1 := "https://shop.example.com/search?q=innova&page=1"
	page2 := "https://shop.example.com/search?q=innova&page=2"
	nextLink := `<a href="?page=2">Next page</a>`

	newDriver := func() *stubDriver {
		return &stubDriver{
			url:             page1,
			clickURL:        page2,
			navCandidates:   []string{nextLink},
			inputCandidates: []string{searchInput},
			snaps: []*harvest.PageSnapshot{
				snapshotOf(page1, "Aviar"),
				snapshotOf(page1, "Aviar"),
				snapshotOf(page1, "Aviar"),
				snapshotOf(page2, "Destroyer"),
				snapshotOf(page2, "Destroyer"),
			},
		}
	}

	drivers := []*stubDriver{newDriver(), newDriver()}
	idx := 0

	oracle := &stubOracle{answers: []string{searchInput, nextLink, searchInput}}

	batch, err := NewBatch(BatchOptions{
		Drivers: func(ctx context.Context) (PageDriver, error) {
			d := drivers[idx]
			idx++
			return d, nil
		},
		Oracle:    oracle,
		Validator: validate.New(controllerCatalog()),
		Workers:   1,
		Controller: Config{
			MinNewListings: 1,
			MaxCycles:      5,
		},
	})
	require.NoError(t, err)

	// First crawl discovers the page parameter via a click.
	err = batch.Run(context.Background(), []string{"https://shop.example.com"}, []string{"Innova"})
	require.NoError(t, err)
	require.Len(t, drivers[0].clicked, 1)

	// Second crawl of the same hostname starts with the cached parameter
	// and never clicks or consults the oracle for navigation.
	err = batch.Run(context.Background(), []string{"https://shop.example.com"}, []string{"Innova"})
	require.NoError(t, err)
	assert.Empty(t, drivers[1].clicked)
	assert.NotEmpty(t, drivers[1].navigated)
}
